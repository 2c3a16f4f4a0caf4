// Package analysis defines domain types for analysis-daemon results.
// These types carry 1-based line/column positions (line 1, column 1 is the
// first character); the wire protocol's 0-based positions are converted at
// the adapter boundary so the rest of the service never sees them.
package analysis

// Position in a text document (1-based line and character).
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location links a file to a range. File is relative to the workspace root
// when the URI points inside it.
type Location struct {
	File  string `json:"file"`
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// SeverityFromWire maps the protocol's numeric severity (1=Error, 2=Warning,
// 3=Info) to a Severity. Any other value, including the protocol's Hint (4),
// maps to SeverityHint.
func SeverityFromWire(code int) Severity {
	switch code {
	case 1:
		return SeverityError
	case 2:
		return SeverityWarning
	case 3:
		return SeverityInfo
	default:
		return SeverityHint
	}
}

// Diagnostic is a daemon-reported issue tied to a file and source range.
type Diagnostic struct {
	File      string   `json:"file"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	StartLine int      `json:"line"`
	StartCol  int      `json:"character"`
	EndLine   int      `json:"endLine"`
	EndCol    int      `json:"endCharacter"`
	Code      string   `json:"code,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// Hover is the normalized hover result for a position.
type Hover struct {
	Content string `json:"content"`
	Format  string `json:"format"` // "markdown" or "plaintext"
}

// CompletionItem is one completion suggestion.
type CompletionItem struct {
	Label         string `json:"label"`
	Kind          string `json:"kind"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insertText"`
	SortText      string `json:"sortText,omitempty"`
}

// DocumentSymbol is a symbol within one document. Children carries nested
// symbols when the daemon reports hierarchically.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Kind           string           `json:"kind"`
	Detail         string           `json:"detail,omitempty"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// WorkspaceSymbol is a symbol matched by a workspace-wide query.
type WorkspaceSymbol struct {
	Name          string   `json:"name"`
	Kind          string   `json:"kind"`
	File          string   `json:"file"`
	ContainerName string   `json:"containerName,omitempty"`
	Location      Location `json:"location"`
}
