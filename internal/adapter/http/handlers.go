package http

import (
	"context"
	"net/http"
	"time"

	"github.com/codika/dartbridge/internal/adapter/lsp"
	"github.com/codika/dartbridge/internal/domain/analysis"
	"github.com/codika/dartbridge/internal/service"
)

// intelligenceAPI is what the handlers need from the intelligence service.
type intelligenceAPI interface {
	Hover(ctx context.Context, path string, pos analysis.Position) (*analysis.Hover, error)
	Completion(ctx context.Context, path string, pos analysis.Position, triggerCharacter string) ([]analysis.CompletionItem, error)
	Definition(ctx context.Context, path string, pos analysis.Position) ([]analysis.Location, error)
	References(ctx context.Context, path string, pos analysis.Position, includeDeclaration bool) ([]analysis.Location, error)
	DocumentSymbols(ctx context.Context, path string) ([]analysis.DocumentSymbol, error)
	WorkspaceSymbols(ctx context.Context, query string) ([]analysis.WorkspaceSymbol, error)
	CloseDocument(path string) error
}

// diagnosticsAPI is what the handlers need from the diagnostics service.
type diagnosticsAPI interface {
	AnalyzeProject(ctx context.Context) (*analysis.DiagnosticsReport, error)
	AnalyzeFile(ctx context.Context, path string) (*analysis.DiagnosticsReport, error)
	CachedReport(ctx context.Context) (*analysis.DiagnosticsReport, bool, error)
	CachedSummary(ctx context.Context) (*analysis.Summary, time.Time, bool, error)
}

// workspaceAPI is what the handlers need from the workspace service.
type workspaceAPI interface {
	Info() (*service.WorkspaceInfo, error)
	ListDartFiles() ([]string, error)
	Validate(sessionState lsp.State) service.ValidationResult
	Root() string
}

// sessionStatus exposes the session state for the health endpoint.
type sessionStatus interface {
	State() lsp.State
	Root() string
}

// Handlers bundles the API dependencies.
type Handlers struct {
	intelligence intelligenceAPI
	diagnostics  diagnosticsAPI
	workspace    workspaceAPI
	session      sessionStatus
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(intelligence intelligenceAPI, diagnostics diagnosticsAPI, workspace workspaceAPI, session sessionStatus) *Handlers {
	return &Handlers{
		intelligence: intelligence,
		diagnostics:  diagnostics,
		workspace:    workspace,
		session:      session,
	}
}

// positionRequest is the body of all positional queries. Line and character
// are 1-based.
type positionRequest struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
}

func (p positionRequest) position() analysis.Position {
	return analysis.Position{Line: p.Line, Character: p.Character}
}

// readPosition decodes and validates a positional request body.
func readPosition(w http.ResponseWriter, r *http.Request) (positionRequest, bool) {
	req, ok := readJSON[positionRequest](w, r, maxRequestBodySize)
	if !ok {
		return req, false
	}
	if !requireField(w, req.File, "file") {
		return req, false
	}
	if req.Line < 1 || req.Character < 1 {
		writeError(w, http.StatusBadRequest, "line and character are 1-based and must be >= 1")
		return req, false
	}
	return req, true
}

// AnalyzeProject runs a full project analysis and returns the report.
func (h *Handlers) AnalyzeProject(w http.ResponseWriter, r *http.Request) {
	report, err := h.diagnostics.AnalyzeProject(r.Context())
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AnalyzeFile analyzes one file.
func (h *Handlers) AnalyzeFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		File string `json:"file"`
	}](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.File, "file") {
		return
	}

	report, err := h.diagnostics.AnalyzeFile(r.Context(), req.File)
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetDiagnostics serves the cached report from the last analysis run.
func (h *Handlers) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	report, found, err := h.diagnostics.CachedReport(r.Context())
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no analysis has run yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetDiagnosticsSummary serves the severity tally of the cached report.
func (h *Handlers) GetDiagnosticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, generatedAt, found, err := h.diagnostics.CachedSummary(r.Context())
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no analysis has run yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":      summary,
		"generated_at": generatedAt,
	})
}

// Hover serves hover information for a position.
func (h *Handlers) Hover(w http.ResponseWriter, r *http.Request) {
	req, ok := readPosition(w, r)
	if !ok {
		return
	}
	hover, err := h.intelligence.Hover(r.Context(), req.File, req.position())
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	// hover is nil when the daemon has nothing to show for the position.
	writeJSON(w, http.StatusOK, map[string]any{"hover": hover})
}

// Completion serves completion suggestions for a position.
func (h *Handlers) Completion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		positionRequest
		TriggerCharacter string `json:"trigger_character"`
	}](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.File, "file") {
		return
	}
	if req.Line < 1 || req.Character < 1 {
		writeError(w, http.StatusBadRequest, "line and character are 1-based and must be >= 1")
		return
	}

	items, err := h.intelligence.Completion(r.Context(), req.File, req.position(), req.TriggerCharacter)
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Definition serves go-to-definition locations.
func (h *Handlers) Definition(w http.ResponseWriter, r *http.Request) {
	req, ok := readPosition(w, r)
	if !ok {
		return
	}
	locs, err := h.intelligence.Definition(r.Context(), req.File, req.position())
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

// References serves reference locations.
func (h *Handlers) References(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		positionRequest
		IncludeDeclaration bool `json:"include_declaration"`
	}](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.File, "file") {
		return
	}
	if req.Line < 1 || req.Character < 1 {
		writeError(w, http.StatusBadRequest, "line and character are 1-based and must be >= 1")
		return
	}

	locs, err := h.intelligence.References(r.Context(), req.File, req.position(), req.IncludeDeclaration)
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

// DocumentSymbols serves the symbol outline of one document.
func (h *Handlers) DocumentSymbols(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		File string `json:"file"`
	}](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.File, "file") {
		return
	}

	syms, err := h.intelligence.DocumentSymbols(r.Context(), req.File)
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": syms})
}

// WorkspaceSymbols serves workspace-wide symbols matching ?q=.
func (h *Handlers) WorkspaceSymbols(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	syms, err := h.intelligence.WorkspaceSymbols(r.Context(), query)
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": syms})
}

// CloseDocument releases a tracked document on the daemon side.
func (h *Handlers) CloseDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		File string `json:"file"`
	}](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.File, "file") {
		return
	}

	if err := h.intelligence.CloseDocument(req.File); err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": req.File})
}

// GetWorkspace serves workspace metadata from pubspec.yaml and the layout.
func (h *Handlers) GetWorkspace(w http.ResponseWriter, _ *http.Request) {
	info, err := h.workspace.Info()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ListWorkspaceFiles serves the enumerated Dart sources.
func (h *Handlers) ListWorkspaceFiles(w http.ResponseWriter, _ *http.Request) {
	files, err := h.workspace.ListDartFiles()
	if err != nil {
		writeAnalyzerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "count": len(files)})
}

// ValidateWorkspace reports whether the workspace looks analyzable.
func (h *Handlers) ValidateWorkspace(w http.ResponseWriter, _ *http.Request) {
	result := h.workspace.Validate(h.session.State())
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// Health reports service and analyzer-session status.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	state := h.session.State()
	status := http.StatusOK
	if state == lsp.StateClosed {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":    "ok",
		"session":   state.String(),
		"workspace": h.session.Root(),
	})
}
