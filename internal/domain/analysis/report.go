package analysis

import "time"

// FileDiagnostics groups the diagnostics reported for one file.
type FileDiagnostics struct {
	File        string       `json:"file"`
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"issues"`
}

// Summary tallies diagnostics by severity across a whole report. Hints are
// counted under Info, matching how the daemon's own summaries fold them.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Total returns the summed issue count.
func (s Summary) Total() int {
	return s.Errors + s.Warnings + s.Info
}

// Add counts one diagnostic of the given severity.
func (s *Summary) Add(sev Severity) {
	switch sev {
	case SeverityError:
		s.Errors++
	case SeverityWarning:
		s.Warnings++
	default:
		s.Info++
	}
}

// DiagnosticsReport is the consolidated result of one collection window.
// Reports replace each other wholesale; they are never merged.
type DiagnosticsReport struct {
	RunID         string            `json:"run_id"`
	PerFile       []FileDiagnostics `json:"diagnostics"`
	Summary       Summary           `json:"summary"`
	FilesAnalyzed int               `json:"files_analyzed"`
	GeneratedAt   time.Time         `json:"generated_at"`
}
