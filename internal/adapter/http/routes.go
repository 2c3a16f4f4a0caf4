package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Analysis
		r.Post("/analyze", h.AnalyzeProject)
		r.Post("/analyze/file", h.AnalyzeFile)
		r.Get("/diagnostics", h.GetDiagnostics)
		r.Get("/diagnostics/summary", h.GetDiagnosticsSummary)

		// Code intelligence
		r.Post("/hover", h.Hover)
		r.Post("/completion", h.Completion)
		r.Post("/definition", h.Definition)
		r.Post("/references", h.References)
		r.Post("/symbols/document", h.DocumentSymbols)
		r.Get("/symbols/workspace", h.WorkspaceSymbols)

		// Documents
		r.Post("/documents/close", h.CloseDocument)

		// Workspace
		r.Get("/workspace", h.GetWorkspace)
		r.Get("/workspace/files", h.ListWorkspaceFiles)
		r.Get("/workspace/validate", h.ValidateWorkspace)
	})
}
