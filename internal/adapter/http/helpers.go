package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/codika/dartbridge/internal/adapter/lsp"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required")
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeAnalyzerError maps analyzer error kinds to HTTP statuses. Unknown
// errors are logged server-side and reported generically.
func writeAnalyzerError(w http.ResponseWriter, err error) {
	var remote *lsp.RemoteError
	switch {
	case errors.Is(err, lsp.ErrNotReady), errors.Is(err, lsp.ErrSessionClosed), errors.Is(err, lsp.ErrHandshakeFailed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, lsp.ErrWorkspaceNotFound), errors.Is(err, lsp.ErrDocumentRead):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lsp.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, lsp.ErrCollectInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &remote):
		writeError(w, http.StatusBadGateway, remote.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
