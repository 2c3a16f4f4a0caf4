package lsp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the analyzer protocol layer. Callers branch on these
// with errors.Is; every public operation surfaces one of them or a
// *RemoteError rather than a generic failure.
var (
	// ErrWorkspaceNotFound means the workspace root does not exist on disk.
	// Checked before any network I/O.
	ErrWorkspaceNotFound = errors.New("workspace root does not exist")

	// ErrHandshakeFailed means the daemon rejected or never answered the
	// initialize request. The session is Closed and must be recreated.
	ErrHandshakeFailed = errors.New("analyzer handshake failed")

	// ErrNotReady means a call or notification was attempted while the
	// session was not in the Ready state.
	ErrNotReady = errors.New("session not ready")

	// ErrTimeout means no complete frame or matching response arrived
	// within the allotted time. The session stays Ready.
	ErrTimeout = errors.New("timed out waiting for analyzer")

	// ErrMalformedFrame means a frame had a missing or non-numeric
	// Content-Length header, or its body was not valid JSON.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrTransport means the underlying connection failed during a write.
	ErrTransport = errors.New("transport failure")

	// ErrSessionClosed means the session was torn down while the caller
	// was waiting.
	ErrSessionClosed = errors.New("session closed")

	// ErrDocumentRead means a document's content could not be obtained
	// from its backing store before opening it.
	ErrDocumentRead = errors.New("cannot read document content")

	// ErrCollectInProgress means a diagnostics collection window is
	// already running on this session.
	ErrCollectInProgress = errors.New("diagnostics collection already in progress")
)

// RemoteError is a JSON-RPC error object returned by the daemon in a
// response.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("analyzer error %d: %s", e.Code, e.Message)
}
