package lsp

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// OpenDocument records a document the daemon currently believes is open.
type OpenDocument struct {
	URI        string
	Version    int
	LanguageID string
}

// DocumentTracker maintains the set of open documents for a session.
// Positional queries are only meaningful for open documents, so callers go
// through EnsureOpen before hover, completion, definition, references, or
// symbol requests.
type DocumentTracker struct {
	session    *Session
	root       string
	languageID string

	readFile func(string) ([]byte, error)

	mu   sync.Mutex
	open map[string]OpenDocument // keyed by URI
}

// NewDocumentTracker creates a tracker bound to the session's workspace
// root. languageID is stamped on every didOpen.
func NewDocumentTracker(session *Session, languageID string) *DocumentTracker {
	return &DocumentTracker{
		session:    session,
		root:       session.Root(),
		languageID: languageID,
		readFile:   os.ReadFile,
		open:       make(map[string]OpenDocument),
	}
}

// Open reads the document's content and sends textDocument/didOpen with
// version 1 and the full text. Re-opening an already-open document simply
// re-sends didOpen. Returns ErrDocumentRead when the content cannot be
// obtained.
func (t *DocumentTracker) Open(path string) error {
	abs := t.abs(path)
	content, err := t.readFile(abs)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrDocumentRead, path, err)
	}

	uri := fileURI(t.root, abs)
	params := map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": t.languageID,
			"version":    1,
			"text":       string(content),
		},
	}
	if err := t.session.Notify("textDocument/didOpen", params); err != nil {
		return err
	}

	t.mu.Lock()
	t.open[uri] = OpenDocument{URI: uri, Version: 1, LanguageID: t.languageID}
	t.mu.Unlock()
	return nil
}

// EnsureOpen opens the document unless the tracker already has it open.
// Leaving documents open across queries saves a didOpen round per call.
func (t *DocumentTracker) EnsureOpen(path string) error {
	if t.IsOpen(path) {
		return nil
	}
	return t.Open(path)
}

// Close sends textDocument/didClose and removes the document from the open
// set. The removal happens regardless of whether the send succeeded: close
// is best-effort cleanup, and a failed notification must not leave the
// tracker believing the document is still open.
func (t *DocumentTracker) Close(path string) error {
	uri := fileURI(t.root, t.abs(path))

	t.mu.Lock()
	delete(t.open, uri)
	t.mu.Unlock()

	params := map[string]any{
		"textDocument": map[string]any{"uri": uri},
	}
	return t.session.Notify("textDocument/didClose", params)
}

// IsOpen reports whether the tracker has the document open.
func (t *DocumentTracker) IsOpen(path string) bool {
	uri := fileURI(t.root, t.abs(path))
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.open[uri]
	return ok
}

// OpenCount returns the number of documents currently open.
func (t *DocumentTracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// URI returns the document's file URI as sent to the daemon.
func (t *DocumentTracker) URI(path string) string {
	return fileURI(t.root, t.abs(path))
}

func (t *DocumentTracker) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.root, path)
}
