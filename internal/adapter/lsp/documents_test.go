package lsp

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestTracker(t *testing.T) (*DocumentTracker, *Session, *fakeDaemon) {
	t.Helper()
	s, d := newTestSession(t)
	startReady(t, s, d)
	return NewDocumentTracker(s, "dart"), s, d
}

func writeWorkspaceFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrackerOpenSendsFullText(t *testing.T) {
	tr, s, d := newTestTracker(t)
	writeWorkspaceFile(t, s.Root(), "lib/main.dart", "void main() {}\n")

	got := make(chan *Message, 1)
	go func() { got <- d.read() }()

	if err := tr.Open("lib/main.dart"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	msg := <-got
	if msg.Method != "textDocument/didOpen" {
		t.Fatalf("method = %q", msg.Method)
	}
	var params struct {
		TextDocument struct {
			URI        string `json:"uri"`
			LanguageID string `json:"languageId"`
			Version    int    `json:"version"`
			Text       string `json:"text"`
		} `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	doc := params.TextDocument
	if doc.URI != "file://"+filepath.Join(s.Root(), "lib/main.dart") {
		t.Errorf("uri = %q", doc.URI)
	}
	if doc.LanguageID != "dart" {
		t.Errorf("languageId = %q", doc.LanguageID)
	}
	if doc.Version != 1 {
		t.Errorf("version = %d, want 1", doc.Version)
	}
	if doc.Text != "void main() {}\n" {
		t.Errorf("text = %q", doc.Text)
	}

	if !tr.IsOpen("lib/main.dart") {
		t.Error("document not recorded as open")
	}
	if got := tr.OpenCount(); got != 1 {
		t.Errorf("OpenCount = %d, want 1", got)
	}
}

func TestTrackerOpenUnreadableFile(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	err := tr.Open("lib/missing.dart")
	if !errors.Is(err, ErrDocumentRead) {
		t.Fatalf("expected ErrDocumentRead, got %v", err)
	}
	if tr.IsOpen("lib/missing.dart") {
		t.Error("unreadable document must not be recorded as open")
	}
	if got := tr.OpenCount(); got != 0 {
		t.Errorf("OpenCount = %d, want 0", got)
	}
}

func TestTrackerEnsureOpenSkipsReopen(t *testing.T) {
	tr, s, d := newTestTracker(t)
	writeWorkspaceFile(t, s.Root(), "a.dart", "class A {}\n")

	go func() { _ = d.read() }()
	if err := tr.EnsureOpen("a.dart"); err != nil {
		t.Fatalf("EnsureOpen: %v", err)
	}

	// No daemon read is scheduled for a second didOpen; an unexpected send
	// would block the pipe and trip the notify below.
	if err := tr.EnsureOpen("a.dart"); err != nil {
		t.Fatalf("second EnsureOpen: %v", err)
	}
	if got := tr.OpenCount(); got != 1 {
		t.Errorf("OpenCount = %d, want 1", got)
	}
}

func TestTrackerCloseRemovesBeforeSend(t *testing.T) {
	tr, s, d := newTestTracker(t)
	writeWorkspaceFile(t, s.Root(), "a.dart", "class A {}\n")

	opened := make(chan struct{})
	go func() { defer close(opened); _ = d.read() }()
	if err := tr.Open("a.dart"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Join the didOpen reader before starting the didClose reader: the
	// fake daemon's framer supports only one concurrent reader.
	<-opened

	got := make(chan *Message, 1)
	go func() { got <- d.read() }()
	if err := tr.Close("a.dart"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	msg := <-got
	if msg.Method != "textDocument/didClose" {
		t.Errorf("method = %q", msg.Method)
	}
	if tr.IsOpen("a.dart") {
		t.Error("document still open after Close")
	}
}

func TestTrackerCloseAfterSessionGone(t *testing.T) {
	tr, s, d := newTestTracker(t)
	writeWorkspaceFile(t, s.Root(), "a.dart", "class A {}\n")

	go func() { _ = d.read() }()
	if err := tr.Open("a.dart"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	_ = s.Close()

	// The send fails, but the tracker's view is cleaned up regardless.
	if err := tr.Close("a.dart"); err == nil {
		t.Error("expected a send error on a closed session")
	}
	if tr.IsOpen("a.dart") {
		t.Error("document must be dropped even when didClose cannot be sent")
	}
}

func TestTrackerURIAcceptsAbsolutePaths(t *testing.T) {
	tr, s, _ := newTestTracker(t)

	abs := filepath.Join(s.Root(), "lib", "a.dart")
	if got, want := tr.URI(abs), "file://"+abs; got != want {
		t.Errorf("URI(abs) = %q, want %q", got, want)
	}
	if got := tr.URI("lib/a.dart"); got != "file://"+abs {
		t.Errorf("URI(rel) = %q, want %q", got, "file://"+abs)
	}
}
