package lsp

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/codika/dartbridge/internal/config"
)

// testAnalyzerConfig returns tight timeouts so failing paths do not stall
// the suite.
func testAnalyzerConfig() config.Analyzer {
	return config.Analyzer{
		Host:             "127.0.0.1",
		Port:             8081,
		DialTimeout:      time.Second,
		HandshakeTimeout: 2 * time.Second,
		RequestTimeout:   2 * time.Second,
		ReadPoll:         25 * time.Millisecond,
	}
}

// fakeDaemon drives the server end of an in-memory connection, playing the
// analysis daemon's part of the protocol.
type fakeDaemon struct {
	t      *testing.T
	conn   net.Conn
	framer *Framer
}

// newTestSession returns an unstarted session whose dialer yields the
// client end of a net.Pipe, plus the fake daemon on the server end. The
// workspace root is a fresh temp directory, so it exists.
func newTestSession(t *testing.T) (*Session, *fakeDaemon) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	s := NewSession(testAnalyzerConfig(), t.TempDir(), nil)
	s.dial = func(context.Context) (net.Conn, error) { return client, nil }

	return s, &fakeDaemon{t: t, conn: server, framer: NewFramer(server)}
}

// read returns the next message the client sent, failing the test on
// timeout.
func (d *fakeDaemon) read() *Message {
	d.t.Helper()
	msg, err := d.framer.ReadMessage(2 * time.Second)
	if err != nil {
		d.t.Fatalf("daemon read: %v", err)
	}
	return msg
}

// respond sends a success response for the given request id.
func (d *fakeDaemon) respond(id int64, result any) {
	d.t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		d.t.Fatalf("daemon marshal result: %v", err)
	}
	msg := &Message{JSONRPC: jsonrpcVersion, ID: &id, Result: raw}
	if err := d.framer.WriteMessage(msg); err != nil {
		d.t.Fatalf("daemon respond: %v", err)
	}
}

// respondError sends an error response for the given request id.
func (d *fakeDaemon) respondError(id int64, code int, message string) {
	d.t.Helper()
	msg := &Message{JSONRPC: jsonrpcVersion, ID: &id, Error: &RemoteError{Code: code, Message: message}}
	if err := d.framer.WriteMessage(msg); err != nil {
		d.t.Fatalf("daemon respond error: %v", err)
	}
}

// notify pushes a notification to the client.
func (d *fakeDaemon) notify(method string, params any) {
	d.t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		d.t.Fatalf("daemon marshal params: %v", err)
	}
	msg := &Message{JSONRPC: jsonrpcVersion, Method: method, Params: raw}
	if err := d.framer.WriteMessage(msg); err != nil {
		d.t.Fatalf("daemon notify: %v", err)
	}
}

// serveHandshake answers the initialize request and swallows the
// initialized notification in a background goroutine. The returned channel
// closes once the daemon side is fully done with the handshake, so callers
// can wait before issuing their own reads on the same framer.
func (d *fakeDaemon) serveHandshake() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		init := d.read()
		if init.Method != "initialize" {
			d.t.Errorf("expected initialize, got %q", init.Method)
			return
		}
		d.respond(*init.ID, map[string]any{"capabilities": map[string]any{}})

		confirmed := d.read()
		if confirmed.Method != "initialized" {
			d.t.Errorf("expected initialized, got %q", confirmed.Method)
		}
	}()
	return done
}

// startReady runs the full handshake and fails the test unless the session
// lands in Ready. It returns only after the fake daemon has consumed the
// initialized notification, leaving the framer free for the caller.
func startReady(t *testing.T, s *Session, d *fakeDaemon) {
	t.Helper()

	done := d.serveHandshake()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-done
	if got := s.State(); got != StateReady {
		t.Fatalf("expected ready state, got %v", got)
	}
}

// publishParams builds a wire publishDiagnostics payload.
func publishParams(uri string, diags ...map[string]any) map[string]any {
	list := make([]map[string]any, 0, len(diags))
	list = append(list, diags...)
	return map[string]any{"uri": uri, "diagnostics": list}
}

// wireDiag builds one wire diagnostic with a 0-based range.
func wireDiag(severity int, message string, line, char int) map[string]any {
	return map[string]any{
		"range": map[string]any{
			"start": map[string]int{"line": line, "character": char},
			"end":   map[string]int{"line": line, "character": char + 1},
		},
		"severity": severity,
		"message":  message,
		"source":   "dart",
	}
}
