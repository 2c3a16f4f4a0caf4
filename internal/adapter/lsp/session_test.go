package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionStartWorkspaceMissing(t *testing.T) {
	s := NewSession(testAnalyzerConfig(), "/nonexistent/workspace/root", nil)
	dialed := false
	s.dial = func(context.Context) (net.Conn, error) {
		dialed = true
		return nil, errors.New("should not dial")
	}

	err := s.Start(context.Background())
	if !errors.Is(err, ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
	if dialed {
		t.Error("dial must not happen before the workspace check")
	}
}

func TestSessionHandshake(t *testing.T) {
	s, d := newTestSession(t)

	handshake := make(chan *Message, 1)
	go func() {
		init := d.read()
		handshake <- init
		d.respond(*init.ID, map[string]any{"capabilities": map[string]any{}})
		_ = d.read() // initialized
	}()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("state = %v, want ready", got)
	}

	init := <-handshake
	if *init.ID != 1 {
		t.Errorf("initialize id = %d, want 1 (ids start at 1)", *init.ID)
	}

	var params struct {
		ProcessID *int `json:"processId"`
		ClientInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
		RootURI      string          `json:"rootUri"`
		Capabilities json.RawMessage `json:"capabilities"`
	}
	if err := json.Unmarshal(init.Params, &params); err != nil {
		t.Fatalf("decode initialize params: %v", err)
	}
	if params.ProcessID != nil {
		t.Errorf("processId = %v, want null", params.ProcessID)
	}
	if params.ClientInfo.Name != clientName {
		t.Errorf("clientInfo.name = %q, want %q", params.ClientInfo.Name, clientName)
	}
	if params.RootURI != "file://"+s.Root() {
		t.Errorf("rootUri = %q, want file://%s", params.RootURI, s.Root())
	}
	caps := string(params.Capabilities)
	for _, capability := range []string{"publishDiagnostics", "hover", "completion", "definition", "references", "documentSymbol", "symbolKind"} {
		if !strings.Contains(caps, `"`+capability+`"`) {
			t.Errorf("capabilities missing %q", capability)
		}
	}
}

func TestSessionStartIdempotentWhileReady(t *testing.T) {
	s, d := newTestSession(t)
	startReady(t, s, d)

	// No second handshake is served; a re-handshake attempt would hang
	// and trip the handshake timeout.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := s.State(); got != StateReady {
		t.Errorf("state = %v, want ready", got)
	}
}

func TestSessionHandshakeRejected(t *testing.T) {
	s, d := newTestSession(t)

	go func() {
		init := d.read()
		d.respondError(*init.ID, -32600, "unsupported client")
	}()

	err := s.Start(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("state = %v, want closed after failed handshake", got)
	}

	// A closed session cannot be restarted.
	if err := s.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("restart after close: got %v, want ErrSessionClosed", err)
	}
}

func TestSessionCallGatingBeforeStart(t *testing.T) {
	s, _ := newTestSession(t)

	if _, err := s.Call(context.Background(), "textDocument/hover", nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Call before handshake: got %v, want ErrNotReady", err)
	}
	if err := s.Notify("textDocument/didOpen", nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Notify before handshake: got %v, want ErrNotReady", err)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, d := newTestSession(t)
	startReady(t, s, d)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSessionDaemonHangupClosesSession(t *testing.T) {
	s, d := newTestSession(t)
	startReady(t, s, d)

	_ = d.framer.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit after daemon hangup")
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("state = %v, want closed after hangup", got)
	}
}

func TestOnNotificationFansOutToAllHandlers(t *testing.T) {
	s, d := newTestSession(t)

	var first, second atomic.Int64
	s.OnNotification("textDocument/publishDiagnostics", func(string, json.RawMessage) {
		first.Add(1)
	})
	s.OnNotification("textDocument/publishDiagnostics", func(string, json.RawMessage) {
		second.Add(1)
	})

	startReady(t, s, d)
	d.notify("textDocument/publishDiagnostics", publishParams("file:///a.dart"))

	deadline := time.Now().Add(2 * time.Second)
	for (first.Load() == 0 || second.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if first.Load() != 1 || second.Load() != 1 {
		t.Fatalf("handlers fired %d/%d times, want 1/1", first.Load(), second.Load())
	}
}

func TestSessionSurvivesSlowFrame(t *testing.T) {
	s, d := newTestSession(t)

	got := make(chan json.RawMessage, 1)
	s.OnNotification("textDocument/publishDiagnostics", func(_ string, params json.RawMessage) {
		got <- params
	})
	startReady(t, s, d)

	// A notification whose bytes dribble in across several read-poll
	// intervals. The read loop must wait the frame out, not treat the
	// stall as a fresh poll and misparse the remainder.
	body := `{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"file:///a.dart","diagnostics":[]}}`
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	if _, err := d.conn.Write([]byte(frame[:10])); err != nil {
		t.Fatalf("write first chunk: %v", err)
	}
	time.Sleep(4 * testAnalyzerConfig().ReadPoll)
	if _, err := d.conn.Write([]byte(frame[10:])); err != nil {
		t.Fatalf("write second chunk: %v", err)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("notification straddling poll intervals never delivered")
	}
	if got := s.State(); got != StateReady {
		t.Errorf("state = %v, want ready after slow frame", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "uninitialized"},
		{StateHandshaking, "handshaking"},
		{StateReady, "ready"},
		{StateClosed, "closed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
