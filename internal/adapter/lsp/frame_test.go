package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"
)

func framePair(t *testing.T) (*Framer, *Framer) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return NewFramer(a), NewFramer(b)
}

func TestFramerRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		params string
	}{
		{"simple", `{"key":"value"}`},
		{"unicode", `{"text":"héllo wörld ♥"}`},
		{"embedded frame delimiter", `{"text":"before\r\n\r\nafter"}`},
		{"nested", `{"a":{"b":[1,2,3]},"c":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, receiver := framePair(t)

			id := int64(7)
			want := &Message{
				JSONRPC: jsonrpcVersion,
				ID:      &id,
				Method:  "textDocument/hover",
				Params:  json.RawMessage(tt.params),
			}

			errc := make(chan error, 1)
			go func() { errc <- sender.WriteMessage(want) }()

			got, err := receiver.ReadMessage(time.Second)
			if err != nil {
				t.Fatalf("ReadMessage: %v", err)
			}
			if err := <-errc; err != nil {
				t.Fatalf("WriteMessage: %v", err)
			}

			if got.Method != want.Method {
				t.Errorf("method = %q, want %q", got.Method, want.Method)
			}
			if got.ID == nil || *got.ID != id {
				t.Errorf("id = %v, want %d", got.ID, id)
			}
			if string(got.Params) != tt.params {
				t.Errorf("params = %s, want %s", got.Params, tt.params)
			}
		})
	}
}

func TestFramerSequentialMessages(t *testing.T) {
	sender, receiver := framePair(t)

	go func() {
		for i := int64(1); i <= 3; i++ {
			id := i
			_ = sender.WriteMessage(&Message{JSONRPC: jsonrpcVersion, ID: &id, Method: fmt.Sprintf("m%d", i)})
		}
	}()

	for i := int64(1); i <= 3; i++ {
		msg, err := receiver.ReadMessage(time.Second)
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if *msg.ID != i {
			t.Errorf("message %d has id %d", i, *msg.ID)
		}
	}
}

func TestFramerReadTimeout(t *testing.T) {
	_, receiver := framePair(t)

	_, err := receiver.ReadMessage(30 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFramerSlowFrameSurvivesPollTimeout(t *testing.T) {
	sender, receiver := framePair(t)

	body := `{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"file:///a.dart"}}`
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)

	// The header and body arrive in separate writes with a gap longer than
	// the poll timeout. Once the first byte is in, the frame must be read to
	// completion rather than abandoned mid-parse.
	go func() {
		raw := sender.conn
		_, _ = raw.Write([]byte(frame[:12]))
		time.Sleep(90 * time.Millisecond)
		_, _ = raw.Write([]byte(frame[12:]))
	}()

	msg, err := receiver.ReadMessage(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Method != "textDocument/publishDiagnostics" {
		t.Errorf("method = %q, want textDocument/publishDiagnostics", msg.Method)
	}

	// An idle poll afterwards still times out cleanly with no leftover state.
	if _, err := receiver.ReadMessage(30 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout on idle poll, got %v", err)
	}
}

func TestFramerClosedStream(t *testing.T) {
	a, b := net.Pipe()
	receiver := NewFramer(b)
	_ = a.Close()

	_, err := receiver.ReadMessage(time.Second)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF for closed stream, got %v", err)
	}
}

func TestFramerMalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing content length", "Content-Type: application/json\r\n\r\n"},
		{"non-numeric content length", "Content-Length: twelve\r\n\r\n"},
		{"undecodable body", "Content-Length: 8\r\n\r\nnot-json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := net.Pipe()
			t.Cleanup(func() {
				_ = a.Close()
				_ = b.Close()
			})
			receiver := NewFramer(b)

			go func() {
				_, _ = a.Write([]byte(tt.raw))
			}()

			_, err := receiver.ReadMessage(time.Second)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestFramerIgnoresExtraHeaders(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	receiver := NewFramer(b)

	body := `{"jsonrpc":"2.0","method":"ping","params":{}}`
	go func() {
		frame := fmt.Sprintf("Content-Type: application/vscode-jsonrpc\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
		_, _ = a.Write([]byte(frame))
	}()

	msg, err := receiver.ReadMessage(time.Second)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Method != "ping" {
		t.Errorf("method = %q, want ping", msg.Method)
	}
}

func TestFramerWriteToClosedConn(t *testing.T) {
	a, b := net.Pipe()
	sender := NewFramer(a)
	_ = a.Close()
	_ = b.Close()

	id := int64(1)
	err := sender.WriteMessage(&Message{JSONRPC: jsonrpcVersion, ID: &id, Method: "ping"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
