// Package lsp implements the client protocol layer for the Dart analysis
// daemon: Content-Length framing of JSON-RPC messages over a TCP stream,
// session lifecycle with the initialize handshake, request/response
// correlation, document open/close tracking, and timed diagnostics
// collection. One Session owns one persistent connection per workspace
// root; the handshake, document notifications, request calls, and
// diagnostics listening all share it.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/codika/dartbridge/internal/config"
	"github.com/codika/dartbridge/internal/resilience"
)

// Client identity sent in the initialize handshake.
const (
	clientName    = "dartbridge"
	clientVersion = "1.0.0"
)

// State is the session lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateHandshaking
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// NotificationHandler handles push notifications from the daemon.
type NotificationHandler func(method string, params json.RawMessage)

// dialFunc establishes the daemon connection. Replaceable in tests.
type dialFunc func(ctx context.Context) (net.Conn, error)

// Session owns one logical connection to the analysis daemon for one
// workspace root. The read loop is the single owner of the inbound stream;
// callers correlate through per-request channels, so requests may be issued
// from multiple goroutines but never touch the stream directly.
type Session struct {
	cfg      config.Analyzer
	rootPath string
	breaker  *resilience.Breaker

	mu     sync.Mutex // serializes lifecycle transitions
	state  atomic.Int32
	framer *Framer
	done   chan struct{} // closed when the read loop exits

	nextID  atomic.Int64
	pendMu  sync.Mutex
	pending map[int64]chan *Message

	handlerMu sync.RWMutex
	handlers  map[string][]NotificationHandler

	dial dialFunc
}

// NewSession creates a session for the daemon at cfg.Addr() and the given
// workspace root. The session is Uninitialized until Start succeeds.
func NewSession(cfg config.Analyzer, rootPath string, breaker *resilience.Breaker) *Session {
	s := &Session{
		cfg:      cfg,
		rootPath: rootPath,
		breaker:  breaker,
		pending:  make(map[int64]chan *Message),
		handlers: make(map[string][]NotificationHandler),
	}
	s.dial = func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: cfg.DialTimeout}
		return d.DialContext(ctx, "tcp", cfg.Addr())
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Root returns the workspace root this session was created for.
func (s *Session) Root() string {
	return s.rootPath
}

// Done returns a channel closed when the session's read loop exits. It is
// only valid after a successful Start.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// OnNotification registers a handler for a daemon push method. Handlers are
// invoked from the read loop's dispatch goroutine, one goroutine per
// notification, and must not assume ordering across methods.
func (s *Session) OnNotification(method string, h NotificationHandler) {
	s.handlerMu.Lock()
	s.handlers[method] = append(s.handlers[method], h)
	s.handlerMu.Unlock()
}

// Start connects to the daemon and performs the initialize/initialized
// handshake. It is idempotent while the session is Ready: a second call is
// a no-op. A Closed session cannot be restarted; discard it and create a
// new one.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateReady:
		return nil
	case StateClosed:
		return ErrSessionClosed
	case StateHandshaking:
		return ErrNotReady
	}

	// The root must exist before any network I/O happens.
	if _, err := os.Stat(s.rootPath); err != nil {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, s.rootPath)
	}

	s.state.Store(int32(StateHandshaking))

	var conn net.Conn
	err := s.breaker.Execute(func() error {
		var derr error
		conn, derr = s.dial(ctx)
		return derr
	})
	if err != nil {
		s.state.Store(int32(StateClosed))
		return fmt.Errorf("%w: connect %s: %s", ErrHandshakeFailed, s.cfg.Addr(), err)
	}

	s.framer = NewFramer(conn)
	s.done = make(chan struct{})
	go s.readLoop()

	if err := s.handshake(ctx); err != nil {
		s.state.Store(int32(StateClosed))
		_ = s.framer.Close()
		<-s.done
		return err
	}

	s.state.Store(int32(StateReady))
	slog.Info("analyzer session ready", "addr", s.cfg.Addr(), "root", s.rootPath)
	return nil
}

// handshake sends initialize, verifies the daemon answered with a result,
// and confirms with the initialized notification.
func (s *Session) handshake(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	result, err := s.roundTrip(hctx, "initialize", s.initializeParams())
	if err != nil {
		return fmt.Errorf("%w: initialize: %s", ErrHandshakeFailed, err)
	}
	if result == nil {
		return fmt.Errorf("%w: initialize response carried no result", ErrHandshakeFailed)
	}

	notif, err := newNotification("initialized", map[string]any{})
	if err != nil {
		return fmt.Errorf("%w: initialized: %s", ErrHandshakeFailed, err)
	}
	if err := s.framer.WriteMessage(notif); err != nil {
		return fmt.Errorf("%w: initialized: %s", ErrHandshakeFailed, err)
	}
	return nil
}

// initializeParams declares the client capabilities: diagnostics support,
// hover content formats, completion snippets, definition links, reference
// context, hierarchical document symbols, and the workspace symbol-kind set.
func (s *Session) initializeParams() map[string]any {
	symbolKinds := make([]int, 0, 26)
	for k := 1; k <= 26; k++ {
		symbolKinds = append(symbolKinds, k)
	}

	return map[string]any{
		"processId": nil,
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
		"rootUri": fileURI(s.rootPath, s.rootPath),
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"publishDiagnostics": map[string]any{
					"relatedInformation":     true,
					"versionSupport":         false,
					"codeDescriptionSupport": true,
				},
				"hover":          map[string]any{"contentFormat": []string{"markdown", "plaintext"}},
				"completion":     map[string]any{"completionItem": map[string]any{"snippetSupport": true}},
				"definition":     map[string]any{"linkSupport": true},
				"references":     map[string]any{"context": true},
				"documentSymbol": map[string]any{"hierarchicalDocumentSymbolSupport": true},
			},
			"workspace": map[string]any{
				"symbol":        map[string]any{"symbolKind": map[string]any{"valueSet": symbolKinds}},
				"workspaceEdit": map[string]any{"documentChanges": true},
			},
		},
	}
}

// Close tears the session down. Safe to call multiple times and on every
// exit path; the connection is always released.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return nil
	}
	prev := s.State()
	s.state.Store(int32(StateClosed))

	if s.framer == nil {
		return nil
	}
	err := s.framer.Close()
	<-s.done
	if prev == StateReady {
		slog.Info("analyzer session closed", "root", s.rootPath)
	}
	return err
}

// readLoop is the sole reader of the inbound stream. Responses are routed
// to their waiting callers by id; notifications fan out to registered
// handlers. Idle reads poll with cfg.ReadPoll so session shutdown is
// noticed promptly.
func (s *Session) readLoop() {
	defer close(s.done)

	for {
		msg, err := s.framer.ReadMessage(s.cfg.ReadPoll)
		if err != nil {
			switch {
			case errors.Is(err, ErrTimeout):
				if s.State() == StateClosed {
					return
				}
				continue
			case errors.Is(err, io.EOF):
				// Daemon hung up, or Close released the connection.
				s.fatal(nil)
				return
			default:
				// A malformed frame or transport failure desyncs the
				// stream; nothing after it can be trusted.
				s.fatal(err)
				return
			}
		}

		switch {
		case msg.IsResponse():
			s.deliver(msg)
		case msg.IsNotification():
			s.dispatch(msg)
		}
	}
}

// fatal marks the session Closed after a read-loop failure and releases the
// connection. Waiting callers are unblocked through the done channel.
func (s *Session) fatal(err error) {
	if State(s.state.Swap(int32(StateClosed))) != StateClosed {
		if err != nil {
			slog.Warn("analyzer stream failed", "root", s.rootPath, "error", err)
		}
		_ = s.framer.Close()
	}
}

// deliver hands a response to the caller waiting on its id. Responses whose
// id matches no outstanding request are discarded: they belong to a stale
// request whose caller already timed out.
func (s *Session) deliver(msg *Message) {
	s.pendMu.Lock()
	ch, ok := s.pending[*msg.ID]
	if ok {
		delete(s.pending, *msg.ID)
	}
	s.pendMu.Unlock()

	if ok {
		ch <- msg // buffered, never blocks
	} else {
		slog.Debug("discarding unmatched response", "id", *msg.ID)
	}
}

// dispatch fans a notification out to its handlers without blocking the
// read loop.
func (s *Session) dispatch(msg *Message) {
	s.handlerMu.RLock()
	handlers := s.handlers[msg.Method]
	s.handlerMu.RUnlock()

	if len(handlers) == 0 {
		slog.Debug("analyzer notification ignored", "method", msg.Method)
		return
	}
	for _, h := range handlers {
		go h(msg.Method, msg.Params)
	}
}
