package lsp

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/codika/dartbridge/internal/config"
	"github.com/codika/dartbridge/internal/domain/analysis"
	"github.com/codika/dartbridge/internal/resilience"
)

// Supervisor owns the live daemon connection and replaces it when it dies.
// A Session is single-lifetime: Closed is terminal, and recovery means a
// fresh dial and handshake. The supervisor builds the session, document
// tracker, and diagnostics collector as one generation and lazily replaces
// the whole generation on the first use after the previous session closed,
// so a daemon restart costs the failed request, not a process restart.
//
// The circuit breaker is shared across generations: a daemon that keeps
// dying trips the breaker instead of triggering a dial storm.
type Supervisor struct {
	cfg        config.Analyzer
	root       string
	languageID string
	breaker    *resilience.Breaker

	mu       sync.Mutex
	gen      *generation
	subs     []subscription
	shutdown bool

	dial dialFunc // replaceable in tests, applied to every generation
}

// generation bundles the components whose lifetime is tied to one daemon
// connection. They are created and discarded together: a new daemon knows
// nothing about the old one's open documents or pending collections.
type generation struct {
	session   *Session
	tracker   *DocumentTracker
	collector *Collector
}

// subscription is a notification handler re-applied to every generation.
type subscription struct {
	method  string
	handler NotificationHandler
}

// NewSupervisor creates a supervisor for the daemon at cfg.Addr() and the
// given workspace root. No connection is made until the first Start.
func NewSupervisor(cfg config.Analyzer, root, languageID string, breaker *resilience.Breaker) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		root:       root,
		languageID: languageID,
		breaker:    breaker,
	}
}

// live returns the current generation, building a fresh one when none
// exists yet or the previous session closed. Building a generation does no
// I/O; the dial happens in Session.Start.
func (v *Supervisor) live() (*generation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.shutdown {
		return nil, ErrSessionClosed
	}
	if v.gen == nil || v.gen.session.State() == StateClosed {
		if v.gen != nil {
			slog.Info("replacing closed analyzer session", "root", v.root)
		}
		v.gen = v.newGeneration()
	}
	return v.gen, nil
}

func (v *Supervisor) newGeneration() *generation {
	s := NewSession(v.cfg, v.root, v.breaker)
	if v.dial != nil {
		s.dial = v.dial
	}
	for _, sub := range v.subs {
		s.OnNotification(sub.method, sub.handler)
	}
	return &generation{
		session:   s,
		tracker:   NewDocumentTracker(s, v.languageID),
		collector: NewCollector(s),
	}
}

// OnNotification registers a handler on the current session and every
// replacement.
func (v *Supervisor) OnNotification(method string, h NotificationHandler) {
	v.mu.Lock()
	v.subs = append(v.subs, subscription{method: method, handler: h})
	if v.gen != nil {
		v.gen.session.OnNotification(method, h)
	}
	v.mu.Unlock()
}

// Shutdown closes the current session and prevents further replacements.
func (v *Supervisor) Shutdown() error {
	v.mu.Lock()
	if v.shutdown {
		v.mu.Unlock()
		return nil
	}
	v.shutdown = true
	g := v.gen
	v.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.session.Close()
}

// State reports the current session's lifecycle state, or Uninitialized
// when no connection has been attempted yet. Closed here means the daemon
// is currently gone; the next request builds a replacement.
func (v *Supervisor) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen == nil {
		return StateUninitialized
	}
	return v.gen.session.State()
}

// Root returns the workspace root the supervisor serves.
func (v *Supervisor) Root() string {
	return v.root
}

// Start brings the current generation's session to Ready, connecting and
// handshaking if needed. After a daemon hangup the first Start builds a
// replacement generation and dials fresh.
func (v *Supervisor) Start(ctx context.Context) error {
	g, err := v.live()
	if err != nil {
		return err
	}
	return g.session.Start(ctx)
}

// Hover delegates to the current session.
func (v *Supervisor) Hover(ctx context.Context, uri string, pos analysis.Position) (*analysis.Hover, error) {
	g, err := v.live()
	if err != nil {
		return nil, err
	}
	return g.session.Hover(ctx, uri, pos)
}

// Completion delegates to the current session.
func (v *Supervisor) Completion(ctx context.Context, uri string, pos analysis.Position, triggerCharacter string) ([]analysis.CompletionItem, error) {
	g, err := v.live()
	if err != nil {
		return nil, err
	}
	return g.session.Completion(ctx, uri, pos, triggerCharacter)
}

// Definition delegates to the current session.
func (v *Supervisor) Definition(ctx context.Context, uri string, pos analysis.Position) ([]analysis.Location, error) {
	g, err := v.live()
	if err != nil {
		return nil, err
	}
	return g.session.Definition(ctx, uri, pos)
}

// References delegates to the current session.
func (v *Supervisor) References(ctx context.Context, uri string, pos analysis.Position, includeDeclaration bool) ([]analysis.Location, error) {
	g, err := v.live()
	if err != nil {
		return nil, err
	}
	return g.session.References(ctx, uri, pos, includeDeclaration)
}

// DocumentSymbols delegates to the current session.
func (v *Supervisor) DocumentSymbols(ctx context.Context, uri string) ([]analysis.DocumentSymbol, error) {
	g, err := v.live()
	if err != nil {
		return nil, err
	}
	return g.session.DocumentSymbols(ctx, uri)
}

// WorkspaceSymbols delegates to the current session.
func (v *Supervisor) WorkspaceSymbols(ctx context.Context, query string) ([]analysis.WorkspaceSymbol, error) {
	g, err := v.live()
	if err != nil {
		return nil, err
	}
	return g.session.WorkspaceSymbols(ctx, query)
}

// Open delegates to the current generation's tracker.
func (v *Supervisor) Open(path string) error {
	g, err := v.live()
	if err != nil {
		return err
	}
	return g.tracker.Open(path)
}

// EnsureOpen delegates to the current generation's tracker. A replacement
// generation starts with an empty open set, so documents opened before a
// hangup are re-opened on their next use.
func (v *Supervisor) EnsureOpen(path string) error {
	g, err := v.live()
	if err != nil {
		return err
	}
	return g.tracker.EnsureOpen(path)
}

// Close sends didClose for the document on the current generation.
func (v *Supervisor) Close(path string) error {
	g, err := v.live()
	if err != nil {
		return err
	}
	return g.tracker.Close(path)
}

// OpenCount returns the current generation's open-document count.
func (v *Supervisor) OpenCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen == nil {
		return 0
	}
	return v.gen.tracker.OpenCount()
}

// URI returns the document's file URI. It depends only on the workspace
// root, so it is stable across generations.
func (v *Supervisor) URI(path string) string {
	abs := path
	if !filepath.IsAbs(path) {
		abs = filepath.Join(v.root, path)
	}
	return fileURI(v.root, abs)
}

// Collector returns a collection view that follows session replacement.
// It exists as a separate type because the supervisor's own State reports
// the session lifecycle, not the collection cycle.
func (v *Supervisor) Collector() *SupervisedCollector {
	return &SupervisedCollector{sup: v}
}

// SupervisedCollector delegates diagnostics collection to the supervisor's
// current generation.
type SupervisedCollector struct {
	sup *Supervisor
}

// Collect runs one collection window on the current generation.
func (c *SupervisedCollector) Collect(ctx context.Context, opts CollectOptions) (*analysis.DiagnosticsReport, error) {
	g, err := c.sup.live()
	if err != nil {
		return nil, err
	}
	return g.collector.Collect(ctx, opts)
}

// State returns the current generation's collection-cycle state, or idle
// when no generation exists.
func (c *SupervisedCollector) State() CollectorState {
	c.sup.mu.Lock()
	defer c.sup.mu.Unlock()
	if c.sup.gen == nil {
		return CollectIdle
	}
	return c.sup.gen.collector.State()
}
