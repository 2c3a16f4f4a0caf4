package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/codika/dartbridge/internal/adapter/lsp"
	"github.com/codika/dartbridge/internal/domain/analysis"
)

// fakeSession is an in-memory analyzerSession.
type fakeSession struct {
	root     string
	startErr error
	starts   int

	hover       *analysis.Hover
	completions []analysis.CompletionItem
	locations   []analysis.Location
	docSymbols  []analysis.DocumentSymbol
	wsSymbols   []analysis.WorkspaceSymbol
	callErr     error

	lastURI   string
	lastQuery string
}

func (f *fakeSession) Start(context.Context) error {
	f.starts++
	return f.startErr
}

func (f *fakeSession) Root() string { return f.root }

func (f *fakeSession) Hover(_ context.Context, uri string, _ analysis.Position) (*analysis.Hover, error) {
	f.lastURI = uri
	return f.hover, f.callErr
}

func (f *fakeSession) Completion(_ context.Context, uri string, _ analysis.Position, _ string) ([]analysis.CompletionItem, error) {
	f.lastURI = uri
	return f.completions, f.callErr
}

func (f *fakeSession) Definition(_ context.Context, uri string, _ analysis.Position) ([]analysis.Location, error) {
	f.lastURI = uri
	return f.locations, f.callErr
}

func (f *fakeSession) References(_ context.Context, uri string, _ analysis.Position, _ bool) ([]analysis.Location, error) {
	f.lastURI = uri
	return f.locations, f.callErr
}

func (f *fakeSession) DocumentSymbols(_ context.Context, uri string) ([]analysis.DocumentSymbol, error) {
	f.lastURI = uri
	return f.docSymbols, f.callErr
}

func (f *fakeSession) WorkspaceSymbols(_ context.Context, query string) ([]analysis.WorkspaceSymbol, error) {
	f.lastQuery = query
	return f.wsSymbols, f.callErr
}

// fakeTracker records open/close traffic.
type fakeTracker struct {
	root    string
	openErr map[string]error

	mu     sync.Mutex
	opened []string
	closed []string
	open   map[string]bool
}

func newFakeTracker(root string) *fakeTracker {
	return &fakeTracker{root: root, open: make(map[string]bool), openErr: make(map[string]error)}
}

func (f *fakeTracker) Open(path string) error {
	if err := f.openErr[path]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, path)
	f.open[path] = true
	return nil
}

func (f *fakeTracker) EnsureOpen(path string) error {
	f.mu.Lock()
	already := f.open[path]
	f.mu.Unlock()
	if already {
		return nil
	}
	return f.Open(path)
}

func (f *fakeTracker) Close(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, path)
	delete(f.open, path)
	return nil
}

func (f *fakeTracker) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

func (f *fakeTracker) URI(path string) string {
	if filepath.IsAbs(path) {
		return "file://" + path
	}
	return "file://" + filepath.Join(f.root, path)
}

func (f *fakeTracker) openCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// fakeCollector returns a canned report and records the options it saw.
type fakeCollector struct {
	report *analysis.DiagnosticsReport
	err    error

	mu   sync.Mutex
	opts []lsp.CollectOptions
}

func (f *fakeCollector) Collect(_ context.Context, opts lsp.CollectOptions) (*analysis.DiagnosticsReport, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	report := *f.report
	report.RunID = opts.RunID
	report.FilesAnalyzed = opts.FilesAnalyzed
	report.GeneratedAt = time.Now().UTC()
	return &report, nil
}

func (f *fakeCollector) State() lsp.CollectorState { return lsp.CollectIdle }

func (f *fakeCollector) lastOpts() (lsp.CollectOptions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opts) == 0 {
		return lsp.CollectOptions{}, false
	}
	return f.opts[len(f.opts)-1], true
}

// fakeFiles is a fixed enumeration result.
type fakeFiles struct {
	files []string
	err   error
}

func (f *fakeFiles) ListDartFiles() ([]string, error) { return f.files, f.err }

// memCache is a simple in-memory cache for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var errDaemonDown = errors.New("daemon down")
