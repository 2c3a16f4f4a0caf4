package service

import (
	"context"
	"fmt"

	dbotel "github.com/codika/dartbridge/internal/adapter/otel"
	"github.com/codika/dartbridge/internal/config"
	"github.com/codika/dartbridge/internal/domain/analysis"
)

// analyzerSession is the slice of the session the services depend on.
// *lsp.Session satisfies it.
type analyzerSession interface {
	Start(ctx context.Context) error
	Root() string
	Hover(ctx context.Context, uri string, pos analysis.Position) (*analysis.Hover, error)
	Completion(ctx context.Context, uri string, pos analysis.Position, triggerCharacter string) ([]analysis.CompletionItem, error)
	Definition(ctx context.Context, uri string, pos analysis.Position) ([]analysis.Location, error)
	References(ctx context.Context, uri string, pos analysis.Position, includeDeclaration bool) ([]analysis.Location, error)
	DocumentSymbols(ctx context.Context, uri string) ([]analysis.DocumentSymbol, error)
	WorkspaceSymbols(ctx context.Context, query string) ([]analysis.WorkspaceSymbol, error)
}

// documentTracker is the open-set dependency. *lsp.DocumentTracker
// satisfies it.
type documentTracker interface {
	Open(path string) error
	EnsureOpen(path string) error
	Close(path string) error
	OpenCount() int
	URI(path string) string
}

// IntelligenceService serves positional code-intelligence queries. Documents
// stay open across queries so repeated lookups in the same file cost one
// didOpen, not one per query.
type IntelligenceService struct {
	cfg     config.Analyzer
	session analyzerSession
	tracker documentTracker
	metrics *dbotel.Metrics
}

// NewIntelligenceService creates the intelligence service.
func NewIntelligenceService(cfg config.Analyzer, session analyzerSession, tracker documentTracker, metrics *dbotel.Metrics) *IntelligenceService {
	return &IntelligenceService{cfg: cfg, session: session, tracker: tracker, metrics: metrics}
}

// prepare starts the session if needed, opens the document, and returns its
// URI plus a context bounded by the per-request timeout.
func (s *IntelligenceService) prepare(ctx context.Context, path string) (string, context.Context, context.CancelFunc, error) {
	if err := s.session.Start(ctx); err != nil {
		return "", nil, nil, err
	}
	if err := s.tracker.EnsureOpen(path); err != nil {
		return "", nil, nil, err
	}
	qctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	return s.tracker.URI(path), qctx, cancel, nil
}

func (s *IntelligenceService) countRequest() {
	if s.metrics != nil {
		s.metrics.RequestsSent.Add(context.Background(), 1)
	}
}

// Hover returns hover information for a 1-based position, or nil when the
// daemon has nothing for it.
func (s *IntelligenceService) Hover(ctx context.Context, path string, pos analysis.Position) (*analysis.Hover, error) {
	uri, qctx, cancel, err := s.prepare(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cancel()

	qctx, span := dbotel.StartQuerySpan(qctx, "hover", path)
	defer span.End()
	s.countRequest()
	return s.session.Hover(qctx, uri, pos)
}

// Completion returns completion suggestions for a 1-based position.
func (s *IntelligenceService) Completion(ctx context.Context, path string, pos analysis.Position, triggerCharacter string) ([]analysis.CompletionItem, error) {
	uri, qctx, cancel, err := s.prepare(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cancel()

	qctx, span := dbotel.StartQuerySpan(qctx, "completion", path)
	defer span.End()
	s.countRequest()
	return s.session.Completion(qctx, uri, pos, triggerCharacter)
}

// Definition returns go-to-definition locations for a 1-based position.
func (s *IntelligenceService) Definition(ctx context.Context, path string, pos analysis.Position) ([]analysis.Location, error) {
	uri, qctx, cancel, err := s.prepare(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cancel()

	qctx, span := dbotel.StartQuerySpan(qctx, "definition", path)
	defer span.End()
	s.countRequest()
	return s.session.Definition(qctx, uri, pos)
}

// References returns reference locations for a 1-based position.
func (s *IntelligenceService) References(ctx context.Context, path string, pos analysis.Position, includeDeclaration bool) ([]analysis.Location, error) {
	uri, qctx, cancel, err := s.prepare(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cancel()

	qctx, span := dbotel.StartQuerySpan(qctx, "references", path)
	defer span.End()
	s.countRequest()
	return s.session.References(qctx, uri, pos, includeDeclaration)
}

// DocumentSymbols returns the symbol outline of one document.
func (s *IntelligenceService) DocumentSymbols(ctx context.Context, path string) ([]analysis.DocumentSymbol, error) {
	uri, qctx, cancel, err := s.prepare(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cancel()

	qctx, span := dbotel.StartQuerySpan(qctx, "documentSymbol", path)
	defer span.End()
	s.countRequest()
	return s.session.DocumentSymbols(qctx, uri)
}

// WorkspaceSymbols returns workspace-wide symbols matching query. No
// document needs to be open for this.
func (s *IntelligenceService) WorkspaceSymbols(ctx context.Context, query string) ([]analysis.WorkspaceSymbol, error) {
	if err := s.session.Start(ctx); err != nil {
		return nil, err
	}
	qctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	qctx, span := dbotel.StartQuerySpan(qctx, "workspaceSymbol", query)
	defer span.End()
	s.countRequest()
	return s.session.WorkspaceSymbols(qctx, query)
}


// CloseDocument closes one tracked document, releasing it on the daemon
// side.
func (s *IntelligenceService) CloseDocument(path string) error {
	if err := s.tracker.Close(path); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
