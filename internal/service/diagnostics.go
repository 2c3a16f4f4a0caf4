package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/codika/dartbridge/internal/adapter/lsp"
	dbotel "github.com/codika/dartbridge/internal/adapter/otel"
	"github.com/codika/dartbridge/internal/adapter/ws"
	"github.com/codika/dartbridge/internal/config"
	"github.com/codika/dartbridge/internal/domain/analysis"
	"github.com/codika/dartbridge/internal/port/cache"
)

// diagCollector is the collection dependency. *lsp.Collector satisfies it.
type diagCollector interface {
	Collect(ctx context.Context, opts lsp.CollectOptions) (*analysis.DiagnosticsReport, error)
	State() lsp.CollectorState
}

// fileLister enumerates workspace sources. *WorkspaceService satisfies it.
type fileLister interface {
	ListDartFiles() ([]string, error)
}

// DiagnosticsService runs analysis over the workspace and serves the cached
// results. Concurrent project analyses coalesce onto one collection window;
// there is one session and one inbound stream, so running two windows at
// once could only split the pushes between them.
type DiagnosticsService struct {
	cfg       config.Diagnostics
	workspace config.Workspace

	session   analyzerSession
	tracker   documentTracker
	collector diagCollector
	files     fileLister
	cache     cache.Cache
	hub       *ws.Hub
	metrics   *dbotel.Metrics

	group singleflight.Group
}

// NewDiagnosticsService creates the diagnostics service.
func NewDiagnosticsService(
	cfg config.Diagnostics,
	workspace config.Workspace,
	session analyzerSession,
	tracker documentTracker,
	collector diagCollector,
	files fileLister,
	c cache.Cache,
	hub *ws.Hub,
	metrics *dbotel.Metrics,
) *DiagnosticsService {
	return &DiagnosticsService{
		cfg:       cfg,
		workspace: workspace,
		session:   session,
		tracker:   tracker,
		collector: collector,
		files:     files,
		cache:     c,
		hub:       hub,
		metrics:   metrics,
	}
}

// reportKey scopes cached reports to the workspace root.
func (s *DiagnosticsService) reportKey() string {
	return "report:" + s.workspace.Root
}

// AnalyzeProject opens the workspace's Dart files (capped by MaxOpenFiles),
// collects diagnostics for the configured window, caches the consolidated
// report, and broadcasts the outcome. Concurrent callers share one run.
func (s *DiagnosticsService) AnalyzeProject(ctx context.Context) (*analysis.DiagnosticsReport, error) {
	v, err, shared := s.group.Do("project", func() (any, error) {
		return s.analyzeProject(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("project analysis coalesced with in-flight run")
	}
	return v.(*analysis.DiagnosticsReport), nil
}

func (s *DiagnosticsService) analyzeProject(ctx context.Context) (*analysis.DiagnosticsReport, error) {
	if err := s.session.Start(ctx); err != nil {
		return nil, err
	}

	files, err := s.files.ListDartFiles()
	if err != nil {
		return nil, err
	}
	if len(files) > s.workspace.MaxOpenFiles {
		slog.Info("capping analysis set", "files", len(files), "cap", s.workspace.MaxOpenFiles)
		files = files[:s.workspace.MaxOpenFiles]
	}

	runID := uuid.NewString()
	began := time.Now()
	actx, span := dbotel.StartAnalysisSpan(ctx, runID, s.workspace.Root)
	defer span.End()

	if s.metrics != nil {
		s.metrics.AnalysisRuns.Add(actx, 1)
	}
	s.hub.BroadcastEvent(actx, ws.EventAnalysisStatus, ws.AnalysisStatusEvent{
		RunID:  runID,
		Status: ws.StatusStarted,
	})

	opened := 0
	for _, f := range files {
		if err := s.tracker.Open(f); err != nil {
			slog.Warn("skipping unopenable file", "file", f, "error", err)
			continue
		}
		opened++
	}

	report, err := s.collector.Collect(actx, lsp.CollectOptions{
		RunID:          runID,
		Window:         s.cfg.Window,
		ReceiveTimeout: s.cfg.ReceiveTimeout,
		FilesAnalyzed:  opened,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.AnalysisFailed.Add(actx, 1)
		}
		s.hub.BroadcastEvent(actx, ws.EventAnalysisStatus, ws.AnalysisStatusEvent{
			RunID:  runID,
			Status: ws.StatusFailed,
			Error:  err.Error(),
		})
		return nil, fmt.Errorf("collect diagnostics: %w", err)
	}

	s.storeReport(actx, report)
	s.publish(actx, report)

	if s.metrics != nil {
		s.metrics.AnalysisDuration.Record(actx, time.Since(began).Seconds())
		s.metrics.DiagnosticsCollected.Add(actx, int64(report.Summary.Total()))
	}
	slog.Info("project analysis complete",
		"run_id", runID,
		"files", opened,
		"errors", report.Summary.Errors,
		"warnings", report.Summary.Warnings,
		"duration", time.Since(began))
	return report, nil
}

// AnalyzeFile analyzes a single file with a shorter window that ends as
// soon as the daemon reports on that file.
func (s *DiagnosticsService) AnalyzeFile(ctx context.Context, path string) (*analysis.DiagnosticsReport, error) {
	if err := s.session.Start(ctx); err != nil {
		return nil, err
	}
	if err := s.tracker.Open(path); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	report, err := s.collector.Collect(ctx, lsp.CollectOptions{
		RunID:          runID,
		Window:         s.cfg.FileWindow,
		ReceiveTimeout: s.cfg.ReceiveTimeout,
		FilesAnalyzed:  1,
		StopAfterURI:   s.tracker.URI(path),
	})
	if err != nil {
		return nil, fmt.Errorf("collect file diagnostics: %w", err)
	}
	return report, nil
}

// CachedReport returns the last stored report, or ok=false when none exists
// or the cache entry expired.
func (s *DiagnosticsService) CachedReport(ctx context.Context) (*analysis.DiagnosticsReport, bool, error) {
	data, found, err := s.cache.Get(ctx, s.reportKey())
	if err != nil {
		return nil, false, fmt.Errorf("read cached report: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	var report analysis.DiagnosticsReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false, fmt.Errorf("decode cached report: %w", err)
	}
	return &report, true, nil
}

// CachedSummary returns the severity tally of the last report.
func (s *DiagnosticsService) CachedSummary(ctx context.Context) (*analysis.Summary, time.Time, bool, error) {
	report, found, err := s.CachedReport(ctx)
	if err != nil || !found {
		return nil, time.Time{}, false, err
	}
	return &report.Summary, report.GeneratedAt, true, nil
}

func (s *DiagnosticsService) storeReport(ctx context.Context, report *analysis.DiagnosticsReport) {
	data, err := json.Marshal(report)
	if err != nil {
		slog.Error("marshal report for cache", "error", err)
		return
	}
	if err := s.cache.Set(ctx, s.reportKey(), data, s.cfg.CacheTTL); err != nil {
		slog.Warn("cache report", "error", err)
	}
}

func (s *DiagnosticsService) publish(ctx context.Context, report *analysis.DiagnosticsReport) {
	for _, entry := range report.PerFile {
		s.hub.BroadcastEvent(ctx, ws.EventDiagnosticsPublished, ws.DiagnosticsPublishedEvent{
			RunID:       report.RunID,
			File:        entry.File,
			URI:         entry.URI,
			Diagnostics: entry.Diagnostics,
		})
	}
	s.hub.BroadcastEvent(ctx, ws.EventAnalysisStatus, ws.AnalysisStatusEvent{
		RunID:         report.RunID,
		Status:        ws.StatusFinished,
		FilesAnalyzed: report.FilesAnalyzed,
		Summary:       &report.Summary,
	})
}
