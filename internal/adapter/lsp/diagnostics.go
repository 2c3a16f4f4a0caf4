package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/codika/dartbridge/internal/domain/analysis"
)

// MethodPublishDiagnostics is the daemon's unsolicited diagnostics push.
const MethodPublishDiagnostics = "textDocument/publishDiagnostics"

// publishDiagnosticsParams is the wire payload of a diagnostics push.
type publishDiagnosticsParams struct {
	URI         string           `json:"uri"`
	Diagnostics []wireDiagnostic `json:"diagnostics"`
}

// wireDiagnostic is one daemon-reported issue in wire form (0-based
// positions, numeric severity). Code may be a number or a string.
type wireDiagnostic struct {
	Range    wireRange       `json:"range"`
	Severity int             `json:"severity"`
	Code     json.RawMessage `json:"code,omitempty"`
	Source   string          `json:"source,omitempty"`
	Message  string          `json:"message"`
}

// codeString normalizes the code field to text.
func (d wireDiagnostic) codeString() string {
	if len(d.Code) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.Code, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(d.Code, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return string(d.Code)
}

// CollectorState is the collection-cycle state.
type CollectorState int

const (
	CollectIdle CollectorState = iota
	Collecting
	CollectDone
)

// CollectOptions bounds one collection window. The daemon never declares up
// front how many files it will report on, so the window is wall-clock
// bounded rather than count bounded.
type CollectOptions struct {
	RunID          string
	Window         time.Duration
	ReceiveTimeout time.Duration // per-read wait, must be shorter than Window
	FilesAnalyzed  int
	StopAfterURI   string // when set, collection ends as soon as this URI reports
}

// Collector consolidates the daemon's diagnostics pushes into one report
// per collection window. It subscribes to the session's notification stream
// on construction and buffers pushes only while a window is open.
type Collector struct {
	session *Session
	root    string

	mu    sync.Mutex
	state CollectorState
	ch    chan publishDiagnosticsParams
}

// NewCollector creates a collector listening on the session's inbound
// notification stream.
func NewCollector(session *Session) *Collector {
	c := &Collector{
		session: session,
		root:    session.Root(),
		ch:      make(chan publishDiagnosticsParams, 64),
	}
	session.OnNotification(MethodPublishDiagnostics, c.onPublish)
	return c
}

// State returns the current collection-cycle state.
func (c *Collector) State() CollectorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// onPublish buffers a diagnostics push while a window is open. Pushes
// arriving outside a window are dropped; the next window starts clean.
func (c *Collector) onPublish(_ string, raw json.RawMessage) {
	c.mu.Lock()
	collecting := c.state == Collecting
	c.mu.Unlock()
	if !collecting {
		return
	}

	var params publishDiagnosticsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		slog.Warn("undecodable diagnostics push", "error", err)
		return
	}

	select {
	case c.ch <- params:
	default:
		slog.Warn("diagnostics buffer full, dropping push", "uri", params.URI)
	}
}

// Collect accepts diagnostics pushes for up to opts.Window and consolidates
// them into a report. Each receive waits at most opts.ReceiveTimeout; an
// empty read just means "no message yet" and the loop continues until the
// window is exhausted. A closed session ends collection early; that is
// normal termination, not an error, because the window is inherently
// best-effort.
func (c *Collector) Collect(ctx context.Context, opts CollectOptions) (*analysis.DiagnosticsReport, error) {
	c.mu.Lock()
	if c.state == Collecting {
		c.mu.Unlock()
		return nil, ErrCollectInProgress
	}
	c.state = Collecting
	c.mu.Unlock()

	// Discard pushes buffered before this window opened.
	for {
		select {
		case <-c.ch:
			continue
		default:
		}
		break
	}

	byURI := make(map[string][]wireDiagnostic)
	deadline := time.NewTimer(opts.Window)
	defer deadline.Stop()

collect:
	for {
		select {
		case params := <-c.ch:
			// A daemon push always carries the file's full current set,
			// so a later push for the same URI supersedes the earlier one.
			byURI[params.URI] = params.Diagnostics
			if opts.StopAfterURI != "" && params.URI == opts.StopAfterURI {
				break collect
			}
		case <-time.After(opts.ReceiveTimeout):
			// No message yet; keep looping until the window closes.
		case <-deadline.C:
			break collect
		case <-c.session.Done():
			break collect
		case <-ctx.Done():
			c.setState(CollectDone)
			return nil, ctx.Err()
		}
	}

	report := c.buildReport(byURI, opts)
	c.setState(CollectDone)
	return report, nil
}

func (c *Collector) setState(st CollectorState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

// buildReport converts the accumulated wire diagnostics to the 1-based
// domain model, tallying severities across all files. Files that reported
// zero diagnostics are omitted; they are clean, not errors.
func (c *Collector) buildReport(byURI map[string][]wireDiagnostic, opts CollectOptions) *analysis.DiagnosticsReport {
	uris := make([]string, 0, len(byURI))
	for uri, diags := range byURI {
		if len(diags) > 0 {
			uris = append(uris, uri)
		}
	}
	sort.Strings(uris)

	report := &analysis.DiagnosticsReport{
		RunID:         opts.RunID,
		PerFile:       make([]analysis.FileDiagnostics, 0, len(uris)),
		FilesAnalyzed: opts.FilesAnalyzed,
		GeneratedAt:   time.Now().UTC(),
	}

	for _, uri := range uris {
		file := relToRoot(c.root, uriToPath(uri))
		entry := analysis.FileDiagnostics{
			File:        file,
			URI:         uri,
			Diagnostics: make([]analysis.Diagnostic, 0, len(byURI[uri])),
		}
		for _, wd := range byURI[uri] {
			sev := analysis.SeverityFromWire(wd.Severity)
			report.Summary.Add(sev)

			source := wd.Source
			if source == "" {
				source = "dart"
			}
			start := fromWirePosition(wd.Range.Start)
			end := fromWirePosition(wd.Range.End)
			entry.Diagnostics = append(entry.Diagnostics, analysis.Diagnostic{
				File:      file,
				Severity:  sev,
				Message:   wd.Message,
				StartLine: start.Line,
				StartCol:  start.Character,
				EndLine:   end.Line,
				EndCol:    end.Character,
				Code:      wd.codeString(),
				Source:    source,
			})
		}
		report.PerFile = append(report.PerFile, entry)
	}

	return report
}

// String makes collector states readable in logs and test failures.
func (s CollectorState) String() string {
	switch s {
	case CollectIdle:
		return "idle"
	case Collecting:
		return "collecting"
	case CollectDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
