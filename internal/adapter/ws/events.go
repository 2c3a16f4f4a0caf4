package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/codika/dartbridge/internal/domain/analysis"
)

// Event type constants for WebSocket messages.
const (
	EventDiagnosticsPublished = "diagnostics.published"
	EventAnalysisStatus       = "analysis.status"
)

// Analysis run statuses carried by analysis.status events.
const (
	StatusStarted  = "started"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// DiagnosticsPublishedEvent is broadcast once per file entry when a
// collection window produces a report.
type DiagnosticsPublishedEvent struct {
	RunID       string                `json:"run_id"`
	File        string                `json:"file"`
	URI         string                `json:"uri"`
	Diagnostics []analysis.Diagnostic `json:"issues"`
}

// AnalysisStatusEvent is broadcast when a project analysis run starts or
// ends.
type AnalysisStatusEvent struct {
	RunID         string            `json:"run_id"`
	Status        string            `json:"status"`
	FilesAnalyzed int               `json:"files_analyzed,omitempty"`
	Summary       *analysis.Summary `json:"summary,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// BroadcastEvent marshals a typed event payload and broadcasts it in the
// standard envelope.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
