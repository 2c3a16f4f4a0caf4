package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "dartbridge"

// Metrics holds all dartbridge metric instruments.
type Metrics struct {
	RequestsSent          metric.Int64Counter
	NotificationsReceived metric.Int64Counter
	DiagnosticsCollected  metric.Int64Counter
	AnalysisRuns          metric.Int64Counter
	AnalysisFailed        metric.Int64Counter
	AnalysisDuration      metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RequestsSent, err = meter.Int64Counter("dartbridge.analyzer.requests",
		metric.WithDescription("Number of requests sent to the analysis daemon"))
	if err != nil {
		return nil, err
	}

	m.NotificationsReceived, err = meter.Int64Counter("dartbridge.analyzer.notifications",
		metric.WithDescription("Number of push notifications received from the daemon"))
	if err != nil {
		return nil, err
	}

	m.DiagnosticsCollected, err = meter.Int64Counter("dartbridge.diagnostics.collected",
		metric.WithDescription("Number of diagnostics consolidated into reports"))
	if err != nil {
		return nil, err
	}

	m.AnalysisRuns, err = meter.Int64Counter("dartbridge.analysis.runs",
		metric.WithDescription("Number of analysis runs started"))
	if err != nil {
		return nil, err
	}

	m.AnalysisFailed, err = meter.Int64Counter("dartbridge.analysis.failed",
		metric.WithDescription("Number of analysis runs that failed"))
	if err != nil {
		return nil, err
	}

	m.AnalysisDuration, err = meter.Float64Histogram("dartbridge.analysis.duration_seconds",
		metric.WithDescription("Analysis run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
