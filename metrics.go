package wikid

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pkt.systems/pslog"
)

// serverMetrics holds the gateway's domain instruments. Instruments are
// created against the global meter provider; without a configured metrics
// listener they are no-ops.
type serverMetrics struct {
	toolInvocations metric.Int64Counter
	toolErrors      metric.Int64Counter
	toolDuration    metric.Int64Histogram
	pushConflicts   metric.Int64Counter
	oauthRefreshes  metric.Int64Counter
	throttleRetries metric.Int64Counter
}

func newServerMetrics(logger pslog.Logger) *serverMetrics {
	meter := otel.Meter("pkt.systems/wikid")
	m := &serverMetrics{}
	var err error

	m.toolInvocations, err = meter.Int64Counter(
		"wikid.tool.invocations",
		metric.WithDescription("MCP tool calls handled"),
	)
	logMetricInitError(logger, "wikid.tool.invocations", err)

	m.toolErrors, err = meter.Int64Counter(
		"wikid.tool.errors",
		metric.WithDescription("MCP tool calls that surfaced an error message"),
	)
	logMetricInitError(logger, "wikid.tool.errors", err)

	m.toolDuration, err = meter.Int64Histogram(
		"wikid.tool.duration_ms",
		metric.WithDescription("MCP tool call duration"),
		metric.WithUnit("ms"),
	)
	logMetricInitError(logger, "wikid.tool.duration_ms", err)

	m.pushConflicts, err = meter.Int64Counter(
		"wikid.push.conflicts",
		metric.WithDescription("Version conflicts recovered during page pushes"),
	)
	logMetricInitError(logger, "wikid.push.conflicts", err)

	m.oauthRefreshes, err = meter.Int64Counter(
		"wikid.oauth.refreshes",
		metric.WithDescription("OAuth access token refreshes performed"),
	)
	logMetricInitError(logger, "wikid.oauth.refreshes", err)

	m.throttleRetries, err = meter.Int64Counter(
		"wikid.http.throttle_retries",
		metric.WithDescription("Requests replayed after a 429 response"),
	)
	logMetricInitError(logger, "wikid.http.throttle_retries", err)

	return m
}

func (m *serverMetrics) recordTool(ctx context.Context, tool string, failed bool, elapsedMS int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("wikid.tool", tool))
	if m.toolInvocations != nil {
		m.toolInvocations.Add(ctx, 1, attrs)
	}
	if failed && m.toolErrors != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
	if m.toolDuration != nil {
		m.toolDuration.Record(ctx, elapsedMS, attrs)
	}
}

func (m *serverMetrics) recordConflict() {
	if m == nil || m.pushConflicts == nil {
		return
	}
	m.pushConflicts.Add(context.Background(), 1)
}

func (m *serverMetrics) recordRefresh() {
	if m == nil || m.oauthRefreshes == nil {
		return
	}
	m.oauthRefreshes.Add(context.Background(), 1)
}

func (m *serverMetrics) recordThrottleRetry() {
	if m == nil || m.throttleRetries == nil {
		return
	}
	m.throttleRetries.Add(context.Background(), 1)
}

func logMetricInitError(logger pslog.Logger, name string, err error) {
	if err == nil || logger == nil {
		return
	}
	logger.Warn("telemetry.metric.init_failed", "name", name, "error", err)
}
