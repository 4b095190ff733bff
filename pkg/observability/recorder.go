package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is the recording surface every call site in the engine depends on.
// Implementations must be nil-safe so a disabled metrics config degrades to
// no-ops instead of requiring call sites to guard every call.
type Metrics interface {
	RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)

	// HTTP metrics
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, responseSize int)

	// gRPC metrics
	RecordGRPCCall(ctx context.Context, service, method, statusCode string, duration time.Duration, err error)

	// Business KPI metrics
	RecordSession(ctx context.Context, agentName string, duration time.Duration, successful bool)
	RecordConversationTurn(ctx context.Context, agentName string, turnCount int)

	// Skill DAG metrics (C4)
	RecordDAGLevel(ctx context.Context, skillName string, level, nodeCount int, duration time.Duration)

	// Permission filter metrics (C6)
	RecordPermissionDenial(ctx context.Context, tool, reason string)

	// SSE fan-out metrics (C5)
	SetSSEQueueDepth(ctx context.Context, streamID string, depth int)
}

// PrometheusMetrics implements Metrics on top of OpenTelemetry metric
// instruments, scraped via the Prometheus exporter bridge built in metrics.go.
type PrometheusMetrics struct {
	agentDuration    metric.Float64Histogram
	agentCallsTotal  metric.Int64Counter
	agentErrorsTotal metric.Int64Counter
	agentTokensTotal metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	httpRequestsTotal metric.Int64Counter
	httpDuration      metric.Float64Histogram
	httpResponseSize  metric.Int64Histogram

	grpcCallsTotal  metric.Int64Counter
	grpcDuration    metric.Float64Histogram
	grpcErrorsTotal metric.Int64Counter

	sessionDuration   metric.Float64Histogram
	sessionTotal      metric.Int64Counter
	conversationTurns metric.Int64Histogram

	dagLevelDuration metric.Float64Histogram
	dagNodesPerLevel metric.Int64Histogram

	permissionDenialsTotal metric.Int64Counter

	sseQueueDepth metric.Int64Gauge
}

// NewPrometheusMetrics creates every instrument off the given meter. Returns
// an error only if the OTel SDK itself rejects an instrument name/unit.
func NewPrometheusMetrics(meter metric.Meter) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{}

	var err error
	var e error
	must := func(name string, recordErr error) {
		if recordErr != nil && err == nil {
			err = fmt.Errorf("observability: create instrument %s: %w", name, recordErr)
		}
	}

	m.agentDuration, e = meter.Float64Histogram("agent.call.duration", metric.WithUnit("s"))
	must("agent.call.duration", e)
	m.agentCallsTotal, e = meter.Int64Counter("agent.calls.total")
	must("agent.calls.total", e)
	m.agentErrorsTotal, e = meter.Int64Counter("agent.errors.total")
	must("agent.errors.total", e)
	m.agentTokensTotal, e = meter.Int64Counter("agent.tokens.total")
	must("agent.tokens.total", e)

	m.toolDuration, e = meter.Float64Histogram("tool.call.duration", metric.WithUnit("s"))
	must("tool.call.duration", e)
	m.toolCallsTotal, e = meter.Int64Counter("tool.calls.total")
	must("tool.calls.total", e)
	m.toolErrorsTotal, e = meter.Int64Counter("tool.errors.total")
	must("tool.errors.total", e)

	m.llmDuration, e = meter.Float64Histogram("llm.call.duration", metric.WithUnit("s"))
	must("llm.call.duration", e)
	m.llmInputTokens, e = meter.Int64Counter("llm.tokens.input.total")
	must("llm.tokens.input.total", e)
	m.llmOutputTokens, e = meter.Int64Counter("llm.tokens.output.total")
	must("llm.tokens.output.total", e)
	m.llmErrorsTotal, e = meter.Int64Counter("llm.errors.total")
	must("llm.errors.total", e)

	m.httpRequestsTotal, e = meter.Int64Counter("http.requests.total")
	must("http.requests.total", e)
	m.httpDuration, e = meter.Float64Histogram("http.request.duration", metric.WithUnit("s"))
	must("http.request.duration", e)
	m.httpResponseSize, e = meter.Int64Histogram("http.response.size", metric.WithUnit("By"))
	must("http.response.size", e)

	m.grpcCallsTotal, e = meter.Int64Counter("grpc.calls.total")
	must("grpc.calls.total", e)
	m.grpcDuration, e = meter.Float64Histogram("grpc.call.duration", metric.WithUnit("s"))
	must("grpc.call.duration", e)
	m.grpcErrorsTotal, e = meter.Int64Counter("grpc.errors.total")
	must("grpc.errors.total", e)

	m.sessionTotal, e = meter.Int64Counter("session.total")
	must("session.total", e)
	m.sessionDuration, e = meter.Float64Histogram("session.duration", metric.WithUnit("s"))
	must("session.duration", e)
	m.conversationTurns, e = meter.Int64Histogram("conversation.turns")
	must("conversation.turns", e)

	m.dagLevelDuration, e = meter.Float64Histogram("skill.dag.level.duration", metric.WithUnit("s"))
	must("skill.dag.level.duration", e)
	m.dagNodesPerLevel, e = meter.Int64Histogram("skill.dag.level.node_count")
	must("skill.dag.level.node_count", e)

	m.permissionDenialsTotal, e = meter.Int64Counter("permission.denials.total")
	must("permission.denials.total", e)

	m.sseQueueDepth, e = meter.Int64Gauge("sse.queue.depth")
	must("sse.queue.depth", e)

	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error) {
	if m == nil || m.agentDuration == nil || m.agentCallsTotal == nil {
		return
	}

	m.agentDuration.Record(ctx, duration.Seconds())
	m.agentCallsTotal.Add(ctx, 1)

	if tokens > 0 && m.agentTokensTotal != nil {
		m.agentTokensTotal.Add(ctx, int64(tokens))
	}

	if err != nil && m.agentErrorsTotal != nil {
		m.agentErrorsTotal.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if globalMetrics == nil {
		return &NoopMetrics{}
	}
	return globalMetrics
}

// RecordHTTPRequest records HTTP request metrics
func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, responseSize int) {
	if m == nil || m.httpRequestsTotal == nil || m.httpDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if m.httpResponseSize != nil && responseSize > 0 {
		m.httpResponseSize.Record(ctx, int64(responseSize), metric.WithAttributes(attrs...))
	}
}

// RecordGRPCCall records gRPC call metrics
func (m *PrometheusMetrics) RecordGRPCCall(ctx context.Context, service, method, statusCode string, duration time.Duration, err error) {
	if m == nil || m.grpcCallsTotal == nil || m.grpcDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("method", method),
		attribute.String("status_code", statusCode),
	}

	m.grpcCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.grpcDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.grpcErrorsTotal != nil {
		m.grpcErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordSession records session-level metrics for business KPIs
func (m *PrometheusMetrics) RecordSession(ctx context.Context, agentName string, duration time.Duration, successful bool) {
	if m == nil || m.sessionTotal == nil || m.sessionDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("agent", agentName),
		attribute.Bool("successful", successful),
	}

	m.sessionTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sessionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordConversationTurn records conversation turn count for business insights
func (m *PrometheusMetrics) RecordConversationTurn(ctx context.Context, agentName string, turnCount int) {
	if m == nil || m.conversationTurns == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("agent", agentName),
	}

	m.conversationTurns.Record(ctx, int64(turnCount), metric.WithAttributes(attrs...))
}

// RecordDAGLevel records how long one level of a skill DAG took to execute
// and how many nodes ran concurrently within it.
func (m *PrometheusMetrics) RecordDAGLevel(ctx context.Context, skillName string, level, nodeCount int, duration time.Duration) {
	if m == nil || m.dagLevelDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("skill", skillName),
		attribute.Int("level", level),
	}

	m.dagLevelDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if m.dagNodesPerLevel != nil {
		m.dagNodesPerLevel.Record(ctx, int64(nodeCount), metric.WithAttributes(attrs...))
	}
}

// RecordPermissionDenial records a tool call blocked by the permission filter.
func (m *PrometheusMetrics) RecordPermissionDenial(ctx context.Context, tool, reason string) {
	if m == nil || m.permissionDenialsTotal == nil {
		return
	}

	m.permissionDenialsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("reason", reason),
	))
}

// SetSSEQueueDepth reports the current backlog on a stream's event queue.
func (m *PrometheusMetrics) SetSSEQueueDepth(ctx context.Context, streamID string, depth int) {
	if m == nil || m.sseQueueDepth == nil {
		return
	}

	m.sseQueueDepth.Record(ctx, int64(depth), metric.WithAttributes(
		attribute.String("stream_id", streamID),
	))
}
