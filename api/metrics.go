package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "tasks-api"
	requestEventName   = "tasks.request"
	requestEventDomain = "tasks-api"
	observabilityEvent = "observability.event"
)

type requestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	operation      string
	method         string
	route          string
	requestID      string
	taskID         string
	storeDuration  time.Duration
	encodeDuration time.Duration
	tasksReturned  int
	countTasks     bool
	errorStage     string
	cause          error
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, operation, method, route string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "tasks."+operation,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", method),
		),
	)
	return &requestMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		operation: operation,
		method:    method,
		route:     route,
	}, spanCtx
}

func (m *requestMetrics) ObserveStore(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.storeDuration = duration
}

func (m *requestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *requestMetrics) SetRequestID(id string) {
	m.requestID = id
}

func (m *requestMetrics) SetTaskID(raw string) {
	m.taskID = raw
}

func (m *requestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.countTasks = true
	m.tasksReturned = count
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Fail records the stage and cause of a handled failure. The cause is
// reported when the handler itself returns no error.
func (m *requestMetrics) Fail(stage string, cause error) {
	m.SetErrorStage(stage)
	m.cause = cause
}

func (m *requestMetrics) attributes(status int) map[string]any {
	attrs := map[string]any{
		"http.route":       m.route,
		"http.method":      m.method,
		"http.status_code": status,
		"tasks.operation":  m.operation,
		"tasks.total_ms":   durationToMillis(time.Since(m.start)),
	}
	if m.requestID != "" {
		attrs["http.request_id"] = m.requestID
	}
	if m.taskID != "" {
		attrs["tasks.task_id"] = m.taskID
	}
	if m.countTasks {
		attrs["tasks.tasks_returned"] = m.tasksReturned
	}
	if m.storeDuration > 0 {
		attrs["tasks.store_ms"] = durationToMillis(m.storeDuration)
	}
	if m.encodeDuration > 0 {
		attrs["tasks.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs["tasks.error_stage"] = m.errorStage
	}
	return attrs
}

// Log emits the request event to the logger and closes the span.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if err == nil {
		err = m.cause
	}

	attrs := m.attributes(status)
	severityText, severityNumber := severityForStatus(status, err)

	eventAttrs := []attribute.KeyValue{
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}
	for k, v := range attrs {
		eventAttrs = append(eventAttrs, toAttribute(k, v))
	}
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		for k, v := range attrs {
			m.span.SetAttributes(toAttribute(k, v))
		}
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
		if status >= http.StatusInternalServerError {
			desc := http.StatusText(status)
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	entry := m.logger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Log(levelForSeverity(severityNumber), observabilityEvent)
}

// severityForStatus maps a response to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	case err != nil:
		return "ERROR", 17
	default:
		return "INFO", 9
	}
}

func levelForSeverity(number int) log.Level {
	switch {
	case number >= 17:
		return log.ErrorLevel
	case number >= 13:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func toAttribute(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case bool:
		return attribute.Bool(key, val)
	default:
		return attribute.String(key, "")
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
