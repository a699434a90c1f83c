package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	saveRoute       = "/api/tasks/save"
	saveSpanName    = "board.task_save"
	saveEventName   = "board.task_save.completed"
	saveEventDomain = "board"
)

// saveRequestMetrics captures per-request timings for the save endpoint and
// emits them both as a span and as one structured observability.event log
// entry when the request finishes.
type saveRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	decodeDuration time.Duration
	applyDuration  time.Duration
	guardActive    bool
	assignments    int
	errorStage     string
}

func newSaveRequestMetrics(ctx context.Context, logger *log.Logger) (*saveRequestMetrics, context.Context) {
	tracer := otel.GetTracerProvider().Tracer("stageboard-api/api")
	spanCtx, span := tracer.Start(ctx, saveSpanName)
	return &saveRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *saveRequestMetrics) ObserveDecode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.decodeDuration = duration
}

func (m *saveRequestMetrics) ObserveApply(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.applyDuration = duration
}

func (m *saveRequestMetrics) SetGuardActive(active bool) {
	m.guardActive = active
}

func (m *saveRequestMetrics) SetAssignmentsSubmitted(count int) {
	if count < 0 {
		count = 0
	}
	m.assignments = count
}

func (m *saveRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finalizes the span and writes the observability event. It must be
// called exactly once per request.
func (m *saveRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.route", saveRoute),
		attribute.Float64("board.save.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Bool("board.save.guard_active", m.guardActive),
		attribute.Int("board.save.assignments_submitted", m.assignments),
	}
	if m.decodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.save.decode_ms", durationToMillis(m.decodeDuration)))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.save.apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("board.save.error_stage", m.errorStage))
	}

	severityText, severityNumber := severityForStatus(status, err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", saveEventName),
		attribute.String("event.domain", saveEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(append(attrs, attribute.Int64("http.status_code", int64(status)))...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil || status >= 500 {
			description := "request failed"
			if err != nil {
				description = err.Error()
			}
			m.span.SetStatus(codes.Error, description)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      saveEventName,
		"event.domain":    saveEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
