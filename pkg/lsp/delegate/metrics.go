package delegate

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gsxls.delegate")

var (
	// requestsTotal counts delegated requests by method, language and outcome.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gsxls_delegate_requests_total",
		Help: "Delegated requests by method, language, outcome and no-answer reason",
	}, []string{"method", "language", "outcome", "reason"})

	// dispatchDuration tracks the foreign round trip.
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gsxls_delegate_dispatch_duration_seconds",
		Help:    "Foreign language server call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"method", "language"})

	// droppedResults counts results discarded because they did not map back.
	droppedResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gsxls_delegate_dropped_results_total",
		Help: "Foreign results dropped because they did not map to an authored document",
	}, []string{"method"})
)

func startSpan(ctx context.Context, method, uri, requestID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Delegate."+method,
		trace.WithAttributes(
			attribute.String("gsx.method", method),
			attribute.String("gsx.uri", uri),
			attribute.String("gsx.request_id", requestID),
		),
	)
}

func recordDispatch(method, language string, d time.Duration) {
	dispatchDuration.WithLabelValues(method, language).Observe(d.Seconds())
}

func recordOutcome[T any](span trace.Span, method, language string, out Outcome[T]) {
	reason := ""
	if out.Kind() == KindNoAnswer {
		reason = out.Reason().String()
	}
	requestsTotal.WithLabelValues(method, language, out.Kind().String(), reason).Inc()

	span.SetAttributes(
		attribute.String("gsx.language", language),
		attribute.String("gsx.outcome", out.Kind().String()),
	)
	switch out.Kind() {
	case KindFailed:
		span.RecordError(out.Err())
		span.SetStatus(codes.Error, out.Err().Error())
	case KindNoAnswer:
		span.SetAttributes(attribute.String("gsx.reason", reason))
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Ok, "")
	}
}
