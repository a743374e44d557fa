package observability

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// statusWriter records the first status code written.
type statusWriter struct {
	http.ResponseWriter

	statusCode int
}

// WriteHeader records code if no status was set yet and forwards it.
func (sw *statusWriter) WriteHeader(code int) {
	if sw.statusCode == 0 {
		sw.statusCode = code
	}

	sw.ResponseWriter.WriteHeader(code)
}

// Write implies 200 when no header was written.
func (sw *statusWriter) Write(buf []byte) (int, error) {
	if sw.statusCode == 0 {
		sw.statusCode = http.StatusOK
	}

	n, err := sw.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// HTTPMiddleware traces each request as "METHOD /path" and records it in
// red when red is non-nil.
func HTTPMiddleware(tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		op := hr.Method + " " + hr.URL.Path
		start := time.Now()

		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(parentCtx, op,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.HTTPRequestMethodKey.String(hr.Method)),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: rw}
		next.ServeHTTP(sw, hr.WithContext(ctx))

		if sw.statusCode == 0 {
			sw.statusCode = http.StatusOK
		}

		span.SetAttributes(semconv.HTTPResponseStatusCode(sw.statusCode))

		status := StatusOK
		if sw.statusCode >= http.StatusInternalServerError {
			status = StatusError
			span.SetStatus(codes.Error, http.StatusText(sw.statusCode))
		}

		if red != nil {
			red.RecordRequest(ctx, op, status, time.Since(start))
		}
	})
}
