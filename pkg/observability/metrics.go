package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "jestify.requests.total"
	metricRequestDuration  = "jestify.request.duration.seconds"
	metricErrorsTotal      = "jestify.errors.total"
	metricInflightRequests = "jestify.inflight.requests"

	metricFilesTotal       = "jestify.files.total"
	metricFileDuration     = "jestify.file.duration.seconds"
	metricRewritesTotal    = "jestify.rewrites.total"
	metricDiagnosticsTotal = "jestify.diagnostics.total"

	attrOp      = "op"
	attrStatus  = "status"
	attrOutcome = "outcome"
	attrDialect = "dialect"
	attrMatcher = "matcher"
	attrKind    = "kind"

	// StatusOK and StatusError label RecordRequest outcomes.
	StatusOK    = "ok"
	StatusError = "error"
)

// Outcomes of a single file pass.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// durationBuckets covers single small files up to whole-tree MCP calls.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// REDMetrics holds the Rate, Error, Duration instruments of the servers.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// RewriteMetrics counts what the rewriter did to each file.
type RewriteMetrics struct {
	filesTotal       metric.Int64Counter
	fileDuration     metric.Float64Histogram
	rewritesTotal    metric.Int64Counter
	diagnosticsTotal metric.Int64Counter
}

// NewRewriteMetrics creates the per-file instruments from the given meter.
func NewRewriteMetrics(mt metric.Meter) (*RewriteMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Files processed, by outcome"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricFileDuration,
		metric.WithDescription("Time spent rewriting one file"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFileDuration, err)
	}

	rewrites, err := mt.Int64Counter(metricRewritesTotal,
		metric.WithDescription("Assertion chains rewritten"),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRewritesTotal, err)
	}

	diagnostics, err := mt.Int64Counter(metricDiagnosticsTotal,
		metric.WithDescription("Diagnostics emitted, by kind"),
		metric.WithUnit("{diagnostic}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDiagnosticsTotal, err)
	}

	return &RewriteMetrics{
		filesTotal:       files,
		fileDuration:     duration,
		rewritesTotal:    rewrites,
		diagnosticsTotal: diagnostics,
	}, nil
}

// RecordFile records one file pass.
func (rm *RewriteMetrics) RecordFile(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrOutcome, outcome))

	rm.filesTotal.Add(ctx, 1, attrs)
	rm.fileDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRewrite counts one rewritten chain.
func (rm *RewriteMetrics) RecordRewrite(ctx context.Context, dialect, matcher string) {
	rm.rewritesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrDialect, dialect),
		attribute.String(attrMatcher, matcher),
	))
}

// RecordDiagnostic counts one diagnostic.
func (rm *RewriteMetrics) RecordDiagnostic(ctx context.Context, dialect, kind string) {
	rm.diagnosticsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrDialect, dialect),
		attribute.String(attrKind, kind),
	))
}
