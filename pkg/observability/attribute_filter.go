package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// allowedPrefixes are the span attribute keys that reach the exporter.
// Source text never leaves the process, only positions and counts.
var allowedPrefixes = []string{
	"jestify.",
	"error",
	"file.",
	"dialect",
	"mcp.",
	"lsp.",
	"runner.",
	"http.",
}

// attributeFilter forwards spans to delegate with disallowed attributes
// removed.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
}

// NewAttributeFilter returns a SpanProcessor that strips span attributes
// outside the allow-list before forwarding to delegate.
func NewAttributeFilter(delegate sdktrace.SpanProcessor) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate}
}

// OnStart passes the span through unchanged.
func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd hands delegate a view of the span with only allowed attributes.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s})
}

// Shutdown shuts delegate down.
func (f *attributeFilter) Shutdown(ctx context.Context) error {
	if err := f.delegate.Shutdown(ctx); err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

// ForceFlush flushes delegate.
func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	if err := f.delegate.ForceFlush(ctx); err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

// AttributeAllowed reports whether key passes the span attribute filter.
func AttributeAllowed(key string) bool {
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// filteredSpan hides attributes outside the allow-list.
type filteredSpan struct {
	sdktrace.ReadOnlySpan
}

// Attributes returns the allowed attributes in their original order.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	filtered := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if AttributeAllowed(string(kv.Key)) {
			filtered = append(filtered, kv)
		}
	}

	return filtered
}
