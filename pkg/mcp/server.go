// Package mcp implements a Model Context Protocol server exposing the
// chai to Jest rewriter as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/observability"
	"github.com/Sumatoshi-tech/jestify/pkg/rules"
	"github.com/Sumatoshi-tech/jestify/pkg/version"
)

const serverName = "jestify"

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer

	// Table defaults to rules.Default().
	Table *rules.Table

	// Dialects are used when a call does not name any. Nil means all.
	Dialects []dialect.Dialect
}

// Server wraps the MCP SDK server with the jestify tools.
type Server struct {
	inner    *mcpsdk.Server
	tools    []string
	table    *rules.Table
	dialects []dialect.Dialect
	metrics  *observability.REDMetrics
	tracer   trace.Tracer
	engines  sync.Map // engine key -> *rewrite.Engine
	mu       sync.RWMutex
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	if deps.Table == nil {
		deps.Table = rules.Default()
	}

	srv := &Server{
		inner:    mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version.Resolved()}, opts),
		table:    deps.Table,
		dialects: deps.Dialects,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
	}

	srv.registerRewriteTool()
	srv.registerRulesTool()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run serves on stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerRewriteTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameRewrite,
		Description: rewriteToolDescription,
	}, withMetrics(s.metrics, ToolNameRewrite, withTracing(s.tracer, ToolNameRewrite, s.handleRewrite)))

	s.trackTool(ToolNameRewrite)
}

func (s *Server) registerRulesTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameRules,
		Description: rulesToolDescription,
	}, withMetrics(s.metrics, ToolNameRules, withTracing(s.tracer, ToolNameRules, s.handleRules)))

	s.trackTool(ToolNameRules)
}

const (
	mcpSpanPrefix  = "mcp."
	traceIDMetaKey = "trace_id"
)

// withTracing starts a span per call and appends the trace id to sampled
// results.
func withTracing[In any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content,
				&mcpsdk.TextContent{Text: traceIDMetaKey + "=" + sc.TraceID().String()})
		}

		return result, output, err
	}
}

// withMetrics records RED metrics per call.
func withMetrics[In any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	op := mcpSpanPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, op)
		defer done()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const (
	rewriteToolDescription = "Rewrite chai expect/should assertions in a JavaScript or TypeScript " +
		"test file into Jest expect matchers. Returns the rewritten source, a unified diff, " +
		"the rewritten chains and diagnostics for chains left untouched."

	rulesToolDescription = "List the chai to Jest rule table: verbs, aliases, modifiers and the " +
		"Jest matcher each combination maps to."
)
