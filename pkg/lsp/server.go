// Package lsp provides a Language Server Protocol server that flags chai
// assertions in open test files and offers their Jest rewrite as code
// actions.
package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/jestify/pkg/observability"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
	"github.com/Sumatoshi-tech/jestify/pkg/version"
)

const (
	serverName           = "jestify"
	methodPublish        = "textDocument/publishDiagnostics"
	defaultAnalyzeBudget = 10 * time.Second

	// codeActionKindSourceFixAll is "source.fixAll" (LSP 3.15), which
	// protocol_3_16 does not declare.
	codeActionKindSourceFixAll = protocol.CodeActionKind("source.fixAll")
)

// ServerDeps holds injectable dependencies. Zero-value fields use
// production defaults.
type ServerDeps struct {
	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer
	// Engine defaults to an engine over every dialect.
	Engine *rewrite.Engine
	// Timeout bounds one document analysis.
	Timeout time.Duration
}

// Server implements the jestify LSP server.
type Server struct {
	store   *DocumentStore
	engine  *rewrite.Engine
	logger  *slog.Logger
	metrics *observability.REDMetrics
	tracer  trace.Tracer
	handler protocol.Handler
	timeout time.Duration
}

// NewServer creates a server with default handlers.
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Engine == nil {
		engine, err := rewrite.New(rewrite.Options{})
		if err != nil {
			return nil, fmt.Errorf("lsp: %w", err)
		}

		deps.Engine = engine
	}

	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer(serverName)
	}

	if deps.Timeout <= 0 {
		deps.Timeout = defaultAnalyzeBudget
	}

	srv := &Server{
		store:   NewDocumentStore(),
		engine:  deps.Engine,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		timeout: deps.Timeout,
	}

	srv.handler = protocol.Handler{
		Initialize:             srv.initialize,
		Initialized:            srv.initialized,
		Shutdown:               srv.shutdown,
		SetTrace:               srv.setTrace,
		TextDocumentDidOpen:    srv.didOpen,
		TextDocumentDidChange:  srv.didChange,
		TextDocumentDidSave:    srv.didSave,
		TextDocumentDidClose:   srv.didClose,
		TextDocumentCodeAction: srv.codeAction,
		TextDocumentHover:      srv.hover,
	}

	return srv, nil
}

// Run serves on stdio until the client exits.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	if err := lspServer.RunStdio(); err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

func (srv *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = protocol.TextDocumentSyncKindIncremental
	capabilities.CodeActionProvider = protocol.CodeActionOptions{
		CodeActionKinds: []protocol.CodeActionKind{
			protocol.CodeActionKindQuickFix,
			codeActionKindSourceFixAll,
		},
	}

	if params != nil && params.ClientInfo != nil {
		srv.logger.Info("lsp client connected", "lsp.client", params.ClientInfo.Name)
	}

	ver := version.Resolved()

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &ver,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI

	srv.store.Set(uri, Document{Text: params.TextDocument.Text, Version: params.TextDocument.Version})
	srv.publishDiagnostics(ctx, uri)

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	doc, _ := srv.store.Get(uri)
	text := doc.Text

	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				text = c.Text
			} else {
				text = applyChange(text, *c.Range, c.Text)
			}
		case map[string]any:
			if t, ok := c["text"].(string); ok {
				text = t
			}
		}
	}

	srv.store.Set(uri, Document{Text: text, Version: params.TextDocument.Version})
	srv.publishDiagnostics(ctx, uri)

	return nil
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if params.Text != nil {
		doc, _ := srv.store.Get(uri)
		srv.store.Set(uri, Document{Text: *params.Text, Version: doc.Version})
	}

	if _, ok := srv.store.Get(uri); ok {
		srv.publishDiagnostics(ctx, uri)
	}

	return nil
}

func (srv *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	srv.store.Delete(uri)

	ctx.Notify(methodPublish, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})

	return nil
}

func (srv *Server) codeAction(_ *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	uri := params.TextDocument.URI

	doc, ok := srv.store.Get(uri)
	if !ok {
		return nil, nil
	}

	result, err := srv.run(uri, doc.Text, "lsp.codeAction")
	if err != nil {
		return nil, err
	}

	wants := func(kind protocol.CodeActionKind) bool {
		if len(params.Context.Only) == 0 {
			return true
		}

		for _, only := range params.Context.Only {
			if only == kind || (only == protocol.CodeActionKindSource && kind == codeActionKindSourceFixAll) {
				return true
			}
		}

		return false
	}

	actions := []protocol.CodeAction{}

	if wants(protocol.CodeActionKindQuickFix) {
		kind := protocol.CodeActionKindQuickFix

		for _, f := range result.Fixes {
			if !overlaps(f.Range, params.Range) {
				continue
			}

			actions = append(actions, protocol.CodeAction{
				Title:       "Rewrite as " + firstLine(f.Rewrite.Replacement),
				Kind:        &kind,
				Diagnostics: []protocol.Diagnostic{f.Diagnostic},
				Edit: &protocol.WorkspaceEdit{
					Changes: map[protocol.DocumentUri][]protocol.TextEdit{
						uri: {{Range: f.Range, NewText: f.Rewrite.Replacement}},
					},
				},
			})
		}
	}

	if result.Changed && wants(codeActionKindSourceFixAll) {
		kind := codeActionKindSourceFixAll
		src := []byte(doc.Text)

		actions = append(actions, protocol.CodeAction{
			Title: "Rewrite all chai assertions as Jest matchers",
			Kind:  &kind,
			Edit: &protocol.WorkspaceEdit{
				Changes: map[protocol.DocumentUri][]protocol.TextEdit{
					uri: {{Range: rangeOf(src, 0, len(src)), NewText: result.Output}},
				},
			},
		})
	}

	return actions, nil
}

func (srv *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI

	doc, ok := srv.store.Get(uri)
	if !ok {
		return nil, nil //nolint:nilnil // LSP expects a null hover when the document is unknown.
	}

	result, err := srv.run(uri, doc.Text, "lsp.hover")
	if err != nil {
		return nil, err
	}

	at := protocol.Range{Start: params.Position, End: params.Position}

	for _, f := range result.Fixes {
		if !overlaps(f.Range, at) {
			continue
		}

		rng := f.Range

		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: "Jest: " + joinMatchers(f.Rewrite.Matchers) + "\n\n```js\n" + f.Rewrite.Replacement + "\n```",
			},
			Range: &rng,
		}, nil
	}

	return nil, nil //nolint:nilnil // LSP expects a null hover outside rewritable chains.
}

func joinMatchers(matchers []string) string {
	return "`" + strings.Join(matchers, "`, `") + "`"
}

func (srv *Server) publishDiagnostics(ctx *glsp.Context, uri string) {
	doc, ok := srv.store.Get(uri)
	if !ok {
		return
	}

	diagnostics := []protocol.Diagnostic{}

	result, err := srv.run(uri, doc.Text, "lsp.diagnostics")
	if err == nil {
		diagnostics = append(diagnostics, result.Diagnostics...)
	}

	ctx.Notify(methodPublish, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// run analyzes one document under a span, a timeout and RED metrics.
func (srv *Server) run(uri, text, op string) (*analysis, error) {
	ctx, cancel := context.WithTimeout(context.Background(), srv.timeout)
	defer cancel()

	ctx, span := srv.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("lsp.uri", uri)),
	)
	defer span.End()

	ctx = observability.WithFile(ctx, filenameOf(uri))

	if srv.metrics != nil {
		done := srv.metrics.TrackInflight(ctx, op)
		defer done()
	}

	start := time.Now()
	result, err := srv.analyze(ctx, uri, text)

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError

		span.RecordError(err)
		srv.logger.ErrorContext(ctx, "lsp analysis failed", "lsp.method", op, "error", err)
	} else {
		span.SetAttributes(attribute.Int("jestify.diagnostics", len(result.Diagnostics)))
		srv.logger.DebugContext(ctx, "lsp analysis", "lsp.method", op, "jestify.diagnostics", len(result.Diagnostics))
	}

	if srv.metrics != nil {
		srv.metrics.RecordRequest(ctx, op, status, time.Since(start))
	}

	return result, err
}
