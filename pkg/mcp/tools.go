package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/report"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
)

// Tool names.
const (
	ToolNameRewrite = "jestify_rewrite"
	ToolNameRules   = "jestify_rules"
)

// MaxCodeInputBytes bounds inline code input.
const MaxCodeInputBytes = 1 << 20

const defaultFilename = "input.test.js"

// Sentinel errors for tool input validation.
var (
	ErrEmptyCode       = errors.New("code parameter is required and must not be empty")
	ErrCodeTooLarge    = errors.New("code input exceeds maximum size")
	ErrUnsupportedFile = errors.New("filename must end in .js, .jsx, .mjs, .cjs, .ts, .mts, .cts or .tsx")
)

// RewriteInput is the input schema for jestify_rewrite.
type RewriteInput struct {
	Code      string   `json:"code"                jsonschema:"test file source to rewrite"`
	Filename  string   `json:"filename,omitempty"  jsonschema:"file name used to pick the grammar (default: input.test.js)"`
	Dialects  []string `json:"dialects,omitempty"  jsonschema:"source dialects to rewrite: expect and/or should (default: both)"`
	Namespace string   `json:"namespace,omitempty" jsonschema:"namespace for container matchers: jasmine or expect"`
}

// RulesInput is the input schema for jestify_rules.
type RulesInput struct {
	Verb string `json:"verb,omitempty" jsonschema:"only list rules for this verb or alias"`
}

// ToolOutput is the structured output of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

// RewriteOutput is the payload of jestify_rewrite.
type RewriteOutput struct {
	Output      string               `json:"output"`
	Diff        string               `json:"diff,omitempty"`
	Rewrites    []rewrite.Rewrite    `json:"rewrites"`
	Diagnostics []rewrite.Diagnostic `json:"diagnostics"`
	Changed     bool                 `json:"changed"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}

func (s *Server) handleRewrite(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input RewriteInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Code == "" {
		return errorResult(ErrEmptyCode)
	}

	if len(input.Code) > MaxCodeInputBytes {
		return errorResult(fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(input.Code), MaxCodeInputBytes))
	}

	filename := input.Filename
	if filename == "" {
		filename = defaultFilename
	}

	engine, err := s.engine(input.Dialects, input.Namespace)
	if err != nil {
		return errorResult(err)
	}

	if !engine.Supports(filename) {
		return errorResult(fmt.Errorf("%w: %s", ErrUnsupportedFile, filename))
	}

	src := []byte(input.Code)

	res, err := engine.Rewrite(ctx, filename, src)
	if err != nil {
		return errorResult(err)
	}

	out := RewriteOutput{
		Output:      string(res.Output),
		Rewrites:    res.Rewrites,
		Diagnostics: res.Diagnostics,
		Changed:     res.Changed,
	}

	if res.Changed {
		out.Diff = report.Unified(filename, src, res.Output, report.DefaultContext)
	}

	return jsonResult(out)
}

func (s *Server) handleRules(
	_ context.Context, _ *mcpsdk.CallToolRequest, input RulesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	rows := report.RuleRows(s.table)

	if input.Verb != "" {
		verb := s.table.Canonical(input.Verb)
		if verb == "" {
			if suggestion, ok := s.table.Suggest(input.Verb); ok {
				return errorResult(fmt.Errorf("unknown verb %q, did you mean %q?", input.Verb, suggestion))
			}

			return errorResult(fmt.Errorf("unknown verb %q", input.Verb))
		}

		rows = slices.DeleteFunc(rows, func(r report.RuleRow) bool { return r.Verb != verb })
	}

	return jsonResult(rows)
}

// engine returns a cached engine for the requested dialects.
func (s *Server) engine(names []string, namespace string) (*rewrite.Engine, error) {
	key := strings.Join(names, ",") + "|" + namespace

	if cached, ok := s.engines.Load(key); ok {
		if e, castOK := cached.(*rewrite.Engine); castOK {
			return e, nil
		}
	}

	dialects, err := s.resolve(names, namespace)
	if err != nil {
		return nil, err
	}

	e, err := rewrite.New(rewrite.Options{Table: s.table, Dialects: dialects})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	actual, _ := s.engines.LoadOrStore(key, e)
	if stored, ok := actual.(*rewrite.Engine); ok {
		return stored, nil
	}

	return e, nil
}

func (s *Server) resolve(names []string, namespace string) ([]dialect.Dialect, error) {
	base := s.dialects
	if base == nil {
		resolved, err := dialect.Resolve(dialect.Names(), nil)
		if err != nil {
			return nil, fmt.Errorf("dialects: %w", err)
		}

		base = resolved
	}

	var out []dialect.Dialect

	if len(names) == 0 {
		out = slices.Clone(base)
	} else {
		for _, name := range names {
			idx := slices.IndexFunc(base, func(d dialect.Dialect) bool { return d.Name == name })
			if idx >= 0 {
				out = append(out, base[idx])

				continue
			}

			d, err := dialect.New(name)
			if err != nil {
				return nil, fmt.Errorf("dialects: %w", err)
			}

			out = append(out, d)
		}
	}

	if namespace != "" {
		for i := range out {
			out[i] = out[i].WithNamespace(namespace)
		}
	}

	return out, nil
}
