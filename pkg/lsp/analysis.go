package lsp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
)

// diagnosticSource tags every published diagnostic.
const diagnosticSource = "jestify"

// codeRewritable is the diagnostic code of a chain that can be rewritten.
const codeRewritable = "rewritable"

// fix is a single-chain edit offered as a quick fix.
type fix struct {
	Rewrite    rewrite.Rewrite
	Range      protocol.Range
	Diagnostic protocol.Diagnostic
}

// analysis is the result of checking one document.
type analysis struct {
	Diagnostics []protocol.Diagnostic
	Fixes       []fix
	// Output is the fully rewritten document; equal to the input when
	// nothing changed.
	Output  string
	Changed bool
}

// filenameOf extracts the file name used to pick a grammar from uri.
func filenameOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		return uri
	}

	return u.Path
}

// analyze runs every dialect pass on the original text so all positions
// refer to the buffer the editor holds, then a full rewrite for the
// whole-document fix. Unsupported files yield an empty analysis.
func (srv *Server) analyze(ctx context.Context, uri, text string) (*analysis, error) {
	filename := filenameOf(uri)
	out := &analysis{Output: text}

	if !srv.engine.Supports(filename) {
		return out, nil
	}

	src := []byte(text)

	for _, d := range srv.engine.Dialects() {
		res, err := srv.engine.RewriteDialect(ctx, filename, src, d)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", filename, err)
		}

		for _, rw := range res.Rewrites {
			diag := rewritableDiagnostic(src, rw)
			out.Diagnostics = append(out.Diagnostics, diag)
			out.Fixes = append(out.Fixes, fix{Rewrite: rw, Range: diag.Range, Diagnostic: diag})
		}

		for _, d := range res.Diagnostics {
			if d.Kind == rewrite.NoBinding {
				continue
			}

			out.Diagnostics = append(out.Diagnostics, engineDiagnostic(src, d))
		}
	}

	res, err := srv.engine.Rewrite(ctx, filename, src)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", filename, err)
	}

	out.Output = string(res.Output)
	out.Changed = res.Changed

	return out, nil
}

func rewritableDiagnostic(src []byte, rw rewrite.Rewrite) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityHint
	source := diagnosticSource

	return protocol.Diagnostic{
		Range:    rangeOf(src, rw.Start, rw.End),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: codeRewritable},
		Source:   &source,
		Message:  fmt.Sprintf("chai assertion can be written as %s", firstLine(rw.Replacement)),
	}
}

func engineDiagnostic(src []byte, d rewrite.Diagnostic) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityInformation
	if d.Kind == rewrite.DroppedMessage {
		severity = protocol.DiagnosticSeverityWarning
	}

	source := diagnosticSource

	return protocol.Diagnostic{
		Range:    rangeOf(src, d.Start, d.End),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: string(d.Kind)},
		Source:   &source,
		Message:  d.Message,
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + " ..."
	}

	return s
}

// overlaps reports whether two ranges share at least one position.
func overlaps(a, b protocol.Range) bool {
	return !before(a.End, b.Start) && !before(b.End, a.Start)
}

func before(a, b protocol.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}
