// Package rewrite is the dispatcher of the migrator. For each dialect it
// detects the library binding, walks every candidate chain, looks up and
// applies the matching rule, and substitutes the re-emitted expression.
// Files where nothing matched are reported unchanged.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/jestify/pkg/binding"
	"github.com/Sumatoshi-tech/jestify/pkg/chain"
	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
	"github.com/Sumatoshi-tech/jestify/pkg/levenshtein"
	"github.com/Sumatoshi-tech/jestify/pkg/rules"
)

// targetEntry is the entry point of emitted assertions.
const targetEntry = "expect"

// ErrNoDialects is returned when an engine is built without dialects.
var ErrNoDialects = errors.New("rewrite: no dialects configured")

// Options configures an Engine.
type Options struct {
	// Table defaults to rules.Default().
	Table *rules.Table
	// Dialects run in order; defaults to every dialect.
	Dialects []dialect.Dialect
}

// Engine rewrites files. It holds no per-file state and is safe for
// concurrent use.
type Engine struct {
	parser   *jsast.Parser
	table    *rules.Table
	matchers sync.Map // grammar name -> *jsast.Matcher
	dialects []dialect.Dialect
}

// New builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Table == nil {
		opts.Table = rules.Default()
	}

	if opts.Dialects == nil {
		for _, name := range dialect.Names() {
			opts.Dialects = append(opts.Dialects, dialect.MustNew(name))
		}
	}

	if len(opts.Dialects) == 0 {
		return nil, ErrNoDialects
	}

	for _, d := range opts.Dialects {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("rewrite: %w", err)
		}
	}

	return &Engine{
		parser:   jsast.NewParser(),
		table:    opts.Table,
		dialects: opts.Dialects,
	}, nil
}

// Dialects returns the configured dialects.
func (e *Engine) Dialects() []dialect.Dialect {
	return e.dialects
}

// Supports reports whether filename can be rewritten.
func (e *Engine) Supports(filename string) bool {
	return e.parser.IsSupported(filename)
}

// Result is the outcome of rewriting one file.
type Result struct {
	Filename    string             `json:"filename"`
	Output      []byte             `json:"-"`
	Rewrites    []Rewrite          `json:"rewrites"`
	Diagnostics []Diagnostic       `json:"diagnostics"`
	Bindings    []*binding.Binding `json:"-"`
	// Changed is false when no chain was rewritten; Output then equals
	// the input byte for byte.
	Changed bool `json:"changed"`
}

// Rewrite runs every dialect over src in order, re-parsing between
// passes. The context is checked between passes.
func (e *Engine) Rewrite(ctx context.Context, filename string, src []byte) (*Result, error) {
	res := &Result{Filename: filename, Output: src}

	for _, d := range e.dialects {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rewrite %s: %w", filename, err)
		}

		pass, err := e.RewriteDialect(ctx, filename, res.Output, d)
		if err != nil {
			return nil, err
		}

		res.Rewrites = append(res.Rewrites, pass.Rewrites...)
		res.Diagnostics = append(res.Diagnostics, pass.Diagnostics...)
		res.Bindings = append(res.Bindings, pass.Bindings...)

		if pass.Changed {
			res.Output = pass.Output
			res.Changed = true
		}
	}

	return res, nil
}

// RewriteDialect runs a single dialect pass over src.
func (e *Engine) RewriteDialect(ctx context.Context, filename string, src []byte, d dialect.Dialect) (*Result, error) {
	doc, err := e.parser.Parse(ctx, filename, src)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}
	defer doc.Close()

	matcher, err := e.matcher(doc.Language)
	if err != nil {
		return nil, err
	}

	p := &pass{
		doc:     doc,
		table:   e.table,
		dialect: d,
		result:  &Result{Filename: filename, Output: src},
	}

	if err := p.run(matcher); err != nil {
		return nil, fmt.Errorf("rewrite %s (%s): %w", filename, d.Name, err)
	}

	return p.result, nil
}

func (e *Engine) matcher(language string) (*jsast.Matcher, error) {
	if cached, ok := e.matchers.Load(language); ok {
		if m, castOK := cached.(*jsast.Matcher); castOK {
			return m, nil
		}
	}

	m, err := jsast.NewMatcher(language)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	actual, _ := e.matchers.LoadOrStore(language, m)

	stored, ok := actual.(*jsast.Matcher)
	if !ok {
		return m, nil
	}

	return stored, nil
}

// pass is one dialect over one parsed document.
type pass struct {
	doc     *jsast.Document
	table   *rules.Table
	result  *Result
	err     error
	dialect dialect.Dialect
}

func (p *pass) run(matcher *jsast.Matcher) error {
	b, err := binding.Detect(p.doc, p.dialect, matcher)
	if err != nil {
		return err
	}

	p.result.Bindings = append(p.result.Bindings, b)

	if !b.Found {
		p.diagnose(NoBinding, p.doc.Root(), fmt.Sprintf("no %s import of %s", p.dialect.Name, p.dialect.Library))

		if p.dialect.RequireBinding || !b.Implicit {
			return nil
		}
	}

	entry := chain.Entry{Dialect: p.dialect.Name, LocalName: b.LocalName, Namespace: b.Namespace}

	chain.Tops(p.doc.Root(), func(top, parent sitter.Node) {
		if p.err == nil {
			p.top(top, parent, entry)
		}
	})

	if p.err != nil {
		return p.err
	}

	if len(p.result.Rewrites) == 0 {
		return nil
	}

	if err := b.Finalize(p.doc, matcher); err != nil {
		return err
	}

	p.result.Output = p.doc.Bytes()
	p.result.Changed = true

	return nil
}

// top rewrites one chain candidate.
func (p *pass) top(top, parent sitter.Node, entry chain.Entry) {
	start, end := jsast.Span(top)
	if p.doc.Covered(start, end) {
		return
	}

	ch, err := chain.Walk(top, p.doc.Source(), entry)

	switch {
	case err == nil:
	case errors.Is(err, chain.ErrNoRoot), errors.Is(err, chain.ErrTargetDialect):
		return
	case errors.Is(err, chain.ErrMalformed):
		p.diagnose(MalformedChain, top, err.Error())

		return
	default:
		message := err.Error()

		var propErr *chain.PropertyError
		if errors.As(err, &propErr) {
			message += didYouMean(levenshtein.Closest(propErr.Name, chain.Vocabulary(), rules.SuggestDistance))
		}

		p.diagnose(UnmatchedChain, top, message)

		return
	}

	if !ch.Message.IsNull() {
		p.diagnose(DroppedMessage, ch.Message, "expect message "+p.doc.Text(ch.Message)+" dropped")
	}

	statements, verbs, matchers, ok := p.emit(ch, parent)
	if !ok {
		return
	}

	replacement := p.join(statements, top, parent)

	if err := p.doc.Replace(top, replacement); err != nil {
		p.err = err

		return
	}

	line, col := p.doc.Position(start)
	p.result.Rewrites = append(p.result.Rewrites, Rewrite{
		Dialect:     p.dialect.Name,
		Original:    p.doc.Text(top),
		Replacement: replacement,
		Verbs:       verbs,
		Matchers:    matchers,
		Start:       start,
		End:         end,
		Line:        line,
		Column:      col,
	})
}

// emit renders one target assertion per segment. ok is false when the
// chain must stay untouched; the reason has been recorded.
func (p *pass) emit(ch *chain.Chain, parent sitter.Node) (statements, verbs, matchers []string, ok bool) {
	if len(ch.Segments) > 1 && !p.standalone(ch, parent) {
		p.diagnose(MalformedChain, ch.Top, "trailing assertions need their own statement and a side-effect free subject")

		return nil, nil, nil, false
	}

	subject := p.doc.Render(ch.Subject)
	subjectNode := ch.Subject

	for idx, seg := range ch.Segments {
		rule, found, err := p.table.Lookup(seg.Verb, seg.Modifiers, seg.Negated)

		switch {
		case !found:
			p.diagnose(UnmatchedChain, seg.Node, fmt.Sprintf("no rule for verb %s%s%s",
				seg.Verb, modifierSuffix(seg.Modifiers), didYouMean(p.table.Suggest(seg.Verb))))

			return nil, nil, nil, false
		case err != nil:
			p.diagnose(UnmatchedChain, seg.Node, err.Error())

			return nil, nil, nil, false
		}

		in := rules.Input{
			SubjectNode: subjectNode,
			Subject:     subject,
			Namespace:   p.dialect.Namespace,
			Verb:        seg.Verb,
			Modifiers:   seg.Modifiers,
			Negated:     seg.Negated,
		}

		for _, arg := range seg.Args {
			in.Args = append(in.Args, rules.Arg{Node: arg, Text: p.doc.Render(arg)})
		}

		plan, dropped, err := rule.Apply(in)
		if err != nil {
			p.diagnose(UnsupportedArgumentShape, seg.Node, err.Error())

			return nil, nil, nil, false
		}

		if dropped {
			p.diagnose(DroppedMessage, seg.Node, "message argument of "+seg.Verb+" dropped")
		}

		statements = append(statements, render(plan, seg.Negated))
		verbs = append(verbs, rule.Verb)
		matchers = append(matchers, plan.Matcher)

		if idx == len(ch.Segments)-1 {
			break
		}

		switch {
		case plan.Next == "":
			p.diagnose(MalformedChain, seg.Node, "assertion chained after terminal verb "+seg.Verb)

			return nil, nil, nil, false
		case plan.Next != subject && seg.Negated:
			p.diagnose(MalformedChain, seg.Node, "negated "+seg.Verb+" cannot be chained")

			return nil, nil, nil, false
		case plan.Next != subject:
			subject = plan.Next
			subjectNode = sitter.Node{}
		}
	}

	return statements, verbs, matchers, true
}

// standalone reports whether ch may be split into several statements.
func (p *pass) standalone(ch *chain.Chain, parent sitter.Node) bool {
	return !parent.IsNull() && parent.Type() == jsast.TypeExpressionStmt && jsast.IsPure(ch.Subject, p.doc.Source())
}

// join glues statements, following the statement's semicolon style.
func (p *pass) join(statements []string, top, parent sitter.Node) string {
	if len(statements) == 1 {
		return statements[0]
	}

	start, _ := jsast.Span(top)
	sep := "\n" + p.doc.Indentation(start)

	if strings.HasSuffix(strings.TrimSpace(p.doc.Text(parent)), ";") {
		sep = ";" + sep
	}

	return strings.Join(statements, sep)
}

func (p *pass) diagnose(kind Kind, n sitter.Node, message string) {
	start, end := jsast.Span(n)
	line, col := p.doc.Position(start)

	d := Diagnostic{
		Kind:    kind,
		Dialect: p.dialect.Name,
		Message: message,
		Start:   start,
		End:     end,
		Line:    line,
		Column:  col,
	}

	if kind != NoBinding {
		d.Text = p.doc.Text(n)
	}

	p.result.Diagnostics = append(p.result.Diagnostics, d)
}

// didYouMean formats a suggestion suffix; empty when there is none.
func didYouMean(name string, ok bool) string {
	if !ok {
		return ""
	}

	return "; did you mean " + name + "?"
}

// render emits expect(subject)[.not].matcher(args).
func render(plan rules.Plan, negated bool) string {
	var sb strings.Builder

	sb.WriteString(targetEntry + "(" + plan.Subject + ")")

	if negated {
		sb.WriteString(".not")
	}

	sb.WriteString("." + plan.Matcher + "(" + strings.Join(plan.Args, ", ") + ")")

	return sb.String()
}

func modifierSuffix(modifiers []string) string {
	if len(modifiers) == 0 {
		return ""
	}

	return " with " + strings.Join(modifiers, ", ")
}
