// Package chain decomposes fluent assertion chains into their subject and
// a sequence of segments, each made of modifiers and one terminal verb.
//
// Classification is two-pass over a flat token list: every property is
// first looked up in a fixed vocabulary, then call adjacency decides which
// tokens are verbs. A property immediately followed by a call is always a
// verb. A chain continuing past its first verb yields trailing segments.
package chain

import (
	"errors"
	"fmt"
	"slices"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
)

// Sentinel errors returned by Walk.
var (
	// ErrNoRoot means the expression is not an assertion chain at all.
	ErrNoRoot = errors.New("chain: not rooted at an assertion entry point")
	// ErrTargetDialect means the chain already uses target matchers.
	ErrTargetDialect = errors.New("chain: already in target form")
	// ErrNoVerb means the chain has modifiers but no terminal verb.
	ErrNoVerb = errors.New("chain: no verb")
	// ErrUnknownProperty means an uncalled property is not in the vocabulary.
	ErrUnknownProperty = errors.New("chain: unknown property")
	// ErrMalformed means the chain is structurally inconsistent.
	ErrMalformed = errors.New("chain: malformed")
)

// PropertyError carries the name of an unknown uncalled property.
type PropertyError struct {
	Name string
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownProperty, e.Name)
}

func (e *PropertyError) Unwrap() error {
	return ErrUnknownProperty
}

// RootKind tells how the chain enters the assertion library.
type RootKind int

// Root kinds.
const (
	// RootExpect is expect(subject) or ns.expect(subject).
	RootExpect RootKind = iota
	// RootShould is subject.should.
	RootShould
	// RootStatic is should.verb(subject, ...).
	RootStatic
)

// Entry tells Walk which identifiers start a chain.
type Entry struct {
	// Dialect is the entry point name, "expect" or "should".
	Dialect string
	// LocalName is the identifier bound to the entry point.
	LocalName string
	// Namespace is the identifier bound to the whole library.
	Namespace string
}

// Segment is one modifiers-then-verb run of a chain.
type Segment struct {
	// Node is the expression that ends the segment.
	Node sitter.Node
	// Verb is the verb as written.
	Verb string
	// Modifiers are canonical significant modifiers in first-seen order.
	Modifiers []string
	// Args are the verb call arguments.
	Args []sitter.Node
	// Negated is true when not applies to the verb.
	Negated bool
	// Called is true when the verb was invoked.
	Called bool
}

// Has reports whether the segment carries modifier m.
func (s Segment) Has(m string) bool {
	return slices.Contains(s.Modifiers, m)
}

// Chain is a decomposed assertion expression.
type Chain struct {
	// Top is the outermost expression of the chain.
	Top sitter.Node
	// Subject is the value under assertion.
	Subject sitter.Node
	// Message is an optional failure message passed to expect.
	Message sitter.Node
	// Segments are the assertions in source order.
	Segments []Segment
	// Root is the entry form.
	Root RootKind
}

// kind distinguishes flattened links.
type kind int

const (
	access kind = iota
	call
)

// link is one member access or call in a flattened chain.
type link struct {
	node sitter.Node
	name string
	args []sitter.Node
	kind kind
}

// Walk decomposes top, the outermost node of a member/call run.
func Walk(top sitter.Node, source []byte, entry Entry) (*Chain, error) {
	base, links := flatten(top, source)

	ch := &Chain{Top: top}

	rest, err := ch.root(base, links, source, entry)
	if err != nil {
		return nil, err
	}

	for _, l := range rest {
		if l.kind == access && isTargetMatcher(l.name) {
			return nil, ErrTargetDialect
		}
	}

	segments, err := classify(rest)
	if err != nil {
		return nil, err
	}

	if ch.Root == RootStatic {
		if len(segments) != 1 || len(segments[0].Args) == 0 {
			return nil, fmt.Errorf("%w: static should needs one verb with a subject", ErrMalformed)
		}

		ch.Subject = jsast.Unparen(segments[0].Args[0])
		segments[0].Args = segments[0].Args[1:]
	}

	ch.Segments = segments

	return ch, nil
}

// flatten unwinds nested calls and member accesses into source order.
func flatten(top sitter.Node, source []byte) (sitter.Node, []link) {
	var links []link

	node := top

	for {
		switch {
		case !node.IsNull() && node.Type() == jsast.TypeCall:
			links = append(links, link{
				kind: call,
				node: node,
				args: jsast.NamedChildren(jsast.Field(node, "arguments")),
			})
			node = jsast.Field(node, "function")
		case !node.IsNull() && node.Type() == jsast.TypeMember && !jsast.IsOptionalMember(node, source):
			links = append(links, link{
				kind: access,
				node: node,
				name: jsast.Field(node, "property").Content(source),
			})
			node = jsast.Field(node, "object")
		default:
			slices.Reverse(links)

			return node, links
		}
	}
}

// root locates the entry point and returns the links following it.
func (ch *Chain) root(base sitter.Node, links []link, source []byte, entry Entry) ([]link, error) {
	if entry.Dialect == "should" {
		return ch.shouldRoot(base, links, source, entry)
	}

	switch {
	case entry.LocalName != "" && jsast.IsIdentifier(base, source, entry.LocalName) &&
		len(links) > 0 && links[0].kind == call:
		return ch.expectRoot(links[0], links[1:])
	case entry.Namespace != "" && jsast.IsIdentifier(base, source, entry.Namespace) &&
		len(links) > 1 && links[0].kind == access && links[0].name == entry.Dialect && links[1].kind == call:
		return ch.expectRoot(links[1], links[2:])
	default:
		return nil, ErrNoRoot
	}
}

func (ch *Chain) expectRoot(entryCall link, rest []link) ([]link, error) {
	ch.Root = RootExpect

	switch len(entryCall.args) {
	case 1:
	case 2:
		ch.Message = entryCall.args[1]
	default:
		return nil, fmt.Errorf("%w: expect takes a subject and an optional message", ErrMalformed)
	}

	if entryCall.args[0].Type() == jsast.TypeSpreadElement {
		return nil, fmt.Errorf("%w: spread subject", ErrMalformed)
	}

	ch.Subject = jsast.Unparen(entryCall.args[0])

	if len(rest) == 0 {
		return nil, ErrNoVerb
	}

	return rest, nil
}

func (ch *Chain) shouldRoot(base sitter.Node, links []link, source []byte, entry Entry) ([]link, error) {
	if entry.LocalName != "" && jsast.IsIdentifier(base, source, entry.LocalName) && len(links) > 0 && links[0].kind == access {
		ch.Root = RootStatic

		return links, nil
	}

	for idx, l := range links {
		if l.kind != access || l.name != entry.Dialect {
			continue
		}

		ch.Root = RootShould
		ch.Subject = jsast.Unparen(jsast.Field(l.node, "object"))

		if len(links[idx+1:]) == 0 {
			return nil, ErrNoVerb
		}

		return links[idx+1:], nil
	}

	return nil, ErrNoRoot
}

// classify runs the two classification passes and cuts segments.
func classify(links []link) ([]Segment, error) {
	var (
		segments []Segment
		current  Segment
		sticky   []string
		pending  bool
	)

	for idx := 0; idx < len(links); idx++ {
		l := links[idx]
		if l.kind == call {
			return nil, fmt.Errorf("%w: call without a verb", ErrMalformed)
		}

		calledNext := idx+1 < len(links) && links[idx+1].kind == call

		switch {
		case calledNext:
			current.Verb = l.name
			current.Called = true
			current.Args = links[idx+1].args
			current.Node = links[idx+1].node
			idx++
		case IsPropertyVerb(l.name):
			current.Verb = l.name
			current.Node = l.node
		case IsLanguageChain(l.name):
			continue
		default:
			m, ok := Modifier(l.name)
			if !ok {
				return nil, &PropertyError{Name: l.name}
			}

			pending = true

			if m == ModNot {
				current.Negated = true
			}

			if !slices.Contains(current.Modifiers, m) {
				current.Modifiers = append(current.Modifiers, m)
			}

			continue
		}

		for _, m := range sticky {
			if !slices.Contains(current.Modifiers, m) {
				current.Modifiers = append(current.Modifiers, m)
			}
		}

		current.Negated = current.Negated || slices.Contains(current.Modifiers, ModNot)
		segments = append(segments, current)

		for _, m := range current.Modifiers {
			if stickyModifiers[m] && !slices.Contains(sticky, m) {
				sticky = append(sticky, m)
			}
		}

		current = Segment{}
		pending = false
	}

	if pending || len(segments) == 0 {
		return nil, ErrNoVerb
	}

	return segments, nil
}

// Tops calls visit for every node that could be the outermost node of a
// chain, children before parents, so nested chains are seen first.
func Tops(root sitter.Node, visit func(top, parent sitter.Node)) {
	var walk func(n, parent sitter.Node)

	walk = func(n, parent sitter.Node) {
		for _, child := range jsast.NamedChildren(n) {
			walk(child, n)
		}

		if (n.Type() == jsast.TypeCall || n.Type() == jsast.TypeMember) && !continues(n, parent) {
			visit(n, parent)
		}
	}

	walk(root, sitter.Node{})
}

// continues reports whether parent extends n as part of the same chain.
func continues(n, parent sitter.Node) bool {
	if parent.IsNull() {
		return false
	}

	switch parent.Type() {
	case jsast.TypeMember:
		return jsast.SameNode(jsast.Field(parent, "object"), n)
	case jsast.TypeCall:
		return jsast.SameNode(jsast.Field(parent, "function"), n)
	default:
		return false
	}
}
