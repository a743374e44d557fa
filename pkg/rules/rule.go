// Package rules holds the table that maps a chain verb and its modifiers
// to a target matcher, together with the per-rule argument transformers.
//
// Lookup prefers the most specific rule: among rules for the same verb
// whose required modifiers are all present, the one requiring the most
// modifiers wins. The table is immutable once built and safe to share.
package rules

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/jestify/pkg/levenshtein"
)

// SuggestDistance is the largest edit distance Suggest accepts.
const SuggestDistance = 2

// Sentinel errors.
var (
	// ErrUnsupportedArgumentShape is wrapped by every transformer that
	// cannot interpret its arguments.
	ErrUnsupportedArgumentShape = errors.New("unsupported argument shape")
	// ErrUnsupported marks modifier combinations that are deliberately
	// not migrated.
	ErrUnsupported = errors.New("unsupported modifier combination")
	// ErrDuplicateRule is returned by NewTable for repeated keys.
	ErrDuplicateRule = errors.New("duplicate rule")
)

// Variadic is the Max arity of rules taking any number of arguments.
const Variadic = -1

// Arity bounds the argument count a verb accepts, excluding a trailing
// message.
type Arity struct {
	Min int
	Max int
}

// Arg is one verb argument.
type Arg struct {
	// Node is the original argument expression.
	Node sitter.Node
	// Text is the argument source with nested rewrites applied.
	Text string
}

// Input is what a transformer receives.
type Input struct {
	// SubjectNode is the expression under assertion.
	SubjectNode sitter.Node
	// Subject is the subject source with nested rewrites applied.
	Subject string
	// Namespace prefixes container matchers.
	Namespace string
	// Verb is the verb as written.
	Verb string
	// Args are the verb arguments without any trailing message.
	Args []Arg
	// Modifiers are the significant modifiers of the segment.
	Modifiers []string
	// Negated is informational; negation is applied by the caller.
	Negated bool
}

// Has reports whether modifier m is active.
func (in Input) Has(m string) bool {
	return slices.Contains(in.Modifiers, m)
}

// Plan is what a transformer produces.
type Plan struct {
	// Subject replaces the input subject inside expect(...) when set.
	Subject string
	// Matcher overrides the rule's matcher when set.
	Matcher string
	// Args are the rendered matcher arguments.
	Args []string
	// Next is the subject of a trailing chain; empty when the verb ends
	// the chain.
	Next string
}

// Transform reshapes verb arguments into a matcher call.
type Transform func(in Input) (Plan, error)

// Rule maps a verb and a modifier set to a target matcher.
type Rule struct {
	Transform   Transform
	Verb        string
	Matcher     string
	Example     string
	Aliases     []string
	Requires    []string
	Arity       Arity
	Message     bool
	Negatable   bool
	Unsupported bool
	// Terminal verbs end the chain; nothing may follow them.
	Terminal bool
}

// key is the table key of a rule.
func (r *Rule) key() string {
	req := slices.Clone(r.Requires)
	slices.Sort(req)

	return r.Verb + "[" + strings.Join(req, ",") + "]"
}

// Apply validates arity and runs the transformer. dropped is true when a
// trailing message argument was discarded.
func (r *Rule) Apply(in Input) (plan Plan, dropped bool, err error) {
	n := len(in.Args)

	if r.Message && r.Arity.Max != Variadic && n == r.Arity.Max+1 {
		in.Args = in.Args[:n-1]
		n--
		dropped = true
	}

	if n < r.Arity.Min || (r.Arity.Max != Variadic && n > r.Arity.Max) {
		return Plan{}, false, shapeError(in.Verb, "got %d arguments", n)
	}

	plan, err = r.Transform(in)
	if err != nil {
		return Plan{}, false, err
	}

	if plan.Subject == "" {
		plan.Subject = in.Subject
	}

	if plan.Matcher == "" {
		plan.Matcher = r.Matcher
	}

	switch {
	case r.Terminal:
		plan.Next = ""
	case plan.Next == "":
		plan.Next = in.Subject
	}

	return plan, dropped, nil
}

// shapeError builds an ErrUnsupportedArgumentShape for verb.
func shapeError(verb, format string, args ...any) error {
	return fmt.Errorf("%w for verb %s: %s", ErrUnsupportedArgumentShape, verb, fmt.Sprintf(format, args...))
}

// Table is an immutable rule index.
type Table struct {
	byVerb  map[string][]*Rule
	aliases map[string]string
	rules   []*Rule
}

// NewTable indexes rules. Keys (verb, sorted requirements) must be unique
// and aliases must not collide.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{
		byVerb:  make(map[string][]*Rule),
		aliases: make(map[string]string),
	}

	seen := make(map[string]bool, len(rules))

	for idx := range rules {
		r := &rules[idx]

		key := r.key()
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, key)
		}

		seen[key] = true

		for _, name := range append([]string{r.Verb}, r.Aliases...) {
			if prev, ok := t.aliases[name]; ok && prev != r.Verb {
				return nil, fmt.Errorf("%w: alias %s of %s and %s", ErrDuplicateRule, name, prev, r.Verb)
			}

			t.aliases[name] = r.Verb
		}

		t.byVerb[r.Verb] = append(t.byVerb[r.Verb], r)
		t.rules = append(t.rules, r)
	}

	return t, nil
}

// Canonical returns the canonical verb for name, or "" when unknown.
func (t *Table) Canonical(name string) string {
	return t.aliases[name]
}

// Lookup finds the most specific rule for verb under modifiers. It
// returns ErrUnsupported when the best rule is a blocking rule or does
// not allow negation; ok is false when no rule applies.
func (t *Table) Lookup(verb string, modifiers []string, negated bool) (*Rule, bool, error) {
	var best *Rule

	for _, r := range t.byVerb[t.Canonical(verb)] {
		if !subset(r.Requires, modifiers) {
			continue
		}

		if best == nil || len(r.Requires) > len(best.Requires) {
			best = r
		}
	}

	switch {
	case best == nil:
		return nil, false, nil
	case best.Unsupported:
		return best, true, fmt.Errorf("%w: %s", ErrUnsupported, best.key())
	case negated && !best.Negatable:
		return best, true, fmt.Errorf("%w: %s cannot be negated", ErrUnsupported, best.key())
	default:
		return best, true, nil
	}
}

// Names returns every verb and alias, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.aliases))
	for name := range t.aliases {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Suggest returns the verb or alias closest to an unknown name.
func (t *Table) Suggest(name string) (string, bool) {
	return levenshtein.Closest(name, t.Names(), SuggestDistance)
}

// Rules returns the rules in declaration order.
func (t *Table) Rules() []*Rule {
	return slices.Clone(t.rules)
}

func subset(required, present []string) bool {
	for _, m := range required {
		if !slices.Contains(present, m) {
			return false
		}
	}

	return true
}
