package rules

import (
	"strings"
	"unicode"

	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
)

// Container matchers of the target dialect.
const (
	arrayContaining  = "arrayContaining"
	objectContaining = "objectContaining"
	anyMatcher       = "any"
	anythingMatcher  = "anything"
)

// texts renders args in order.
func texts(args []Arg) []string {
	out := make([]string, len(args))
	for idx, a := range args {
		out[idx] = a.Text
	}

	return out
}

// passThrough keeps the arguments as they are.
func passThrough(in Input) (Plan, error) {
	return Plan{Args: texts(in.Args)}, nil
}

// fixed replaces the arguments with literal ones.
func fixed(args ...string) Transform {
	return func(Input) (Plan, error) {
		return Plan{Args: args}, nil
	}
}

// wrapSubject asserts on fn(S) instead of S.
func wrapSubject(fn string, args ...string) Transform {
	return func(in Input) (Plan, error) {
		return Plan{Subject: fn + "(" + in.Subject + ")", Args: args}, nil
	}
}

// onLength asserts on S.length when the length modifier is active.
func onLength(in Input) (Plan, error) {
	return Plan{Subject: member(in) + ".length", Args: texts(in.Args)}, nil
}

// container renders ns.fn(arg).
func container(ns, fn, arg string) string {
	return ns + "." + fn + "(" + arg + ")"
}

// member renders the subject so a property access can follow it.
func member(in Input) string {
	if jsast.NeedsParens(in.SubjectNode) {
		return "(" + in.Subject + ")"
	}

	return in.Subject
}

// operand renders an argument as an operand of a binary operator.
func operand(a Arg) string {
	if a.Node.IsNull() || a.Node.Type() == jsast.TypeNumber || !jsast.NeedsParens(a.Node) {
		return a.Text
	}

	return "(" + a.Text + ")"
}

func subjectOperand(in Input) string {
	return operand(Arg{Node: in.SubjectNode, Text: in.Subject})
}

func isType(a Arg, types ...string) bool {
	if a.Node.IsNull() {
		return false
	}

	for _, t := range types {
		if a.Node.Type() == t {
			return true
		}
	}

	return false
}

func isArrayLiteral(a Arg) bool {
	return isType(a, jsast.TypeArray)
}

func isObjectLiteral(a Arg) bool {
	return isType(a, jsast.TypeObject)
}

// isPattern reports whether a can match an error message.
func isPattern(a Arg) bool {
	return isType(a, jsast.TypeString, jsast.TypeTemplateString, jsast.TypeRegex)
}

// isConstructorRef reports whether a looks like a class reference:
// Foo or ns.Foo.
func isConstructorRef(a Arg) bool {
	switch {
	case isType(a, jsast.TypeIdentifier):
		return startsUpper(a.Text)
	case isType(a, jsast.TypeMember):
		name := a.Text[strings.LastIndex(a.Text, ".")+1:]

		return startsUpper(name)
	default:
		return false
	}
}

// stringValue returns the contents of a plain string literal argument.
func stringValue(a Arg) (string, bool) {
	if !isType(a, jsast.TypeString) || len(a.Text) < 2 || strings.Contains(a.Text, "\\") {
		return "", false
	}

	return a.Text[1 : len(a.Text)-1], true
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}

	return false
}

// isIdentifierName reports whether s can follow a dot.
func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}

	for idx, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || (idx > 0 && unicode.IsDigit(r)) {
			continue
		}

		return false
	}

	return true
}

// isPath reports whether s is a dotted path of identifier names.
func isPath(s string) bool {
	for part := range strings.SplitSeq(s, ".") {
		if !isIdentifierName(part) {
			return false
		}
	}

	return true
}
