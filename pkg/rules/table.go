package rules

import (
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/jestify/pkg/chain"
	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
)

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the built-in rule table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := NewTable(Builtin())
		if err != nil {
			panic(err)
		}

		defaultTable = t
	})

	return defaultTable
}

func one(verb string, aliases ...string) Rule {
	return Rule{Verb: verb, Aliases: aliases, Arity: Arity{Min: 1, Max: 1}, Message: true, Negatable: true, Transform: passThrough}
}

func flag(verb, matcher, example string, transform Transform) Rule {
	return Rule{Verb: verb, Matcher: matcher, Example: example, Arity: Arity{}, Message: true, Negatable: true, Transform: transform}
}

func with(r Rule, matcher, example string, requires ...string) Rule {
	r.Matcher = matcher
	r.Example = example
	r.Requires = requires

	return r
}

func transformed(r Rule, t Transform) Rule {
	r.Transform = t

	return r
}

func arity(r Rule, lo, hi int) Rule {
	r.Arity = Arity{Min: lo, Max: hi}

	return r
}

func terminal(r Rule) Rule {
	r.Terminal = true

	return r
}

func blocked(verb string, requires ...string) Rule {
	return Rule{Verb: verb, Requires: requires, Unsupported: true, Example: "left untouched"}
}

// Builtin returns a fresh copy of the built-in rules.
func Builtin() []Rule {
	return []Rule{
		with(one("equal", "equals", "eq"), "toBe", "expect(S).toBe(v)"),
		with(one("equal", "equals", "eq"), "toEqual", "expect(S).toEqual(v)", chain.ModDeep),
		with(one("eql", "eqls"), "toEqual", "expect(S).toEqual(v)"),

		with(one("above", "gt", "greaterThan"), "toBeGreaterThan", "expect(S).toBeGreaterThan(n)"),
		transformed(with(one("above", "gt", "greaterThan"), "toBeGreaterThan", "expect(S.length).toBeGreaterThan(n)", chain.ModLength), onLength),
		with(one("least", "gte", "greaterThanOrEqual"), "toBeGreaterThanOrEqual", "expect(S).toBeGreaterThanOrEqual(n)"),
		transformed(with(one("least", "gte", "greaterThanOrEqual"), "toBeGreaterThanOrEqual", "expect(S.length).toBeGreaterThanOrEqual(n)", chain.ModLength), onLength),
		with(one("below", "lt", "lessThan"), "toBeLessThan", "expect(S).toBeLessThan(n)"),
		transformed(with(one("below", "lt", "lessThan"), "toBeLessThan", "expect(S.length).toBeLessThan(n)", chain.ModLength), onLength),
		with(one("most", "lte", "lessThanOrEqual"), "toBeLessThanOrEqual", "expect(S).toBeLessThanOrEqual(n)"),
		transformed(with(one("most", "lte", "lessThanOrEqual"), "toBeLessThanOrEqual", "expect(S.length).toBeLessThanOrEqual(n)", chain.ModLength), onLength),
		// toBeWithin is jest-extended and excludes hi; chai's within includes it.
		arity(with(one("within"), "toBeWithin", "expect(S).toBeWithin(lo, hi)"), 2, 2),
		arity(transformed(with(one("within"), "toBeWithin", "expect(S.length).toBeWithin(lo, hi)", chain.ModLength), onLength), 2, 2),
		arity(transformed(with(one("closeTo", "approximately"), "toBeLessThanOrEqual", "expect(Math.abs(S - e)).toBeLessThanOrEqual(d)"), closeTo), 2, 2),

		transformed(with(one("a", "an"), "", "expect(S).toEqual(ns.any(Ctor))"), typeOf),
		with(one("instanceof", "instanceOf"), "toBeInstanceOf", "expect(S).toBeInstanceOf(C)"),

		flag("ok", "toBeTruthy", "expect(S).toBeTruthy()", passThrough),
		flag("true", "toBe", "expect(S).toBe(true)", fixed("true")),
		flag("false", "toBe", "expect(S).toBe(false)", fixed("false")),
		flag("null", "toBeNull", "expect(S).toBeNull()", passThrough),
		flag("undefined", "toBeUndefined", "expect(S).toBeUndefined()", passThrough),
		flag("NaN", "toBeNaN", "expect(S).toBeNaN()", passThrough),
		flag("exist", "toEqual", "expect(S).toEqual(ns.anything())", exist),
		flag("defined", "toBeDefined", "expect(S).toBeDefined()", passThrough),
		flag("empty", "toHaveLength", "expect(S).toHaveLength(0)", fixed("0")),
		flag("extensible", "toBe", "expect(Object.isExtensible(S)).toBe(true)", wrapSubject("Object.isExtensible", "true")),
		flag("frozen", "toBe", "expect(Object.isFrozen(S)).toBe(true)", wrapSubject("Object.isFrozen", "true")),
		flag("sealed", "toBe", "expect(Object.isSealed(S)).toBe(true)", wrapSubject("Object.isSealed", "true")),
		flag("finite", "toBe", "expect(Number.isFinite(S)).toBe(true)", wrapSubject("Number.isFinite", "true")),
		flag("arguments", "toBe", "expect(Object.prototype.toString.call(S)).toBe('[object Arguments]')",
			wrapSubject("Object.prototype.toString.call", "'[object Arguments]'")),

		with(one("lengthOf", "length"), "toHaveLength", "expect(S).toHaveLength(n)"),
		with(one("match", "matches"), "toMatch", "expect(S).toMatch(re)"),
		with(one("string"), "toContain", "expect(S).toContain(str)"),

		transformed(with(one("include", "includes", "contain", "contains"), "toContain", "expect(S).toContain(v)"), include),
		transformed(with(one("include", "includes", "contain", "contains"), "toContainEqual", "expect(S).toContainEqual(v)", chain.ModDeep), include),
		blocked("include", chain.ModNested),

		transformed(with(one("members"), "toEqual", "expect(S).toEqual(ns.arrayContaining(arr))"), members),
		with(one("members"), "toEqual", "expect(S).toEqual(arr)", chain.ModOrdered),
		blocked("members", chain.ModInclude, chain.ModOrdered),

		arity(transformed(with(one("keys", "key"), "toEqual", "expect(Object.keys(S)).toEqual(ns.arrayContaining([k...]))"), keys), 1, Variadic),
		blocked("keys", chain.ModAny),

		arity(transformed(with(one("property"), "toHaveProperty", "expect(S).toHaveProperty(k[, v])"), property), 1, 2),
		arity(transformed(with(one("property"), "toContain", "expect(Object.getOwnPropertyNames(S)).toContain(k)", chain.ModOwn), ownProperty), 1, 2),
		arity(transformed(with(one("ownProperty", "haveOwnProperty"), "toContain", "expect(Object.getOwnPropertyNames(S)).toContain(k)"), ownProperty), 1, 2),
		arity(transformed(with(one("ownPropertyDescriptor", "haveOwnPropertyDescriptor"), "toBeDefined",
			"expect(Object.getOwnPropertyDescriptor(S, k)).toBeDefined() | .toEqual(d)"), ownPropertyDescriptor), 1, 2),

		terminal(arity(transformed(with(one("throw", "throws", "Throw"), "toThrowError", "expect(S).toThrow() | .toThrowError(C, pattern)"), throwError), 0, 2)),

		transformed(with(one("satisfy", "satisfies"), "toBeTruthy", "expect(fn(S)).toBeTruthy()"), satisfy),
		transformed(with(one("oneOf"), "toContain", "expect(list).toContain(S)"), oneOf),
		transformed(with(one("oneOf"), "toContainEqual", "expect(list).toContainEqual(S)", chain.ModDeep), oneOf),
	}
}

// closeTo asserts the absolute difference instead of a digit count.
func closeTo(in Input) (Plan, error) {
	expected, delta := in.Args[0], in.Args[1]

	return Plan{
		Subject: "Math.abs(" + subjectOperand(in) + " - " + operand(expected) + ")",
		Args:    []string{delta.Text},
	}, nil
}

// typeNames maps chai type names to constructors; lookup is case-sensitive.
var typeNames = map[string]string{
	"string":            "String",
	"number":            "Number",
	"boolean":           "Boolean",
	"object":            "Object",
	"function":          "Function",
	"array":             "Array",
	"date":              "Date",
	"regexp":            "RegExp",
	"error":             "Error",
	"promise":           "Promise",
	"symbol":            "Symbol",
	"bigint":            "BigInt",
	"map":               "Map",
	"set":               "Set",
	"weakmap":           "WeakMap",
	"weakset":           "WeakSet",
	"arraybuffer":       "ArrayBuffer",
	"dataview":          "DataView",
	"int8array":         "Int8Array",
	"uint8array":        "Uint8Array",
	"uint8clampedarray": "Uint8ClampedArray",
	"int16array":        "Int16Array",
	"uint16array":       "Uint16Array",
	"int32array":        "Int32Array",
	"uint32array":       "Uint32Array",
	"float32array":      "Float32Array",
	"float64array":      "Float64Array",
	"bigint64array":     "BigInt64Array",
	"biguint64array":    "BigUint64Array",
}

// typeOf selects a matcher by the type name argument of a/an.
func typeOf(in Input) (Plan, error) {
	name, ok := stringValue(in.Args[0])
	if !ok {
		return Plan{}, shapeError(in.Verb, "type name must be a string literal")
	}

	switch name {
	case "null":
		return Plan{Matcher: "toBeNull"}, nil
	case "undefined":
		return Plan{Matcher: "toBeUndefined"}, nil
	}

	ctor, ok := typeNames[name]
	if !ok {
		return Plan{}, shapeError(in.Verb, "unknown type %q", name)
	}

	return Plan{Matcher: "toEqual", Args: []string{container(in.Namespace, anyMatcher, ctor)}}, nil
}

func exist(in Input) (Plan, error) {
	return Plan{Args: []string{in.Namespace + "." + anythingMatcher + "()"}}, nil
}

// include picks a container matcher for literal collections. Under deep
// an array literal is one element, matched by toContainEqual.
func include(in Input) (Plan, error) {
	arg := in.Args[0]

	switch {
	case isArrayLiteral(arg) && in.Has(chain.ModDeep):
		return Plan{Args: []string{arg.Text}}, nil
	case isArrayLiteral(arg):
		return Plan{Matcher: "toEqual", Args: []string{container(in.Namespace, arrayContaining, arg.Text)}}, nil
	case isObjectLiteral(arg):
		return Plan{Matcher: "toEqual", Args: []string{container(in.Namespace, objectContaining, arg.Text)}}, nil
	default:
		return Plan{Args: []string{arg.Text}}, nil
	}
}

func members(in Input) (Plan, error) {
	arg := in.Args[0]
	if isObjectLiteral(arg) {
		return Plan{}, shapeError(in.Verb, "members of an object literal")
	}

	return Plan{Args: []string{container(in.Namespace, arrayContaining, arg.Text)}}, nil
}

// keys accepts an array literal, an object literal or key literals.
func keys(in Input) (Plan, error) {
	var list string

	switch first := in.Args[0]; {
	case len(in.Args) == 1 && isArrayLiteral(first):
		list = first.Text
	case len(in.Args) == 1 && isObjectLiteral(first):
		list = "Object.keys(" + first.Text + ")"
	default:
		for _, a := range in.Args {
			if !isType(a, jsast.TypeString, jsast.TypeTemplateString, jsast.TypeNumber) {
				return Plan{}, shapeError(in.Verb, "key %s is not a literal", a.Text)
			}
		}

		list = "[" + strings.Join(texts(in.Args), ", ") + "]"
	}

	return Plan{
		Subject: "Object.keys(" + in.Subject + ")",
		Args:    []string{container(in.Namespace, arrayContaining, list)},
	}, nil
}

// propertyAccess renders S.name or S[name] for a trailing chain, and the
// key argument as the target matcher reads it.
func propertyAccess(in Input, key Arg, nested bool) (access, keyArg string) {
	base := member(in)

	value, ok := stringValue(key)
	if !ok {
		return base + "[" + key.Text + "]", key.Text
	}

	switch {
	case nested && isPath(value):
		return base + "." + value, key.Text
	case nested:
		return base + "[" + key.Text + "]", key.Text
	case isIdentifierName(value):
		return base + "." + value, key.Text
	case strings.ContainsAny(value, ".["):
		// A literal key with path characters must not be split.
		return base + "[" + key.Text + "]", "[" + key.Text + "]"
	default:
		return base + "[" + key.Text + "]", key.Text
	}
}

func property(in Input) (Plan, error) {
	next, key := propertyAccess(in, in.Args[0], in.Has(chain.ModNested))

	args := []string{key}
	if len(in.Args) == 2 {
		args = append(args, in.Args[1].Text)
	}

	return Plan{Args: args, Next: next}, nil
}

func ownProperty(in Input) (Plan, error) {
	key := in.Args[0]
	next, _ := propertyAccess(in, key, false)

	if len(in.Args) == 1 {
		return Plan{
			Subject: "Object.getOwnPropertyNames(" + in.Subject + ")",
			Args:    []string{key.Text},
			Next:    next,
		}, nil
	}

	return Plan{
		Matcher: "toEqual",
		Args:    []string{container(in.Namespace, objectContaining, "{ ["+key.Text+"]: "+in.Args[1].Text+" }")},
		Next:    next,
	}, nil
}

func ownPropertyDescriptor(in Input) (Plan, error) {
	subject := "Object.getOwnPropertyDescriptor(" + in.Subject + ", " + in.Args[0].Text + ")"

	if len(in.Args) == 1 {
		return Plan{Subject: subject, Next: subject}, nil
	}

	return Plan{Subject: subject, Matcher: "toEqual", Args: []string{in.Args[1].Text}, Next: subject}, nil
}

// throwError keeps the four argument shapes: constructor, instance,
// message pattern, and constructor with pattern.
func throwError(in Input) (Plan, error) {
	switch len(in.Args) {
	case 0:
		return Plan{Matcher: "toThrow"}, nil
	case 1:
		arg := in.Args[0]

		switch {
		case isType(arg, "new_expression"):
			return Plan{Matcher: "toThrow", Args: []string{arg.Text}}, nil
		case isPattern(arg), isConstructorRef(arg):
			return Plan{Args: []string{arg.Text}}, nil
		case isType(arg, jsast.TypeIdentifier, jsast.TypeMember):
			return Plan{Matcher: "toThrow", Args: []string{arg.Text}}, nil
		default:
			return Plan{}, shapeError(in.Verb, "cannot match errors against %s", arg.Text)
		}
	default:
		ctor, pattern := in.Args[0], in.Args[1]
		if !isConstructorRef(ctor) || !isPattern(pattern) {
			return Plan{}, shapeError(in.Verb, "expected a constructor and a message pattern")
		}

		return Plan{Args: texts(in.Args)}, nil
	}
}

func satisfy(in Input) (Plan, error) {
	fn := in.Args[0]

	callee := fn.Text
	if jsast.NeedsParens(fn.Node) {
		callee = "(" + callee + ")"
	}

	return Plan{Subject: callee + "(" + in.Subject + ")"}, nil
}

// oneOf swaps subject and list.
func oneOf(in Input) (Plan, error) {
	return Plan{Subject: in.Args[0].Text, Args: []string{in.Subject}}, nil
}
