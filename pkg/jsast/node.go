package jsast

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Node types used across the rewriter.
const (
	TypeProgram           = "program"
	TypeExpressionStmt    = "expression_statement"
	TypeCall              = "call_expression"
	TypeMember            = "member_expression"
	TypeSubscript         = "subscript_expression"
	TypeArguments         = "arguments"
	TypeIdentifier        = "identifier"
	TypePropertyID        = "property_identifier"
	TypeParenthesized     = "parenthesized_expression"
	TypeString            = "string"
	TypeStringFragment    = "string_fragment"
	TypeTemplateString    = "template_string"
	TypeNumber            = "number"
	TypeObject            = "object"
	TypeArray             = "array"
	TypeThis              = "this"
	TypeTrue              = "true"
	TypeFalse             = "false"
	TypeNull              = "null"
	TypeUndefined         = "undefined"
	TypeRegex             = "regex"
	TypeComment           = "comment"
	TypeImport            = "import_statement"
	TypeImportClause      = "import_clause"
	TypeNamedImports      = "named_imports"
	TypeImportSpecifier   = "import_specifier"
	TypeNamespaceImport   = "namespace_import"
	TypeLexicalDecl       = "lexical_declaration"
	TypeVariableDecl      = "variable_declaration"
	TypeDeclarator        = "variable_declarator"
	TypeObjectPattern     = "object_pattern"
	TypeShorthandPattern  = "shorthand_property_identifier_pattern"
	TypePairPattern       = "pair_pattern"
	TypeSpreadElement     = "spread_element"
	TypeUnaryExpression   = "unary_expression"
	TypeAsExpression      = "as_expression"
	TypeNonNullExpression = "non_null_expression"
)

// Span returns the byte range of n as ints.
func Span(n sitter.Node) (start, end int) {
	return int(n.StartByte()), int(n.EndByte())
}

// SameNode reports whether a and b denote the same syntax node.
func SameNode(a, b sitter.Node) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}

	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// NamedChildren returns the named children of n, skipping comments.
func NamedChildren(n sitter.Node) []sitter.Node {
	if n.IsNull() {
		return nil
	}

	children := make([]sitter.Node, 0, n.NamedChildCount())

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if child.IsNull() || child.Type() == TypeComment {
			continue
		}

		children = append(children, child)
	}

	return children
}

// Field returns the child under field name, or a null node.
func Field(n sitter.Node, name string) sitter.Node {
	if n.IsNull() {
		return sitter.Node{}
	}

	return n.ChildByFieldName(name)
}

// Unparen strips any number of enclosing parentheses.
func Unparen(n sitter.Node) sitter.Node {
	for !n.IsNull() && n.Type() == TypeParenthesized {
		children := NamedChildren(n)
		if len(children) != 1 {
			return n
		}

		n = children[0]
	}

	return n
}

// StringValue returns the unquoted contents of a string literal node.
// The second result is false for anything but a plain string without
// escapes.
func StringValue(n sitter.Node, source []byte) (string, bool) {
	if n.IsNull() || n.Type() != TypeString {
		return "", false
	}

	children := NamedChildren(n)

	switch len(children) {
	case 0:
		return "", true
	case 1:
		if children[0].Type() != TypeStringFragment {
			return "", false
		}

		return children[0].Content(source), true
	default:
		return "", false
	}
}

// IsIdentifier reports whether n is an identifier spelled name.
func IsIdentifier(n sitter.Node, source []byte, name string) bool {
	return !n.IsNull() && n.Type() == TypeIdentifier && n.Content(source) == name
}

// IsLiteral reports whether n is a literal value expression.
func IsLiteral(n sitter.Node) bool {
	if n.IsNull() {
		return false
	}

	switch n.Type() {
	case TypeString, TypeNumber, TypeTrue, TypeFalse, TypeNull, TypeUndefined, TypeRegex:
		return true
	case TypeTemplateString:
		return len(NamedChildren(n)) == 0
	default:
		return false
	}
}

// IsPure reports whether evaluating n twice is indistinguishable from
// evaluating it once: identifiers, this, literals and member accesses on
// pure objects.
func IsPure(n sitter.Node, source []byte) bool {
	n = Unparen(n)
	if n.IsNull() {
		return false
	}

	switch n.Type() {
	case TypeIdentifier, TypeThis, TypeUndefined:
		return true
	case TypeMember:
		return IsPure(Field(n, "object"), source)
	case TypeSubscript:
		index := Field(n, "index")

		return IsPure(Field(n, "object"), source) && (IsLiteral(index) || (!index.IsNull() && index.Type() == TypeIdentifier))
	default:
		return IsLiteral(n)
	}
}

// IsOptionalMember reports whether a member expression uses "?.".
func IsOptionalMember(n sitter.Node, source []byte) bool {
	if n.Type() != TypeMember {
		return false
	}

	object := Field(n, "object")
	property := Field(n, "property")

	if object.IsNull() || property.IsNull() {
		return false
	}

	between := source[object.EndByte():property.StartByte()]

	return strings.Contains(string(between), "?.")
}

// NeedsParens reports whether n must be parenthesized before a member
// access is appended to it. A null node stands for synthesized text that
// never needs them.
func NeedsParens(n sitter.Node) bool {
	if n.IsNull() {
		return false
	}

	switch n.Type() {
	case TypeIdentifier, TypeThis, TypeMember, TypeSubscript, TypeCall, TypeParenthesized,
		TypeString, TypeTemplateString, TypeArray, TypeObject, TypeRegex,
		TypeTrue, TypeFalse, TypeNull, TypeUndefined:
		return false
	default:
		return true
	}
}
