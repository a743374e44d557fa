// Package binding finds how an assertion library entry point is brought
// into a file, removes the now obsolete import, and reports the local
// name chains are rooted at.
package binding

import (
	"fmt"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
)

const (
	requireFunc     = "require"
	registerPrefix  = "/register-"
	shouldEntryName = "should"
)

// Binding is the result of detection for one dialect in one file.
type Binding struct {
	// Library is the module specifier that was matched.
	Library string
	// LocalName is the identifier the dialect entry point is bound to, or
	// empty when the entry point has no local name.
	LocalName string
	// Namespace is the local name of the whole library object, if any.
	Namespace string
	// Found is true when an explicit import or require was recognised.
	Found bool
	// Implicit is true when the dialect is used through a global.
	Implicit bool
	// Pruned counts the statements and specifiers removed.
	Pruned int

	namespaceDecl sitter.Node
}

// Detect scans the top-level statements of doc for the dialect's entry
// point. Recognised import statements are scheduled for removal on doc.
// Absence of an import is not an error.
func Detect(doc *jsast.Document, d dialect.Dialect, matcher *jsast.Matcher) (*Binding, error) {
	det := &detector{
		doc:     doc,
		src:     doc.Source(),
		dialect: d,
		binding: &Binding{Library: d.Library},
	}

	for _, stmt := range jsast.NamedChildren(doc.Root()) {
		var err error

		switch stmt.Type() {
		case jsast.TypeImport:
			err = det.importStatement(stmt)
		case jsast.TypeLexicalDecl, jsast.TypeVariableDecl:
			err = det.declaration(stmt)
		case jsast.TypeExpressionStmt:
			err = det.expressionStatement(stmt)
		}

		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", d.Name, err)
		}
	}

	if !det.binding.Found {
		implicit, err := det.implicitUse(matcher)
		if err != nil {
			return nil, err
		}

		det.binding.Implicit = implicit
	}

	// expect stays callable as a global even when only the namespace is bound.
	if det.binding.LocalName == "" && d.Name == dialect.Expect {
		det.binding.LocalName = dialect.Expect
	}

	return det.binding, nil
}

// Finalize removes the namespace import when nothing outside pending
// edits refers to it any more.
func (b *Binding) Finalize(doc *jsast.Document, matcher *jsast.Matcher) error {
	if b.Namespace == "" || b.namespaceDecl.IsNull() {
		return nil
	}

	refs, err := matcher.Occurrences(jsast.IdentifierQuery, doc.Root(), doc.Source(), b.Namespace)
	if err != nil {
		return fmt.Errorf("binding: namespace references: %w", err)
	}

	declStart, declEnd := jsast.Span(b.namespaceDecl)

	for _, ref := range refs {
		if ref.Start >= declStart && ref.End <= declEnd {
			continue
		}

		if !doc.Covered(ref.Start, ref.End) {
			return nil
		}
	}

	if err := doc.Prune(b.namespaceDecl); err != nil {
		return fmt.Errorf("binding: prune namespace: %w", err)
	}

	b.Pruned++

	return nil
}

type detector struct {
	doc     *jsast.Document
	binding *Binding
	dialect dialect.Dialect
	src     []byte
}

func (det *detector) entryName() string {
	return det.dialect.Name
}

func (det *detector) prune(n sitter.Node) error {
	det.binding.Found = true
	det.binding.Pruned++

	return det.doc.Prune(n)
}

func (det *detector) replace(n sitter.Node, text string) error {
	det.binding.Found = true
	det.binding.Pruned++

	return det.doc.Replace(n, text)
}

func (det *detector) isLibrary(spec string) bool {
	return spec == det.binding.Library
}

func (det *detector) isRegister(spec string) bool {
	return spec == det.binding.Library+registerPrefix+det.entryName()
}

// importStatement handles ES module imports.
func (det *detector) importStatement(stmt sitter.Node) error {
	spec, ok := jsast.StringValue(jsast.Field(stmt, "source"), det.src)
	if !ok {
		return nil
	}

	if det.isRegister(spec) {
		det.binding.LocalName = det.entryName()

		return det.prune(stmt)
	}

	if !det.isLibrary(spec) {
		return nil
	}

	var clause sitter.Node

	for _, child := range jsast.NamedChildren(stmt) {
		if child.Type() == jsast.TypeImportClause {
			clause = child
		}
	}

	if clause.IsNull() {
		return nil
	}

	var (
		defaultName sitter.Node
		named       sitter.Node
	)

	for _, part := range jsast.NamedChildren(clause) {
		switch part.Type() {
		case jsast.TypeIdentifier:
			defaultName = part
			det.setNamespace(part.Content(det.src), stmt)
		case jsast.TypeNamespaceImport:
			for _, id := range jsast.NamedChildren(part) {
				if id.Type() == jsast.TypeIdentifier {
					det.setNamespace(id.Content(det.src), stmt)
				}
			}
		case jsast.TypeNamedImports:
			named = part
		}
	}

	if named.IsNull() {
		return nil
	}

	return det.namedImports(stmt, clause, defaultName, named)
}

func (det *detector) namedImports(stmt, clause, defaultName, named sitter.Node) error {
	specifiers := jsast.NamedChildren(named)
	remaining := make([]string, 0, len(specifiers))
	found := false

	for _, spec := range specifiers {
		if spec.Type() != jsast.TypeImportSpecifier {
			remaining = append(remaining, det.doc.Text(spec))

			continue
		}

		name := jsast.Field(spec, "name")
		if name.Content(det.src) != det.entryName() || found {
			remaining = append(remaining, det.doc.Text(spec))

			continue
		}

		found = true

		if alias := jsast.Field(spec, "alias"); !alias.IsNull() {
			det.binding.LocalName = alias.Content(det.src)
		} else {
			det.binding.LocalName = name.Content(det.src)
		}
	}

	switch {
	case !found:
		return nil
	case len(remaining) > 0:
		return det.replace(named, rebuildBraces(det.doc.Text(named), remaining))
	case !defaultName.IsNull():
		return det.replace(clause, defaultName.Content(det.src))
	default:
		return det.prune(stmt)
	}
}

func (det *detector) setNamespace(name string, decl sitter.Node) {
	det.binding.Found = true
	det.binding.Namespace = name
	det.binding.namespaceDecl = decl
}

// declaration handles const/let/var forms with a single declarator.
func (det *detector) declaration(stmt sitter.Node) error {
	declarators := jsast.NamedChildren(stmt)
	if len(declarators) != 1 || declarators[0].Type() != jsast.TypeDeclarator {
		return nil
	}

	name := jsast.Field(declarators[0], "name")
	value := jsast.Unparen(jsast.Field(declarators[0], "value"))

	if name.IsNull() || value.IsNull() {
		return nil
	}

	switch name.Type() {
	case jsast.TypeIdentifier:
		return det.identifierDeclaration(stmt, name.Content(det.src), value)
	case jsast.TypeObjectPattern:
		if det.isRequireOf(value) || det.isNamespaceRef(value) {
			return det.destructuring(stmt, name)
		}
	}

	return nil
}

func (det *detector) identifierDeclaration(stmt sitter.Node, local string, value sitter.Node) error {
	switch {
	case det.isRequireOf(value):
		det.setNamespace(local, stmt)

		return nil
	case det.isEntryAccess(value):
		det.binding.LocalName = local

		return det.prune(stmt)
	case det.entryName() == shouldEntryName && det.isShouldInstall(value):
		det.binding.LocalName = local

		return det.prune(stmt)
	default:
		return nil
	}
}

// destructuring handles `const {expect, assert: a} = require('chai')`.
func (det *detector) destructuring(stmt, pattern sitter.Node) error {
	properties := jsast.NamedChildren(pattern)
	remaining := make([]string, 0, len(properties))
	found := false

	for _, prop := range properties {
		local, ok := det.patternBinds(prop)
		if !ok || found {
			remaining = append(remaining, det.doc.Text(prop))

			continue
		}

		found = true
		det.binding.LocalName = local
	}

	switch {
	case !found:
		return nil
	case len(remaining) > 0:
		return det.replace(pattern, rebuildBraces(det.doc.Text(pattern), remaining))
	default:
		return det.prune(stmt)
	}
}

// patternBinds reports the local name a destructuring property binds the
// entry point to.
func (det *detector) patternBinds(prop sitter.Node) (string, bool) {
	switch prop.Type() {
	case jsast.TypeShorthandPattern:
		text := prop.Content(det.src)

		return text, text == det.entryName()
	case jsast.TypePairPattern:
		key := jsast.Field(prop, "key")
		value := jsast.Field(prop, "value")

		keyName := key.Content(det.src)
		if s, ok := jsast.StringValue(key, det.src); ok {
			keyName = s
		}

		if keyName != det.entryName() || value.Type() != jsast.TypeIdentifier {
			return "", false
		}

		return value.Content(det.src), true
	default:
		return "", false
	}
}

// expressionStatement handles side-effect registrations:
// require('chai/register-should'), require('chai').should(), chai.should()
// and should() after a named import.
func (det *detector) expressionStatement(stmt sitter.Node) error {
	children := jsast.NamedChildren(stmt)
	if len(children) != 1 {
		return nil
	}

	expr := jsast.Unparen(children[0])
	if expr.Type() != jsast.TypeCall {
		return nil
	}

	if spec, ok := det.requireArg(expr); ok && det.isRegister(spec) {
		det.binding.LocalName = det.entryName()

		return det.prune(stmt)
	}

	if det.entryName() != shouldEntryName {
		return nil
	}

	if det.isShouldInstall(expr) {
		return det.prune(stmt)
	}

	fn := jsast.Field(expr, "function")
	args := jsast.NamedChildren(jsast.Field(expr, "arguments"))

	if det.binding.LocalName != "" && len(args) == 0 && jsast.IsIdentifier(fn, det.src, det.binding.LocalName) {
		return det.prune(stmt)
	}

	return nil
}

// isShouldInstall matches require('chai').should() and <ns>.should().
func (det *detector) isShouldInstall(n sitter.Node) bool {
	if n.Type() != jsast.TypeCall || len(jsast.NamedChildren(jsast.Field(n, "arguments"))) != 0 {
		return false
	}

	fn := jsast.Field(n, "function")
	if fn.Type() != jsast.TypeMember || jsast.Field(fn, "property").Content(det.src) != shouldEntryName {
		return false
	}

	object := jsast.Unparen(jsast.Field(fn, "object"))

	return det.isRequireOf(object) || det.isNamespaceRef(object)
}

// isEntryAccess matches require('chai').expect and <ns>.expect.
func (det *detector) isEntryAccess(n sitter.Node) bool {
	if n.Type() != jsast.TypeMember || jsast.Field(n, "property").Content(det.src) != det.entryName() {
		return false
	}

	object := jsast.Unparen(jsast.Field(n, "object"))

	return det.isRequireOf(object) || det.isNamespaceRef(object)
}

func (det *detector) isNamespaceRef(n sitter.Node) bool {
	return det.binding.Namespace != "" && jsast.IsIdentifier(n, det.src, det.binding.Namespace)
}

func (det *detector) isRequireOf(n sitter.Node) bool {
	spec, ok := det.requireArg(n)

	return ok && det.isLibrary(spec)
}

// requireArg returns the literal module specifier of require('x').
func (det *detector) requireArg(n sitter.Node) (string, bool) {
	if n.Type() != jsast.TypeCall || !jsast.IsIdentifier(jsast.Field(n, "function"), det.src, requireFunc) {
		return "", false
	}

	args := jsast.NamedChildren(jsast.Field(n, "arguments"))
	if len(args) != 1 {
		return "", false
	}

	return jsast.StringValue(args[0], det.src)
}

// implicitUse looks for the dialect's global entry point.
func (det *detector) implicitUse(matcher *jsast.Matcher) (bool, error) {
	pattern := jsast.CalleeQuery
	if det.entryName() == shouldEntryName {
		pattern = jsast.PropertyQuery
	}

	found, err := matcher.Occurrences(pattern, det.doc.Root(), det.src, det.entryName())
	if err != nil {
		return false, fmt.Errorf("binding: implicit %s: %w", det.entryName(), err)
	}

	return len(found) > 0, nil
}

// rebuildBraces renders a brace list with the original's inner padding.
func rebuildBraces(original string, items []string) string {
	pad := ""
	if strings.HasPrefix(original, "{ ") || strings.HasPrefix(original, "{\n") {
		pad = " "
	}

	return "{" + pad + strings.Join(items, ", ") + pad + "}"
}
