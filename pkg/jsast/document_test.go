package jsast_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
)

func parse(t *testing.T, filename, src string) *jsast.Document {
	t.Helper()

	doc, err := jsast.NewParser().Parse(context.Background(), filename, []byte(src))
	require.NoError(t, err)
	t.Cleanup(doc.Close)

	return doc
}

func TestParser_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	_, err := jsast.NewParser().Parse(context.Background(), "notes.txt", []byte("x"))
	require.ErrorIs(t, err, jsast.ErrUnsupportedFile)
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"a.js":       jsast.LangJavaScript,
		"a.spec.mjs": jsast.LangJavaScript,
		"a.CJS":      jsast.LangJavaScript,
		"a.ts":       jsast.LangTypeScript,
		"a.tsx":      jsast.LangTSX,
		"a.go":       "",
		"Makefile":   "",
	}

	for name, want := range tests {
		assert.Equal(t, want, jsast.LanguageForFile(name), name)
	}

	assert.Len(t, jsast.Extensions(), 8)
}

func TestDocument_ReplaceAndRender(t *testing.T) {
	t.Parallel()

	src := "foo(bar(1), 2);\n"
	doc := parse(t, "a.js", src)

	stmt := jsast.NamedChildren(doc.Root())[0]
	call := jsast.NamedChildren(stmt)[0]
	inner := jsast.NamedChildren(jsast.Field(call, "arguments"))[0]

	assert.Equal(t, "bar(1)", doc.Text(inner))
	require.NoError(t, doc.Replace(inner, "baz"))
	assert.Equal(t, "foo(baz, 2)", doc.Render(call))
	assert.Equal(t, "foo(bar(1), 2)", doc.Text(call))

	// Outer edit built from the rendered inner edit subsumes it.
	require.NoError(t, doc.Replace(call, "qux("+doc.RenderRange(int(inner.StartByte()), int(inner.EndByte()))+")"))
	assert.Equal(t, "qux(baz);\n", string(doc.Bytes()))
	assert.True(t, doc.Edited())
}

func TestDocument_OverlappingEdit(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.js", "foo(bar(1), 2);\n")

	require.NoError(t, doc.ReplaceRange(0, 8, "x"))
	require.ErrorIs(t, doc.ReplaceRange(4, 10, "y"), jsast.ErrOverlappingEdit)
	require.ErrorIs(t, doc.ReplaceRange(2, 3, "y"), jsast.ErrOverlappingEdit)
	require.ErrorIs(t, doc.ReplaceRange(3, 100, "y"), jsast.ErrEditOutOfRange)
}

func TestDocument_PruneWholeLine(t *testing.T) {
	t.Parallel()

	src := "import {expect} from 'chai';\n  const a = 1;\nfoo(a);\n"
	doc := parse(t, "a.js", src)

	stmts := jsast.NamedChildren(doc.Root())
	require.Len(t, stmts, 3)

	require.NoError(t, doc.Prune(stmts[0]))
	require.NoError(t, doc.Prune(stmts[1]))
	assert.Equal(t, "foo(a);\n", string(doc.Bytes()))
}

func TestDocument_PruneSharedLine(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.js", "a(); b();\n")
	stmts := jsast.NamedChildren(doc.Root())

	require.NoError(t, doc.Prune(stmts[1]))
	assert.Equal(t, "a(); \n", string(doc.Bytes()))
}

func TestDocument_UnchangedBytes(t *testing.T) {
	t.Parallel()

	src := "let x = 1\n"
	doc := parse(t, "a.js", src)

	assert.False(t, doc.Edited())
	assert.Equal(t, src, string(doc.Bytes()))
	assert.False(t, doc.Covered(0, 1))
}

func TestPosition_UTF16Columns(t *testing.T) {
	t.Parallel()

	src := []byte("a\né\U0001F600x")

	line, col := jsast.Position(src, 2)
	assert.Equal(t, 1, line)
	assert.Equal(t, 0, col)

	// e-acute is one UTF-16 unit, the emoji is two.
	line, col = jsast.Position(src, len(src)-1)
	assert.Equal(t, 1, line)
	assert.Equal(t, 3, col)
}

func TestDocument_Indentation(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.js", "function f() {\n\t  g();\n}\n")

	assert.Equal(t, "\t  ", doc.Indentation(18))
	assert.Empty(t, doc.Indentation(0))
}

func TestStringValue(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.ts", "f('chai', \"a\\n\", '');\n")

	call := jsast.NamedChildren(jsast.NamedChildren(doc.Root())[0])[0]
	args := jsast.NamedChildren(jsast.Field(call, "arguments"))
	require.Len(t, args, 3)

	value, ok := jsast.StringValue(args[0], doc.Source())
	assert.True(t, ok)
	assert.Equal(t, "chai", value)

	_, ok = jsast.StringValue(args[1], doc.Source())
	assert.False(t, ok)

	value, ok = jsast.StringValue(args[2], doc.Source())
	assert.True(t, ok)
	assert.Empty(t, value)
}

func TestIsPure(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.js", "f(a, this.b.c, (x), 1, g(), a[0], a[i()]);\n")

	call := jsast.NamedChildren(jsast.NamedChildren(doc.Root())[0])[0]
	args := jsast.NamedChildren(jsast.Field(call, "arguments"))

	want := []bool{true, true, true, true, false, true, false}
	require.Len(t, args, len(want))

	for idx, arg := range args {
		assert.Equal(t, want[idx], jsast.IsPure(arg, doc.Source()), doc.Text(arg))
	}
}

func TestMatcher_Occurrences(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a.js", "x.should.equal(1);\ny.should.be.ok;\nchai.use(z);\n")

	matcher, err := jsast.NewMatcher(doc.Language)
	require.NoError(t, err)

	found, err := matcher.Occurrences(jsast.PropertyQuery, doc.Root(), doc.Source(), "should")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	ids, err := matcher.Occurrences(jsast.IdentifierQuery, doc.Root(), doc.Source(), "chai")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "chai", string(doc.Source()[ids[0].Start:ids[0].End]))

	_, misses := matcher.CacheStats()
	assert.Equal(t, int64(2), misses)
}
