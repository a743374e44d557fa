package rewrite_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/fixture"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
)

func newEngine(t *testing.T, names ...string) *rewrite.Engine {
	t.Helper()

	var opts rewrite.Options

	for _, name := range names {
		opts.Dialects = append(opts.Dialects, dialect.MustNew(name))
	}

	engine, err := rewrite.New(opts)
	require.NoError(t, err)

	return engine
}

func run(t *testing.T, engine *rewrite.Engine, src string) *rewrite.Result {
	t.Helper()

	res, err := engine.Rewrite(context.Background(), "case.test.js", []byte(src))
	require.NoError(t, err)

	return res
}

func TestFixtures(t *testing.T) {
	t.Parallel()

	outcomes, err := fixture.RunDir(context.Background(), "testdata")
	require.NoError(t, err)
	require.NotEmpty(t, outcomes)

	for _, o := range outcomes {
		t.Run(o.Case.Name, func(t *testing.T) {
			t.Parallel()

			require.NoError(t, o.Err)
			assert.Equal(t, string(o.Want), string(o.Got))
			assert.True(t, o.Passed)
		})
	}
}

func TestFixtures_Idempotent(t *testing.T) {
	t.Parallel()

	outputs, err := filepath.Glob(filepath.Join("testdata", "*.output.*"))
	require.NoError(t, err)
	require.NotEmpty(t, outputs)

	engine := newEngine(t)

	for _, path := range outputs {
		src, err := os.ReadFile(path)
		require.NoError(t, err)

		res, err := engine.Rewrite(context.Background(), path, src)
		require.NoError(t, err)

		assert.False(t, res.Changed, path)
		assert.Equal(t, string(src), string(res.Output), path)
	}
}

func TestRewrite_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"expect([1,2,3]).to.include.members([3,2])", "expect([1,2,3]).toEqual(jasmine.arrayContaining([3,2]))"},
		{"expect([5,2]).to.not.have.members([5,2,1])", "expect([5,2]).not.toEqual(jasmine.arrayContaining([5,2,1]))"},
		{"expect([[1],[2]]).to.deep.include([1])", "expect([[1],[2]]).toContainEqual([1])"},
		{"expect(fn).to.throw(ReferenceError, /bad function/)", "expect(fn).toThrowError(ReferenceError, /bad function/)"},
		{"x.should.equal(PLACEHOLDER)", "expect(x).toBe(PLACEHOLDER)"},
		{"x.should.not.equal(PLACEHOLDER)", "expect(x).not.toBe(PLACEHOLDER)"},
	}

	engine := newEngine(t)

	for _, tt := range tests {
		res := run(t, engine, tt.in+";\n")

		assert.True(t, res.Changed, tt.in)
		assert.Equal(t, tt.want+";\n", string(res.Output))
	}
}

func TestRewrite_NegationSymmetry(t *testing.T) {
	t.Parallel()

	chains := []string{
		"equal(1)", "deep.equal({a: 1})", "eql([1])", "above(1)", "at.least(1)", "below(1)",
		"at.most(1)", "within(1, 2)", "have.length.above(1)", "closeTo(1, 0.5)", "be.a('string')",
		"be.an('null')", "be.instanceof(Foo)", "be.ok", "be.true", "be.false", "be.null",
		"be.undefined", "be.NaN", "exist", "be.empty", "be.sealed", "be.finite", "have.lengthOf(2)",
		"match(/x/)", "have.string('x')", "include(1)", "include([1])", "include({a: 1})",
		"deep.include({a: 1})", "have.members([1])", "have.ordered.members([1])", "have.keys('a')",
		"have.property('a')", "have.property('a', 1)", "have.own.property('a')",
		"have.ownPropertyDescriptor('a')", "throw()", "throw(TypeError)", "throw(TypeError, /x/)",
		"satisfy(isOdd)", "be.oneOf([1])",
	}

	engine := newEngine(t, dialect.Expect)

	for _, c := range chains {
		positive := run(t, engine, "expect(subject).to."+c+";\n")
		negative := run(t, engine, "expect(subject).to.not."+c+";\n")

		require.True(t, positive.Changed, c)
		require.True(t, negative.Changed, c)

		pos := string(positive.Output)
		neg := string(negative.Output)

		assert.Equal(t, 1, strings.Count(neg, ".not."), c)
		assert.Equal(t, pos, strings.Replace(neg, ".not.", ".", 1), c)
	}
}

func TestRewrite_SubjectNotDuplicated(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, dialect.Expect)

	res := run(t, engine, "expect(sideEffect()).to.have.property('a').that.equals(1);\n")
	assert.False(t, res.Changed)
	assert.Equal(t, 1, strings.Count(string(res.Output), "sideEffect()"))

	res = run(t, engine, "expect(sideEffect()).to.be.closeTo(1, 0.1);\n")
	assert.Equal(t, "expect(Math.abs(sideEffect() - 1)).toBeLessThanOrEqual(0.1);\n", string(res.Output))
}

func TestRewrite_UnmatchedChainPreserved(t *testing.T) {
	t.Parallel()

	src := "import { expect } from 'chai';\n\n  expect( spy ).to.have.been.calledOnce ;\nexpect(a).to.equal(1);\n"
	res := run(t, newEngine(t, dialect.Expect), src)

	require.True(t, res.Changed)
	assert.Equal(t, "\n  expect( spy ).to.have.been.calledOnce ;\nexpect(a).toBe(1);\n", string(res.Output))

	kinds := diagnosticKinds(res)
	assert.Contains(t, kinds, rewrite.UnmatchedChain)
}

func TestRewrite_UnchangedReturnsInput(t *testing.T) {
	t.Parallel()

	src := "import { expect } from 'chai';\nexpect(a).to.be.sparkly;\n"
	res := run(t, newEngine(t), src)

	assert.False(t, res.Changed)
	assert.Equal(t, src, string(res.Output))
	assert.Empty(t, res.Rewrites)
}

func TestRewrite_Diagnostics(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		"expect(a).to.equal(1, 2, 3);",
		"expect(a, 'why').to.be.ok;",
		"expect(b).to.be.ok.and.be.extra;",
		"foo(expect(a).to.be.a('string').and.be.ok);",
		"expect(c).to.be.rainbow(1);",
		"",
	}, "\n")

	res := run(t, newEngine(t, dialect.Expect), src)
	kinds := diagnosticKinds(res)

	assert.Contains(t, kinds, rewrite.NoBinding)
	assert.Contains(t, kinds, rewrite.UnsupportedArgumentShape)
	assert.Contains(t, kinds, rewrite.DroppedMessage)
	assert.Contains(t, kinds, rewrite.MalformedChain)
	assert.Contains(t, kinds, rewrite.UnmatchedChain)

	for _, d := range res.Diagnostics {
		if d.Kind == rewrite.UnsupportedArgumentShape {
			assert.Equal(t, 0, d.Line)
			assert.Contains(t, d.Message, "for verb equal")
		}
	}
}

func TestRewrite_SuggestsNearbyWords(t *testing.T) {
	t.Parallel()

	res := run(t, newEngine(t, dialect.Expect), "expect(a).to.be.ture;\nexpect(a).to.eqaul(1);\n")

	var messages []string

	for _, d := range res.Diagnostics {
		if d.Kind == rewrite.UnmatchedChain {
			messages = append(messages, d.Message)
		}
	}

	require.Len(t, messages, 2)
	assert.Contains(t, messages[0], "did you mean true?")
	assert.Contains(t, messages[1], "no rule for verb eqaul; did you mean")
}

func TestRewrite_RecordsRewrites(t *testing.T) {
	t.Parallel()

	res := run(t, newEngine(t, dialect.Expect), "// header\n  expect(a).to.deep.equal(b);\n")

	require.Len(t, res.Rewrites, 1)

	rw := res.Rewrites[0]
	assert.Equal(t, 1, rw.Line)
	assert.Equal(t, 2, rw.Column)
	assert.Equal(t, "expect(a).to.deep.equal(b)", rw.Original)
	assert.Equal(t, "expect(a).toEqual(b)", rw.Replacement)
	assert.Equal(t, []string{"equal"}, rw.Verbs)
	assert.Equal(t, []string{"toEqual"}, rw.Matchers)
}

func TestRewrite_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t).Rewrite(ctx, "a.js", []byte("x.should.be.ok;\n"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRewrite_UnsupportedFile(t *testing.T) {
	t.Parallel()

	_, err := newEngine(t).Rewrite(context.Background(), "a.py", []byte("x = 1\n"))
	require.Error(t, err)
}

func TestRewrite_ConcurrentUse(t *testing.T) {
	t.Parallel()

	engine := newEngine(t)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := engine.Rewrite(context.Background(), "c.js", []byte("x.should.be.ok;\n"))
			if assert.NoError(t, err) {
				assert.Equal(t, "expect(x).toBeTruthy();\n", string(res.Output))
			}
		}()
	}

	wg.Wait()
}

func TestNew_RejectsBadDialect(t *testing.T) {
	t.Parallel()

	_, err := rewrite.New(rewrite.Options{Dialects: []dialect.Dialect{{Name: "assert"}}})
	require.ErrorIs(t, err, dialect.ErrUnknownDialect)

	_, err = rewrite.New(rewrite.Options{Dialects: []dialect.Dialect{}})
	require.ErrorIs(t, err, rewrite.ErrNoDialects)
}

func diagnosticKinds(res *rewrite.Result) []rewrite.Kind {
	kinds := make([]rewrite.Kind, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		kinds = append(kinds, d.Kind)
	}

	return kinds
}
