package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/jestify/pkg/fixture"
	"github.com/Sumatoshi-tech/jestify/pkg/report"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
	"github.com/Sumatoshi-tech/jestify/pkg/rules"
	"github.com/Sumatoshi-tech/jestify/pkg/runner"
)

func TestUnified_SingleHunk(t *testing.T) {
	t.Parallel()

	got := report.Unified("f.js", []byte("a\nb\nc\n"), []byte("a\nB\nc\n"), report.DefaultContext)

	want := "--- a/f.js\n+++ b/f.js\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n"
	assert.Equal(t, want, got)
}

func TestUnified_Equal(t *testing.T) {
	t.Parallel()

	assert.Empty(t, report.Unified("f.js", []byte("same\n"), []byte("same\n"), 3))
}

func TestUnified_SeparateHunks(t *testing.T) {
	t.Parallel()

	before := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	after := "x\n2\n3\n4\n5\n6\n7\n8\n9\ny\n"

	got := report.Unified("f.js", []byte(before), []byte(after), 1)

	assert.Equal(t, 2, strings.Count(got, "@@ -"))
	assert.Contains(t, got, "@@ -1,2 +1,2 @@\n-1\n+x\n 2\n")
	assert.Contains(t, got, "@@ -9,2 +9,2 @@\n 9\n-10\n+y\n")
	assert.NotContains(t, got, " 5\n")
}

func TestUnified_MissingTrailingNewline(t *testing.T) {
	t.Parallel()

	got := report.Unified("f.js", []byte("a"), []byte("b"), 3)
	assert.Contains(t, got, "-a\n\\ No newline at end of file\n+b\n\\ No newline at end of file\n")
}

func TestPrinter_DiffColor(t *testing.T) {
	t.Parallel()

	var plain, colored bytes.Buffer

	require.NoError(t, report.NewPrinter(&plain, false).Diff("f.js", []byte("a\n"), []byte("b\n")))
	require.NoError(t, report.NewPrinter(&colored, true).Diff("f.js", []byte("a\n"), []byte("b\n")))

	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, plain.String(), "-a\n+b\n")
	assert.Contains(t, colored.String(), "\x1b[")
}

func sampleFiles(t *testing.T) []runner.File {
	t.Helper()

	engine, err := rewrite.New(rewrite.Options{})
	require.NoError(t, err)

	src := []byte("const expect = require('chai').expect;\nexpect(a).to.equal(1);\nexpect(a).to.be.bogus;\n")

	res, err := engine.Rewrite(context.Background(), "a.test.js", src)
	require.NoError(t, err)

	return []runner.File{
		{Path: "a.test.js", Original: src, Result: res, Size: int64(len(src))},
		{Path: "big.test.js", Skipped: runner.SkipTooLarge, Size: 2048},
	}
}

func TestPrinter_FilesAndSummary(t *testing.T) {
	t.Parallel()

	files := sampleFiles(t)

	var buf bytes.Buffer

	p := report.NewPrinter(&buf, false)
	require.NoError(t, p.Files(files, true))
	require.NoError(t, p.Summary(runner.Summarize(files)))

	out := buf.String()
	assert.Contains(t, out, "+expect(a).toBe(1);")
	assert.Contains(t, out, "a.test.js:3:1: unmatched-chain")
	assert.Contains(t, out, "toBe")
	assert.Contains(t, out, string(rewrite.UnmatchedChain))
}

func TestPrinter_Rules(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.NewPrinter(&buf, false).Rules(rules.Default()))

	out := buf.String()
	assert.Contains(t, out, "toBeWithin")
	assert.Contains(t, out, "unsupported")
	assert.Contains(t, out, "greaterThan")
}

func TestWriteRulesYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteRulesYAML(&buf, rules.Default()))

	var rows []report.RuleRow
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, len(rules.Default().Rules()))
	assert.Equal(t, "equal", rows[0].Verb)
	assert.Equal(t, "toBe", rows[0].Matcher)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf, sampleFiles(t)))

	var doc report.RunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	require.Len(t, doc.Files, 2)
	assert.Equal(t, "changed", doc.Files[0].Outcome)
	assert.Contains(t, doc.Files[0].Diff, "+expect(a).toBe(1);")
	require.Len(t, doc.Files[0].Rewrites, 1)
	assert.Equal(t, "skipped", doc.Files[1].Outcome)
	assert.Equal(t, 1, doc.Summary.Changed)
	assert.Equal(t, 1, doc.Summary.Skipped)
}

func TestPrinter_Fixtures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	write("good.input.js", "import {expect} from 'chai';\nexpect(a).to.be.true;\n")
	write("good.output.js", "expect(a).toBe(true);\n")
	write("bad.input.js", "import {expect} from 'chai';\nexpect(a).to.be.false;\n")
	write("bad.output.js", "expect(a).toBe(true);\n")

	outcomes, err := fixture.RunDir(context.Background(), dir)
	require.NoError(t, err)

	var buf bytes.Buffer

	failed, err := report.NewPrinter(&buf, false).Fixtures(outcomes)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	out := buf.String()
	assert.Contains(t, out, "PASS good")
	assert.Contains(t, out, "FAIL bad")
	assert.Contains(t, out, "+expect(a).toBe(false);")
	assert.Contains(t, out, "2 cases, 1 failed")
}
