package fixture_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jestify/pkg/fixture"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "b.input.js", "x.should.be.ok;\n")
	write(t, dir, "b.output.js", "expect(x).toBeTruthy();\n")
	write(t, dir, "sub/a.input.ts", "const a = 1;\n")
	write(t, dir, "sub/a.options.yaml", "dialects: [should]\nnamespace: jasmine\nrequire_binding: true\n")
	write(t, dir, "README.md", "not a case\n")

	cases, err := fixture.Load(dir)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "b", cases[0].Name)
	assert.NotEmpty(t, cases[0].OutputPath)

	assert.Equal(t, "sub/a", cases[1].Name)
	assert.Empty(t, cases[1].OutputPath)
	assert.Equal(t, []string{"should"}, cases[1].Options.Dialects)
	assert.Equal(t, "jasmine", cases[1].Options.Namespace)
	assert.True(t, cases[1].Options.RequireBinding)
}

func TestLoad_Empty(t *testing.T) {
	t.Parallel()

	_, err := fixture.Load(t.TempDir())
	require.ErrorIs(t, err, fixture.ErrNoCases)
}

func TestLoad_BadOptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "a.input.js", "x;\n")
	write(t, dir, "a.options.yaml", "dialects: {\n")

	_, err := fixture.Load(dir)
	require.Error(t, err)
}

func TestRunDir_ReportsMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "good.input.js", "x.should.be.ok;\n")
	write(t, dir, "good.output.js", "expect(x).toBeTruthy();\n")
	write(t, dir, "bad.input.js", "x.should.be.ok;\n")
	write(t, dir, "bad.output.js", "expect(x).toBe(true);\n")
	write(t, dir, "changes.input.js", "x.should.be.ok;\n")
	write(t, dir, "skipped.input.js", "x.should.be.ok;\n")
	write(t, dir, "skipped.options.yaml", "skip: pending support\n")

	outcomes, err := fixture.RunDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	byName := make(map[string]fixture.Outcome, len(outcomes))
	for _, o := range outcomes {
		byName[o.Case.Name] = o
	}

	assert.True(t, byName["good"].Passed)
	assert.False(t, byName["bad"].Passed)
	assert.Equal(t, "expect(x).toBeTruthy();\n", string(byName["bad"].Got))
	assert.False(t, byName["changes"].Passed, "a case without output must stay unchanged")
	assert.True(t, byName["skipped"].Passed)
	assert.Equal(t, "pending support", byName["skipped"].Skipped)

	assert.Equal(t, 2, fixture.Failed(outcomes))
}

func TestRun_UnknownDialect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "a.input.js", "x;\n")
	write(t, dir, "a.options.yaml", "dialects: [tdd]\n")

	outcomes, err := fixture.RunDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	assert.Equal(t, 1, fixture.Failed(outcomes))
}
