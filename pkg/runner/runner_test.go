package runner_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
	"github.com/Sumatoshi-tech/jestify/pkg/observability"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
	"github.com/Sumatoshi-tech/jestify/pkg/runner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	chaiSource = "const expect = require('chai').expect;\nexpect(a).to.equal(1);\n"
	jestSource = "expect(a).toBe(1);\n"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return root
}

func newRunner(t *testing.T, mutate func(*runner.Options)) *runner.Runner {
	t.Helper()

	engine, err := rewrite.New(rewrite.Options{})
	require.NoError(t, err)

	opts := runner.Options{Engine: engine, Workers: 2, FileTimeout: 10 * time.Second}
	if mutate != nil {
		mutate(&opts)
	}

	r, err := runner.New(opts)
	require.NoError(t, err)

	return r
}

func TestNew_RequiresEngine(t *testing.T) {
	t.Parallel()

	_, err := runner.New(runner.Options{})
	require.ErrorIs(t, err, runner.ErrNoEngine)
}

func TestCollect_Filters(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.test.js":                  chaiSource,
		"src/b.spec.ts":              chaiSource,
		"src/c.test.tsx":             chaiSource,
		"README.md":                  "# docs",
		"node_modules/lib/index.js":  chaiSource,
		".cache/d.js":                chaiSource,
		"fixtures/skip/e.js":         chaiSource,
		"vendor/jquery/jquery.js":    chaiSource,
		"src/nested/deeper/f.mjs":    chaiSource,
		"src/nested/deeper/data.bin": "\x00\x01",
	})

	r := newRunner(t, func(o *runner.Options) { o.Exclude = []string{"skip"} })

	files, err := r.Collect([]string{root})
	require.NoError(t, err)

	rel := make([]string, 0, len(files))
	for _, f := range files {
		p, relErr := filepath.Rel(root, f)
		require.NoError(t, relErr)
		rel = append(rel, filepath.ToSlash(p))
	}

	assert.Equal(t, []string{"a.test.js", "src/b.spec.ts", "src/c.test.tsx", "src/nested/deeper/f.mjs"}, rel)
}

func TestCollect_ExplicitFiles(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.js": chaiSource, "notes.txt": "x"})
	r := newRunner(t, nil)

	files, err := r.Collect([]string{filepath.Join(root, "a.js"), filepath.Join(root, "a.js")})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = r.Collect([]string{filepath.Join(root, "notes.txt")})
	require.ErrorIs(t, err, jsast.ErrUnsupportedFile)

	_, err = r.Collect([]string{filepath.Join(root, "missing.js")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_DryRunLeavesFiles(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.test.js": chaiSource, "b.test.js": jestSource})
	r := newRunner(t, nil)

	files, err := r.Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.True(t, files[0].Changed())
	assert.Equal(t, jestSource, string(files[0].Result.Output))
	assert.Equal(t, chaiSource, string(files[0].Original))
	assert.False(t, files[0].Written)
	assert.Equal(t, observability.OutcomeUnchanged, files[1].Outcome())

	onDisk, err := os.ReadFile(filepath.Join(root, "a.test.js"))
	require.NoError(t, err)
	assert.Equal(t, chaiSource, string(onDisk))

	summary := runner.Summarize(files)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Rewrites)
	assert.Equal(t, 1, summary.Matchers["toBe"])
	assert.Equal(t, uint64(len(chaiSource)+len(jestSource)), summary.Bytes)
}

func TestRun_WriteReplacesChangedFiles(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.test.js": chaiSource})

	var logs bytes.Buffer

	r := newRunner(t, func(o *runner.Options) {
		o.Write = true
		o.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	})

	files, err := r.Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Written)

	onDisk, err := os.ReadFile(filepath.Join(root, "a.test.js"))
	require.NoError(t, err)
	assert.Equal(t, jestSource, string(onDisk))
	assert.Contains(t, logs.String(), "outcome=changed")

	again, err := r.Run(context.Background(), []string{root})
	require.NoError(t, err)
	assert.False(t, again[0].Changed())
	assert.Equal(t, 1, runner.Summarize(files).Written)
}

func TestRun_SkipsLargeFiles(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.test.js": chaiSource})
	r := newRunner(t, func(o *runner.Options) { o.MaxFileSize = 8 })

	files, err := r.Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, runner.SkipTooLarge, files[0].Skipped)
	assert.Nil(t, files[0].Result)
	assert.Equal(t, 1, runner.Summarize(files).Skipped)
}

func TestRun_RecordsMetrics(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(context.Background(), observability.Config{
		ServiceName: "jestify-test",
		Prometheus:  true,
		LogWriter:   &bytes.Buffer{},
	})
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	metrics, err := observability.NewRewriteMetrics(providers.Meter)
	require.NoError(t, err)

	root := writeTree(t, map[string]string{"a.test.js": chaiSource})
	r := newRunner(t, func(o *runner.Options) {
		o.Metrics = metrics
		o.Tracer = providers.Tracer
	})

	_, err = r.Run(context.Background(), []string{root})
	require.NoError(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.test.js": chaiSource, "b.test.js": chaiSource})
	r := newRunner(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files, err := r.Run(ctx, []string{root})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, files, 2)

	for _, f := range files {
		assert.Equal(t, observability.OutcomeFailed, f.Outcome())
	}

	onDisk, err := os.ReadFile(filepath.Join(root, "a.test.js"))
	require.NoError(t, err)
	assert.Equal(t, chaiSource, string(onDisk))
}
