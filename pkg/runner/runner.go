// Package runner applies the rewrite engine to files on disk. It walks the
// requested paths, filters out vendored, hidden and oversized files, and
// rewrites the rest on a bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/src-d/enry/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
	"github.com/Sumatoshi-tech/jestify/pkg/observability"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
)

// ErrNoEngine is returned by New without an engine.
var ErrNoEngine = errors.New("runner: engine is required")

// Skip reasons.
const (
	SkipTooLarge = "too-large"
	SkipBinary   = "binary"
)

// Options configures a Runner.
type Options struct {
	Engine  *rewrite.Engine
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.RewriteMetrics

	// Exclude lists directory names never descended into.
	Exclude []string

	// FileTimeout bounds a single file pass. Zero means no bound.
	FileTimeout time.Duration

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize uint64

	// Workers caps concurrent file passes; zero means GOMAXPROCS.
	Workers int

	// Write replaces changed files in place instead of reporting only.
	Write bool
}

// File is the outcome for one path.
type File struct {
	Err      error           `json:"-"`
	Result   *rewrite.Result `json:"result,omitempty"`
	Path     string          `json:"path"`
	Language string          `json:"language,omitempty"`
	Skipped  string          `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
	Original []byte          `json:"-"`
	Size     int64           `json:"size"`
	Duration time.Duration   `json:"duration_ns"`
	Written  bool            `json:"written"`
}

// Changed reports whether the engine rewrote anything in the file.
func (f File) Changed() bool {
	return f.Result != nil && f.Result.Changed
}

// Outcome classifies the file for metrics and summaries.
func (f File) Outcome() string {
	switch {
	case f.Err != nil:
		return observability.OutcomeFailed
	case f.Skipped != "":
		return observability.OutcomeSkipped
	case f.Changed():
		return observability.OutcomeChanged
	default:
		return observability.OutcomeUnchanged
	}
}

// Runner rewrites trees of files.
type Runner struct {
	opts Options
}

// New builds a Runner, filling in no-op logging and tracing.
func New(opts Options) (*Runner, error) {
	if opts.Engine == nil {
		return nil, ErrNoEngine
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.Tracer == nil {
		opts.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Runner{opts: opts}, nil
}

// Collect expands paths into the sorted list of files to rewrite. Files
// named explicitly must be supported; directories are filtered silently.
func (r *Runner) Collect(paths []string) ([]string, error) {
	seen := make(map[string]bool)

	var files []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}

		if !info.IsDir() {
			if !r.opts.Engine.Supports(root) {
				return nil, fmt.Errorf("runner: %s: %w", root, jsast.ErrUnsupportedFile)
			}

			add(filepath.Clean(root))

			continue
		}

		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if p != root && r.excluded(d.Name()) {
					return filepath.SkipDir
				}

				return nil
			}

			if !d.Type().IsRegular() || !r.opts.Engine.Supports(p) {
				return nil
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr == nil && enry.IsVendor(filepath.ToSlash(rel)) {
				return nil
			}

			add(p)

			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("runner: walk %s: %w", root, walkErr)
		}
	}

	sort.Strings(files)

	return files, nil
}

func (r *Runner) excluded(name string) bool {
	return slices.Contains(r.opts.Exclude, name) || enry.IsDotFile(name) || enry.IsVendor(name+"/")
}

// Run rewrites every file under paths. Per-file failures are reported in
// the returned slice; only walk errors and cancellation fail the run.
func (r *Runner) Run(ctx context.Context, paths []string) ([]File, error) {
	files, err := r.Collect(paths)
	if err != nil {
		return nil, err
	}

	ctx, span := r.opts.Tracer.Start(ctx, "jestify.run",
		trace.WithAttributes(attribute.Int("runner.files", len(files))))
	defer span.End()

	r.opts.Logger.DebugContext(ctx, "rewriting files", "files", len(files), "workers", r.opts.Workers)

	results := make([]File, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = File{Path: path, Err: err, Error: err.Error()}

				return err
			}

			results[i] = r.File(gctx, path)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())

		return results, fmt.Errorf("runner: %w", err)
	}

	return results, nil
}

// File rewrites a single path.
func (r *Runner) File(ctx context.Context, path string) File {
	start := time.Now()
	ctx = observability.WithFile(ctx, path)

	ctx, span := r.opts.Tracer.Start(ctx, "jestify.file",
		trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	if r.opts.FileTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.opts.FileTimeout)
		defer cancel()
	}

	out := r.process(ctx, path)
	out.Duration = time.Since(start)

	if out.Err != nil {
		out.Error = out.Err.Error()
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Error)
		r.opts.Logger.WarnContext(ctx, "rewrite failed", "error", out.Err)
	} else {
		attrs := []any{"outcome", out.Outcome(), "duration", out.Duration}
		if out.Result != nil {
			attrs = append(attrs, "rewrites", len(out.Result.Rewrites), "diagnostics", len(out.Result.Diagnostics))
		}

		if out.Skipped != "" {
			attrs = append(attrs, "reason", out.Skipped)
		}

		r.opts.Logger.DebugContext(ctx, "file processed", attrs...)
	}

	if out.Result != nil {
		span.SetAttributes(
			attribute.Int("jestify.rewrites", len(out.Result.Rewrites)),
			attribute.Int("jestify.diagnostics", len(out.Result.Diagnostics)),
		)
	}

	r.record(ctx, out)

	return out
}

func (r *Runner) process(ctx context.Context, path string) File {
	out := File{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		out.Err = fmt.Errorf("stat: %w", err)

		return out
	}

	out.Size = info.Size()

	if r.opts.MaxFileSize > 0 && uint64(info.Size()) > r.opts.MaxFileSize {
		out.Skipped = SkipTooLarge
		r.opts.Logger.DebugContext(ctx, "file too large",
			"size", humanize.Bytes(uint64(info.Size())), "limit", humanize.Bytes(r.opts.MaxFileSize))

		return out
	}

	src, err := os.ReadFile(path)
	if err != nil {
		out.Err = fmt.Errorf("read: %w", err)

		return out
	}

	if enry.IsBinary(src) {
		out.Skipped = SkipBinary

		return out
	}

	out.Original = src
	out.Language = enry.GetLanguage(filepath.Base(path), src)

	res, err := r.opts.Engine.Rewrite(ctx, path, src)
	if err != nil {
		out.Err = err

		return out
	}

	out.Result = res

	if r.opts.Write && res.Changed {
		if err := os.WriteFile(path, res.Output, info.Mode().Perm()); err != nil {
			out.Err = fmt.Errorf("write: %w", err)

			return out
		}

		out.Written = true
	}

	return out
}

func (r *Runner) record(ctx context.Context, f File) {
	if r.opts.Metrics == nil {
		return
	}

	r.opts.Metrics.RecordFile(ctx, f.Outcome(), f.Duration)

	if f.Result == nil {
		return
	}

	for _, rw := range f.Result.Rewrites {
		for _, m := range rw.Matchers {
			r.opts.Metrics.RecordRewrite(ctx, rw.Dialect, m)
		}
	}

	for _, d := range f.Result.Diagnostics {
		r.opts.Metrics.RecordDiagnostic(ctx, d.Dialect, string(d.Kind))
	}
}
