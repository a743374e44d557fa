package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jestify/pkg/observability"
	"github.com/Sumatoshi-tech/jestify/pkg/report"
	"github.com/Sumatoshi-tech/jestify/pkg/runner"
)

// Output formats of the rewrite command.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrInvalidTimeout is returned for a non-positive or unparsable --timeout.
var ErrInvalidTimeout = errors.New("invalid --timeout")

// colorAuto follows the terminal; see fatih/color.NoColor.
const colorAuto = "auto"

// RewriteCommand holds the flags of the rewrite command.
type RewriteCommand struct {
	format      string
	colorMode   string
	timeout     string
	workers     int
	write       bool
	diagnostics bool
	summary     bool
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand() *cobra.Command {
	rc := &RewriteCommand{}

	cmd := &cobra.Command{
		Use:   "rewrite [paths...]",
		Short: "Rewrite chai expect/should assertions into Jest matchers",
		Long: `Rewrite chai expect/should assertion chains in JavaScript and TypeScript
test files into Jest expect(...).matcher(...) calls.

Directories are walked recursively; node_modules, vendored and hidden
directories are skipped. By default nothing is written: a unified diff of
every changed file is printed. Use --write to update files in place.`,
		Args: cobra.ArbitraryArgs,
		RunE: rc.run,
	}

	cmd.Flags().BoolVarP(&rc.write, "write", "w", false, "Write changed files in place")
	cmd.Flags().StringVar(&rc.format, "format", FormatText, "Output format: text, json")
	cmd.Flags().IntVar(&rc.workers, "workers", 0, "Parallel file passes (0 = config, then GOMAXPROCS)")
	cmd.Flags().StringVar(&rc.timeout, "timeout", "", "Per-file time limit, e.g. 10s (default: config)")
	cmd.Flags().BoolVar(&rc.diagnostics, "diagnostics", true, "Print chains that were left untouched")
	cmd.Flags().BoolVar(&rc.summary, "summary", true, "Print a summary table after the diffs")
	cmd.Flags().StringVar(&rc.colorMode, "color", colorAuto, "Colorize output: auto, always, never")
	addDialectFlags(cmd)

	return cmd
}

func (rc *RewriteCommand) run(cmd *cobra.Command, args []string) error {
	if rc.format != FormatText && rc.format != FormatJSON {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, rc.format)
	}

	sess, err := start(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer sess.close()

	if cmd.Flags().Changed("workers") {
		sess.cfg.Runner.Workers = rc.workers
	}

	if rc.timeout != "" {
		if err := applyTimeout(sess, rc.timeout); err != nil {
			return err
		}
	}

	engine, err := sess.engine(cmd)
	if err != nil {
		return err
	}

	maxSize, err := sess.cfg.MaxFileSizeBytes()
	if err != nil {
		return err
	}

	metrics, err := observability.NewRewriteMetrics(sess.providers.Meter)
	if err != nil {
		return fmt.Errorf("rewrite metrics: %w", err)
	}

	r, err := runner.New(runner.Options{
		Engine:      engine,
		Logger:      sess.providers.Logger,
		Tracer:      sess.providers.Tracer,
		Metrics:     metrics,
		Exclude:     sess.cfg.Runner.Exclude,
		FileTimeout: sess.cfg.Runner.FileTimeout,
		MaxFileSize: maxSize,
		Workers:     sess.cfg.Runner.Workers,
		Write:       rc.write,
	})
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	files, err := r.Run(cmd.Context(), paths)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if rc.format == FormatJSON {
		return report.WriteJSON(out, files)
	}

	printer := report.NewPrinter(out, rc.colored(out))

	if err := printer.Files(files, rc.diagnostics); err != nil {
		return err
	}

	if !rc.summary {
		return nil
	}

	return printer.Summary(runner.Summarize(files))
}

// colored resolves --color against the output stream.
func (rc *RewriteCommand) colored(out io.Writer) bool {
	switch rc.colorMode {
	case "always":
		return true
	case "never":
		return false
	default:
		f, ok := out.(*os.File)

		return ok && f == os.Stdout && !color.NoColor
	}
}

func applyTimeout(sess *session, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimeout, err)
	}

	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, raw)
	}

	sess.cfg.Runner.FileTimeout = d

	return nil
}
