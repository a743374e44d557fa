package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jestify/pkg/fixture"
	"github.com/Sumatoshi-tech/jestify/pkg/observability"
	"github.com/Sumatoshi-tech/jestify/pkg/report"
)

// ErrFixturesFailed is returned when at least one fixture case fails.
var ErrFixturesFailed = errors.New("fixture cases failed")

// NewFixturesCommand creates the fixtures command.
func NewFixturesCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "fixtures <dir>",
		Short: "Check the rewriter against paired input/output fixture files",
		Long: `Run every <case>.input.<ext> file in dir through the rewriter and compare
the result with <case>.output.<ext>. A case without an output file must stay
unchanged; <case>.options.yaml selects dialects and the container namespace.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := start(cmd, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx, span := sess.providers.Tracer.Start(cmd.Context(), "jestify.fixtures")
			defer span.End()

			outcomes, err := fixture.RunDir(ctx, args[0])
			if err != nil {
				return err
			}

			failed, err := report.NewPrinter(cmd.OutOrStdout(), !noColor).Fixtures(outcomes)
			if err != nil {
				return err
			}

			sess.providers.Logger.DebugContext(ctx, "fixtures done", "cases", len(outcomes), "failed", failed)

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrFixturesFailed, failed, len(outcomes))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
