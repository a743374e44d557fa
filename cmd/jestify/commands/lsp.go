package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jestify/pkg/lsp"
	"github.com/Sumatoshi-tech/jestify/pkg/observability"
)

// NewLSPCommand creates the language server command.
func NewLSPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start language server (LSP) for chai to Jest migration",
		Long: `Start a language server on stdio. Open JavaScript and TypeScript test files
get a hint on every chai assertion that can be rewritten, a quick fix per
assertion and a source.fixAll action rewriting the whole file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := start(cmd, observability.ModeLSP)
			if err != nil {
				return err
			}
			defer sess.close()

			red, err := observability.NewREDMetrics(sess.providers.Meter)
			if err != nil {
				return fmt.Errorf("red metrics: %w", err)
			}

			engine, err := sess.engine(cmd)
			if err != nil {
				return err
			}

			srv, err := lsp.NewServer(lsp.ServerDeps{
				Logger:  sess.providers.Logger,
				Metrics: red,
				Tracer:  sess.providers.Tracer,
				Engine:  engine,
				Timeout: sess.cfg.Runner.FileTimeout,
			})
			if err != nil {
				return err
			}

			return srv.Run()
		},
	}

	addDialectFlags(cmd)

	return cmd
}
