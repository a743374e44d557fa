// Package main provides the entry point for the jestify CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jestify/cmd/jestify/commands"
	"github.com/Sumatoshi-tech/jestify/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jestify",
		Short: "Migrate chai expect/should assertions to Jest",
		Long: `jestify rewrites chai assertion chains such as
  expect(x).to.be.true
  x.should.have.length(3)
into Jest matchers:
  expect(x).toBe(true)
  expect(x).toHaveLength(3)

Commands:
  rewrite   Rewrite files (dry-run diff by default)
  fixtures  Check the rewriter against input/output fixture pairs
  rules     Print the rule table
  mcp       MCP server for AI agents
  lsp       Language server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddPersistentFlags(rootCmd)

	rootCmd.AddCommand(commands.NewRewriteCommand())
	rootCmd.AddCommand(commands.NewFixturesCommand())
	rootCmd.AddCommand(commands.NewRulesCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(commands.NewLSPCommand())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
