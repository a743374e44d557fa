package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jestify/pkg/report"
	"github.com/Sumatoshi-tech/jestify/pkg/rules"
)

// Output formats of the rules command.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the chai to Jest rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := rules.Default()

			switch format {
			case FormatTable:
				return report.NewPrinter(cmd.OutOrStdout(), false).Rules(table)
			case FormatYAML:
				return report.WriteRulesYAML(cmd.OutOrStdout(), table)
			default:
				return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatTable, "Output format: table, yaml")

	return cmd
}
