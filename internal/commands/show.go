package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/proforma/internal/model"
	"github.com/cleared-dev/proforma/internal/report"
	"github.com/cleared-dev/proforma/internal/statement"
)

func newShowCommand() *cobra.Command {
	var baseline string
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "show <sheet.json>",
		Short: "Print a balance sheet as a table",
		Long: `Print a balance sheet as a table.

With --baseline the sheet is shown next to the statement it was derived from,
followed by its applied and unresolved updates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := statement.LoadSheet(args[0], maxDepth)
			if err != nil {
				return err
			}
			if baseline == "" {
				return report.Render(cmd.OutOrStdout(), sheet, nil)
			}
			original, err := statement.LoadSheet(baseline, maxDepth)
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), original, sheet)
		},
	}

	cmd.Flags().StringVar(&baseline, "baseline", "", "original statement to compare against")
	cmd.Flags().IntVar(&maxDepth, "max-depth", model.DefaultMaxDepth, "maximum line item nesting")

	return cmd
}
