package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/proforma/internal/audit"
)

func newAuditCommand(g *globalFlags) *cobra.Command {
	var runID string
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the workspace audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}

			var trail audit.Trail
			if runID != "" {
				trail, err = audit.ReadRun(ws.root, runID)
			} else {
				trail, err = audit.Read(ws.root)
			}
			if err != nil {
				return err
			}
			if len(trail) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit entries")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprint(tw, "Run\tChange\tDate\tOutcome\tReason\tImbalance\tMaterialized\n")
			for _, e := range trail {
				if failedOnly && e.Outcome != audit.OutcomeFailed {
					continue
				}
				imbalance := ""
				if !e.Imbalance.IsZero() {
					imbalance = e.Imbalance.StringFixed(2)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					shortRun(e.RunID), e.ChangeID, e.EffectiveDate, e.Outcome, e.Reason, imbalance,
					strings.Join(e.Materialized, ", "))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "only entries of this run ID")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only unresolved changes")

	return cmd
}

// shortRun trims a run UUID to its first group.
func shortRun(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
