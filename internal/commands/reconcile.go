package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/proforma/internal/audit"
	"github.com/cleared-dev/proforma/internal/gitops"
	"github.com/cleared-dev/proforma/internal/importer"
	"github.com/cleared-dev/proforma/internal/metrics"
	"github.com/cleared-dev/proforma/internal/report"
	"github.com/cleared-dev/proforma/internal/statement"
)

type reconcileOptions struct {
	out      string
	replay   string
	quiet    bool
	strict   bool
	noCommit bool
}

func newReconcileCommand(g *globalFlags) *cobra.Command {
	var opts reconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile <sheet.json> <changes.json|changes.csv>",
		Short: "Apply a change list to a balance sheet",
		Long: `Apply a change list to a balance sheet and write the pro forma result.

Changes are applied in effective-date order. A change that leaves the sheet
unbalanced is rolled back, offered once to the correction oracle, and recorded
as unresolved when no correction restores balance.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			return runReconcile(cmd, ws, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default "+importer.OutputFile+" next to the sheet)")
	cmd.Flags().StringVar(&opts.replay, "replay", "", "answer corrections from a recorded replay file")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the comparison report")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when any change is unresolved")
	cmd.Flags().BoolVar(&opts.noCommit, "no-commit", false, "skip the git commit even when git.auto_commit is set")

	return cmd
}

func runReconcile(cmd *cobra.Command, ws *workspace, sheetPath, changesPath string, opts reconcileOptions) error {
	if opts.replay != "" {
		abs, err := filepath.Abs(opts.replay)
		if err != nil {
			return fmt.Errorf("resolving replay file: %w", err)
		}
		ws.cfg.Oracle.Command = nil
		ws.cfg.Oracle.ReplayFile = abs
	}

	sheet, err := statement.LoadSheet(sheetPath, ws.cfg.Engine.MaxDepth)
	if err != nil {
		return err
	}
	summary, err := importer.DefaultRegistry().ParseFile(changesPath)
	if err != nil {
		return err
	}

	m := metrics.New()
	engine, closeOracle, err := ws.newEngine(m)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeOracle(); err != nil {
			ws.log.Warn().Err(err).Msg("stopping correction oracle")
		}
	}()

	res, err := engine.Run(cmd.Context(), sheet, summary)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = filepath.Join(filepath.Dir(sheetPath), importer.OutputFile)
	}
	out, err = filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("resolving output: %w", err)
	}
	if err := statement.Save(out, res.Sheet); err != nil {
		return err
	}

	if !opts.quiet {
		if err := report.Render(cmd.OutOrStdout(), res.Baseline, res.Sheet); err != nil {
			return err
		}
	}

	applied := res.Trail.Count(audit.OutcomeApplied)
	corrected := res.Trail.Count(audit.OutcomeCorrected)
	failed := res.Trail.Count(audit.OutcomeFailed)
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d applied, %d corrected, %d unresolved -> %s\n", res.RunID, applied, corrected, failed, out)

	ws.writeMetrics(m)

	if ws.initialized {
		if err := audit.Append(ws.root, res.Trail); err != nil {
			return err
		}
		if ws.cfg.Git.AutoCommit && !opts.noCommit {
			msg := fmt.Sprintf("reconcile: %s (%d applied, %d corrected, %d unresolved)", sheet.CompanyName, applied, corrected, failed)
			ws.commit(cmd, msg, out)
		}
	}

	if opts.strict && failed > 0 {
		return fmt.Errorf("%d changes unresolved", failed)
	}
	return nil
}

// commit records outputs inside the workspace plus the audit log. Failures
// are logged and never fail the command; the outputs are already on disk.
func (ws *workspace) commit(cmd *cobra.Command, message string, outputs ...string) {
	if !gitops.IsRepo(ws.root) {
		return
	}
	paths := []string{filepath.FromSlash(audit.LogFile)}
	for _, o := range outputs {
		if r, ok := ws.rel(o); ok {
			paths = append(paths, r)
		}
	}
	hash, err := gitops.CommitPaths(ws.root, message, ws.cfg.Git.AuthorName, ws.cfg.Git.AuthorEmail, paths...)
	switch {
	case errors.Is(err, gitops.ErrNothingToCommit):
		ws.log.Debug().Msg("nothing to commit")
	case err != nil:
		ws.log.Warn().Err(err).Msg("git commit failed")
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Committed %s\n", hash)
	}
}
