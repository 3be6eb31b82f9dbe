package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/proforma/internal/audit"
	"github.com/cleared-dev/proforma/internal/importer"
	"github.com/cleared-dev/proforma/internal/metrics"
	"github.com/cleared-dev/proforma/internal/reconcile"
	"github.com/cleared-dev/proforma/internal/statement"
)

func newBatchCommand(g *globalFlags) *cobra.Command {
	var concurrency int
	var noCommit bool

	cmd := &cobra.Command{
		Use:   "batch [filings-dir]",
		Short: "Reconcile every filing under a directory",
		Long: `Reconcile every filing under a directory.

Each subdirectory holding ` + importer.SheetFile + ` and a changes.json or changes.csv
is one filing. Results are written to ` + importer.OutputFile + ` inside the filing's
directory. The default directory is <workspace>/filings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			dir := filepath.Join(ws.root, "filings")
			if len(args) > 0 {
				if dir, err = filepath.Abs(args[0]); err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
			}
			if cmd.Flags().Changed("concurrency") {
				ws.cfg.Batch.Concurrency = concurrency
			}
			return runBatch(cmd, ws, dir, noCommit)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "filings reconciled at once (default batch.concurrency)")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "skip the git commit even when git.auto_commit is set")

	return cmd
}

func runBatch(cmd *cobra.Command, ws *workspace, dir string, noCommit bool) error {
	filings, err := importer.ScanFilings(dir)
	if err != nil {
		return err
	}
	if len(filings) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No filings found under %s\n", dir)
		return nil
	}

	// A filing that cannot be read is reported and skipped; the rest still run.
	registry := importer.DefaultRegistry()
	loadErrs := make(map[string]error)
	var jobs []reconcile.Job
	var ready []importer.Filing
	for _, f := range filings {
		sheet, err := statement.LoadSheet(f.SheetPath, ws.cfg.Engine.MaxDepth)
		if err != nil {
			loadErrs[f.Name] = err
			ws.log.Error().Err(err).Str("filing", f.Name).Msg("reading sheet")
			continue
		}
		changes, err := registry.ParseFile(f.ChangesPath)
		if err != nil {
			loadErrs[f.Name] = err
			ws.log.Error().Err(err).Str("filing", f.Name).Msg("reading changes")
			continue
		}
		jobs = append(jobs, reconcile.Job{Name: f.Name, Sheet: sheet, Summary: changes})
		ready = append(ready, f)
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

	results := engine.RunBatch(cmd.Context(), jobs, ws.cfg.Batch.Concurrency)

	var trail audit.Trail
	var outputs []string
	runErrs := 0
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprint(tw, "Filing\tApplied\tCorrected\tUnresolved\tBalanced\tOutput\n")
	fmt.Fprint(tw, "------\t-------\t---------\t----------\t--------\t------\n")
	for i, r := range results {
		if r.Err != nil {
			runErrs++
			ws.log.Error().Err(r.Err).Str("filing", r.Name).Msg("reconcile failed")
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\terror: %v\n", r.Name, r.Err)
			continue
		}
		out := ready[i].OutputPath()
		if err := statement.Save(out, r.Result.Sheet); err != nil {
			runErrs++
			ws.log.Error().Err(err).Str("filing", r.Name).Msg("writing output")
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\terror: %v\n", r.Name, err)
			continue
		}
		outputs = append(outputs, out)
		trail = append(trail, r.Result.Trail...)

		t := r.Result.Trail
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%t\t%s\n", r.Name,
			t.Count(audit.OutcomeApplied), t.Count(audit.OutcomeCorrected), t.Count(audit.OutcomeFailed),
			r.Result.Sheet.Balanced(), out)
	}
	for _, f := range filings {
		if err, ok := loadErrs[f.Name]; ok {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\terror: %v\n", f.Name, err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	ws.writeMetrics(m)

	if ws.initialized && len(trail) > 0 {
		if err := audit.Append(ws.root, trail); err != nil {
			return err
		}
		if ws.cfg.Git.AutoCommit && !noCommit {
			ws.commit(cmd, fmt.Sprintf("batch: %d filings", len(outputs)), outputs...)
		}
	}

	if failed := runErrs + len(loadErrs); failed > 0 {
		return fmt.Errorf("%d of %d filings failed", failed, len(filings))
	}
	return nil
}
