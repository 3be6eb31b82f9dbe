package reconcile

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/proforma/internal/model"
)

// Job is one filer's sheet and change list.
type Job struct {
	Name    string
	Sheet   *model.BalanceSheet
	Summary model.UpdateSummary
}

// JobResult pairs a job with its run outcome. Err is set only for
// structural errors in the job's sheet.
type JobResult struct {
	Name   string
	Result *Result
	Err    error
}

// RunBatch runs independent jobs with at most limit in flight (unbounded
// when limit <= 0). Results come back in job order. A failing job does not
// stop the others. The engine's oracle must be safe for concurrent use.
func (e *Engine) RunBatch(ctx context.Context, jobs []Job, limit int) []JobResult {
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := e.Run(ctx, job.Sheet, job.Summary)
			results[i] = JobResult{Name: job.Name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
