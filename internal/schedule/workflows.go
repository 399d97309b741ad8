// Package schedule runs the periodic back office jobs as Temporal
// workflows. RemoteSources refreshes reference data, the payment ledger and
// lead scores; ProcessingData rebuilds the report artifacts.
package schedule

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/leadops-cli/internal/joblog"
)

// Workflow names.
const (
	RemoteSources  = "RemoteSources"
	ProcessingData = "ProcessingData"
)

// Step is one job of a workflow. A step runs only when every job in After
// succeeded earlier in the same workflow.
type Step struct {
	Job   string
	After []string
}

// RemoteSourcesSteps is the job order of RemoteSources. Reference syncs are
// insert-only and independent of each other. Scoring runs last so it sees
// freshly synced scoring groups; stale groups still score.
var RemoteSourcesSteps = []Step{
	{Job: joblog.SyncChannels},
	{Job: joblog.SyncPaidURLs},
	{Job: joblog.SyncCategories},
	{Job: joblog.SyncGroups},
	{Job: joblog.PaymentsSync},
	{Job: joblog.PostbackReplay, After: []string{joblog.PaymentsSync}},
	{Job: joblog.Score},
}

// ProcessingDataSteps is the job order of ProcessingData. Expenses are
// pulled before the funnel is built; without them the funnel reuses the
// expenses already stored.
var ProcessingDataSteps = []Step{
	{Job: joblog.PaymentsCollect},
	{Job: joblog.SyncExpenses},
	{Job: joblog.FunnelArtifact, After: []string{joblog.PaymentsCollect}},
}

// JobNames lists every job a workflow can run.
func JobNames() []string {
	var out []string
	for _, steps := range [][]Step{RemoteSourcesSteps, ProcessingDataSteps} {
		for _, s := range steps {
			out = append(out, s.Job)
		}
	}
	return out
}

// StepResult is the outcome of one step.
type StepResult struct {
	Job     string `json:"job"`
	Rows    int64  `json:"rows"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary is the result of a workflow run.
type Summary struct {
	Steps []StepResult `json:"steps"`
}

// Failed counts steps that ran and failed.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Steps {
		if r.Error != "" {
			n++
		}
	}
	return n
}

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    10 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    2 * time.Minute,
		MaximumAttempts:    3,
	},
}

// RemoteSourcesWorkflow syncs reference data and scoring groups, rebuilds
// the payment ledger and rescores leads.
func RemoteSourcesWorkflow(ctx workflow.Context) (Summary, error) {
	return runSteps(ctx, RemoteSourcesSteps)
}

// ProcessingDataWorkflow pulls advertising expenses and rebuilds the payment
// channel and funnel artifacts.
func ProcessingDataWorkflow(ctx workflow.Context) (Summary, error) {
	return runSteps(ctx, ProcessingDataSteps)
}

// runSteps executes steps in order. A failed step is logged and the
// workflow moves on; steps depending on it are skipped.
func runSteps(ctx workflow.Context, steps []Step) (Summary, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	log := workflow.GetLogger(ctx)

	var sum Summary
	ok := make(map[string]bool, len(steps))
	for _, s := range steps {
		res := StepResult{Job: s.Job}
		if blocked := missing(ok, s.After); blocked != "" {
			log.Warn("schedule: step skipped", "job", s.Job, "prerequisite", blocked)
			res.Skipped = true
			sum.Steps = append(sum.Steps, res)
			continue
		}

		if err := workflow.ExecuteActivity(ctx, s.Job).Get(ctx, &res.Rows); err != nil {
			log.Error("schedule: step failed", "job", s.Job, "error", err)
			res.Error = err.Error()
			sum.Steps = append(sum.Steps, res)
			continue
		}
		ok[s.Job] = true
		log.Info("schedule: step complete", "job", s.Job, "rows", res.Rows)
		sum.Steps = append(sum.Steps, res)
	}
	return sum, nil
}

func missing(ok map[string]bool, after []string) string {
	for _, job := range after {
		if !ok[job] {
			return job
		}
	}
	return ""
}
