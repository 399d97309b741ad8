package schedule

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/leadops-cli/internal/joblog"
)

// Jobs are the batch jobs the workflows drive. Each returns the number of
// rows it processed.
type Jobs interface {
	SyncChannels(ctx context.Context) (int64, error)
	SyncPaidURLs(ctx context.Context) (int64, error)
	SyncCategoryURLs(ctx context.Context) (int64, error)
	SyncGroups(ctx context.Context) (int64, error)
	SyncExpenses(ctx context.Context) (int64, error)
	PaymentsSync(ctx context.Context) (int64, error)
	PostbackReplay(ctx context.Context) (int64, error)
	Score(ctx context.Context) (int64, error)
	PaymentsCollect(ctx context.Context) (int64, error)
	FunnelArtifact(ctx context.Context) (int64, error)
}

// Activities runs Jobs as Temporal activities, recording every run.
type Activities struct {
	jobs Jobs
	rec  *joblog.Recorder
}

// NewActivities creates the activity set.
func NewActivities(jobs Jobs, rec *joblog.Recorder) *Activities {
	return &Activities{jobs: jobs, rec: rec}
}

func (a *Activities) run(ctx context.Context, job string, fn func(context.Context) (int64, error)) (int64, error) {
	var rows int64
	err := a.rec.Run(ctx, job, func(ctx context.Context) (int64, error) {
		n, err := fn(ctx)
		rows = n
		return n, err
	})
	return rows, err
}

// Activity returns the activity function registered under job.
func (a *Activities) Activity(job string) (func(context.Context) (int64, error), bool) {
	fns := map[string]func(context.Context) (int64, error){
		joblog.SyncChannels:    a.jobs.SyncChannels,
		joblog.SyncPaidURLs:    a.jobs.SyncPaidURLs,
		joblog.SyncCategories:  a.jobs.SyncCategoryURLs,
		joblog.SyncGroups:      a.jobs.SyncGroups,
		joblog.SyncExpenses:    a.jobs.SyncExpenses,
		joblog.PaymentsSync:    a.jobs.PaymentsSync,
		joblog.PostbackReplay:  a.jobs.PostbackReplay,
		joblog.Score:           a.jobs.Score,
		joblog.PaymentsCollect: a.jobs.PaymentsCollect,
		joblog.FunnelArtifact:  a.jobs.FunnelArtifact,
	}
	fn, ok := fns[job]
	if !ok {
		return nil, false
	}
	return func(ctx context.Context) (int64, error) {
		return a.run(ctx, job, fn)
	}, true
}

// Registry is the part of a worker that workflows and activities are
// registered with.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register registers both workflows and every job activity with r.
// Activities are named after their job.
func Register(r Registry, a *Activities) {
	r.RegisterWorkflowWithOptions(RemoteSourcesWorkflow, workflow.RegisterOptions{Name: RemoteSources})
	r.RegisterWorkflowWithOptions(ProcessingDataWorkflow, workflow.RegisterOptions{Name: ProcessingData})
	for _, job := range JobNames() {
		fn, _ := a.Activity(job)
		r.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: job})
	}
}
