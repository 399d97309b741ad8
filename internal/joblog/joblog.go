// Package joblog records every batch job invocation in job_runs and in the
// process metrics.
package joblog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/metrics"
	"github.com/sells-group/leadops-cli/internal/model"
)

// Job names.
const (
	SyncChannels    = "sync_channels"
	SyncPaidURLs    = "sync_paid_urls"
	SyncCategories  = "sync_category_urls"
	SyncGroups      = "sync_groups"
	SyncExpenses    = "sync_expenses"
	PaymentsSync    = "payments_sync"
	PaymentsCollect = "payments_collect"
	PostbackReplay  = "postback_replay"
	Score           = "score"
	LeadsUpload     = "leads_upload"
	FunnelArtifact  = "funnel_artifact"
	Digest          = "digest"
)

// Store persists job runs.
type Store interface {
	InsertJobRun(ctx context.Context, r model.JobRun) error
	FinishJobRun(ctx context.Context, r model.JobRun) error
}

// Recorder wraps job executions with a job_runs row.
type Recorder struct {
	store Store
	now   func() time.Time
}

// New creates a Recorder. A nil store records metrics only.
func New(st Store) *Recorder {
	return &Recorder{store: st, now: time.Now}
}

// Run executes fn as job. fn returns the number of rows it processed. The
// run row is written before fn starts and finished after it returns;
// failures to record are logged and never fail the job itself.
func (r *Recorder) Run(ctx context.Context, job string, fn func(ctx context.Context) (int64, error)) error {
	run := model.JobRun{
		ID:        uuid.NewString(),
		Job:       job,
		Status:    model.JobStatusRunning,
		StartedAt: r.now().UTC(),
	}
	log := zap.L().With(zap.String("job", job), zap.String("run_id", run.ID))

	recorded := true
	if r.store != nil {
		if err := r.store.InsertJobRun(ctx, run); err != nil {
			recorded = false
			log.Warn("joblog: record start failed", zap.Error(err))
		}
	}

	metrics.CurrentJobs.Inc()
	rows, err := fn(ctx)
	metrics.CurrentJobs.Dec()

	done := r.now().UTC()
	run.CompletedAt = &done
	run.Rows = rows
	run.Status = model.JobStatusComplete
	if err != nil {
		run.Status = model.JobStatusFailed
		run.Error = err.Error()
	}
	metrics.ObserveRun(job, string(run.Status), rows, run.Duration())
	if run.Status == model.JobStatusComplete {
		metrics.LastSuccessTimestamp.WithLabelValues(job).Set(float64(done.Unix()))
	}

	if r.store != nil && recorded {
		// Record the outcome even when the job context is already cancelled.
		if ferr := r.store.FinishJobRun(context.WithoutCancel(ctx), run); ferr != nil {
			log.Warn("joblog: record finish failed", zap.Error(ferr))
		}
	}

	if err != nil {
		log.Error("job failed", zap.Duration("duration", run.Duration()), zap.Error(err))
		return err
	}
	log.Info("job complete", zap.Int64("rows", rows), zap.Duration("duration", run.Duration()))
	return nil
}
