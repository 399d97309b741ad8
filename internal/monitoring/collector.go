// Package monitoring watches job runs and dead letters and raises alerts to
// the team chat when batch jobs fail, go stale or postbacks pile up.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/metrics"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/postback"
)

// JobStats counts the runs of one job within the lookback window.
type JobStats struct {
	Total       int        `json:"total"`
	Complete    int        `json:"complete"`
	Failed      int        `json:"failed"`
	Running     int        `json:"running"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// FailRate returns failed / finished, or 0 when nothing finished.
func (s JobStats) FailRate() float64 {
	finished := s.Complete + s.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.Failed) / float64(finished)
}

// Snapshot is a point-in-time view of back office health.
type Snapshot struct {
	Jobs          map[string]JobStats `json:"jobs"`
	DeadLetters   int                 `json:"dead_letters"`
	LookbackHours int                 `json:"lookback_hours"`
	CollectedAt   time.Time           `json:"collected_at"`
}

// Store is what the collector reads.
type Store interface {
	ListJobRuns(ctx context.Context, job string, limit int) ([]model.JobRun, error)
	CountDeadLetters(ctx context.Context, kind string) (int, error)
}

// recentRuns bounds how many runs one collection reads.
const recentRuns = 500

// Collector gathers a Snapshot from the store.
type Collector struct {
	store Store
	now   func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(st Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers job statistics over the lookback window. Last successes
// are looked up across all recent runs so a job idle for longer than the
// window still reports when it last worked.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		Jobs:          make(map[string]JobStats),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListJobRuns(ctx, "", recentRuns)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list job runs")
	}

	// Runs are newest first.
	for _, r := range runs {
		s := snap.Jobs[r.Job]
		if r.Status == model.JobStatusComplete && s.LastSuccess == nil && r.CompletedAt != nil {
			done := *r.CompletedAt
			s.LastSuccess = &done
		}
		if !r.StartedAt.Before(cutoff) {
			s.Total++
			switch r.Status {
			case model.JobStatusComplete:
				s.Complete++
			case model.JobStatusFailed:
				s.Failed++
				if s.LastError == "" {
					s.LastError = r.Error
				}
			case model.JobStatusRunning:
				s.Running++
			}
		}
		snap.Jobs[r.Job] = s
	}

	n, err := c.store.CountDeadLetters(ctx, postback.Kind)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dead letters")
	}
	snap.DeadLetters = n
	metrics.DeadLetterDepth.WithLabelValues(postback.Kind).Set(float64(n))

	return snap, nil
}
