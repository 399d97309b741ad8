package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/model"
)

// InsertJobRun records a started run.
func (s *PostgresStore) InsertJobRun(ctx context.Context, r model.JobRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_runs (id, job, status, started_at) VALUES ($1, $2, $3, $4)`,
		r.ID, r.Job, string(r.Status), r.StartedAt,
	)
	return eris.Wrapf(err, "store: insert job run %s", r.Job)
}

// FinishJobRun stores the outcome of a run.
func (s *PostgresStore) FinishJobRun(ctx context.Context, r model.JobRun) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_runs SET status = $1, rows = $2, error = $3, completed_at = $4 WHERE id = $5`,
		string(r.Status), r.Rows, r.Error, r.CompletedAt, r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: finish job run %s", r.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: job run not found: %s", r.ID)
	}
	return nil
}

// ListJobRuns returns the latest runs, optionally of one job.
func (s *PostgresStore) ListJobRuns(ctx context.Context, job string, limit int) ([]model.JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, job, status, rows, error, started_at, completed_at
		 FROM job_runs
		 WHERE $1 = '' OR job = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		job, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list job runs")
	}
	defer rows.Close()

	var out []model.JobRun
	for rows.Next() {
		var r model.JobRun
		if err := rows.Scan(&r.ID, &r.Job, &r.Status, &r.Rows, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan job run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: list job runs iterate")
}
