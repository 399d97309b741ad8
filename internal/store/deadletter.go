package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/resilience"
)

// EnqueueDeadLetter stores a failed outbound call, replacing an entry with
// the same id.
func (s *PostgresStore) EnqueueDeadLetter(ctx context.Context, d resilience.DeadLetter) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letters
		 (id, kind, payload, error, error_type, attempts, max_attempts, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $4, error_type = $5, attempts = $6, next_retry_at = $8, last_failed_at = $10`,
		d.ID, d.Kind, string(d.Payload), d.Error, d.ErrorType,
		d.Attempts, d.MaxAttempts, d.NextRetryAt, d.CreatedAt, d.LastFailedAt,
	)
	return eris.Wrap(err, "store: enqueue dead letter")
}

// DueDeadLetters returns up to limit entries of kind whose next retry is
// due at now, oldest due first. Exhausted and permanent entries are
// included so the caller can account for them.
func (s *PostgresStore) DueDeadLetters(ctx context.Context, kind string, now time.Time, limit int) ([]resilience.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, payload, error, error_type, attempts, max_attempts, next_retry_at, created_at, last_failed_at
		 FROM dead_letters
		 WHERE kind = $1 AND next_retry_at <= $2
		 ORDER BY next_retry_at ASC
		 LIMIT $3`,
		kind, now, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: due dead letters")
	}
	defer rows.Close()

	var out []resilience.DeadLetter
	for rows.Next() {
		var (
			d       resilience.DeadLetter
			payload []byte
		)
		if err := rows.Scan(&d.ID, &d.Kind, &payload, &d.Error, &d.ErrorType,
			&d.Attempts, &d.MaxAttempts, &d.NextRetryAt, &d.CreatedAt, &d.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan dead letter")
		}
		d.Payload = payload
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "store: due dead letters iterate")
}

// UpdateDeadLetter records another failed replay.
func (s *PostgresStore) UpdateDeadLetter(ctx context.Context, d resilience.DeadLetter) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letters
		 SET attempts = $1, error = $2, error_type = $3, next_retry_at = $4, last_failed_at = $5
		 WHERE id = $6`,
		d.Attempts, d.Error, d.ErrorType, d.NextRetryAt, d.LastFailedAt, d.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: update dead letter %s", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: dead letter not found: %s", d.ID)
	}
	return nil
}

// RemoveDeadLetter deletes an entry.
func (s *PostgresStore) RemoveDeadLetter(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letters WHERE id = $1`, id)
	return eris.Wrap(err, "store: remove dead letter")
}

// CountDeadLetters counts the entries of kind.
func (s *PostgresStore) CountDeadLetters(ctx context.Context, kind string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letters WHERE kind = $1`, kind).Scan(&n)
	return n, eris.Wrap(err, "store: count dead letters")
}
