package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/db"
	"github.com/sells-group/leadops-cli/internal/digest"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/scoring"
)

// ListScorable returns carousel entries in new or distributed state with
// their leads.
func (s *PostgresStore) ListScorable(ctx context.Context) ([]scoring.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+`, c.id, c.status, c.score, c.score_info
		 FROM carousel c JOIN leads l ON l.id = c.lead_id
		 WHERE c.status IN ('new', 'distributed')
		 ORDER BY c.id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list scorable")
	}
	defer rows.Close()

	var out []scoring.Candidate
	for rows.Next() {
		var (
			c    model.Carousel
			info []byte
		)
		l, err := scanLead(rows, &c.ID, &c.Status, &c.Score, &info)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan scorable")
		}
		c.LeadID = l.ID
		if len(info) > 0 {
			if err := json.Unmarshal(info, &c.ScoreInfo); err != nil {
				return nil, eris.Wrapf(err, "store: unmarshal score info of carousel %d", c.ID)
			}
		}
		out = append(out, scoring.Candidate{Carousel: c, Lead: l})
	}
	return out, eris.Wrap(rows.Err(), "store: list scorable iterate")
}

// UpdateCarousels writes status, score and breakdown of every item in one
// transaction: the rows are copied into a temporary table in chunks of
// size and applied with a single UPDATE ... FROM. Only entries still new or
// distributed are written.
func (s *PostgresStore) UpdateCarousels(ctx context.Context, items []model.Carousel, size int) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]any, len(items))
	for i, c := range items {
		info, err := json.Marshal(c.ScoreInfo)
		if err != nil {
			return eris.Wrapf(err, "store: marshal score info of carousel %d", c.ID)
		}
		rows[i] = []any{c.ID, string(c.Status), c.Score, string(info)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: update carousels: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`CREATE TEMP TABLE _carousel_scores (id BIGINT, status TEXT, score INTEGER, score_info JSONB) ON COMMIT DROP`,
	); err != nil {
		return eris.Wrap(err, "store: update carousels: create temp table")
	}
	if _, err := db.CopyChunked(ctx, tx, "_carousel_scores", []string{"id", "status", "score", "score_info"}, rows, batchSize(size)); err != nil {
		return eris.Wrap(err, "store: update carousels")
	}
	// entries a manager moved on while scoring ran keep their status
	tag, err := tx.Exec(ctx,
		`UPDATE carousel c SET
		   status = t.status,
		   score = t.score,
		   score_info = t.score_info,
		   distributed_at = CASE WHEN t.status = 'distributed' THEN COALESCE(c.distributed_at, now()) ELSE c.distributed_at END
		 FROM _carousel_scores t WHERE c.id = t.id
		   AND c.status IN ('new', 'distributed')`,
	)
	if err != nil {
		return eris.Wrap(err, "store: update carousels: apply")
	}
	if skipped := int64(len(items)) - tag.RowsAffected(); skipped > 0 {
		zap.L().Info("store: carousel entries changed state during scoring, left as is",
			zap.Int64("skipped", skipped))
	}
	return eris.Wrap(tx.Commit(ctx), "store: update carousels: commit")
}

// Distributed returns the carousel entries created and handed out in
// [from, to).
func (s *PostgresStore) Distributed(ctx context.Context, from, to time.Time) ([]digest.Distribution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.owner, l.url, c.status, c.score
		 FROM carousel c JOIN leads l ON l.id = c.lead_id
		 WHERE c.created_at >= $1 AND c.created_at < $2
		   AND c.distributed_at >= $1 AND c.distributed_at < $2`,
		from, to)
	if err != nil {
		return nil, eris.Wrap(err, "store: distributed")
	}
	defer rows.Close()

	var out []digest.Distribution
	for rows.Next() {
		var d digest.Distribution
		if err := rows.Scan(&d.Owner, &d.URL, &d.Status, &d.Score); err != nil {
			return nil, eris.Wrap(err, "store: scan distributed")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "store: distributed iterate")
}

// Tail returns the unworked carousel entries created in [from, to).
func (s *PostgresStore) Tail(ctx context.Context, from, to time.Time) ([]digest.TailLead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.email, c.score
		 FROM carousel c JOIN leads l ON l.id = c.lead_id
		 WHERE c.created_at >= $1 AND c.created_at < $2
		   AND c.status IN ('new', 'distributed')`,
		from, to)
	if err != nil {
		return nil, eris.Wrap(err, "store: tail")
	}
	defer rows.Close()

	var out []digest.TailLead
	for rows.Next() {
		var t digest.TailLead
		if err := rows.Scan(&t.Email, &t.Score); err != nil {
			return nil, eris.Wrap(err, "store: scan tail")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "store: tail iterate")
}
