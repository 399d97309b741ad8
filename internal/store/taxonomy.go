package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/db"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/scoring"
)

// ListChannels returns the channel taxonomy ordered by key.
func (s *PostgresStore) ListChannels(ctx context.Context) ([]model.Channel, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, title FROM channels ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list channels")
	}
	defer rows.Close()

	var out []model.Channel
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.Key, &c.Title); err != nil {
			return nil, eris.Wrap(err, "store: scan channel")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: list channels iterate")
}

// InsertChannels copies new channels.
func (s *PostgresStore) InsertChannels(ctx context.Context, channels []model.Channel) error {
	rows := make([][]any, len(channels))
	for i, c := range channels {
		rows[i] = []any{c.Key, c.Title}
	}
	_, err := db.CopyFrom(ctx, s.pool, "channels", []string{"key", "title"}, rows)
	return eris.Wrap(err, "store: insert channels")
}

// ListPaidURLs returns the host+path keys of paid landing pages.
func (s *PostgresStore) ListPaidURLs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM landing_pages WHERE paid ORDER BY url`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list paid urls")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "store: scan paid url")
		}
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "store: list paid urls iterate")
}

// InsertPaidURLs marks urls as paid landing pages, flipping known unpaid
// pages.
func (s *PostgresStore) InsertPaidURLs(ctx context.Context, urls []string) error {
	rows := make([][]any, len(urls))
	for i, u := range urls {
		rows[i] = []any{u, true}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "landing_pages",
		Columns:       []string{"url", "paid"},
		ConflictKeys:  []string{"url"},
		SkipUnchanged: true,
	}, rows)
	return eris.Wrap(err, "store: insert paid urls")
}

// ListCategoryURLs returns the landing page to category assignments.
func (s *PostgresStore) ListCategoryURLs(ctx context.Context) ([]model.CategoryURL, error) {
	rows, err := s.pool.Query(ctx, `SELECT url, category FROM category_urls ORDER BY url, category`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list category urls")
	}
	defer rows.Close()

	var out []model.CategoryURL
	for rows.Next() {
		var c model.CategoryURL
		if err := rows.Scan(&c.URL, &c.Category); err != nil {
			return nil, eris.Wrap(err, "store: scan category url")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: list category urls iterate")
}

// InsertCategoryURLs copies new (url, category) pairs.
func (s *PostgresStore) InsertCategoryURLs(ctx context.Context, urls []model.CategoryURL) error {
	rows := make([][]any, len(urls))
	for i, c := range urls {
		rows[i] = []any{c.URL, c.Category}
	}
	_, err := db.CopyFrom(ctx, s.pool, "category_urls", []string{"url", "category"}, rows)
	return eris.Wrap(err, "store: insert category urls")
}

// ListScoringGroups returns the stored scoring groups ordered by name.
func (s *PostgresStore) ListScoringGroups(ctx context.Context) ([]scoring.Group, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, is_default, urls, points FROM scoring_groups ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list scoring groups")
	}
	defer rows.Close()

	var out []scoring.Group
	for rows.Next() {
		var (
			g            scoring.Group
			urls, points []byte
		)
		if err := rows.Scan(&g.Name, &g.Default, &urls, &points); err != nil {
			return nil, eris.Wrap(err, "store: scan scoring group")
		}
		if err := json.Unmarshal(urls, &g.URLs); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal urls of group %q", g.Name)
		}
		if err := json.Unmarshal(points, &g.Points); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal points of group %q", g.Name)
		}
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "store: list scoring groups iterate")
}

// UpsertScoringGroups inserts or replaces groups by name.
func (s *PostgresStore) UpsertScoringGroups(ctx context.Context, groups []scoring.Group) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(groups))
	for _, g := range groups {
		urls := g.URLs
		if urls == nil {
			urls = []string{}
		}
		u, err := json.Marshal(urls)
		if err != nil {
			return eris.Wrapf(err, "store: marshal urls of group %q", g.Name)
		}
		points := g.Points
		if points == nil {
			points = map[string]map[string]int{}
		}
		p, err := json.Marshal(points)
		if err != nil {
			return eris.Wrapf(err, "store: marshal points of group %q", g.Name)
		}
		rows = append(rows, []any{g.Name, g.Default, string(u), string(p), now})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "scoring_groups",
		Columns:      []string{"name", "is_default", "urls", "points", "updated_at"},
		ConflictKeys: []string{"name"},
	}, rows)
	return eris.Wrap(err, "store: upsert scoring groups")
}

// ListExpenses returns the expenses dated within [from, to] (inclusive days).
func (s *PostgresStore) ListExpenses(ctx context.Context, from, to time.Time) ([]model.Expense, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, landing, channel, amount FROM expenses WHERE date >= $1 AND date <= $2 ORDER BY date`,
		dateArg(from), dateArg(to))
	if err != nil {
		return nil, eris.Wrap(err, "store: list expenses")
	}
	defer rows.Close()

	var out []model.Expense
	for rows.Next() {
		var (
			e    model.Expense
			date pgtype.Date
		)
		if err := rows.Scan(&date, &e.Landing, &e.Channel, &e.Amount); err != nil {
			return nil, eris.Wrap(err, "store: scan expense")
		}
		e.Date = dateValue(date)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "store: list expenses iterate")
}

// ReplaceExpenses swaps every expense dated within [from, to] for rows in
// one transaction.
func (s *PostgresStore) ReplaceExpenses(ctx context.Context, from, to time.Time, expenses []model.Expense) error {
	rows := make([][]any, len(expenses))
	for i, e := range expenses {
		rows[i] = []any{dateArg(e.Date), e.Landing, e.Channel, e.Amount}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: replace expenses: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM expenses WHERE date >= $1 AND date <= $2`, dateArg(from), dateArg(to)); err != nil {
		return eris.Wrap(err, "store: replace expenses: delete")
	}
	if _, err := db.CopyChunked(ctx, tx, "expenses", []string{"date", "landing", "channel", "amount"}, rows, DefaultBatchSize); err != nil {
		return eris.Wrap(err, "store: replace expenses")
	}
	return eris.Wrap(tx.Commit(ctx), "store: replace expenses: commit")
}
