// Package artifact is a local SQLite cache of precomputed report inputs:
// the payment channel artifact and serialized report tables.
package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadops-cli/internal/model"
)

// Artifact names.
const (
	PaymentChannels = "payment_channels"
	FunnelReport    = "funnel_channel"
)

// ErrNotBuilt reports an artifact that was never written.
var ErrNotBuilt = errors.New("artifact: not built")

const dateLayout = "2006-01-02"

// Info describes a stored artifact.
type Info struct {
	Name    string    `json:"name"`
	Rows    int       `json:"rows"`
	BuiltAt time.Time `json:"built_at"`
}

// Cache is the SQLite artifact store.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the cache at path and configures WAL mode.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "artifact: exec %s", pragma)
		}
	}
	return &Cache{db: db, now: time.Now}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	name     TEXT PRIMARY KEY,
	rows     INTEGER NOT NULL DEFAULT 0,
	data     TEXT,
	built_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_channels (
	payment_date   TEXT,
	last_lead_date TEXT,
	profit         INTEGER NOT NULL DEFAULT 0,
	crm_id         TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	channel        TEXT NOT NULL DEFAULT ''
);
`

// Migrate creates the schema.
func (c *Cache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, schema)
	return eris.Wrap(err, "artifact: migrate")
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// SavePaymentChannels replaces the payment channel artifact.
func (c *Cache) SavePaymentChannels(ctx context.Context, rows []model.PaymentChannel) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "artifact: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_channels`); err != nil {
		return eris.Wrap(err, "artifact: clear payment channels")
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO payment_channels (payment_date, last_lead_date, profit, crm_id, url, channel) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "artifact: prepare payment channel insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, dateText(r.PaidAt), dateText(r.LastLeadAt), r.Profit, r.CRMID, r.URL, r.Channel); err != nil {
			return eris.Wrapf(err, "artifact: insert payment channel %s", r.CRMID)
		}
	}
	if err := c.touch(ctx, tx, PaymentChannels, len(rows), nil); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "artifact: commit payment channels")
}

// LoadPaymentChannels returns the payment channel artifact, or ErrNotBuilt.
func (c *Cache) LoadPaymentChannels(ctx context.Context) ([]model.PaymentChannel, error) {
	if _, err := c.info(ctx, PaymentChannels); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT payment_date, last_lead_date, profit, crm_id, url, channel FROM payment_channels ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: query payment channels")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PaymentChannel
	for rows.Next() {
		var (
			r              model.PaymentChannel
			paid, lastLead sql.NullString
		)
		if err := rows.Scan(&paid, &lastLead, &r.Profit, &r.CRMID, &r.URL, &r.Channel); err != nil {
			return nil, eris.Wrap(err, "artifact: scan payment channel")
		}
		r.PaidAt = parseDate(paid)
		r.LastLeadAt = parseDate(lastLead)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "artifact: iterate payment channels")
}

// SaveReport stores v as the JSON artifact name with its row count.
func (c *Cache) SaveReport(ctx context.Context, name string, rows int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "artifact: marshal %s", name)
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "artifact: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := c.touch(ctx, tx, name, rows, data); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(), "artifact: commit %s", name)
}

// LoadReport decodes the JSON artifact name into v and returns when it was
// built, or ErrNotBuilt.
func (c *Cache) LoadReport(ctx context.Context, name string, v any) (time.Time, error) {
	var (
		data  sql.NullString
		built string
	)
	err := c.db.QueryRowContext(ctx, `SELECT data, built_at FROM artifacts WHERE name = ?`, name).Scan(&data, &built)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !data.Valid) {
		return time.Time{}, ErrNotBuilt
	}
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "artifact: load %s", name)
	}
	if err := json.Unmarshal([]byte(data.String), v); err != nil {
		return time.Time{}, eris.Wrapf(err, "artifact: unmarshal %s", name)
	}
	t, _ := time.Parse(time.RFC3339, built)
	return t, nil
}

// List describes every stored artifact.
func (c *Cache) List(ctx context.Context) ([]Info, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, rows, built_at FROM artifacts ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: list")
	}
	defer rows.Close() //nolint:errcheck

	var out []Info
	for rows.Next() {
		var (
			i     Info
			built string
		)
		if err := rows.Scan(&i.Name, &i.Rows, &built); err != nil {
			return nil, eris.Wrap(err, "artifact: scan info")
		}
		i.BuiltAt, _ = time.Parse(time.RFC3339, built)
		out = append(out, i)
	}
	return out, eris.Wrap(rows.Err(), "artifact: iterate info")
}

func (c *Cache) info(ctx context.Context, name string) (Info, error) {
	i := Info{Name: name}
	var built string
	err := c.db.QueryRowContext(ctx, `SELECT rows, built_at FROM artifacts WHERE name = ?`, name).Scan(&i.Rows, &built)
	if errors.Is(err, sql.ErrNoRows) {
		return i, ErrNotBuilt
	}
	if err != nil {
		return i, eris.Wrapf(err, "artifact: info %s", name)
	}
	i.BuiltAt, _ = time.Parse(time.RFC3339, built)
	return i, nil
}

func (c *Cache) touch(ctx context.Context, tx *sql.Tx, name string, rows int, data []byte) error {
	var payload any
	if data != nil {
		payload = string(data)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO artifacts (name, rows, data, built_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET rows = excluded.rows, data = excluded.data, built_at = excluded.built_at`,
		name, rows, payload, c.now().UTC().Format(time.RFC3339))
	return eris.Wrapf(err, "artifact: record %s", name)
}

func dateText(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
