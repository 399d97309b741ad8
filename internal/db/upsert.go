package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes one staged bulk upsert.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // columns of every row, in order
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // updated on conflict; nil updates every non-key column
	// SkipUnchanged leaves rows whose update columns already hold the
	// incoming values untouched, so they are not counted.
	SkipUnchanged bool
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (c UpsertConfig) updateColumns() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, col := range c.Columns {
		if !keys[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

func (c UpsertConfig) stagingTable() string {
	return "_tmp_upsert_" + strings.ReplaceAll(c.Table, ".", "_")
}

// statement builds the INSERT ... SELECT from the staging table. Rows
// repeating a conflict key inside one batch collapse to the last one
// copied, since Postgres rejects touching a row twice in one statement.
func (c UpsertConfig) statement() string {
	target := sanitizeTable(c.Table)
	cols := quoteAndJoin(c.Columns)
	keys := quoteAndJoin(c.ConflictKeys)
	staging := pgx.Identifier{c.stagingTable()}.Sanitize()

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT DISTINCT ON (%s) %s FROM %s ORDER BY %s, ctid DESC",
		target, cols, keys, cols, staging, keys)

	update := c.updateColumns()
	if len(update) == 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", keys)
		return b.String()
	}

	set := make([]string, len(update))
	changed := make([]string, len(update))
	for i, col := range update {
		id := pgx.Identifier{col}.Sanitize()
		set[i] = fmt.Sprintf("%s = EXCLUDED.%s", id, id)
		changed[i] = fmt.Sprintf("%s.%s IS DISTINCT FROM EXCLUDED.%s", target, id, id)
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", keys, strings.Join(set, ", "))
	if c.SkipUnchanged {
		fmt.Fprintf(&b, " WHERE %s", strings.Join(changed, " OR "))
	}
	return b.String()
}

// BulkUpsert copies rows into a transaction-scoped staging table and merges
// them into the target with INSERT ... ON CONFLICT. It returns the number of
// rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := pgx.Identifier{cfg.stagingTable()}
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		staging.Sanitize(), sanitizeTable(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create staging table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, staging, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into staging table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.statement())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// sanitizeTable quotes a table name that may carry a schema.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
