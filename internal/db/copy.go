// Package db provides shared database helpers for bulk copy and upsert.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Copier is anything that speaks the COPY protocol: a pool or a transaction.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyFrom bulk-inserts rows into a table using the PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, c Copier, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := c.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// CopyChunked copies rows in chunks of at most size rows, so one huge load
// does not hold a single COPY stream open. Run it inside a transaction to
// keep the load atomic.
func CopyChunked(ctx context.Context, c Copier, table string, columns []string, rows [][]any, size int) (int64, error) {
	var total int64
	for _, ch := range Chunks(len(rows), size) {
		n, err := CopyFrom(ctx, c, table, columns, rows[ch[0]:ch[1]])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
