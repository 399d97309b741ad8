package db

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "scoring_groups",
		Columns:      []string{"name", "points"},
		ConflictKeys: []string{"name"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "scoring_groups",
		ConflictKeys: []string{"name"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "scoring_groups",
		Columns: []string{"name", "points"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"name", "is_default", "points"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_scoring_groups"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "scoring_groups" .* ON CONFLICT \("name"\) DO UPDATE SET "is_default" = EXCLUDED."is_default", "points" = EXCLUDED."points"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "scoring_groups",
		Columns:      cols,
		ConflictKeys: []string{"name"},
	}, [][]any{{"a", true, "{}"}, {"b", false, "{}"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_scoring_groups"}, []string{"name"}).WillReturnError(fmt.Errorf("boom"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "scoring_groups",
		Columns:      []string{"name"},
		ConflictKeys: []string{"name"},
		UpdateCols:   []string{"name"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into staging table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatement(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "landing_pages",
		Columns:      []string{"url", "paid"},
		ConflictKeys: []string{"url"},
	}
	assert.Equal(t,
		`INSERT INTO "landing_pages" ("url", "paid") SELECT DISTINCT ON ("url") "url", "paid" FROM "_tmp_upsert_landing_pages" ORDER BY "url", ctid DESC ON CONFLICT ("url") DO UPDATE SET "paid" = EXCLUDED."paid"`,
		cfg.statement())

	cfg.SkipUnchanged = true
	assert.True(t, strings.HasSuffix(cfg.statement(), `WHERE "landing_pages"."paid" IS DISTINCT FROM EXCLUDED."paid"`))

	keysOnly := UpsertConfig{Table: "channels", Columns: []string{"key"}, ConflictKeys: []string{"key"}}
	assert.True(t, strings.HasSuffix(keysOnly.statement(), `ON CONFLICT ("key") DO NOTHING`))
}

func TestUpsertConfig_UpdateColumns(t *testing.T) {
	cfg := UpsertConfig{Columns: []string{"name", "is_default", "points"}, ConflictKeys: []string{"name"}}
	assert.Equal(t, []string{"is_default", "points"}, cfg.updateColumns())

	cfg.UpdateCols = []string{"points"}
	assert.Equal(t, []string{"points"}, cfg.updateColumns())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.scoring_groups", `"public"."scoring_groups"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
