package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/db"
	"github.com/sells-group/leadops-cli/internal/model"
)

const leadColumns = `l.id, l.email, l.phone, l.name, l.created_at, l.url, l.qa_1, l.qa_2, l.qa_3, l.qa_4, l.qa_5, l.qa_6`

var leadCopyColumns = []string{"email", "phone", "name", "created_at", "url", "qa_1", "qa_2", "qa_3", "qa_4", "qa_5", "qa_6"}

func scanLead(row pgx.Row, extra ...any) (model.Lead, error) {
	var l model.Lead
	dest := []any{&l.ID, &l.Email, &l.Phone, &l.Name, &l.CreatedAt, &l.URL}
	for i := range l.Answers {
		dest = append(dest, &l.Answers[i])
	}
	dest = append(dest, extra...)
	err := row.Scan(dest...)
	return l, err
}

func (s *PostgresStore) queryLeads(ctx context.Context, op, sql string, args ...any) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "store: %s", op)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "store: scan %s", op)
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrapf(rows.Err(), "store: %s iterate", op)
}

// ListLeadsSince returns the leads created at or after since, oldest first.
func (s *PostgresStore) ListLeadsSince(ctx context.Context, since time.Time) ([]model.Lead, error) {
	return s.queryLeads(ctx, "list leads since",
		`SELECT `+leadColumns+` FROM leads l WHERE l.created_at >= $1 ORDER BY l.created_at, l.id`,
		since)
}

// ListLeadsBetween returns the leads created in [from, to).
func (s *PostgresStore) ListLeadsBetween(ctx context.Context, from, to time.Time) ([]model.Lead, error) {
	return s.queryLeads(ctx, "list leads between",
		`SELECT `+leadColumns+` FROM leads l WHERE l.created_at >= $1 AND l.created_at < $2 ORDER BY l.created_at, l.id`,
		from, to)
}

// LeadsCreated is ListLeadsBetween under the digest's name.
func (s *PostgresStore) LeadsCreated(ctx context.Context, from, to time.Time) ([]model.Lead, error) {
	return s.ListLeadsBetween(ctx, from, to)
}

// ListLeadsByEmails returns every lead whose email matches one of emails,
// ignoring case.
func (s *PostgresStore) ListLeadsByEmails(ctx context.Context, emails []string) ([]model.Lead, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lower := make([]string, len(emails))
	for i, e := range emails {
		lower[i] = strings.ToLower(strings.TrimSpace(e))
	}
	return s.queryLeads(ctx, "list leads by emails",
		`SELECT `+leadColumns+` FROM leads l WHERE lower(l.email) = ANY($1) ORDER BY l.created_at DESC, l.id DESC`,
		lower)
}

// LeadEmails returns the email of every stored lead, duplicates included.
func (s *PostgresStore) LeadEmails(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM leads`)
	if err != nil {
		return nil, eris.Wrap(err, "store: lead emails")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, eris.Wrap(err, "store: scan lead email")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "store: lead emails iterate")
}

// InsertLeads copies leads in chunks and opens a new carousel entry for every
// lead that has none, all in one transaction.
func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead, size int) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(leads))
	for i, l := range leads {
		r := []any{l.Email, l.Phone, l.Name, l.CreatedAt.UTC(), l.URL}
		for _, a := range l.Answers {
			r = append(r, a)
		}
		rows[i] = r
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert leads: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := db.CopyChunked(ctx, tx, "leads", leadCopyColumns, rows, batchSize(size))
	if err != nil {
		return 0, eris.Wrap(err, "store: insert leads")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO carousel (lead_id, status, created_at)
		 SELECT l.id, 'new', l.created_at FROM leads l
		 WHERE NOT EXISTS (SELECT 1 FROM carousel c WHERE c.lead_id = l.id)`,
	); err != nil {
		return 0, eris.Wrap(err, "store: insert leads: open carousel")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "store: insert leads: commit")
	}
	return n, nil
}
