package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/db"
	"github.com/sells-group/leadops-cli/internal/model"
)

var paymentColumns = []string{
	"email", "crm_id", "manager", "manager_group", "grp", "course", "profit",
	"date_created", "date_last_paid", "date_payment", "date_zoom",
	"type", "url", "target_url", "channel",
}

// ListPayments returns the stored ledger ordered by id.
func (s *PostgresStore) ListPayments(ctx context.Context) ([]model.Payment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, crm_id, manager, manager_group, grp, course, profit,
		        date_created, date_last_paid, date_payment, date_zoom,
		        type, url, target_url, channel
		 FROM payments ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list payments")
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		var (
			p                             model.Payment
			created, lastLead, paid, zoom pgtype.Date
		)
		if err := rows.Scan(&p.ID, &p.Email, &p.CRMID, &p.Manager, &p.ManagerGroup, &p.Group, &p.Course, &p.Profit,
			&created, &lastLead, &paid, &zoom,
			&p.Type, &p.URL, &p.TargetURL, &p.Channel); err != nil {
			return nil, eris.Wrap(err, "store: scan payment")
		}
		p.CreatedAt = dateValue(created)
		p.LastLeadAt = dateValue(lastLead)
		p.PaidAt = dateValue(paid)
		p.ZoomAt = dateValue(zoom)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "store: list payments iterate")
}

// ReplacePayments deletes every stored payment and copies payments in
// chunks of size, in one transaction. A failure leaves the previous ledger
// in place.
func (s *PostgresStore) ReplacePayments(ctx context.Context, payments []model.Payment, size int) error {
	rows := make([][]any, len(payments))
	for i, p := range payments {
		rows[i] = []any{
			p.Email, p.CRMID, p.Manager, p.ManagerGroup, p.Group, p.Course, p.Profit,
			dateArg(p.CreatedAt), dateArg(p.LastLeadAt), dateArg(p.PaidAt), dateArg(p.ZoomAt),
			string(p.Type), p.URL, p.TargetURL, p.Channel,
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: replace payments: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM payments`); err != nil {
		return eris.Wrap(err, "store: replace payments: delete")
	}
	if _, err := db.CopyChunked(ctx, tx, "payments", paymentColumns, rows, batchSize(size)); err != nil {
		return eris.Wrap(err, "store: replace payments")
	}
	return eris.Wrap(tx.Commit(ctx), "store: replace payments: commit")
}

// ListManagers returns the known sales managers.
func (s *PostgresStore) ListManagers(ctx context.Context) ([]model.Manager, error) {
	rows, err := s.pool.Query(ctx, `SELECT first_name, last_name, grp FROM managers ORDER BY last_name, first_name`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list managers")
	}
	defer rows.Close()

	var out []model.Manager
	for rows.Next() {
		var m model.Manager
		if err := rows.Scan(&m.FirstName, &m.LastName, &m.Group); err != nil {
			return nil, eris.Wrap(err, "store: scan manager")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "store: list managers iterate")
}
