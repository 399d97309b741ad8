package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/model"
)

// Store is the persistence reconciliation needs.
type Store interface {
	ListPayments(ctx context.Context) ([]model.Payment, error)
	// ReplacePayments deletes every stored payment and inserts payments in
	// one transaction, chunked by batchSize.
	ReplacePayments(ctx context.Context, payments []model.Payment, batchSize int) error
	ListLeadsByEmails(ctx context.Context, emails []string) ([]model.Lead, error)
	ListManagers(ctx context.Context) ([]model.Manager, error)
}

// CRM looks up the deals payments reference.
type CRM interface {
	LeadsByIDs(ctx context.Context, ids []string) (map[string]CRMLead, error)
}

// Notifier announces newly seen payments.
type Notifier interface {
	Purchase(ctx context.Context, p model.Payment) error
}

// Result summarizes a reconciliation run.
type Result struct {
	Payments     int
	New          int
	Notified     int
	NotifyFailed int
	Undefined    int
}

// Reconciler rebuilds the payments ledger.
type Reconciler struct {
	store     Store
	crm       CRM
	notifier  Notifier
	engine    *attribution.Engine
	batchSize int
	loc       *time.Location
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithNotifier sends a purchase notification for every new payment.
func WithNotifier(n Notifier) Option {
	return func(r *Reconciler) { r.notifier = n }
}

// WithBatchSize sets the insert chunk size.
func WithBatchSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithLocation sets the zone lead creation dates are read in.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// New creates a Reconciler.
func New(st Store, crm CRM, engine *attribution.Engine, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     st,
		crm:       crm,
		engine:    engine,
		batchSize: 1000,
		loc:       time.UTC,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Diff returns the payments whose identity is not among stored. Each stored
// payment absorbs at most one incoming duplicate.
func Diff(stored, incoming []model.Payment) []model.Payment {
	seen := make(map[model.PaymentIdentity]int, len(stored))
	for _, p := range stored {
		seen[p.Identity()]++
	}
	var out []model.Payment
	for _, p := range incoming {
		id := p.Identity()
		if seen[id] > 0 {
			seen[id]--
			continue
		}
		out = append(out, p)
	}
	return out
}

// Run attributes the parsed ledger rows, replaces the stored ledger with them
// and notifies about payments not stored before. Notifications go out only
// after the replacement committed.
func (r *Reconciler) Run(ctx context.Context, rows []model.Payment) (Result, error) {
	log := zap.L().With(zap.String("component", "reconcile"))
	res := Result{Payments: len(rows)}

	stored, err := r.store.ListPayments(ctx)
	if err != nil {
		return res, eris.Wrap(err, "reconcile: list stored payments")
	}
	fresh := Diff(stored, rows)
	res.New = len(fresh)

	deals := r.lookupDeals(ctx, rows)

	managers, err := r.store.ListManagers(ctx)
	if err != nil {
		return res, eris.Wrap(err, "reconcile: list managers")
	}
	groups := NewManagerGroups(managers)

	crmEmails := make(map[string]string, len(deals))
	emailSet := make(map[string]bool)
	for id, d := range deals {
		if d.Email == "" {
			continue
		}
		crmEmails[id] = d.Email
		emailSet[d.Email] = true
	}
	emails := make([]string, 0, len(emailSet))
	for e := range emailSet {
		emails = append(emails, e)
	}

	leads, err := r.store.ListLeadsByEmails(ctx, emails)
	if err != nil {
		return res, eris.Wrap(err, "reconcile: list leads")
	}

	out := make([]model.Payment, len(rows))
	copy(out, rows)
	for i := range out {
		var deal *CRMLead
		if d, ok := deals[out[i].CRMID]; ok {
			deal = &d
		}
		out[i].Channel = ResolveChannel(r.engine, MarkerCandidates(out[i], deal))
		out[i].Group = groups.Group(out[i])
		if out[i].Channel == model.UndefinedLabel {
			res.Undefined++
		}
	}
	NewLeadAttributor(leads, r.engine.Paid(), r.loc).Attribute(out, crmEmails)

	if err := r.store.ReplacePayments(ctx, out, r.batchSize); err != nil {
		return res, eris.Wrap(err, "reconcile: replace payments")
	}
	log.Info("reconcile: replaced payments",
		zap.Int("count", len(out)),
		zap.Int("new", res.New),
		zap.Int("undefined_channel", res.Undefined),
	)

	if r.notifier != nil {
		for _, p := range fresh {
			if err := r.notifier.Purchase(ctx, p); err != nil {
				res.NotifyFailed++
				log.Warn("reconcile: purchase notification failed",
					zap.String("crm_id", p.CRMID),
					zap.Error(err),
				)
				continue
			}
			res.Notified++
		}
	}
	return res, nil
}

// lookupDeals fetches the CRM deals of rows. A CRM failure degrades to no
// deal data rather than failing the run.
func (r *Reconciler) lookupDeals(ctx context.Context, rows []model.Payment) map[string]CRMLead {
	if r.crm == nil {
		return nil
	}
	seen := make(map[string]bool, len(rows))
	ids := make([]string, 0, len(rows))
	for _, p := range rows {
		if p.CRMID != "" && !seen[p.CRMID] {
			seen[p.CRMID] = true
			ids = append(ids, p.CRMID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	deals, err := r.crm.LeadsByIDs(ctx, ids)
	if err != nil {
		zap.L().Warn("reconcile: crm lookup failed, continuing without deal data",
			zap.Int("ids", len(ids)),
			zap.Error(err),
		)
		return nil
	}
	return deals
}
