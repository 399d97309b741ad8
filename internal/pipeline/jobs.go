package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/dedup"
	"github.com/sells-group/leadops-cli/internal/digest"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/reconcile"
	"github.com/sells-group/leadops-cli/internal/scoring"
	"github.com/sells-group/leadops-cli/internal/taxonomy"
)

// SyncChannels inserts the traffic channels of the channel sheet that are
// not stored yet.
func (p *Pipeline) SyncChannels(ctx context.Context) (int64, error) {
	t, err := p.table(ctx, p.cfg.Sheets.LandingPath, p.cfg.Sheets.ChannelsSheet)
	if err != nil {
		return 0, err
	}
	channels, err := taxonomy.ParseChannels(t.Header, t.Rows)
	if err != nil {
		return 0, err
	}
	n, err := taxonomy.NewSyncer(p.store).SyncChannels(ctx, channels)
	return int64(n), err
}

// SyncPaidURLs inserts new paid landing pages.
func (p *Pipeline) SyncPaidURLs(ctx context.Context) (int64, error) {
	l, err := p.landing(ctx)
	if err != nil {
		return 0, err
	}
	n, err := taxonomy.NewSyncer(p.store).SyncPaidURLs(ctx, l.PaidURLs)
	return int64(n), err
}

// SyncCategoryURLs inserts new (landing page, category) pairs.
func (p *Pipeline) SyncCategoryURLs(ctx context.Context) (int64, error) {
	l, err := p.landing(ctx)
	if err != nil {
		return 0, err
	}
	n, err := taxonomy.NewSyncer(p.store).SyncCategoryURLs(ctx, l.CategoryURLs)
	return int64(n), err
}

// SyncGroups upserts the scoring groups of the configured group source.
func (p *Pipeline) SyncGroups(ctx context.Context) (int64, error) {
	if p.groups == nil {
		return 0, eris.New("pipeline: no scoring group source configured")
	}
	n, err := taxonomy.NewSyncer(p.store).SyncGroups(ctx, p.groups)
	return int64(n), err
}

// SyncExpenses replaces the stored ad expenses of the dates the expense
// sheet covers.
func (p *Pipeline) SyncExpenses(ctx context.Context) (int64, error) {
	t, err := p.table(ctx, p.cfg.Sheets.LandingPath, p.cfg.Sheets.ExpensesSheet)
	if err != nil {
		return 0, err
	}
	rows, err := taxonomy.ParseExpenses(t.Header, t.Rows)
	if err != nil {
		return 0, err
	}
	n, err := taxonomy.NewSyncer(p.store).SyncExpenses(ctx, rows)
	return int64(n), err
}

// PaymentsSync rebuilds the payment ledger from the ledger sheet.
func (p *Pipeline) PaymentsSync(ctx context.Context) (int64, error) {
	t, err := p.table(ctx, p.cfg.Sheets.LedgerPath, p.cfg.Sheets.LedgerSheet)
	if err != nil {
		return 0, err
	}
	rows, err := reconcile.ParseLedger(t.Header, t.Rows)
	if err != nil {
		return 0, err
	}

	engine, _, err := p.Engine(ctx)
	if err != nil {
		return 0, err
	}

	opts := []reconcile.Option{
		reconcile.WithBatchSize(p.cfg.Reconcile.BatchSize),
		reconcile.WithLocation(p.location()),
	}
	if p.postbacks != nil {
		opts = append(opts, reconcile.WithNotifier(p.postbacks))
	}
	res, err := reconcile.New(p.store, p.crm, engine, opts...).Run(ctx, rows)
	if err != nil {
		return 0, err
	}
	zap.L().Info("pipeline: payments synced",
		zap.Int("payments", res.Payments),
		zap.Int("new", res.New),
		zap.Int("notified", res.Notified),
		zap.Int("notify_failed", res.NotifyFailed),
	)
	return int64(res.Payments), nil
}

// PaymentsCollect rebuilds the payment channel artifact from the stored
// ledger.
func (p *Pipeline) PaymentsCollect(ctx context.Context) (int64, error) {
	if p.artifacts == nil {
		return 0, eris.New("pipeline: artifact cache is not configured")
	}
	payments, err := p.store.ListPayments(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list payments")
	}
	rows := reconcile.CollectChannels(payments)
	if err := p.artifacts.SavePaymentChannels(ctx, rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// PostbackReplay resends due dead-lettered postbacks.
func (p *Pipeline) PostbackReplay(ctx context.Context) (int64, error) {
	if p.postbacks == nil {
		return 0, nil
	}
	res, err := p.postbacks.Replay(ctx, p.store, replayLimit)
	if err != nil {
		return 0, err
	}
	zap.L().Info("pipeline: postbacks replayed",
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("abandoned", res.Abandoned),
	)
	return int64(res.Sent), nil
}

// Score scores every new and distributed lead.
func (p *Pipeline) Score(ctx context.Context) (int64, error) {
	_, groups, err := p.Engine(ctx)
	if err != nil {
		return 0, err
	}
	if groups.Len() == 0 {
		zap.L().Warn("pipeline: no scoring groups stored, answers score 0")
	}
	engine := scoring.NewEngine(p.cfg.Scoring, groups).WithClock(p.now)
	res, err := scoring.ScoreAll(ctx, p.store, engine, p.cfg.Scoring.BatchSize)
	if err != nil {
		return 0, err
	}
	return int64(res.Scored), nil
}

// UploadResult is the outcome of a lead upload.
type UploadResult struct {
	Rows         int          `json:"rows"`
	Inserted     int64        `json:"inserted"`
	Existing     int          `json:"existing"`
	Ambiguous    int          `json:"ambiguous"`
	LandingPages []string     `json:"landing_pages"`
	New          []model.Lead `json:"-"`
}

// UploadLeads compares the rows of a form export against recently stored
// leads and inserts the new ones. With dryRun nothing is written.
func (p *Pipeline) UploadLeads(ctx context.Context, header []string, rows [][]string, dryRun bool) (UploadResult, error) {
	policy, err := dedup.ParsePolicy(p.cfg.Dedup.AmbiguousPolicy)
	if err != nil {
		return UploadResult{}, err
	}
	upload := dedup.ParseRows(header, rows, dedup.DefaultColumns())

	lookback := p.cfg.Dedup.LookbackDays
	if lookback <= 0 {
		lookback = dedup.LookbackDays
	}
	since := p.now().UTC().AddDate(0, 0, -lookback)
	stored, err := p.store.ListLeadsSince(ctx, since)
	if err != nil {
		return UploadResult{}, eris.Wrap(err, "pipeline: list recent leads")
	}

	window := time.Duration(p.cfg.Dedup.WindowHours) * time.Hour
	f := dedup.Filter(dedup.NewMatcher(window), upload, stored, policy)
	res := UploadResult{
		Rows:         len(upload),
		Existing:     f.Existing,
		Ambiguous:    f.Ambiguous,
		LandingPages: dedup.LandingPages(f.New),
		New:          f.New,
	}
	if dryRun || len(f.New) == 0 {
		return res, nil
	}

	n, err := p.store.InsertLeads(ctx, f.New, p.cfg.Scoring.BatchSize)
	if err != nil {
		return res, eris.Wrap(err, "pipeline: insert leads")
	}
	res.Inserted = n
	zap.L().Info("pipeline: leads uploaded",
		zap.Int("rows", res.Rows),
		zap.Int64("inserted", n),
		zap.Int("existing", res.Existing),
		zap.Int("ambiguous", res.Ambiguous),
	)
	return res, nil
}

// Digest sends the daily digest through s and returns the number of
// delivered messages.
func (p *Pipeline) Digest(ctx context.Context, s digest.Sender) (int64, error) {
	d := digest.New(p.store)
	n := d.Run(ctx, s)
	if n == 0 {
		return 0, eris.New("pipeline: no digest message was delivered")
	}
	return int64(n), nil
}
