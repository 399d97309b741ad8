// Package pipeline wires the stores, sheet exports and outbound clients into
// the batch jobs of the back office. Every job method returns the number of
// rows it processed so it can run under joblog.Recorder.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/config"
	"github.com/sells-group/leadops-cli/internal/digest"
	"github.com/sells-group/leadops-cli/internal/fetcher"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/postback"
	"github.com/sells-group/leadops-cli/internal/reconcile"
	"github.com/sells-group/leadops-cli/internal/scoring"
	"github.com/sells-group/leadops-cli/internal/taxonomy"
)

// Store is every persistence operation the jobs use.
type Store interface {
	taxonomy.Store
	reconcile.Store
	scoring.Store
	digest.Source
	postback.DeadLetterStore

	ListLeadsSince(ctx context.Context, since time.Time) ([]model.Lead, error)
	ListLeadsBetween(ctx context.Context, from, to time.Time) ([]model.Lead, error)
	InsertLeads(ctx context.Context, leads []model.Lead, batchSize int) (int64, error)
	ListExpenses(ctx context.Context, from, to time.Time) ([]model.Expense, error)
}

// Artifacts caches precomputed report inputs.
type Artifacts interface {
	SavePaymentChannels(ctx context.Context, rows []model.PaymentChannel) error
	LoadPaymentChannels(ctx context.Context) ([]model.PaymentChannel, error)
	SaveReport(ctx context.Context, name string, rows int, v any) error
	LoadReport(ctx context.Context, name string, v any) (time.Time, error)
}

// Postbacks sends and replays purchase postbacks.
type Postbacks interface {
	reconcile.Notifier
	Replay(ctx context.Context, st postback.DeadLetterStore, limit int) (postback.ReplayResult, error)
}

// replayLimit bounds one dead letter replay pass.
const replayLimit = 200

// Pipeline runs the back office jobs.
type Pipeline struct {
	cfg       *config.Config
	store     Store
	artifacts Artifacts
	sheets    fetcher.Downloader
	crm       reconcile.CRM
	postbacks Postbacks
	groups    taxonomy.GroupSource
	now       func() time.Time
}

// Option configures optional collaborators of a Pipeline.
type Option func(*Pipeline)

// WithCRM enables CRM lookups during payment reconciliation.
func WithCRM(crm reconcile.CRM) Option {
	return func(p *Pipeline) { p.crm = crm }
}

// WithPostbacks enables purchase postbacks for new payments.
func WithPostbacks(pb Postbacks) Option {
	return func(p *Pipeline) { p.postbacks = pb }
}

// WithGroupSource sets where scoring groups are synced from.
func WithGroupSource(src taxonomy.GroupSource) Option {
	return func(p *Pipeline) { p.groups = src }
}

// WithArtifacts sets the report artifact cache.
func WithArtifacts(a Artifacts) Option {
	return func(p *Pipeline) { p.artifacts = a }
}

// New creates a Pipeline. sheets downloads remote spreadsheet exports; it
// may be nil when every sheet location is a local file.
func New(cfg *config.Config, st Store, sheets fetcher.Downloader, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		store:  st,
		sheets: sheets,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Engine loads the reference tables and builds the attribution engine and
// scoring groups of one run.
func (p *Pipeline) Engine(ctx context.Context) (*attribution.Engine, *scoring.Groups, error) {
	tables, groups, err := taxonomy.LoadTables(ctx, p.store, p.cfg.Scoring.BaseOfferGroup)
	if err != nil {
		return nil, nil, err
	}
	return attribution.NewEngine(tables), groups, nil
}

func (p *Pipeline) table(ctx context.Context, location, sheet string) (fetcher.Table, error) {
	if location == "" {
		return fetcher.Table{}, eris.New("pipeline: sheet location is not configured")
	}
	t, err := fetcher.LoadTable(ctx, p.sheets, location, sheet)
	if err != nil {
		return fetcher.Table{}, eris.Wrapf(err, "pipeline: load sheet %q", sheet)
	}
	zap.L().Debug("pipeline: sheet loaded", zap.String("sheet", sheet), zap.Int("rows", len(t.Rows)))
	return t, nil
}

func (p *Pipeline) landing(ctx context.Context) (taxonomy.Landing, error) {
	t, err := p.table(ctx, p.cfg.Sheets.LandingPath, p.cfg.Sheets.LandingSheet)
	if err != nil {
		return taxonomy.Landing{}, err
	}
	return taxonomy.ParseLanding(t.Header, t.Rows)
}

func (p *Pipeline) location() *time.Location {
	loc, err := time.LoadLocation(p.cfg.Reconcile.Timezone)
	if err != nil {
		zap.L().Warn("pipeline: unknown timezone, using UTC",
			zap.String("timezone", p.cfg.Reconcile.Timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}
