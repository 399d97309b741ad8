package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/artifact"
	"github.com/sells-group/leadops-cli/internal/dedup"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/reconcile"
	"github.com/sells-group/leadops-cli/internal/report"
)

// ReportStart parses the configured first cohort date.
func (p *Pipeline) ReportStart() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, p.cfg.Report.StartDate)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "pipeline: parse report.start_date %q", p.cfg.Report.StartDate)
	}
	return t, nil
}

// Cohort builds the weekly payment cohort matrix from the configured start
// date to the last complete week.
func (p *Pipeline) Cohort(ctx context.Context) (report.Cohort, error) {
	start, err := p.ReportStart()
	if err != nil {
		return report.Cohort{}, err
	}
	from, _ := report.WeekOf(start)
	leads, err := p.store.ListLeadsSince(ctx, from)
	if err != nil {
		return report.Cohort{}, eris.Wrap(err, "pipeline: list cohort leads")
	}
	payments, err := p.store.ListPayments(ctx)
	if err != nil {
		return report.Cohort{}, eris.Wrap(err, "pipeline: list payments")
	}
	return report.BuildCohort(report.PaymentCohortEvents(payments), report.LeadCounts(leads), start, p.now()), nil
}

// paymentChannels prefers the payment channel artifact and rebuilds it from
// the ledger when it was never built.
func (p *Pipeline) paymentChannels(ctx context.Context) ([]model.PaymentChannel, error) {
	if p.artifacts != nil {
		rows, err := p.artifacts.LoadPaymentChannels(ctx)
		if err == nil {
			return rows, nil
		}
		if !errors.Is(err, artifact.ErrNotBuilt) {
			return nil, err
		}
		zap.L().Debug("pipeline: payment channel artifact not built, using ledger")
	}
	payments, err := p.store.ListPayments(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list payments")
	}
	return reconcile.CollectChannels(payments), nil
}

// Funnel builds the funnel-channel report for the lead window of opts.
func (p *Pipeline) Funnel(ctx context.Context, opts report.FunnelOptions) ([]report.FunnelRow, error) {
	engine, _, err := p.Engine(ctx)
	if err != nil {
		return nil, err
	}
	from, to := report.Day(opts.LeadFrom), report.Day(opts.LeadTo)
	leads, err := p.store.ListLeadsBetween(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list funnel leads")
	}
	expenses, err := p.store.ListExpenses(ctx, from, to)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list expenses")
	}
	payments, err := p.paymentChannels(ctx)
	if err != nil {
		return nil, err
	}
	in := report.FunnelInput{Leads: leads, Expenses: expenses, Payments: payments}
	return report.BuildFunnel(in, engine, opts), nil
}

// FunnelArtifact stores the funnel-channel report of the last complete
// week so the API can serve it without recomputing.
func (p *Pipeline) FunnelArtifact(ctx context.Context) (int64, error) {
	if p.artifacts == nil {
		return 0, eris.New("pipeline: artifact cache is not configured")
	}
	from := report.LastCompleteWeek(p.now())
	rows, err := p.Funnel(ctx, report.FunnelOptions{LeadFrom: from, LeadTo: from.AddDate(0, 0, 6)})
	if err != nil {
		return 0, err
	}
	if err := p.artifacts.SaveReport(ctx, artifact.FunnelReport, len(rows), rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// CachedFunnel returns the stored funnel-channel report and when it was
// built, or artifact.ErrNotBuilt.
func (p *Pipeline) CachedFunnel(ctx context.Context) ([]report.FunnelRow, time.Time, error) {
	if p.artifacts == nil {
		return nil, time.Time{}, artifact.ErrNotBuilt
	}
	var rows []report.FunnelRow
	built, err := p.artifacts.LoadReport(ctx, artifact.FunnelReport, &rows)
	return rows, built, err
}

// Duplicates builds the duplicates-by-channel report. Duplicates are
// counted against every stored lead email.
func (p *Pipeline) Duplicates(ctx context.Context, opts report.DuplicateOptions) ([]report.DuplicateRow, error) {
	engine, _, err := p.Engine(ctx)
	if err != nil {
		return nil, err
	}
	from, to := report.Day(opts.From), report.Day(opts.To)
	leads, err := p.store.ListLeadsBetween(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list leads")
	}
	emails, err := p.store.LeadEmails(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list lead emails")
	}
	return report.BuildDuplicates(leads, dedup.CountEmails(emails), engine, opts), nil
}
