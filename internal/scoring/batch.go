package scoring

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/model"
)

// Candidate pairs a carousel entry with the lead it scores.
type Candidate struct {
	Carousel model.Carousel
	Lead     model.Lead
}

// Store is the persistence the batch scorer needs.
type Store interface {
	// ListScorable returns carousel entries in new or distributed state.
	ListScorable(ctx context.Context) ([]Candidate, error)
	// UpdateCarousels writes status, score and breakdown of every entry in
	// one transaction, chunked by batchSize.
	UpdateCarousels(ctx context.Context, items []model.Carousel, batchSize int) error
}

// BatchResult summarizes a scoring run.
type BatchResult struct {
	Scored  int
	Skipped int
}

// ScoreAll scores every scorable lead and persists the results with a single
// bulk update. A failed update fails the run; nothing is retried per record.
func ScoreAll(ctx context.Context, st Store, e *Engine, batchSize int) (BatchResult, error) {
	var res BatchResult

	cands, err := st.ListScorable(ctx)
	if err != nil {
		return res, eris.Wrap(err, "scoring: list scorable")
	}

	items := make([]model.Carousel, 0, len(cands))
	for _, c := range cands {
		car := c.Carousel
		if err := e.Apply(&car, c.Lead); err != nil {
			zap.L().Warn("scoring: skip carousel", zap.Int64("carousel_id", car.ID), zap.Error(err))
			res.Skipped++
			continue
		}
		items = append(items, car)
	}

	if len(items) > 0 {
		if err := st.UpdateCarousels(ctx, items, batchSize); err != nil {
			return res, eris.Wrap(err, "scoring: update carousels")
		}
	}
	res.Scored = len(items)

	zap.L().Info("scoring: scored leads",
		zap.Int("count", res.Scored),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
