package taxonomy

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/scoring"
)

// LoadTables reads every reference table concurrently and returns the
// attribution tables and the indexed scoring groups for one run.
func LoadTables(ctx context.Context, r Reader, baseOfferGroup string) (attribution.Tables, *scoring.Groups, error) {
	var (
		channels []model.Channel
		paid     []string
		cats     []model.CategoryURL
		groups   []scoring.Group
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		channels, err = r.ListChannels(gctx)
		return eris.Wrap(err, "taxonomy: load channels")
	})
	g.Go(func() error {
		var err error
		paid, err = r.ListPaidURLs(gctx)
		return eris.Wrap(err, "taxonomy: load paid urls")
	})
	g.Go(func() error {
		var err error
		cats, err = r.ListCategoryURLs(gctx)
		return eris.Wrap(err, "taxonomy: load category urls")
	})
	g.Go(func() error {
		var err error
		groups, err = r.ListScoringGroups(gctx)
		return eris.Wrap(err, "taxonomy: load scoring groups")
	})
	if err := g.Wait(); err != nil {
		return attribution.Tables{}, nil, err
	}

	zap.L().Debug("taxonomy: tables loaded",
		zap.Int("channels", len(channels)),
		zap.Int("paid_urls", len(paid)),
		zap.Int("category_urls", len(cats)),
		zap.Int("scoring_groups", len(groups)),
	)
	t := attribution.Tables{Channels: channels, CategoryURLs: cats, PaidURLs: paid}
	return t, scoring.NewGroups(groups, baseOfferGroup), nil
}
