package taxonomy

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/scoring"
)

// Reader reads the stored reference tables.
type Reader interface {
	ListChannels(ctx context.Context) ([]model.Channel, error)
	ListPaidURLs(ctx context.Context) ([]string, error)
	ListCategoryURLs(ctx context.Context) ([]model.CategoryURL, error)
	ListScoringGroups(ctx context.Context) ([]scoring.Group, error)
}

// Store persists reference tables.
type Store interface {
	Reader
	InsertChannels(ctx context.Context, channels []model.Channel) error
	InsertPaidURLs(ctx context.Context, urls []string) error
	InsertCategoryURLs(ctx context.Context, urls []model.CategoryURL) error
	// UpsertScoringGroups inserts or replaces groups by name.
	UpsertScoringGroups(ctx context.Context, groups []scoring.Group) error
	// ReplaceExpenses swaps every expense dated within [from, to] for rows.
	ReplaceExpenses(ctx context.Context, from, to time.Time, rows []model.Expense) error
}

// Syncer adds the reference rows the store does not have yet. Rows are never
// removed: a landing page dropped from the sheet keeps attributing history.
type Syncer struct {
	store Store
}

// NewSyncer creates a Syncer.
func NewSyncer(st Store) *Syncer {
	return &Syncer{store: st}
}

// SyncChannels inserts channels whose key is not stored. It returns the
// number of inserted rows.
func (s *Syncer) SyncChannels(ctx context.Context, channels []model.Channel) (int, error) {
	stored, err := s.store.ListChannels(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "taxonomy: list channels")
	}
	missing := MissingChannels(stored, channels)
	if len(missing) == 0 {
		zap.L().Info("taxonomy: no new channels")
		return 0, nil
	}
	if err := s.store.InsertChannels(ctx, missing); err != nil {
		return 0, eris.Wrap(err, "taxonomy: insert channels")
	}
	zap.L().Info("taxonomy: channels added", zap.Int("count", len(missing)))
	return len(missing), nil
}

// SyncPaidURLs inserts paid landing pages that are not stored.
func (s *Syncer) SyncPaidURLs(ctx context.Context, urls []string) (int, error) {
	stored, err := s.store.ListPaidURLs(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "taxonomy: list paid urls")
	}
	missing := MissingURLs(stored, urls)
	if len(missing) == 0 {
		zap.L().Info("taxonomy: no new paid urls")
		return 0, nil
	}
	if err := s.store.InsertPaidURLs(ctx, missing); err != nil {
		return 0, eris.Wrap(err, "taxonomy: insert paid urls")
	}
	zap.L().Info("taxonomy: paid urls added", zap.Int("count", len(missing)))
	return len(missing), nil
}

// SyncCategoryURLs inserts (url, category) pairs that are not stored.
func (s *Syncer) SyncCategoryURLs(ctx context.Context, urls []model.CategoryURL) (int, error) {
	stored, err := s.store.ListCategoryURLs(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "taxonomy: list category urls")
	}
	missing := MissingCategoryURLs(stored, urls)
	if len(missing) == 0 {
		zap.L().Info("taxonomy: no new category urls")
		return 0, nil
	}
	if err := s.store.InsertCategoryURLs(ctx, missing); err != nil {
		return 0, eris.Wrap(err, "taxonomy: insert category urls")
	}
	zap.L().Info("taxonomy: category urls added", zap.Int("count", len(missing)))
	return len(missing), nil
}

// SyncGroups upserts every group of src.
func (s *Syncer) SyncGroups(ctx context.Context, src GroupSource) (int, error) {
	groups, err := src.Groups(ctx)
	if err != nil {
		return 0, err
	}
	if len(groups) == 0 {
		zap.L().Warn("taxonomy: group source returned no groups")
		return 0, nil
	}
	if err := s.store.UpsertScoringGroups(ctx, groups); err != nil {
		return 0, eris.Wrap(err, "taxonomy: upsert scoring groups")
	}
	zap.L().Info("taxonomy: scoring groups synced", zap.Int("count", len(groups)))
	return len(groups), nil
}

// SyncExpenses replaces the stored expenses of the dates the sheet covers.
func (s *Syncer) SyncExpenses(ctx context.Context, rows []model.Expense) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	from, to := rows[0].Date, rows[0].Date
	for _, r := range rows[1:] {
		if r.Date.Before(from) {
			from = r.Date
		}
		if r.Date.After(to) {
			to = r.Date
		}
	}
	if err := s.store.ReplaceExpenses(ctx, from, to, rows); err != nil {
		return 0, eris.Wrap(err, "taxonomy: replace expenses")
	}
	zap.L().Info("taxonomy: expenses synced", zap.Int("count", len(rows)),
		zap.Time("from", from), zap.Time("to", to))
	return len(rows), nil
}

// MissingChannels returns the incoming channels whose key is not stored,
// first occurrence per key.
func MissingChannels(stored, incoming []model.Channel) []model.Channel {
	seen := make(map[string]bool, len(stored))
	for _, c := range stored {
		seen[c.Key] = true
	}
	var out []model.Channel
	for _, c := range incoming {
		if c.Key == "" || seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		out = append(out, c)
	}
	return out
}

// MissingURLs returns the sorted incoming URLs that are not stored.
func MissingURLs(stored, incoming []string) []string {
	seen := make(map[string]bool, len(stored))
	for _, u := range stored {
		seen[u] = true
	}
	var out []string
	for _, u := range incoming {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// MissingCategoryURLs returns the incoming pairs that are not stored.
func MissingCategoryURLs(stored, incoming []model.CategoryURL) []model.CategoryURL {
	seen := make(map[model.CategoryURL]bool, len(stored))
	for _, c := range stored {
		seen[c] = true
	}
	var out []model.CategoryURL
	for _, c := range incoming {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
