// Package scoring computes lead scores from answers, recency and channel and
// moves scored leads into distribution.
package scoring

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/config"
)

// DefaultScoringConfig returns the production scoring tables.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Days: []config.DaysBucket{
			{MaxDays: 0, Points: 20},
			{MaxDays: 1, Points: 15},
			{MaxDays: 2, Points: 12},
			{MaxDays: 3, Points: 6},
			{MaxDays: 7, Points: 1},
			{MaxDays: 14, Points: 0},
			{MaxDays: 21, Points: -15},
			{MaxDays: 28, Points: -25},
			{MaxDays: 32, Points: -50},
		},
		FloorPoints: -60,
		Channels: map[string]int{
			"youtube": 10,
			"tg":      5,
			"direct":  5,
		},
		BaseOfferPenalty: -15,
		NoAnswersBonus:   100,
		BaseOfferGroup:   "База оффер",
		BatchSize:        1000,
	}
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string
	if len(c.Days) == 0 {
		errs = append(errs, "days table is empty")
	}
	seen := make(map[int]bool, len(c.Days))
	for _, b := range c.Days {
		if b.MaxDays < 0 {
			errs = append(errs, "days threshold must be >= 0")
		}
		if seen[b.MaxDays] {
			errs = append(errs, "duplicate days threshold")
		}
		seen[b.MaxDays] = true
	}
	if c.BatchSize <= 0 {
		errs = append(errs, "batch_size must be > 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("scoring: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// sortedDays returns a copy of the days table in ascending threshold order.
func sortedDays(days []config.DaysBucket) []config.DaysBucket {
	out := make([]config.DaysBucket, len(days))
	copy(out, days)
	sort.Slice(out, func(i, j int) bool { return out[i].MaxDays < out[j].MaxDays })
	return out
}
