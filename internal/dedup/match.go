package dedup

import (
	"strings"
	"time"

	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// DefaultWindow is the creation-time tolerance of the identity level.
const DefaultWindow = 16 * time.Hour

// Outcome is the verdict on an incoming lead row.
type Outcome string

const (
	OutcomeNew       Outcome = "new"
	OutcomeExists    Outcome = "exists"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Decision is the result of matching one row.
type Decision struct {
	Outcome Outcome
	// Level is the name of the level that decided, empty when the
	// candidate set was still ambiguous after the last level.
	Level      string
	Match      *model.Lead
	Candidates int
}

// Level is one predicate of the cascade. Keep reports whether a stored
// candidate survives for the incoming row.
type Level struct {
	Name string
	Keep func(row, candidate model.Lead) bool
}

// IdentityLevel matches email, phone digits and creation time within window.
// Emails compare case-insensitively, the same way the store looks up
// candidates by lower(email).
func IdentityLevel(window time.Duration) Level {
	return Level{
		Name: "identity",
		Keep: func(row, c model.Lead) bool {
			if row.NormalizedEmail() != c.NormalizedEmail() {
				return false
			}
			if row.PhoneDigits() != c.PhoneDigits() {
				return false
			}
			d := row.CreatedAt.Sub(c.CreatedAt)
			return d >= -window && d <= window
		},
	}
}

// LandingLevel requires the candidate URL to start with the row's landing
// page, or with the raw row URL when it is not an http URL.
func LandingLevel() Level {
	return Level{
		Name: "landing",
		Keep: func(row, c model.Lead) bool {
			prefix := row.URL
			if tracking.IsHTTP(row.URL) {
				prefix = tracking.Parse(row.URL).Landing()
			}
			return strings.HasPrefix(c.URL, prefix)
		},
	}
}

// AnswersLevel requires every quiz answer slot to be equal.
func AnswersLevel() Level {
	return Level{
		Name: "answers",
		Keep: func(row, c model.Lead) bool {
			return row.Answers == c.Answers
		},
	}
}

// Narrow returns the candidates that survive lvl for row.
func Narrow(candidates []model.Lead, row model.Lead, lvl Level) []model.Lead {
	var out []model.Lead
	for _, c := range candidates {
		if lvl.Keep(row, c) {
			out = append(out, c)
		}
	}
	return out
}

// Matcher applies an ordered cascade of levels.
type Matcher struct {
	levels []Level
}

// NewMatcher builds the identity, landing, answers cascade.
func NewMatcher(window time.Duration) *Matcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Matcher{levels: []Level{IdentityLevel(window), LandingLevel(), AnswersLevel()}}
}

// NewMatcherWithLevels builds a Matcher over custom levels.
func NewMatcherWithLevels(levels ...Level) *Matcher {
	return &Matcher{levels: levels}
}

// Match decides whether row already exists among stored. The cascade stops at
// the first level that narrows the candidates to at most one: none means new,
// one means exists unless the candidate differs meaningfully from the row.
// More than one candidate after the last level is ambiguous.
func (m *Matcher) Match(row model.Lead, stored []model.Lead) Decision {
	candidates := stored
	for _, lvl := range m.levels {
		candidates = Narrow(candidates, row, lvl)
		switch len(candidates) {
		case 0:
			return Decision{Outcome: OutcomeNew, Level: lvl.Name}
		case 1:
			c := candidates[0]
			if Differs(row, c) {
				return Decision{Outcome: OutcomeNew, Level: lvl.Name, Candidates: 1}
			}
			return Decision{Outcome: OutcomeExists, Level: lvl.Name, Match: &c, Candidates: 1}
		}
	}
	return Decision{Outcome: OutcomeAmbiguous, Candidates: len(candidates)}
}

// trackedParams are the query parameters whose difference makes two leads distinct.
var trackedParams = []string{"utm_source", "utm_campaign", "utm_content", "utm_medium", "utm_term", "roistat"}

// Differs reports whether a single surviving candidate is still a different
// lead: when both URLs are http URLs their landing pages and tracked
// parameters must agree, and every answer slot must agree.
func Differs(row, c model.Lead) bool {
	if tracking.IsHTTP(row.URL) && tracking.IsHTTP(c.URL) {
		ru, cu := tracking.Parse(row.URL), tracking.Parse(c.URL)
		if ru.Landing() != cu.Landing() {
			return true
		}
		for _, p := range trackedParams {
			if ru.Param(p) != cu.Param(p) {
				return true
			}
		}
	}
	return row.Answers != c.Answers
}
