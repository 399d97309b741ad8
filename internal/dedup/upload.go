package dedup

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// LookbackDays bounds how far back stored leads are compared against an upload.
const LookbackDays = 28

// AmbiguousPolicy decides what happens to rows the cascade could not resolve.
type AmbiguousPolicy string

const (
	// AmbiguousAsNew keeps ambiguous rows for insertion.
	AmbiguousAsNew AmbiguousPolicy = "new"
	// AmbiguousSkip drops ambiguous rows.
	AmbiguousSkip AmbiguousPolicy = "skip"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (AmbiguousPolicy, error) {
	switch AmbiguousPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AmbiguousAsNew:
		return AmbiguousAsNew, nil
	case AmbiguousSkip:
		return AmbiguousSkip, nil
	}
	return "", eris.Errorf("dedup: unknown ambiguous policy %q", s)
}

// FilterResult is the outcome of comparing an upload against stored leads.
type FilterResult struct {
	New       []model.Lead
	Existing  int
	Ambiguous int
}

// Filter returns the rows of upload that are not yet stored.
func Filter(m *Matcher, upload, stored []model.Lead, policy AmbiguousPolicy) FilterResult {
	var res FilterResult
	for _, row := range upload {
		d := m.Match(row, stored)
		switch d.Outcome {
		case OutcomeNew:
			res.New = append(res.New, row)
		case OutcomeExists:
			res.Existing++
		case OutcomeAmbiguous:
			res.Ambiguous++
			zap.L().Debug("dedup: ambiguous lead",
				zap.String("email", row.Email),
				zap.Int("candidates", d.Candidates),
				zap.String("policy", string(policy)),
			)
			if policy != AmbiguousSkip {
				res.New = append(res.New, row)
			}
		}
	}
	return res
}

// LandingPages returns the distinct landing pages of http rows, sorted.
func LandingPages(rows []model.Lead) []string {
	set := make(map[string]bool)
	for _, r := range rows {
		if !tracking.IsHTTP(r.URL) {
			continue
		}
		set[tracking.Parse(r.URL).Landing()] = true
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Columns maps lead fields to upload file headers.
type Columns struct {
	Created string
	Name    string
	Email   string
	Phone   string
	URL     string
	Answers [model.AnswerSlots]string
}

// DefaultColumns are the headers of the form export.
func DefaultColumns() Columns {
	return Columns{
		Created: "created",
		Name:    "name",
		Email:   "email",
		Phone:   "phone",
		URL:     "roistat_url",
		Answers: [model.AnswerSlots]string{
			"country",
			"сколько_вам_лет",
			"в_какой_сфере_сейчас_работаете",
			"ваш_средний_доход_в_месяц",
			"рассматриваете_ли_в_перспективе_платное_обучение_профессии_разработчик_искусственного_интеллекта",
			"сколько_времени_готовы_выделить_на_обучение_в_неделю",
		},
	}
}

var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	time.DateOnly,
}

// ParseCreated parses an upload timestamp, returning the zero time when no
// layout matches.
func ParseCreated(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ParseRows converts upload rows into leads using the header row. Cells are
// trimmed and fully blank rows are dropped. Missing columns read as blank.
func ParseRows(header []string, rows [][]string, cols Columns) []model.Lead {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var leads []model.Lead
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		l := model.Lead{
			Name:      cell(row, cols.Name),
			Email:     cell(row, cols.Email),
			Phone:     cell(row, cols.Phone),
			URL:       cell(row, cols.URL),
			CreatedAt: ParseCreated(cell(row, cols.Created)),
		}
		for i, name := range cols.Answers {
			l.Answers[i] = cell(row, name)
		}
		leads = append(leads, l)
	}
	return leads
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
