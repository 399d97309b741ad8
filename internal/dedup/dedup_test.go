package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadops-cli/internal/model"
)

func TestCountEmails(t *testing.T) {
	t.Parallel()

	c := CountEmails([]string{"a", "b", "a", "c", "a"})
	assert.Equal(t, 3, c.Count("a"))
	assert.True(t, c.Duplicated("a"))
	assert.False(t, c.Duplicated("b"))
	assert.False(t, c.Duplicated("c"))
	assert.False(t, c.Duplicated("missing"))
	assert.Equal(t, 3, c.Distinct())
}

func TestCountEmails_NormalizesAndSkipsBlank(t *testing.T) {
	t.Parallel()

	c := CountEmails([]string{"X@Y.com", " x@y.com ", "", "  "})
	assert.Equal(t, 2, c.Count("x@y.com"))
	assert.Equal(t, 1, c.Distinct())
}

func TestCountEmails_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := CountEmails([]string{"a", "b", "a"})
	b := CountEmails([]string{"b", "a", "a"})
	assert.Equal(t, a, b)
}

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func storedLead() model.Lead {
	return model.Lead{
		ID:        1,
		Email:     "x@y.com",
		Phone:     "5551234",
		CreatedAt: base,
		URL:       "https://s/p?utm_source=g",
		Answers:   model.Answers{"A"},
	}
}

func TestMatch_DifferentAnswersIsNew(t *testing.T) {
	t.Parallel()

	row := storedLead()
	row.ID = 0
	row.Answers = model.Answers{"B"}

	d := NewMatcher(0).Match(row, []model.Lead{storedLead()})
	assert.Equal(t, OutcomeNew, d.Outcome)
	assert.Equal(t, "identity", d.Level)
	assert.Equal(t, 1, d.Candidates)
}

func TestMatch_SameLeadExists(t *testing.T) {
	t.Parallel()

	row := storedLead()
	row.Phone = "555-12-34"
	row.Email = "X@Y.COM"
	row.CreatedAt = base.Add(15 * time.Hour)

	d := NewMatcher(0).Match(row, []model.Lead{storedLead()})
	require.Equal(t, OutcomeExists, d.Outcome)
	require.NotNil(t, d.Match)
	assert.Equal(t, int64(1), d.Match.ID)
}

func TestMatch_OutsideWindowIsNew(t *testing.T) {
	t.Parallel()

	row := storedLead()
	row.CreatedAt = base.Add(17 * time.Hour)

	d := NewMatcher(0).Match(row, []model.Lead{storedLead()})
	assert.Equal(t, OutcomeNew, d.Outcome)
	assert.Equal(t, 0, d.Candidates)
}

func TestMatch_DifferentTrackingIsNew(t *testing.T) {
	t.Parallel()

	row := storedLead()
	row.URL = "https://s/p?utm_source=g&utm_campaign=spring"

	d := NewMatcher(0).Match(row, []model.Lead{storedLead()})
	assert.Equal(t, OutcomeNew, d.Outcome)
}

func TestMatch_NarrowsAtLaterLevels(t *testing.T) {
	t.Parallel()

	other := storedLead()
	other.ID = 2
	other.URL = "https://s/other?utm_source=g"

	row := storedLead()
	d := NewMatcher(0).Match(row, []model.Lead{storedLead(), other})
	require.Equal(t, OutcomeExists, d.Outcome)
	assert.Equal(t, "landing", d.Level)
	assert.Equal(t, int64(1), d.Match.ID)

	sameLanding := storedLead()
	sameLanding.ID = 3
	sameLanding.Answers = model.Answers{"Z"}
	d = NewMatcher(0).Match(row, []model.Lead{storedLead(), sameLanding})
	require.Equal(t, OutcomeExists, d.Outcome)
	assert.Equal(t, "answers", d.Level)
}

func TestMatch_Ambiguous(t *testing.T) {
	t.Parallel()

	twin := storedLead()
	twin.ID = 2

	d := NewMatcher(0).Match(storedLead(), []model.Lead{storedLead(), twin})
	assert.Equal(t, OutcomeAmbiguous, d.Outcome)
	assert.Equal(t, 2, d.Candidates)
	assert.Nil(t, d.Match)
}

func TestMatch_NonHTTPPrefix(t *testing.T) {
	t.Parallel()

	a := storedLead()
	a.URL = "form-7"
	b := storedLead()
	b.ID = 2
	b.URL = "form-8"

	row := storedLead()
	row.URL = "form-7"
	d := NewMatcher(0).Match(row, []model.Lead{a, b})
	require.Equal(t, OutcomeExists, d.Outcome)
	assert.Equal(t, "landing", d.Level)
}

func TestNarrow_PerLevel(t *testing.T) {
	t.Parallel()

	row := storedLead()
	c := storedLead()
	c.Answers[5] = "sixth"

	assert.Len(t, Narrow([]model.Lead{c}, row, IdentityLevel(time.Hour)), 1)
	assert.Len(t, Narrow([]model.Lead{c}, row, LandingLevel()), 1)
	assert.Empty(t, Narrow([]model.Lead{c}, row, AnswersLevel()))
}

func TestFilter_Policy(t *testing.T) {
	t.Parallel()

	twin := storedLead()
	twin.ID = 2
	stored := []model.Lead{storedLead(), twin}

	fresh := storedLead()
	fresh.Email = "new@y.com"

	upload := []model.Lead{storedLead(), fresh}

	res := Filter(NewMatcher(0), upload, stored, AmbiguousAsNew)
	assert.Len(t, res.New, 2)
	assert.Equal(t, 1, res.Ambiguous)

	res = Filter(NewMatcher(0), upload, stored, AmbiguousSkip)
	require.Len(t, res.New, 1)
	assert.Equal(t, "new@y.com", res.New[0].Email)

	res = Filter(NewMatcher(0), []model.Lead{storedLead()}, []model.Lead{storedLead()}, AmbiguousSkip)
	assert.Empty(t, res.New)
	assert.Equal(t, 1, res.Existing)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, AmbiguousAsNew, p)

	p, err = ParsePolicy(" SKIP ")
	require.NoError(t, err)
	assert.Equal(t, AmbiguousSkip, p)

	_, err = ParsePolicy("merge")
	assert.Error(t, err)
}

func TestParseRows(t *testing.T) {
	t.Parallel()

	cols := DefaultColumns()
	header := []string{"created", "name", "email", "phone", "roistat_url", "country", "extra"}
	rows := [][]string{
		{"2024-01-01 10:00:00", " Ann ", "a@b.c", "+7 555", "https://s/p?utm_source=g", "RU", "x"},
		{"", "", "", "", "", "", ""},
		{"bad date", "Bob", "b@b.c"},
	}

	leads := ParseRows(header, rows, cols)
	require.Len(t, leads, 2)
	assert.Equal(t, "Ann", leads[0].Name)
	assert.Equal(t, base, leads[0].CreatedAt)
	assert.Equal(t, "RU", leads[0].Answers[0])
	assert.Equal(t, "", leads[0].Answers[1])
	assert.True(t, leads[1].CreatedAt.IsZero())
	assert.Equal(t, "", leads[1].URL)
}

func TestLandingPages(t *testing.T) {
	t.Parallel()

	got := LandingPages([]model.Lead{
		{URL: "https://s/b?x=1"},
		{URL: "https://s/a"},
		{URL: "https://s/a?utm_source=g"},
		{URL: "form-1"},
		{URL: ""},
	})
	assert.Equal(t, []string{"https://s/a", "https://s/b"}, got)
}
