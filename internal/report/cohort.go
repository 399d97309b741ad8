package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/leadops-cli/internal/model"
)

// CohortEvent is a value earned at At by a member of the cohort that
// started at Cohort.
type CohortEvent struct {
	Cohort time.Time
	At     time.Time
	Value  decimal.Decimal
}

// CohortCount is the number of cohort members that joined on Date.
type CohortCount struct {
	Date  time.Time
	Count int64
}

// CohortRow is one cohort week. Cells[k] holds the value earned k weeks
// after the cohort week started; cells past the last complete week are
// null.
type CohortRow struct {
	From  time.Time             `json:"from"`
	To    time.Time             `json:"to"`
	Count int64                 `json:"count"`
	Sum   decimal.Decimal       `json:"sum"`
	Cells []decimal.NullDecimal `json:"cells"`
}

// Cohort is a rectangular cohort matrix: every row has Weeks cells.
type Cohort struct {
	Weeks int         `json:"weeks"`
	Rows  []CohortRow `json:"rows"`
}

// BuildCohort lays out one row per analytic week from the week containing
// start through the last week completed before now. Weeks without data are
// zero, never omitted. Events earned before their cohort started are ignored.
func BuildCohort(events []CohortEvent, counts []CohortCount, start, now time.Time) Cohort {
	first, _ := WeekOf(start)
	last := LastCompleteWeek(now)
	if last.Before(first) {
		return Cohort{}
	}
	weeks := int(last.Sub(first).Hours()/24)/7 + 1

	out := Cohort{Weeks: weeks, Rows: make([]CohortRow, weeks)}
	for i := range out.Rows {
		from := first.AddDate(0, 0, 7*i)
		row := CohortRow{
			From:  from,
			To:    from.AddDate(0, 0, 6),
			Sum:   decimal.Zero,
			Cells: make([]decimal.NullDecimal, weeks),
		}
		for k := 0; k < weeks-i; k++ {
			row.Cells[k] = decimal.NewNullDecimal(decimal.Zero)
		}
		out.Rows[i] = row
	}

	for _, ev := range events {
		cohort, at := Day(ev.Cohort), Day(ev.At)
		if at.Before(cohort) {
			continue
		}
		i := weekIndex(first, cohort)
		k := weekIndex(first, at) - i
		if i < 0 || i >= weeks || k < 0 || !out.Rows[i].Cells[k].Valid {
			continue
		}
		row := &out.Rows[i]
		row.Cells[k].Decimal = row.Cells[k].Decimal.Add(ev.Value)
		row.Sum = row.Sum.Add(ev.Value)
	}

	for _, c := range counts {
		if i := weekIndex(first, Day(c.Date)); i >= 0 && i < weeks {
			out.Rows[i].Count += c.Count
		}
	}
	return out
}

// weekIndex returns how many whole weeks d lies after first, or -1 before it.
func weekIndex(first, d time.Time) int {
	if d.Before(first) {
		return -1
	}
	return int(d.Sub(first).Hours()/24) / 7
}

// PaymentCohortEvents turns payments into cohort events keyed by the date of
// the lead that brought them. Payments without a lead date are skipped.
func PaymentCohortEvents(payments []model.Payment) []CohortEvent {
	out := make([]CohortEvent, 0, len(payments))
	for _, p := range payments {
		if p.LastLeadAt.IsZero() || p.PaidAt.IsZero() {
			continue
		}
		out = append(out, CohortEvent{Cohort: p.LastLeadAt, At: p.PaidAt, Value: decimal.NewFromInt(p.Profit)})
	}
	return out
}

// LeadCounts counts leads per creation day.
func LeadCounts(leads []model.Lead) []CohortCount {
	byDay := make(map[time.Time]int64)
	var order []time.Time
	for _, l := range leads {
		d := Day(l.CreatedAt)
		if _, ok := byDay[d]; !ok {
			order = append(order, d)
		}
		byDay[d]++
	}
	out := make([]CohortCount, len(order))
	for i, d := range order {
		out[i] = CohortCount{Date: d, Count: byDay[d]}
	}
	return out
}
