package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// FunnelWeeks is how many weeks of profit follow the lead window.
const FunnelWeeks = 8

// FunnelWindows are the week windows shown in the funnel-channel report.
var FunnelWindows = []int{1, 2, 4, 8}

// NoDataLabel fills the placeholder row of an empty report.
const NoDataLabel = "No data"

// FunnelOptions selects the funnel-channel report variant.
type FunnelOptions struct {
	LeadFrom time.Time
	LeadTo   time.Time
	// Categories limits the report to these category codes; empty keeps all.
	Categories []string
	Cumulative bool
	ROMI       bool
}

// FunnelInput holds the records the report aggregates. Leads contribute
// their (category, channel) pairs, expenses are summed over the lead
// window and payments are bucketed by week after the window start.
type FunnelInput struct {
	Leads    []model.Lead
	Expenses []model.Expense
	Payments []model.PaymentChannel
}

// FunnelRow is one (category, channel) line. Windows holds the profit (or
// ROMI percent) of each entry of FunnelWindows.
type FunnelRow struct {
	Category string            `json:"category"`
	Channel  string            `json:"channel"`
	Subtotal bool              `json:"subtotal,omitempty"`
	Expenses decimal.Decimal   `json:"expenses"`
	Windows  []decimal.Decimal `json:"windows"`

	weeks [FunnelWeeks]decimal.Decimal
}

type funnelKey struct{ category, channel string }

// BuildFunnel builds the funnel-channel report. Without leads or without
// expenses in the window it degrades to a single placeholder row.
func BuildFunnel(in FunnelInput, e *attribution.Engine, opts FunnelOptions) []FunnelRow {
	from, to := Day(opts.LeadFrom), Day(opts.LeadTo)
	rows := make(map[funnelKey]*FunnelRow)
	get := func(k funnelKey) *FunnelRow {
		r, ok := rows[k]
		if !ok {
			r = &FunnelRow{Category: k.category, Channel: k.channel, Expenses: decimal.Zero}
			for i := range r.weeks {
				r.weeks[i] = decimal.Zero
			}
			rows[k] = r
		}
		return r
	}

	var leads, expenses int
	for _, l := range in.Leads {
		if !within(l.CreatedAt, from, to) {
			continue
		}
		k, ok := urlKey(e, l.URL)
		if !ok {
			continue
		}
		get(k)
		leads++
	}

	for _, x := range in.Expenses {
		if !within(x.Date, from, to) {
			continue
		}
		cat := e.Categorizer().Category(tracking.Parse(x.Landing))
		if !funnelCategory(cat) {
			continue
		}
		r := get(funnelKey{cat, e.ChannelTitle(x.Channel)})
		r.Expenses = r.Expenses.Add(decimal.NewFromInt(x.Amount))
		expenses++
	}

	if leads == 0 || expenses == 0 {
		return FunnelPlaceholder()
	}

	horizon := from.AddDate(0, 0, 7*FunnelWeeks)
	for _, p := range in.Payments {
		if !within(p.PaidAt, from, horizon) || !within(p.LastLeadAt, from, to) {
			continue
		}
		res := e.Attribute(p.URL)
		if !funnelCategory(res.Category) {
			continue
		}
		// payment URLs are stored without their query; the channel comes
		// from the full tracking URL at collection time
		ch := p.Channel
		if ch == "" {
			ch = res.Channel
		}
		k := funnelKey{res.Category, e.ChannelTitle(ch)}
		w := int(Day(p.PaidAt).Sub(from).Hours()/24) / 7
		if w >= FunnelWeeks {
			// the last day of the horizon belongs to the last week
			w = FunnelWeeks - 1
		}
		r := get(k)
		r.weeks[w] = r.weeks[w].Add(decimal.NewFromInt(p.Profit))
	}

	out := withSubtotals(sortedFunnel(rows))
	out = filterCategories(out, opts.Categories)

	kept := out[:0]
	for _, r := range out {
		if opts.Cumulative {
			for i := 1; i < FunnelWeeks; i++ {
				r.weeks[i] = r.weeks[i].Add(r.weeks[i-1])
			}
		}
		r.Windows = make([]decimal.Decimal, len(FunnelWindows))
		for i, n := range FunnelWindows {
			r.Windows[i] = r.weeks[n-1]
			if opts.ROMI {
				r.Windows[i] = ROMI(r.weeks[n-1], r.Expenses)
			}
		}
		if !r.zero() {
			kept = append(kept, r)
		}
	}
	return kept
}

// ROMI is the return on marketing investment in percent. It is zero when
// either profit or expenses is zero.
func ROMI(profit, expenses decimal.Decimal) decimal.Decimal {
	if profit.IsZero() || expenses.IsZero() {
		return decimal.Zero
	}
	return profit.Sub(expenses).Div(expenses).Mul(decimal.NewFromInt(100))
}

func (r FunnelRow) zero() bool {
	if !r.Expenses.IsZero() {
		return false
	}
	for _, w := range r.Windows {
		if !w.IsZero() {
			return false
		}
	}
	return true
}

// funnelCategory reports whether a category has its own funnel section.
// Base-offer pages are reported by the cohort report only.
func funnelCategory(cat string) bool {
	return cat != model.UndefinedLabel && cat != attribution.BaseOfferCategory
}

func urlKey(e *attribution.Engine, raw string) (funnelKey, bool) {
	res := e.Attribute(raw)
	if !funnelCategory(res.Category) {
		return funnelKey{}, false
	}
	return funnelKey{res.Category, e.ChannelTitle(res.Channel)}, true
}

// FunnelPlaceholder is the single "No data" row of an empty report.
func FunnelPlaceholder() []FunnelRow {
	return []FunnelRow{{
		Channel:  NoDataLabel,
		Expenses: decimal.Zero,
		Windows:  make([]decimal.Decimal, len(FunnelWindows)),
	}}
}

// sortedFunnel orders rows by report category order, then by channel.
func sortedFunnel(rows map[funnelKey]*FunnelRow) []FunnelRow {
	rank := make(map[string]int)
	for i, c := range attribution.CategoryOrder() {
		rank[c] = i
	}
	out := make([]FunnelRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank[out[i].Category], rank[out[j].Category]
		if ri != rj {
			return ri < rj
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

// withSubtotals puts a subtotal row titled after the category in front of
// each category's rows. Input must be grouped by category.
func withSubtotals(rows []FunnelRow) []FunnelRow {
	out := make([]FunnelRow, 0, len(rows)+len(attribution.CategoryOrder()))
	for i := 0; i < len(rows); {
		j := i
		total := FunnelRow{
			Category: rows[i].Category,
			Channel:  attribution.CategoryTitle(rows[i].Category),
			Subtotal: true,
			Expenses: decimal.Zero,
		}
		for w := range total.weeks {
			total.weeks[w] = decimal.Zero
		}
		for ; j < len(rows) && rows[j].Category == rows[i].Category; j++ {
			total.Expenses = total.Expenses.Add(rows[j].Expenses)
			for w := range total.weeks {
				total.weeks[w] = total.weeks[w].Add(rows[j].weeks[w])
			}
		}
		out = append(out, total)
		out = append(out, rows[i:j]...)
		i = j
	}
	return out
}

func filterCategories(rows []FunnelRow, categories []string) []FunnelRow {
	if len(categories) == 0 {
		return rows
	}
	keep := make(map[string]bool, len(categories))
	for _, c := range categories {
		keep[c] = true
	}
	out := rows[:0]
	for _, r := range rows {
		if keep[r.Category] {
			out = append(out, r)
		}
	}
	return out
}
