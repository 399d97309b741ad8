package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/dedup"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// TotalLabel names the row summing every event.
const TotalLabel = "Total"

// AllEvents is the event value of the total row.
const AllEvents = "all"

// DuplicateRow counts paid-traffic leads and how many of them carry an email
// seen more than once.
type DuplicateRow struct {
	Event      string `json:"event"`
	Channel    string `json:"channel"`
	Subtotal   bool   `json:"subtotal,omitempty"`
	Leads      int    `json:"count_lead"`
	Duplicates int    `json:"count_double"`
	Percent    string `json:"percent_double"`
}

// DuplicateOptions bounds the leads of the report by creation date and,
// optionally, by landing group.
type DuplicateOptions struct {
	From   time.Time
	To     time.Time
	Events []string
}

// BuildDuplicates groups paid-traffic leads created in the window by
// (landing group, channel). emails counts every stored lead, not just the
// window. The total row comes first, each event is preceded by its
// subtotal. Without matching leads the report is a single placeholder row.
func BuildDuplicates(leads []model.Lead, emails dedup.Counter, e *attribution.Engine, opts DuplicateOptions) []DuplicateRow {
	from, to := Day(opts.From), Day(opts.To)
	events := make(map[string]bool, len(opts.Events))
	for _, ev := range opts.Events {
		events[ev] = true
	}

	type key struct{ event, channel string }
	groups := make(map[key]*DuplicateRow)
	for _, l := range leads {
		if !within(l.CreatedAt, from, to) || l.Email == "" {
			continue
		}
		u := tracking.Parse(l.URL)
		if len(u.Query) == 0 || u.Key() == "" || !e.Paid().Contains(u) {
			continue
		}
		event, ok := e.Categorizer().Group(u.Key())
		if !ok {
			event = model.UndefinedLabel
		}
		if len(events) > 0 && !events[event] {
			continue
		}
		k := key{event, e.ChannelTitle(attribution.ChannelFromQuery(u.Query))}
		r, ok := groups[k]
		if !ok {
			r = &DuplicateRow{Event: k.event, Channel: k.channel}
			groups[k] = r
		}
		r.Leads++
		if emails.Duplicated(l.Email) {
			r.Duplicates++
		}
	}

	if len(groups) == 0 {
		return []DuplicateRow{{Channel: NoDataLabel, Percent: percent(0, 0)}}
	}

	rows := make([]DuplicateRow, 0, len(groups))
	for _, r := range groups {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Event != rows[j].Event {
			return rows[i].Event < rows[j].Event
		}
		return rows[i].Channel < rows[j].Channel
	})

	total := DuplicateRow{Event: AllEvents, Channel: TotalLabel}
	out := []DuplicateRow{{}}
	for i := 0; i < len(rows); {
		sub := DuplicateRow{Event: rows[i].Event, Channel: EventTitle(rows[i].Event), Subtotal: true}
		j := i
		for ; j < len(rows) && rows[j].Event == rows[i].Event; j++ {
			rows[j].Percent = percent(rows[j].Duplicates, rows[j].Leads)
			sub.Leads += rows[j].Leads
			sub.Duplicates += rows[j].Duplicates
		}
		sub.Percent = percent(sub.Duplicates, sub.Leads)
		total.Leads += sub.Leads
		total.Duplicates += sub.Duplicates
		out = append(out, sub)
		out = append(out, rows[i:j]...)
		i = j
	}
	total.Percent = percent(total.Duplicates, total.Leads)
	out[0] = total
	return out
}

// EventTitle returns the display title of a landing group.
func EventTitle(group string) string {
	if cat, ok := attribution.CategoryForGroup(group); ok {
		return attribution.CategoryTitle(cat)
	}
	return group
}

func percent(part, whole int) string {
	if whole == 0 {
		return "0.0%"
	}
	p := decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(whole)))
	return p.StringFixed(1) + "%"
}
