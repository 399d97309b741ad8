package attribution

import (
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// Tables holds the reference data an Engine is built from. The caller owns
// loading and refreshing it.
type Tables struct {
	Channels     []model.Channel
	CategoryURLs []model.CategoryURL
	PaidURLs     []string
}

// Result is the attribution of a single tracking URL.
type Result struct {
	URL      tracking.URL
	Channel  string
	Category string
	Paid     bool
}

// Engine labels tracking URLs. It is immutable after construction and safe
// for concurrent use.
type Engine struct {
	categorizer *Categorizer
	paid        PaidSet
	byKey       map[string]model.Channel
	byTitle     map[string]model.Channel
}

// NewEngine builds an Engine from reference tables.
func NewEngine(t Tables) *Engine {
	e := &Engine{
		categorizer: NewCategorizer(t.CategoryURLs),
		paid:        NewPaidSet(t.PaidURLs),
		byKey:       make(map[string]model.Channel, len(t.Channels)),
		byTitle:     make(map[string]model.Channel, len(t.Channels)),
	}
	for _, ch := range t.Channels {
		e.byKey[ch.Key] = ch
		if ch.Title != "" {
			e.byTitle[ch.Title] = ch
		}
	}
	return e
}

// Attribute parses raw and labels it with channel, category and paid flag.
func (e *Engine) Attribute(raw string) Result {
	u := tracking.Parse(raw)
	return Result{
		URL:      u,
		Channel:  ChannelFromQuery(u.Query),
		Category: e.categorizer.Category(u),
		Paid:     e.paid.IsPaid(u),
	}
}

// Categorizer exposes the category resolver.
func (e *Engine) Categorizer() *Categorizer {
	return e.categorizer
}

// Paid exposes the paid landing set.
func (e *Engine) Paid() PaidSet {
	return e.paid
}

// ChannelTitle translates a channel key into its display title. Unknown keys
// yield "Undefined".
func (e *Engine) ChannelTitle(key string) string {
	if ch, ok := e.byKey[key]; ok && ch.Title != "" {
		return ch.Title
	}
	return model.UndefinedLabel
}

// ResolveChannel returns the first candidate known to the channel taxonomy,
// matched by key and then by title.
func (e *Engine) ResolveChannel(candidates []string) (model.Channel, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if ch, ok := e.byKey[c]; ok {
			return ch, true
		}
		if ch, ok := e.byTitle[c]; ok {
			return ch, true
		}
	}
	return model.Channel{}, false
}

// DigestChannel is the channel shown in the daily digest: base-offer pages
// report their utm_campaign, other pages the regular channel.
func DigestChannel(raw string) string {
	u := tracking.Parse(raw)
	if IsBaseOffer(u.Key()) {
		if c := u.Param("utm_campaign"); c != "" {
			return c
		}
		return model.UndefinedLabel
	}
	return ChannelFromQuery(u.Query)
}
