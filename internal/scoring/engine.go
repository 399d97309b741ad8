package scoring

import (
	"strconv"
	"time"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/config"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// Breakdown keys besides the per-answer qa_N keys.
const (
	CriterionNoAnswers = "no_answers"
	CriterionDate      = "date"
	CriterionChannel   = "channel"
)

// Engine scores leads. It holds no mutable state after construction.
type Engine struct {
	days     []config.DaysBucket
	floor    int
	channels map[string]int
	penalty  int
	bonus    int
	groups   *Groups
	now      func() time.Time
}

// NewEngine builds an Engine from scoring tables and resolved groups.
func NewEngine(cfg config.ScoringConfig, groups *Groups) *Engine {
	return &Engine{
		days:     sortedDays(cfg.Days),
		floor:    cfg.FloorPoints,
		channels: cfg.Channels,
		penalty:  cfg.BaseOfferPenalty,
		bonus:    cfg.NoAnswersBonus,
		groups:   groups,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for recency.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ElapsedDays returns the whole days between created and now.
func ElapsedDays(created, now time.Time) int {
	return int(now.Sub(created) / (24 * time.Hour))
}

// RecencyPoints returns the points of the first bucket whose threshold is at
// least days, or the floor when no bucket applies.
func (e *Engine) RecencyPoints(days int) int {
	for _, b := range e.days {
		if b.MaxDays >= days {
			return b.Points
		}
	}
	return e.floor
}

// ChannelPoints scores the traffic channel of u. Pages listed by a scoring
// group use the channel table; base-offer pages get a fixed penalty.
func (e *Engine) ChannelPoints(u tracking.URL) int {
	if !e.groups.Listed(u) && attribution.IsBaseOffer(u.Key()) {
		return e.penalty
	}
	return e.channels[attribution.ChannelFromQuery(u.Query)]
}

// Score computes the per-criterion breakdown of a lead.
func (e *Engine) Score(l model.Lead) model.ScoreInfo {
	if l.Answers.Empty(model.ScoredAnswerSlots) {
		return model.ScoreInfo{
			CriterionNoAnswers: {Value: "", Score: e.bonus},
		}
	}

	u := tracking.Parse(l.URL)
	group := e.groups.Resolve(u)

	info := make(model.ScoreInfo, model.ScoredAnswerSlots+2)
	for i := 0; i < model.ScoredAnswerSlots; i++ {
		v := l.Answers[i]
		info[model.AnswerKey(i)] = model.Criterion{Value: v, Score: group.AnswerPoints(i+1, v)}
	}

	days := ElapsedDays(l.CreatedAt, e.now())
	info[CriterionDate] = model.Criterion{Value: strconv.Itoa(days), Score: e.RecencyPoints(days)}
	info[CriterionChannel] = model.Criterion{Value: "https://" + u.Key(), Score: e.ChannelPoints(u)}
	return info
}

// Apply scores l into c and moves c to distributed.
func (e *Engine) Apply(c *model.Carousel, l model.Lead) error {
	if err := c.Transition(model.CarouselStatusDistributed); err != nil {
		return err
	}
	c.ScoreInfo = e.Score(l)
	c.Score = c.ScoreInfo.Total()
	return nil
}
