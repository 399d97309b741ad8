package model

import (
	"github.com/rotisserie/eris"
)

// CarouselStatus is the distribution state of a scored lead.
type CarouselStatus string

const (
	CarouselStatusNew         CarouselStatus = "new"
	CarouselStatusDistributed CarouselStatus = "distributed"
	CarouselStatusQualified   CarouselStatus = "qualified"
	CarouselStatusUnqualified CarouselStatus = "unqualified"
	CarouselStatusComplete    CarouselStatus = "complete"
)

// carouselTransitions lists the allowed next states per state. Terminal
// states have no entry.
var carouselTransitions = map[CarouselStatus][]CarouselStatus{
	CarouselStatusNew: {CarouselStatusDistributed},
	CarouselStatusDistributed: {
		CarouselStatusDistributed,
		CarouselStatusQualified,
		CarouselStatusUnqualified,
		CarouselStatusComplete,
	},
}

// Valid reports whether s is a known status.
func (s CarouselStatus) Valid() bool {
	switch s {
	case CarouselStatusNew, CarouselStatusDistributed, CarouselStatusQualified,
		CarouselStatusUnqualified, CarouselStatusComplete:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s CarouselStatus) Terminal() bool {
	return s.Valid() && len(carouselTransitions[s]) == 0
}

// CanTransition reports whether moving from s to next is allowed.
func (s CarouselStatus) CanTransition(next CarouselStatus) bool {
	for _, allowed := range carouselTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Criterion is one line of a score breakdown: the value that was scored and
// the points it earned.
type Criterion struct {
	Value string `json:"value"`
	Score int    `json:"score"`
}

// ScoreInfo maps criterion name to its breakdown line.
type ScoreInfo map[string]Criterion

// Total sums the points of all criteria.
func (si ScoreInfo) Total() int {
	total := 0
	for _, c := range si {
		total += c.Score
	}
	return total
}

// Carousel is the mutable scoring state attached one-to-one to a lead.
type Carousel struct {
	ID        int64          `json:"id"`
	LeadID    int64          `json:"lead_id"`
	Status    CarouselStatus `json:"status"`
	Score     int            `json:"score"`
	ScoreInfo ScoreInfo      `json:"score_info"`
}

// Transition moves the carousel to next, rejecting regressions and
// transitions out of terminal states.
func (c *Carousel) Transition(next CarouselStatus) error {
	if !next.Valid() {
		return eris.Errorf("model: unknown carousel status %q", next)
	}
	if !c.Status.CanTransition(next) {
		return eris.Errorf("model: carousel %d cannot move from %s to %s", c.ID, c.Status, next)
	}
	c.Status = next
	return nil
}
