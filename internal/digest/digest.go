// Package digest assembles the daily lead distribution digest and posts it
// to the sales team chat.
package digest

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/dedup"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/report"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// TailThreshold splits the tail into low (below) and high scores.
const TailThreshold = 30

// Distribution is a carousel entry handed to an opener.
type Distribution struct {
	Owner  string
	URL    string
	Status model.CarouselStatus
	Score  int
}

// TailLead is a scored lead that was not worked yet.
type TailLead struct {
	Email string
	Score int
}

// Source reads the digest inputs. Ranges are half-open: [from, to).
type Source interface {
	LeadsCreated(ctx context.Context, from, to time.Time) ([]model.Lead, error)
	Distributed(ctx context.Context, from, to time.Time) ([]Distribution, error)
	Tail(ctx context.Context, from, to time.Time) ([]TailLead, error)
	LeadEmails(ctx context.Context) ([]string, error)
}

// Sender delivers one digest message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Section is one independently built part of the digest.
type Section struct {
	Name       string
	ErrorLabel string
	Build      func(ctx context.Context, from, to time.Time) (string, error)
}

// Digest builds the daily sections for the day before now.
type Digest struct {
	src Source
	now func() time.Time
}

// New creates a Digest reading from src.
func New(src Source) *Digest {
	return &Digest{src: src, now: time.Now}
}

// Sections returns the digest sections in send order.
func (d *Digest) Sections() []Section {
	return []Section{
		{Name: "distribution", ErrorLabel: "Report #1 failed", Build: d.distribution},
		{Name: "qualification", ErrorLabel: "Report #2 failed", Build: d.qualification},
		{Name: "tail", ErrorLabel: "Report #3 failed", Build: d.tail},
	}
}

// Run builds every section for yesterday and sends it. A failing section
// sends its error label instead; the other sections are unaffected. It
// returns how many messages were delivered.
func (d *Digest) Run(ctx context.Context, s Sender) int {
	to := report.Day(d.now())
	from := to.AddDate(0, 0, -1)

	sent := 0
	for _, sec := range d.Sections() {
		text, err := sec.Build(ctx, from, to)
		if err != nil {
			zap.L().Error("digest: section failed", zap.String("section", sec.Name), zap.Error(err))
			text = sec.ErrorLabel
		}
		if err := s.Send(ctx, text); err != nil {
			zap.L().Error("digest: send failed", zap.String("section", sec.Name), zap.Error(err))
			continue
		}
		sent++
	}
	zap.L().Info("digest: sent", zap.Int("messages", sent))
	return sent
}

func isBase(raw string) bool {
	return attribution.IsBaseOffer(tracking.Key(raw))
}

func worked(s model.CarouselStatus) bool {
	switch s {
	case model.CarouselStatusComplete, model.CarouselStatusQualified, model.CarouselStatusUnqualified:
		return true
	}
	return false
}

func (d *Digest) distribution(ctx context.Context, from, to time.Time) (string, error) {
	leads, err := d.src.LeadsCreated(ctx, from, to)
	if err != nil {
		return "", err
	}
	dist, err := d.src.Distributed(ctx, from, to)
	if err != nil {
		return "", err
	}

	base := 0
	for _, l := range leads {
		if isBase(l.URL) {
			base++
		}
	}

	openers := make(map[string]bool)
	var distributed, qualified, unqualified, scoreSum int
	for _, x := range dist {
		scoreSum += x.Score
		switch x.Status {
		case model.CarouselStatusQualified:
			qualified++
		case model.CarouselStatusUnqualified:
			unqualified++
		}
		if worked(x.Status) {
			distributed++
			openers[x.Owner] = true
		}
	}

	var b strings.Builder
	b.WriteString("Report #1. Leads distributed yesterday.\n\n")
	fmt.Fprintf(&b, "Leads received, total: %d\n", len(leads))
	fmt.Fprintf(&b, "Leads received, base: %d\n", base)
	fmt.Fprintf(&b, "Leads received, paid traffic: %d\n", len(leads)-base)
	fmt.Fprintf(&b, "Openers on shift: %d\n", len(openers))
	fmt.Fprintf(&b, "Leads distributed: %d\n", distributed)
	fmt.Fprintf(&b, "Leads per opener: %d\n", ratio(distributed, len(openers)))
	fmt.Fprintf(&b, "Qualified leads: %d\n", qualified)
	fmt.Fprintf(&b, "Unqualified leads: %d\n", unqualified)
	fmt.Fprintf(&b, "Average score of distributed leads: %d\n", ratio(scoreSum, len(dist)))
	return b.String(), nil
}

type split struct{ total, qualified, unqualified int }

func (s *split) add(status model.CarouselStatus) {
	s.total++
	switch status {
	case model.CarouselStatusQualified:
		s.qualified++
	case model.CarouselStatusUnqualified:
		s.unqualified++
	}
}

func (d *Digest) qualification(ctx context.Context, from, to time.Time) (string, error) {
	dist, err := d.src.Distributed(ctx, from, to)
	if err != nil {
		return "", err
	}

	var base, paid split
	for _, x := range dist {
		if !worked(x.Status) {
			continue
		}
		if isBase(x.URL) {
			base.add(x.Status)
		} else {
			paid.add(x.Status)
		}
	}

	var b strings.Builder
	b.WriteString("Report #2. Qualified leads by channel.\nTotal/Qualified/Unqualified\n\n")
	fmt.Fprintf(&b, "AI+GPT channels: %d/%d/%d\n", paid.total, paid.qualified, paid.unqualified)
	fmt.Fprintf(&b, "Base channels: %d/%d/%d\n", base.total, base.qualified, base.unqualified)
	return b.String(), nil
}

type tailStats struct{ low, lowDup, high, highDup int }

func countTail(tail []TailLead, emails dedup.Counter) tailStats {
	var s tailStats
	for _, l := range tail {
		dup := emails.Duplicated(l.Email)
		if l.Score < TailThreshold {
			s.low++
			if dup {
				s.lowDup++
			}
			continue
		}
		s.high++
		if dup {
			s.highDup++
		}
	}
	return s
}

func (d *Digest) tail(ctx context.Context, from, to time.Time) (string, error) {
	yesterday, err := d.src.Tail(ctx, from, to)
	if err != nil {
		return "", err
	}
	segFrom, segTo := report.WeekOf(d.now())
	segment, err := d.src.Tail(ctx, segFrom, segTo.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	all, err := d.src.LeadEmails(ctx)
	if err != nil {
		return "", err
	}
	emails := dedup.CountEmails(all)

	y, s := countTail(yesterday, emails), countTail(segment, emails)

	var b strings.Builder
	b.WriteString("Report #3. Tail composition.\n\nYesterday:\n")
	writeTail(&b, y)
	fmt.Fprintf(&b, "\nPeriod %s to %s:\n", segFrom.Format(time.DateOnly), segTo.Format(time.DateOnly))
	writeTail(&b, s)
	return b.String(), nil
}

func writeTail(b *strings.Builder, s tailStats) {
	fmt.Fprintf(b, "Leads scoring up to %d: %d\n", TailThreshold-1, s.low)
	fmt.Fprintf(b, "Of them duplicates: %d\n", s.lowDup)
	fmt.Fprintf(b, "Leads scoring %d and more: %d\n", TailThreshold, s.high)
	fmt.Fprintf(b, "Of them duplicates: %d\n", s.highDup)
}

func ratio(a, b int) int {
	if b == 0 {
		return 0
	}
	return int(math.Round(float64(a) / float64(b)))
}
