package model

import (
	"strconv"
	"strings"
	"time"
)

// AnswerSlots is the number of quiz answer columns carried by a lead (qa_1..qa_6).
const AnswerSlots = 6

// ScoredAnswerSlots is the number of answer slots that take part in scoring (qa_1..qa_5).
const ScoredAnswerSlots = 5

// Answers holds free-form quiz answers indexed from zero (Answers[0] is qa_1).
type Answers [AnswerSlots]string

// Lead is a contact-intent record captured by a landing page form.
type Lead struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
	Answers   Answers   `json:"answers"`
}

// AnswerKey returns the criterion name of the zero-based answer slot i ("qa_1" for 0).
func AnswerKey(i int) string {
	return "qa_" + strconv.Itoa(i+1)
}

// Empty reports whether the first n answer slots are all "". A slot holding
// only whitespace counts as answered.
func (a Answers) Empty(n int) bool {
	if n > AnswerSlots {
		n = AnswerSlots
	}
	for i := 0; i < n; i++ {
		if a[i] != "" {
			return false
		}
	}
	return true
}

// NormalizedEmail returns the lower-cased, trimmed email used as identity key.
func (l Lead) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(l.Email))
}

// PhoneDigits returns only the digits of the phone number.
func (l Lead) PhoneDigits() string {
	return DigitsOnly(l.Phone)
}

// DigitsOnly strips every non-digit rune from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
