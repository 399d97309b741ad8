// Package dedup detects duplicate leads and matches incoming lead rows
// against stored leads.
package dedup

import (
	"strings"
)

// Counter counts occurrences of normalized emails.
type Counter map[string]int

// CountEmails builds a Counter over emails. Blank emails are ignored.
func CountEmails(emails []string) Counter {
	c := make(Counter, len(emails))
	for _, e := range emails {
		if k := normalizeEmail(e); k != "" {
			c[k]++
		}
	}
	return c
}

// Count returns how many times email was seen.
func (c Counter) Count(email string) int {
	return c[normalizeEmail(email)]
}

// Duplicated reports whether email was seen more than once.
func (c Counter) Duplicated(email string) bool {
	return c.Count(email) > 1
}

// Distinct returns the number of distinct emails.
func (c Counter) Distinct() int {
	return len(c)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
