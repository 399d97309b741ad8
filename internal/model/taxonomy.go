package model

import "time"

// Channel is a traffic channel dimension: the raw tracking marker (Key) and
// its display title.
type Channel struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// CategoryURL assigns a landing page (host+path) to a funnel category code.
type CategoryURL struct {
	URL      string `json:"url"`
	Category string `json:"category"`
}

// LandingPage is a landing page known to the reference sheet.
type LandingPage struct {
	URL  string `json:"url"`
	Paid bool   `json:"paid"`
}

// Expense is the advertising spend of one channel on one landing page and
// day. Channel holds the channel key as reported by the ad analytics export.
type Expense struct {
	Date    time.Time `json:"date"`
	Landing string    `json:"landing"`
	Channel string    `json:"channel"`
	Amount  int64     `json:"amount"`
}
