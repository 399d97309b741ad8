// Package taxonomy keeps the attribution reference data (traffic channels,
// paid landing pages, landing categories, scoring groups and ad expenses) in
// sync with the marketing spreadsheet and Notion, and loads it for a run.
package taxonomy

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/reconcile"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// Landing sheet headers.
const (
	ColLanding = "Посадочная"
	ColTraffic = "Тип трафика"
	ColOffer   = "Продукт/Оффер"
)

// PaidTraffic is the traffic type of paid landing pages.
const PaidTraffic = "платный трафик"

// Channel sheet headers.
const (
	ColChannelKey   = "Ключ"
	ColChannelTitle = "Название"
)

// Expense sheet headers.
const (
	ColExpenseDate    = "Дата"
	ColExpenseChannel = "Канал"
	ColExpenseAmount  = "Расход"
)

var offers = map[string]string{
	"Нейростафф":             "neirostaff",
	"ChatGPT. Курс 5 уроков": "chatgpt",
	"Курс AI. 7 уроков":      "course7lesson",
	"Интенсив 3 дня":         "intensive3day",
	"ChatGPT. Вебинар":       "chatgptveb",
	"Интенсив 2 дня":         "intensive2day",
	"Вселенная AI":           "universe",
}

// OfferCategory translates a sheet offer name into its funnel category code.
func OfferCategory(offer string) (string, bool) {
	c, ok := offers[strings.TrimSpace(offer)]
	return c, ok
}

// Landing is the parsed landing page sheet.
type Landing struct {
	PaidURLs     []string
	CategoryURLs []model.CategoryURL
}

type sheet struct {
	idx map[string]int
}

func newSheet(header []string, required ...string) (sheet, error) {
	s := sheet{idx: make(map[string]int, len(header))}
	for i, h := range header {
		s.idx[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, r := range required {
		if _, ok := s.idx[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return s, eris.Errorf("taxonomy: sheet is missing columns: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

func (s sheet) cell(row []string, col string) string {
	i, ok := s.idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseLanding reads the landing page sheet. Paid URLs are the host+path keys
// of rows with the paid traffic type; category URLs pair the key of every row
// with a known offer with its category code. Both lists are deduplicated and
// sorted.
func ParseLanding(header []string, rows [][]string) (Landing, error) {
	s, err := newSheet(header, ColLanding, ColTraffic, ColOffer)
	if err != nil {
		return Landing{}, err
	}

	paid := make(map[string]bool)
	cats := make(map[model.CategoryURL]bool)
	for _, row := range rows {
		key := tracking.Key(s.cell(row, ColLanding))
		if key == "" {
			continue
		}
		if s.cell(row, ColTraffic) == PaidTraffic {
			paid[key] = true
		}
		if code, ok := OfferCategory(s.cell(row, ColOffer)); ok {
			cats[model.CategoryURL{URL: key, Category: code}] = true
		}
	}

	var out Landing
	for k := range paid {
		out.PaidURLs = append(out.PaidURLs, k)
	}
	sort.Strings(out.PaidURLs)
	for c := range cats {
		out.CategoryURLs = append(out.CategoryURLs, c)
	}
	sort.Slice(out.CategoryURLs, func(i, j int) bool {
		a, b := out.CategoryURLs[i], out.CategoryURLs[j]
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		return a.Category < b.Category
	})
	return out, nil
}

// ParseChannels reads the channel sheet. The first row of a repeated key
// wins; rows without a key are dropped.
func ParseChannels(header []string, rows [][]string) ([]model.Channel, error) {
	s, err := newSheet(header, ColChannelKey, ColChannelTitle)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []model.Channel
	for _, row := range rows {
		key := s.cell(row, ColChannelKey)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.Channel{Key: key, Title: s.cell(row, ColChannelTitle)})
	}
	return out, nil
}

// ParseExpenses reads the ad expense sheet. Rows without a date, landing or
// channel are dropped; the amount keeps its digits only.
func ParseExpenses(header []string, rows [][]string) ([]model.Expense, error) {
	s, err := newSheet(header, ColExpenseDate, ColLanding, ColExpenseChannel, ColExpenseAmount)
	if err != nil {
		return nil, err
	}
	var out []model.Expense
	for _, row := range rows {
		date := reconcile.ParseDate(s.cell(row, ColExpenseDate))
		landing := tracking.Key(s.cell(row, ColLanding))
		channel := s.cell(row, ColExpenseChannel)
		if date.IsZero() || landing == "" || channel == "" {
			continue
		}
		out = append(out, model.Expense{
			Date:    date,
			Landing: landing,
			Channel: channel,
			Amount:  reconcile.ParseProfit(s.cell(row, ColExpenseAmount)),
		})
	}
	return out, nil
}
