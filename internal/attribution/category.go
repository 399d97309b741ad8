package attribution

import (
	"strings"

	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// BaseOfferMarker marks base/organic landing pages inside host+path.
const BaseOfferMarker = "baza"

// BaseOfferCategory is the fixed category of base-offer landing pages.
const BaseOfferCategory = "type_baza"

// Landing page groups as maintained in the reference sheet.
const (
	GroupIntensive3Day = "intensive3day"
	GroupIntensive2Day = "intensive2day"
	GroupChatGPT       = "chatgpt"
	GroupCourse7Lesson = "course7lesson"
	GroupNeirostaff    = "neirostaff"
	GroupChatGPTWeb    = "chatgptveb"
	GroupUniverse      = "universe"
)

// groupCategories maps a landing group to its funnel category code. Groups
// without an entry have no category.
var groupCategories = map[string]string{
	GroupIntensive3Day: "type_intensiv3",
	GroupIntensive2Day: "type_intensiv2",
	GroupChatGPT:       "type_gpt_5lesson",
	GroupCourse7Lesson: "type_ai_7lesson",
	GroupNeirostaff:    "type_neirostaff",
	GroupChatGPTWeb:    "type_gpt_vebinar",
}

// categoryTitles holds display titles of category codes, in report order.
var categoryTitles = []struct{ Code, Title string }{
	{"type_intensiv3", "ИНТЕНСИВ 3 ДНЯ"},
	{"type_intensiv2", "ИНТЕНСИВ 2 ДНЯ"},
	{"type_gpt_5lesson", "ChatGPT. КУРС 5 УРОКОВ"},
	{"type_ai_7lesson", "КУРС AI. 7 УРОКОВ"},
	{"type_neirostaff", "НЕЙРОСТАФФ"},
	{"type_gpt_vebinar", "ChatGPT. ВЕБИНАР"},
	{BaseOfferCategory, "База: Вебинары"},
}

// CategoryForGroup translates a landing group into a category code.
func CategoryForGroup(group string) (string, bool) {
	c, ok := groupCategories[group]
	return c, ok
}

// CategoryTitle returns the display title of a category code, or the code itself.
func CategoryTitle(code string) string {
	for _, ct := range categoryTitles {
		if ct.Code == code {
			return ct.Title
		}
	}
	return code
}

// CategoryOrder returns category codes in report order.
func CategoryOrder() []string {
	out := make([]string, len(categoryTitles))
	for i, ct := range categoryTitles {
		out[i] = ct.Code
	}
	return out
}

// IsBaseOffer reports whether the landing key marks a base-offer page.
func IsBaseOffer(key string) bool {
	return strings.Contains(key, BaseOfferMarker)
}

// Categorizer resolves funnel categories from landing keys.
type Categorizer struct {
	groups map[string]string // host+path -> landing group
}

// NewCategorizer builds a Categorizer from landing group assignments.
// URLs are normalized to host+path.
func NewCategorizer(urls []model.CategoryURL) *Categorizer {
	c := &Categorizer{groups: make(map[string]string, len(urls))}
	for _, u := range urls {
		c.groups[tracking.Key(u.URL)] = u.Category
	}
	return c
}

// Category returns the category of a parsed URL. The base-offer rule runs
// before the lookup; unknown pages yield "Undefined".
func (c *Categorizer) Category(u tracking.URL) string {
	key := u.Key()
	if IsBaseOffer(key) {
		return BaseOfferCategory
	}
	if c == nil {
		return model.UndefinedLabel
	}
	group, ok := c.groups[key]
	if !ok {
		return model.UndefinedLabel
	}
	if cat, ok := CategoryForGroup(group); ok {
		return cat
	}
	return model.UndefinedLabel
}

// Group returns the landing group assigned to key.
func (c *Categorizer) Group(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	g, ok := c.groups[key]
	return g, ok
}
