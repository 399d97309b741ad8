package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Scoring group database properties.
const (
	PropName    = "Name"
	PropDefault = "Default"
	PropActive  = "Active"
	PropURLs    = "URLs"
	PropPoints  = "Points"
)

// ScoringGroupPage is a scoring group as maintained in Notion. URLs holds
// one landing page per line; Points is a YAML document mapping answer slot
// to answer value to points.
type ScoringGroupPage struct {
	ID      string
	Name    string
	Default bool
	URLs    []string
	Points  string
}

// ScoringGroups fetches the active scoring groups of a database.
func ScoringGroups(ctx context.Context, c Querier, dbID string) ([]ScoringGroupPage, error) {
	pages, err := QueryActive(ctx, c, dbID, PropActive)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query scoring groups")
	}
	out := make([]ScoringGroupPage, 0, len(pages))
	for _, p := range pages {
		out = append(out, ParseScoringGroupPage(p))
	}
	return out, nil
}

// ParseScoringGroupPage reads the scoring group properties of a page.
// Missing or mistyped properties are left empty.
func ParseScoringGroupPage(p notionapi.Page) ScoringGroupPage {
	g := ScoringGroupPage{
		ID:     string(p.ID),
		Name:   strings.TrimSpace(plainText(p.Properties[PropName])),
		Points: plainText(p.Properties[PropPoints]),
	}
	if cb, ok := p.Properties[PropDefault].(*notionapi.CheckboxProperty); ok {
		g.Default = cb.Checkbox
	}
	for _, line := range strings.Split(plainText(p.Properties[PropURLs]), "\n") {
		if u := strings.TrimSpace(line); u != "" {
			g.URLs = append(g.URLs, u)
		}
	}
	return g
}

func plainText(prop notionapi.Property) string {
	var rts []notionapi.RichText
	switch v := prop.(type) {
	case *notionapi.TitleProperty:
		rts = v.Title
	case *notionapi.RichTextProperty:
		rts = v.RichText
	default:
		return ""
	}
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}
