package taxonomy

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadops-cli/internal/config"
	"github.com/sells-group/leadops-cli/internal/resilience"
	"github.com/sells-group/leadops-cli/internal/scoring"
	"github.com/sells-group/leadops-cli/pkg/notion"
)

// GroupSource supplies scoring groups.
type GroupSource interface {
	Groups(ctx context.Context) ([]scoring.Group, error)
}

// NotionGroups reads the active scoring groups of a Notion database.
type NotionGroups struct {
	client notion.Querier
	dbID   string
	retry  resilience.RetryPolicy
}

// NewNotionGroups creates a Notion group source.
func NewNotionGroups(c notion.Querier, dbID string, retry resilience.RetryPolicy) *NotionGroups {
	return &NotionGroups{client: c, dbID: dbID, retry: retry}
}

// Groups fetches and converts every active group. A group whose points do
// not parse is skipped with a warning.
func (n *NotionGroups) Groups(ctx context.Context) ([]scoring.Group, error) {
	pages, err := resilience.RetryVal(ctx, n.retry, func(ctx context.Context) ([]notion.ScoringGroupPage, error) {
		return notion.ScoringGroups(ctx, n.client, n.dbID)
	})
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: notion groups")
	}

	out := make([]scoring.Group, 0, len(pages))
	for _, p := range pages {
		g, err := GroupFromPage(p)
		if err != nil {
			zap.L().Warn("taxonomy: skip scoring group", zap.String("page_id", p.ID), zap.String("name", p.Name), zap.Error(err))
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// GroupFromPage converts a Notion scoring group. Points slots may be written
// as "qa_1" or "1".
func GroupFromPage(p notion.ScoringGroupPage) (scoring.Group, error) {
	if p.Name == "" {
		return scoring.Group{}, eris.New("taxonomy: scoring group has no name")
	}
	g := scoring.Group{Name: p.Name, Default: p.Default, URLs: p.URLs}
	if strings.TrimSpace(p.Points) == "" {
		return g, nil
	}

	var raw map[string]map[string]int
	if err := yaml.Unmarshal([]byte(p.Points), &raw); err != nil {
		return scoring.Group{}, eris.Wrapf(err, "taxonomy: parse points of %q", p.Name)
	}
	g.Points = make(map[string]map[string]int, len(raw))
	for slot, answers := range raw {
		g.Points[strings.TrimPrefix(strings.TrimSpace(slot), "qa_")] = answers
	}
	return g, nil
}

// FileGroups reads scoring groups from a YAML fixture.
type FileGroups struct {
	Path string
}

// Groups loads the fixture.
func (f FileGroups) Groups(context.Context) ([]scoring.Group, error) {
	return scoring.LoadGroupsFile(f.Path)
}

// NewGroupSource picks the scoring group source named by scoring.groups_source.
func NewGroupSource(cfg *config.Config, c notion.Querier) (GroupSource, error) {
	switch cfg.Scoring.GroupsSource {
	case "notion":
		if c == nil {
			return nil, eris.New("taxonomy: notion group source needs a client")
		}
		return NewNotionGroups(c, cfg.Notion.ScoringGroupDB, resilience.PolicyFrom(cfg.Retry)), nil
	case "file":
		if cfg.Scoring.GroupsFile == "" {
			return nil, eris.New("taxonomy: scoring.groups_file is required for the file group source")
		}
		return FileGroups{Path: cfg.Scoring.GroupsFile}, nil
	default:
		return nil, eris.Errorf("taxonomy: unknown scoring group source %q", cfg.Scoring.GroupsSource)
	}
}
