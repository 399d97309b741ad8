package scoring

import (
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// Group is a named set of per-answer points. Points is keyed by answer slot
// number ("1".."5") and then by answer value.
type Group struct {
	Name    string                    `yaml:"name" json:"name"`
	Default bool                      `yaml:"default" json:"default"`
	URLs    []string                  `yaml:"urls" json:"urls"`
	Points  map[string]map[string]int `yaml:"points" json:"points"`
}

// AnswerPoints returns the points of value in answer slot (1-based), 0 when absent.
func (g *Group) AnswerPoints(slot int, value string) int {
	if g == nil {
		return 0
	}
	return g.Points[strconv.Itoa(slot)][value]
}

// Groups indexes scoring groups for lookup by landing page.
type Groups struct {
	byURL     map[string]*Group
	byName    map[string]*Group
	def       *Group
	baseOffer string
}

// NewGroups indexes groups. baseOfferGroup names the group used for
// base-offer landing pages.
func NewGroups(groups []Group, baseOfferGroup string) *Groups {
	gs := &Groups{
		byURL:     make(map[string]*Group),
		byName:    make(map[string]*Group, len(groups)),
		baseOffer: baseOfferGroup,
	}
	for i := range groups {
		g := &groups[i]
		gs.byName[g.Name] = g
		if g.Default && gs.def == nil {
			gs.def = g
		}
		for _, u := range g.URLs {
			k := tracking.Key(u)
			if k == "" {
				continue
			}
			// a non-default group wins a URL shared with the default group
			if prev, ok := gs.byURL[k]; ok && !prev.Default {
				continue
			}
			gs.byURL[k] = g
		}
	}
	return gs
}

// Resolve picks the scoring group of a landing page: the base-offer group for
// base-offer pages, otherwise the group listing the page, otherwise the
// default group. It returns nil when nothing applies.
func (gs *Groups) Resolve(u tracking.URL) *Group {
	if gs == nil {
		return nil
	}
	key := u.Key()
	if attribution.IsBaseOffer(key) {
		return gs.byName[gs.baseOffer]
	}
	if g, ok := gs.byURL[key]; ok {
		return g
	}
	return gs.def
}

// Listed reports whether a landing page belongs to any scoring group.
func (gs *Groups) Listed(u tracking.URL) bool {
	if gs == nil {
		return false
	}
	_, ok := gs.byURL[u.Key()]
	return ok
}

// Len returns the number of indexed groups.
func (gs *Groups) Len() int {
	if gs == nil {
		return 0
	}
	return len(gs.byName)
}

// LoadGroupsFile reads scoring groups from a YAML file with a top-level
// "scoring_groups" key.
func LoadGroupsFile(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read groups %s", path)
	}

	var wrapper struct {
		Groups []Group `yaml:"scoring_groups"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "scoring: parse groups")
	}
	for i, g := range wrapper.Groups {
		if g.Name == "" {
			return nil, eris.Errorf("scoring: group %d has no name", i)
		}
	}
	return wrapper.Groups, nil
}
