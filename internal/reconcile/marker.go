package reconcile

import (
	"strings"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// CRMLead is the CRM deal a payment references.
type CRMLead struct {
	ID        string
	Email     string
	URL       string
	UTMSource string
}

// MarkerCandidates lists the channel markers a payment may be attributed to:
// the markers of its own tracking URL, then those of its CRM deal URL, then
// the deal's utm_source. Duplicates and blanks are dropped.
func MarkerCandidates(p model.Payment, crm *CRMLead) []string {
	out := attribution.Markers(tracking.Parse(p.URL).Query)
	if crm == nil {
		return out
	}
	seen := make(map[string]bool, len(out)+3)
	for _, m := range out {
		seen[m] = true
	}
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
	}
	for _, m := range attribution.Markers(tracking.Parse(crm.URL).Query) {
		add(m)
	}
	add(crm.UTMSource)
	return out
}

// ResolveChannel returns the channel key of the first candidate known to the
// channel taxonomy, or "Undefined".
func ResolveChannel(e *attribution.Engine, candidates []string) string {
	if ch, ok := e.ResolveChannel(candidates); ok {
		return ch.Key
	}
	return model.UndefinedLabel
}

// ManagerGroups maps manager full names, in both name orders, to their group.
type ManagerGroups map[string]string

// NewManagerGroups indexes managers by "First Last" and "Last First".
func NewManagerGroups(managers []model.Manager) ManagerGroups {
	mg := make(ManagerGroups, 2*len(managers))
	for _, m := range managers {
		mg[m.LastName+" "+m.FirstName] = m.Group
		mg[m.FirstName+" "+m.LastName] = m.Group
	}
	return mg
}

// Group returns the group of the payment's manager, falling back to the
// sheet's group number.
func (mg ManagerGroups) Group(p model.Payment) string {
	if g := mg[p.Manager]; p.Manager != "" && g != "" {
		return g
	}
	if p.ManagerGroup != "" {
		return "group_" + p.ManagerGroup
	}
	return ""
}
