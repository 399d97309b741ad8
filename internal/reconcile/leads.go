package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// ExtraCoursesCourse marks payments for add-on courses; surcharges of such
// payments are attributed on their own instead of inheriting.
const ExtraCoursesCourse = "доп.курсы"

// LeadAttributor finds the paid lead that produced each payment.
type LeadAttributor struct {
	paid    attribution.PaidSet
	byEmail map[string][]model.Lead
	loc     *time.Location
}

// NewLeadAttributor indexes leads by lower-cased email, newest first. Lead
// creation dates are compared in loc.
func NewLeadAttributor(leads []model.Lead, paid attribution.PaidSet, loc *time.Location) *LeadAttributor {
	if loc == nil {
		loc = time.UTC
	}
	la := &LeadAttributor{paid: paid, byEmail: make(map[string][]model.Lead), loc: loc}
	for _, l := range leads {
		k := l.NormalizedEmail()
		if k == "" {
			continue
		}
		la.byEmail[k] = append(la.byEmail[k], l)
	}
	for _, ls := range la.byEmail {
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].CreatedAt.After(ls[j].CreatedAt) })
	}
	return la
}

func (la *LeadAttributor) leadDate(l model.Lead) time.Time {
	y, m, d := l.CreatedAt.In(la.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Detect returns the newest lead of email created on or before paidAt whose
// URL passes the paid test, else the newest one on a paid landing page.
func (la *LeadAttributor) Detect(email string, paidAt time.Time) (model.Lead, bool) {
	var eligible []model.Lead
	for _, l := range la.byEmail[strings.ToLower(strings.TrimSpace(email))] {
		if !la.leadDate(l).After(paidAt) {
			eligible = append(eligible, l)
		}
	}
	for _, l := range eligible {
		if la.paid.IsPaid(tracking.Parse(l.URL)) {
			return l, true
		}
	}
	for _, l := range eligible {
		if la.paid.Contains(tracking.Parse(l.URL)) {
			return l, true
		}
	}
	return model.Lead{}, false
}

// PaidOrUndefined returns raw when it passes the paid test, else "Undefined".
func (la *LeadAttributor) PaidOrUndefined(raw string) string {
	if la.paid.IsPaid(tracking.Parse(raw)) {
		return raw
	}
	return model.UndefinedLabel
}

// Attribute sets LastLeadAt and TargetURL of every payment. crmEmails maps
// CRM ids to the deal's contact email; payments without one keep the sheet
// values. Within a (contact email, course) group a surcharge inherits the
// attribution of the previous payment. Finally every target URL failing the
// paid test becomes "Undefined".
func (la *LeadAttributor) Attribute(payments []model.Payment, crmEmails map[string]string) {
	type groupKey struct{ email, course string }
	groups := make(map[groupKey][]int)
	var order []groupKey

	for i := range payments {
		payments[i].TargetURL = payments[i].URL
		email := strings.ToLower(strings.TrimSpace(crmEmails[payments[i].CRMID]))
		if email == "" {
			continue
		}
		k := groupKey{email, payments[i].Course}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, k := range order {
		var prev *model.Payment
		for _, i := range groups[k] {
			p := &payments[i]
			inherit := p.Type == model.PaymentTypeSurcharge && k.course != ExtraCoursesCourse
			switch {
			case inherit && prev != nil:
				p.LastLeadAt = prev.LastLeadAt
				p.TargetURL = prev.TargetURL
			case inherit:
				p.TargetURL = la.PaidOrUndefined(p.TargetURL)
			default:
				la.attributeOne(k.email, p)
			}
			prev = p
		}
	}

	for i := range payments {
		payments[i].TargetURL = la.PaidOrUndefined(payments[i].TargetURL)
	}
}

func (la *LeadAttributor) attributeOne(email string, p *model.Payment) {
	if l, ok := la.Detect(email, p.PaidAt); ok {
		p.LastLeadAt = la.leadDate(l)
		p.TargetURL = l.URL
		return
	}
	p.TargetURL = la.PaidOrUndefined(p.TargetURL)
}
