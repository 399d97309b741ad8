// Package reconcile rebuilds the payments ledger from the spreadsheet export,
// attributing every payment to a channel and to the paid lead that produced it.
package reconcile

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadops-cli/internal/model"
)

// Ledger fields, keyed by the normalized sheet header.
const (
	fieldEmail    = "email"
	fieldCRM      = "crm"
	fieldManager  = "manager"
	fieldGroup    = "group"
	fieldProfit   = "profit"
	fieldCreated  = "created"
	fieldLastLead = "last_lead"
	fieldPaid     = "paid"
	fieldZoom     = "zoom"
	fieldType     = "type"
	fieldURL      = "url"
	fieldCourse   = "course"
)

var ledgerHeaders = map[string]string{
	"почта":                fieldEmail,
	"ссылка на amocrm":     fieldCRM,
	"менеджер":             fieldManager,
	"гр":                   fieldGroup,
	"сумма выручки":        fieldProfit,
	"дата создания сделки": fieldCreated,
	"дата последней заявки (платной)": fieldLastLead,
	"дата оплаты":     fieldPaid,
	"дата zoom":       fieldZoom,
	"месяц / доплата": fieldType,
	"целевая ссылка":  fieldURL,
	"курс":            fieldCourse,
}

var requiredFields = []string{fieldEmail, fieldCRM, fieldPaid}

// ParseLedger converts the sheet rows into payments. The header row must carry
// the email, CRM link and payment date columns. Rows without a CRM id are
// dropped; every other malformed cell reads as its neutral value.
func ParseLedger(header []string, rows [][]string) ([]model.Payment, error) {
	idx := make(map[string]int, len(ledgerHeaders))
	for i, h := range header {
		if f, ok := ledgerHeaders[strings.ToLower(strings.TrimSpace(h))]; ok {
			idx[f] = i
		}
	}
	var missing []string
	for _, f := range requiredFields {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("reconcile: ledger is missing columns: %s", strings.Join(missing, ", "))
	}

	cell := func(row []string, f string) string {
		i, ok := idx[f]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []model.Payment
	for _, row := range rows {
		crm := ParseCRMID(cell(row, fieldCRM))
		if crm == "" {
			continue
		}
		out = append(out, model.Payment{
			Email:        strings.TrimSpace(cell(row, fieldEmail)),
			CRMID:        crm,
			Manager:      ParseManager(cell(row, fieldManager)),
			ManagerGroup: ParseGroup(cell(row, fieldGroup)),
			Course:       strings.TrimSpace(cell(row, fieldCourse)),
			Profit:       ParseProfit(cell(row, fieldProfit)),
			CreatedAt:    ParseDate(cell(row, fieldCreated)),
			LastLeadAt:   ParseDate(cell(row, fieldLastLead)),
			PaidAt:       ParseDate(cell(row, fieldPaid)),
			ZoomAt:       ParseDate(cell(row, fieldZoom)),
			Type:         ParseType(cell(row, fieldType)),
			URL:          strings.TrimSpace(cell(row, fieldURL)),
		})
	}
	return out, nil
}

var crmPath = regexp.MustCompile(`^/leads/detail/(\d+)`)

// ParseCRMID extracts the deal id from a CRM deal link.
func ParseCRMID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	u, err := url.Parse(v)
	if err != nil {
		return ""
	}
	m := crmPath.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseManager returns "First Last" when v has exactly two words.
func ParseManager(v string) string {
	parts := strings.Fields(v)
	if len(parts) != 2 {
		return ""
	}
	return strings.Join(parts, " ")
}

// ParseGroup returns the manager group number, or "" when v is not an integer.
func ParseGroup(v string) string {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return ""
	}
	return strconv.Itoa(n)
}

// ParseProfit keeps only the digits of v.
func ParseProfit(v string) int64 {
	d := model.DigitsOnly(v)
	if d == "" {
		return 0
	}
	n, err := strconv.ParseInt(d, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var dateLayouts = []string{time.DateOnly, "02.01.2006"}

// ParseDate accepts ISO and dd.mm.yyyy dates; anything else is the zero time.
func ParseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

var paymentTypes = map[string]model.PaymentType{
	"Monthly":   model.PaymentTypeMonthly,
	"Месяц":     model.PaymentTypeMonthly,
	"Surcharge": model.PaymentTypeSurcharge,
	"Доплата":   model.PaymentTypeSurcharge,
}

var titleCaser = cases.Title(language.Und)

// ParseType maps the sheet's payment kind onto PaymentType.
func ParseType(v string) model.PaymentType {
	t, ok := paymentTypes[titleCaser.String(strings.TrimSpace(v))]
	if !ok {
		return model.PaymentTypeOther
	}
	return t
}
