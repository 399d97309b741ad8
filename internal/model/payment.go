package model

import (
	"time"
)

// PaymentType is the ledger classification of a payment.
type PaymentType string

const (
	PaymentTypeMonthly   PaymentType = "monthly"
	PaymentTypeSurcharge PaymentType = "surcharge"
	PaymentTypeOther     PaymentType = "other"
)

// UndefinedLabel is the fallback label for any unresolved channel, category or URL.
const UndefinedLabel = "Undefined"

// Payment is one reconciled row of the payments ledger.
type Payment struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	CRMID        string      `json:"crm_id"`
	Manager      string      `json:"manager"`
	ManagerGroup string      `json:"manager_group"`
	Group        string      `json:"group"`
	Course       string      `json:"course"`
	Profit       int64       `json:"profit"`
	CreatedAt    time.Time   `json:"date_created"`
	LastLeadAt   time.Time   `json:"date_last_paid"`
	PaidAt       time.Time   `json:"date_payment"`
	ZoomAt       time.Time   `json:"date_zoom"`
	Type         PaymentType `json:"type"`
	URL          string      `json:"url"`
	TargetURL    string      `json:"target_url"`
	Channel      string      `json:"channel"`
}

// Identity returns the tuple used to tell an already-stored payment from a new one.
func (p Payment) Identity() PaymentIdentity {
	return PaymentIdentity{
		Email:     p.Email,
		CRMID:     p.CRMID,
		CreatedAt: dateKey(p.CreatedAt),
		PaidAt:    dateKey(p.PaidAt),
	}
}

// PaymentIdentity is the comparable identity of a payment.
type PaymentIdentity struct {
	Email     string
	CRMID     string
	CreatedAt string
	PaidAt    string
}

// PaymentChannel is a row of the payment channel artifact feeding the
// funnel-channel report.
type PaymentChannel struct {
	PaidAt     time.Time `json:"payment_date"`
	LastLeadAt time.Time `json:"last_lead_date"`
	Profit     int64     `json:"profit"`
	CRMID      string    `json:"crm_id"`
	URL        string    `json:"url"`
	Channel    string    `json:"channel"`
}

// Manager is a sales manager known to the back office.
type Manager struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Group     string `json:"group"`
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
