package reconcile

import (
	"context"

	"github.com/sells-group/leadops-cli/internal/resilience"
	"github.com/sells-group/leadops-cli/pkg/salesforce"
)

// SalesforceCRM resolves payment deals through the Salesforce REST API.
type SalesforceCRM struct {
	client salesforce.Client
	retry  resilience.RetryPolicy
}

// NewSalesforceCRM wraps client. Transient failures are retried with p.
func NewSalesforceCRM(client salesforce.Client, p resilience.RetryPolicy) *SalesforceCRM {
	p.OnRetry = resilience.LogRetry("salesforce", "deals by ids")
	return &SalesforceCRM{client: client, retry: p}
}

// LeadsByIDs implements CRM.
func (s *SalesforceCRM) LeadsByIDs(ctx context.Context, ids []string) (map[string]CRMLead, error) {
	deals, err := resilience.RetryVal(ctx, s.retry, func(ctx context.Context) (map[string]salesforce.Deal, error) {
		return salesforce.DealsByIDs(ctx, s.client, ids)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]CRMLead, len(deals))
	for id, d := range deals {
		out[id] = CRMLead{ID: id, Email: d.Email, URL: d.TrackingURL, UTMSource: d.UTMSource}
	}
	return out, nil
}
