package reconcile

import (
	"github.com/sells-group/leadops-cli/internal/attribution"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// CollectChannels builds the payment channel rows the funnel-channel report
// reads. The channel comes from the payment's own tracking URL; payments
// whose URL lacks a host or a path are left out.
func CollectChannels(payments []model.Payment) []model.PaymentChannel {
	out := make([]model.PaymentChannel, 0, len(payments))
	for _, p := range payments {
		u := tracking.Parse(p.URL)
		if u.Host == "" || u.Path == "" {
			continue
		}
		out = append(out, model.PaymentChannel{
			PaidAt:     p.PaidAt,
			LastLeadAt: p.LastLeadAt,
			Profit:     p.Profit,
			CRMID:      p.CRMID,
			URL:        u.Key(),
			Channel:    attribution.ChannelFromQuery(u.Query),
		})
	}
	return out
}
