package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// maxIDsPerQuery bounds the IN list of one SOQL query.
const maxIDsPerQuery = 200

// Deal is a CRM lead record carrying the tracking data of the form
// submission it came from. DealID is the numeric id printed in ledger
// links (/leads/detail/<id>).
type Deal struct {
	ID          string `json:"Id" salesforce:"Id"`
	DealID      string `json:"Deal_Id__c" salesforce:"Deal_Id__c"`
	Email       string `json:"Email" salesforce:"Email"`
	TrackingURL string `json:"Tracking_URL__c" salesforce:"Tracking_URL__c"`
	UTMSource   string `json:"UTM_Source__c" salesforce:"UTM_Source__c"`
}

var dealFields = []string{"Id", "Deal_Id__c", "Email", "Tracking_URL__c", "UTM_Source__c"}

// DealsByIDs returns the deals whose Deal_Id__c is in ids, keyed by deal id.
// Ids are queried in chunks; unknown ids are absent from the result.
func DealsByIDs(ctx context.Context, c Client, ids []string) (map[string]Deal, error) {
	out := make(map[string]Deal, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerQuery {
		end := min(start+maxIDsPerQuery, len(ids))

		quoted := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			quoted = append(quoted, "'"+escapeSoql(id)+"'")
		}
		soql := fmt.Sprintf(
			"SELECT %s FROM Lead WHERE Deal_Id__c IN (%s)",
			strings.Join(dealFields, ", "),
			strings.Join(quoted, ", "),
		)

		var deals []Deal
		if err := c.Query(ctx, soql, &deals); err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("sf: deals batch %d-%d", start, end))
		}
		for _, d := range deals {
			out[d.DealID] = d
		}
	}
	return out, nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
