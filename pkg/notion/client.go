// Package notion reads the Notion databases the back office maintains by
// hand, such as lead scoring groups. Only database queries are used.
package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Querier runs one database query. QueryAll pages through it.
type Querier interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

type queryFunc func(context.Context, notionapi.DatabaseID, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

// Client queries Notion databases with an integration token, spacing
// requests to stay under the API rate limit.
type Client struct {
	query   queryFunc
	limiter *rate.Limiter
}

// NewClient creates a client allowing rps queries per second. A
// non-positive rps disables throttling.
func NewClient(token string, rps float64) *Client {
	api := notionapi.NewClient(notionapi.Token(token))
	return newClient(api.Database.Query, rps)
}

func newClient(q queryFunc, rps float64) *Client {
	c := &Client{query: q}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	return c
}

// QueryDatabase runs a single query against dbID.
func (c *Client) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "notion: rate limit")
		}
	}
	resp, err := c.query(ctx, notionapi.DatabaseID(dbID), req)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query database %s", dbID)
	}
	return resp, nil
}
