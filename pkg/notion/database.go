package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database, following cursors. The next
// page is requested while the current one is appended.
func QueryAll(ctx context.Context, c Querier, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	newReq := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
		return req
	}

	type result struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var pending <-chan result

	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}

		var resp *notionapi.DatabaseQueryResponse
		var err error
		if pending != nil {
			r := <-pending
			resp, err = r.resp, r.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, newReq(""))
		}
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}

		next := newReq(resp.NextCursor)
		ch := make(chan result, 1)
		pending = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, next)
			ch <- result{resp: r, err: e}
		}()
	}

	return all, nil
}

// QueryActive fetches the pages whose checkbox property is ticked.
func QueryActive(ctx context.Context, c Querier, dbID, checkbox string) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: checkbox,
			Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query active pages of %s", dbID)
	}
	return pages, nil
}
