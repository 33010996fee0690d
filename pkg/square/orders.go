package square

import (
	"context"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

// OrdersQuery selects one page of orders by updated_at range.
type OrdersQuery struct {
	LocationIDs  []string
	UpdatedAtMin time.Time
	UpdatedAtMax time.Time
	Cursor       string
}

// OrdersPage is one fetched page plus the opaque cursor for the next call.
type OrdersPage struct {
	Orders     []*sq.Order
	NextCursor string
}

// SearchOrdersPage retrieves one page of orders sorted by updated_at ascending.
func (c *Client) SearchOrdersPage(ctx context.Context, creds Credentials, query OrdersQuery) (*OrdersPage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square client not configured")
	}
	if len(query.LocationIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square order search requires location ids")
	}
	sdk, err := c.sdkFor(creds)
	if err != nil {
		return nil, err
	}

	req := &sq.SearchOrdersRequest{
		LocationIDs: query.LocationIDs,
		Limit:       intPtr(c.pageSize),
		Query: &sq.SearchOrdersQuery{
			Filter: &sq.SearchOrdersFilter{
				DateTimeFilter: &sq.SearchOrdersDateTimeFilter{
					UpdatedAt: timeRange(query.UpdatedAtMin, query.UpdatedAtMax),
				},
			},
			// Square requires the sort field to match the date-time filter.
			Sort: &sq.SearchOrdersSort{
				SortField: sq.SearchOrdersSortFieldUpdatedAt,
				SortOrder: sortOrderPtr(sq.SortOrderAsc),
			},
		},
	}
	if cursor := strings.TrimSpace(query.Cursor); cursor != "" {
		req.Cursor = &cursor
	}

	c.log(ctx, "request", "search_orders", map[string]any{
		"locations":  len(query.LocationIDs),
		"has_cursor": req.Cursor != nil,
	})

	resp, err := sdk.Orders.Search(ctx, req)
	if err != nil {
		c.log(ctx, "error", "search_orders", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "search orders")
	}

	page := &OrdersPage{
		Orders:     resp.GetOrders(),
		NextCursor: stringValue(resp.GetCursor()),
	}
	c.log(ctx, "response", "search_orders", map[string]any{
		"orders":   len(page.Orders),
		"has_next": page.NextCursor != "",
	})
	return page, nil
}

func timeRange(start, end time.Time) *sq.TimeRange {
	tr := &sq.TimeRange{}
	if !start.IsZero() {
		startAt := start.UTC().Format(time.RFC3339)
		tr.StartAt = &startAt
	}
	if !end.IsZero() {
		endAt := end.UTC().Format(time.RFC3339)
		tr.EndAt = &endAt
	}
	return tr
}

func intPtr(value int) *int {
	return &value
}

func sortOrderPtr(order sq.SortOrder) *sq.SortOrder {
	return &order
}
