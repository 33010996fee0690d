package square

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/channelsync-backend/internal/sync/backoff"
	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/internal/sync/resolver"
	"github.com/angelmondragon/channelsync-backend/internal/sync/window"
	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	squareapi "github.com/angelmondragon/channelsync-backend/pkg/square"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// fetch lists the account's locations, then pulls every order page for the
// window across all of them, backing off on hard 429 responses.
func (j *job) fetch(ctx context.Context, resolved *resolver.Context, win window.Window, stats *registry.RunStats) ([]*sq.Order, error) {
	if resolved.StubMode {
		return stubOrders(resolved.Integration.ID, win), nil
	}

	creds := squareapi.Credentials{AccessToken: resolved.AccessToken}
	bo := backoff.New(j.sync.BackoffInitial, j.sync.BackoffMax, j.sync.BackoffMaxAttempts)

	locationIDs, err := j.listLocations(ctx, creds, bo, stats)
	if err != nil {
		return nil, err
	}
	if len(locationIDs) == 0 {
		j.logger.Warn(ctx, "square account has no locations, nothing to fetch")
		return nil, nil
	}

	query := squareapi.OrdersQuery{
		LocationIDs:  locationIDs,
		UpdatedAtMin: win.StartTime(),
		UpdatedAtMax: win.EndExclusive(),
	}

	var orders []*sq.Order
	for {
		page, err := j.fetcher.SearchOrdersPage(ctx, creds, query)
		stats.APICalls++
		if err != nil {
			if !squareapi.IsRateLimited(err) {
				stats.RateLimitEvents = bo.ThrottleEvents()
				return nil, err
			}
			proceed, werr := bo.WaitAfterThrottle(ctx, 0)
			if werr != nil {
				return nil, werr
			}
			if !proceed {
				stats.RateLimitEvents = bo.ThrottleEvents()
				return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimitExhausted, err, "square throttle retries exhausted")
			}
			continue
		}

		orders = append(orders, page.Orders...)
		if page.NextCursor == "" {
			break
		}
		query.Cursor = page.NextCursor
	}
	stats.RateLimitEvents = bo.ThrottleEvents()
	return orders, nil
}

func (j *job) listLocations(ctx context.Context, creds squareapi.Credentials, bo *backoff.Controller, stats *registry.RunStats) ([]string, error) {
	for {
		locationIDs, err := j.fetcher.ListLocationIDs(ctx, creds)
		stats.APICalls++
		if err == nil {
			return locationIDs, nil
		}
		if !squareapi.IsRateLimited(err) {
			return nil, err
		}
		proceed, werr := bo.WaitAfterThrottle(ctx, 0)
		if werr != nil {
			return nil, werr
		}
		if !proceed {
			stats.RateLimitEvents = bo.ThrottleEvents()
			return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimitExhausted, err, "square throttle retries exhausted")
		}
	}
}

// normalizeOrders projects fetched orders into raw mirror and fact rows. The
// fact date is the closing time when present, the last update otherwise.
// Returns the newest updated_at observed for the watermark.
func normalizeOrders(integrationID, tenantID uuid.UUID, orders []*sq.Order) ([]models.SquareOrderRaw, []models.SquareOrderFact, time.Time, error) {
	var (
		raw        []models.SquareOrderRaw
		facts      []models.SquareOrderFact
		maxUpdated time.Time
	)
	for _, order := range orders {
		if order == nil || order.GetID() == nil {
			continue
		}
		externalID := *order.GetID()

		updatedAt, err := parseSquareTime(stringValue(order.UpdatedAt))
		if err != nil {
			return nil, nil, maxUpdated, err
		}
		if updatedAt.After(maxUpdated) {
			maxUpdated = updatedAt
		}

		payload, err := json.Marshal(order)
		if err != nil {
			return nil, nil, maxUpdated, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal square order")
		}
		raw = append(raw, models.SquareOrderRaw{
			IntegrationID:     integrationID,
			ExternalID:        externalID,
			Payload:           types.JSONText(payload),
			ExternalUpdatedAt: updatedAt,
		})

		factDate := updatedAt
		if closed := stringValue(order.ClosedAt); closed != "" {
			closedAt, err := parseSquareTime(closed)
			if err != nil {
				return nil, nil, maxUpdated, err
			}
			factDate = closedAt
		}

		gross, currency := moneyCents(order.TotalMoney)
		discount, _ := moneyCents(order.TotalDiscountMoney)
		facts = append(facts, models.SquareOrderFact{
			IntegrationID: integrationID,
			TenantID:      tenantID,
			Date:          window.Day(factDate),
			OrderID:       externalID,
			LocationRef:   order.LocationID,
			State:         orderState(order),
			Currency:      currency,
			GrossCents:    gross,
			DiscountCents: discount,
			NetCents:      gross,
			TenderType:    tenderType(order),
		})
	}
	return raw, facts, maxUpdated, nil
}

func parseSquareTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeUpstreamAPI, "square order is missing a timestamp")
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "parse square timestamp "+value)
	}
	return parsed.UTC(), nil
}

func moneyCents(money *sq.Money) (int64, string) {
	if money == nil {
		return 0, "USD"
	}
	amount := int64(0)
	if money.Amount != nil {
		amount = *money.Amount
	}
	currency := "USD"
	if money.Currency != nil {
		currency = string(*money.Currency)
	}
	return amount, currency
}

func orderState(order *sq.Order) string {
	if order.State == nil {
		return ""
	}
	return string(*order.State)
}

func tenderType(order *sq.Order) *string {
	for _, tender := range order.Tenders {
		if tender == nil || tender.Type == "" {
			continue
		}
		value := string(tender.Type)
		return &value
	}
	return nil
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
