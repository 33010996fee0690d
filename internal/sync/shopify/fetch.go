package shopify

import (
	"context"
	"strconv"

	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/internal/sync/backoff"
	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/internal/sync/resolver"
	"github.com/angelmondragon/channelsync-backend/internal/sync/window"
	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	shopifyapi "github.com/angelmondragon/channelsync-backend/pkg/shopify"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// restorePerSec is the Admin REST bucket drain rate for standard plans.
const restorePerSec = 2.0

// fetch pulls every order page for the window, honoring both the cooperative
// bucket throttle and hard 429 responses.
func (j *job) fetch(ctx context.Context, resolved *resolver.Context, win window.Window, stats *registry.RunStats) ([]shopifyapi.Order, error) {
	if resolved.StubMode {
		return stubOrders(resolved.Integration.ID, win), nil
	}

	creds := shopifyapi.Credentials{
		ShopDomain:  resolved.AccountRef,
		AccessToken: resolved.AccessToken,
	}
	bo := backoff.New(j.sync.BackoffInitial, j.sync.BackoffMax, j.sync.BackoffMaxAttempts)
	query := shopifyapi.OrdersQuery{
		UpdatedAtMin: win.StartTime(),
		UpdatedAtMax: win.EndExclusive(),
	}

	var orders []shopifyapi.Order
	for {
		page, err := j.fetcher.FetchOrdersPage(ctx, creds, query)
		stats.APICalls++
		if err != nil {
			retryAfter, throttled := shopifyapi.IsRateLimited(err)
			if !throttled {
				stats.RateLimitEvents = bo.ThrottleEvents()
				return nil, err
			}
			proceed, werr := bo.WaitAfterThrottle(ctx, retryAfter)
			if werr != nil {
				return nil, werr
			}
			if !proceed {
				stats.RateLimitEvents = bo.ThrottleEvents()
				return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimitExhausted, err, "shopify throttle retries exhausted")
			}
			continue
		}

		orders = append(orders, page.Orders...)
		if page.NextPageInfo == "" {
			break
		}
		query = shopifyapi.OrdersQuery{PageInfo: page.NextPageInfo}
		if err := bo.CooperativeWait(ctx, page.CallLimit.Used, page.CallLimit.Cap, restorePerSec, 1); err != nil {
			return nil, err
		}
	}
	stats.RateLimitEvents = bo.ThrottleEvents()
	return orders, nil
}

// normalizeOrders projects fetched orders into raw mirror and fact rows.
// Test orders stay in the raw mirror but never become facts. Returns the
// newest updated_at observed for the watermark.
func normalizeOrders(integrationID, tenantID uuid.UUID, orders []shopifyapi.Order) ([]models.ShopifyOrderRaw, []models.ShopifyOrderFact, time.Time, error) {
	var (
		raw        []models.ShopifyOrderRaw
		facts      []models.ShopifyOrderFact
		maxUpdated time.Time
	)
	for _, order := range orders {
		externalID := strconv.FormatInt(order.ID, 10)
		if order.UpdatedAt.After(maxUpdated) {
			maxUpdated = order.UpdatedAt
		}
		raw = append(raw, models.ShopifyOrderRaw{
			IntegrationID:     integrationID,
			ExternalID:        externalID,
			Payload:           types.JSONText(order.Raw),
			ExternalUpdatedAt: order.UpdatedAt,
		})
		if order.Test {
			continue
		}

		gross, err := shopifyapi.MoneyCents(order.TotalPrice)
		if err != nil {
			return nil, nil, maxUpdated, err
		}
		discount, err := shopifyapi.MoneyCents(order.TotalDiscounts)
		if err != nil {
			return nil, nil, maxUpdated, err
		}
		refunded, err := shopifyapi.RefundedCents(order)
		if err != nil {
			return nil, nil, maxUpdated, err
		}
		var customerRef *string
		if order.Customer != nil {
			ref := strconv.FormatInt(order.Customer.ID, 10)
			customerRef = &ref
		}
		facts = append(facts, models.ShopifyOrderFact{
			IntegrationID:   integrationID,
			TenantID:        tenantID,
			Date:            window.Day(order.ProcessedAt),
			OrderID:         externalID,
			OrderName:       order.Name,
			FinancialStatus: order.FinancialStatus,
			Currency:        order.Currency,
			GrossCents:      gross,
			DiscountCents:   discount,
			RefundCents:     refunded,
			NetCents:        gross - refunded,
			CustomerRef:     customerRef,
		})
	}
	return raw, facts, maxUpdated, nil
}
