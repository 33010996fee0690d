package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
)

type summaryAccumulator struct {
	ordersCount   int64
	grossCents    int64
	netCents      int64
	adSpendCents  int64
	adImpressions int64
	adClicks      int64
	adConversions int64
}

type commerceSummaryRow struct {
	Date        time.Time
	OrdersCount int64
	GrossCents  int64
	NetCents    int64
}

type adsSummaryRow struct {
	Date        time.Time
	Impressions int64
	Clicks      int64
	SpendCents  int64
	Conversions int64
}

// rebuildTenantSummaries recomputes the (tenant, date) summaries for the
// touched dates from every platform's current aggregates, not just the one
// that triggered the run. Dates left with no aggregates lose their summary.
func rebuildTenantSummaries(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, dates []time.Time) error {
	// Keyed by formatted day so location metadata from the DB round trip
	// cannot split one date into two buckets.
	totals := make(map[string]*summaryAccumulator)
	at := func(date time.Time) *summaryAccumulator {
		key := date.Format("2006-01-02")
		acc, ok := totals[key]
		if !ok {
			acc = &summaryAccumulator{}
			totals[key] = acc
		}
		return acc
	}

	var shopify []commerceSummaryRow
	err := tx.WithContext(ctx).
		Model(&models.ShopifyDailyAggregate{}).
		Select("date, COALESCE(SUM(orders_count), 0) AS orders_count, COALESCE(SUM(gross_cents), 0) AS gross_cents, COALESCE(SUM(net_cents), 0) AS net_cents").
		Where("tenant_id = ? AND date IN ?", tenantID, dates).
		Group("date").
		Scan(&shopify).Error
	if err != nil {
		return err
	}
	for _, row := range shopify {
		acc := at(row.Date)
		acc.ordersCount += row.OrdersCount
		acc.grossCents += row.GrossCents
		acc.netCents += row.NetCents
	}

	var square []commerceSummaryRow
	err = tx.WithContext(ctx).
		Model(&models.SquareDailyAggregate{}).
		Select("date, COALESCE(SUM(orders_count), 0) AS orders_count, COALESCE(SUM(gross_cents), 0) AS gross_cents, COALESCE(SUM(net_cents), 0) AS net_cents").
		Where("tenant_id = ? AND date IN ?", tenantID, dates).
		Group("date").
		Scan(&square).Error
	if err != nil {
		return err
	}
	for _, row := range square {
		acc := at(row.Date)
		acc.ordersCount += row.OrdersCount
		acc.grossCents += row.GrossCents
		acc.netCents += row.NetCents
	}

	var meta []adsSummaryRow
	err = tx.WithContext(ctx).
		Model(&models.MetaDailyAggregate{}).
		Select("date, COALESCE(SUM(impressions), 0) AS impressions, COALESCE(SUM(clicks), 0) AS clicks, COALESCE(SUM(spend_cents), 0) AS spend_cents, COALESCE(SUM(conversions), 0) AS conversions").
		Where("tenant_id = ? AND date IN ?", tenantID, dates).
		Group("date").
		Scan(&meta).Error
	if err != nil {
		return err
	}
	for _, row := range meta {
		acc := at(row.Date)
		acc.adImpressions += row.Impressions
		acc.adClicks += row.Clicks
		acc.adSpendCents += row.SpendCents
		acc.adConversions += row.Conversions
	}

	err = tx.WithContext(ctx).
		Where("tenant_id = ? AND date IN ?", tenantID, dates).
		Delete(&models.TenantDailySummary{}).Error
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		return nil
	}

	rows := make([]models.TenantDailySummary, 0, len(totals))
	for _, date := range dates {
		acc, ok := totals[date.Format("2006-01-02")]
		if !ok {
			continue
		}
		rows = append(rows, models.TenantDailySummary{
			ID:                uuid.New(),
			TenantID:          tenantID,
			Date:              date,
			OrdersCount:       acc.ordersCount,
			GrossRevenueCents: acc.grossCents,
			NetRevenueCents:   acc.netCents,
			AdSpendCents:      acc.adSpendCents,
			AdImpressions:     acc.adImpressions,
			AdClicks:          acc.adClicks,
			AdConversions:     acc.adConversions,
			BlendedRoasBps:    blendedRoasBps(acc.netCents, acc.adSpendCents),
		})
	}
	return tx.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

// blendedRoasBps is net revenue over ad spend in basis points, zero when
// there is no spend.
func blendedRoasBps(netCents, spendCents int64) int64 {
	if spendCents <= 0 {
		return 0
	}
	return netCents * 10000 / spendCents
}
