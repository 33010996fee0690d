package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
)

// ShopifyBatch is one run's worth of normalized Shopify data.
type ShopifyBatch struct {
	IntegrationID uuid.UUID
	TenantID      uuid.UUID
	Raw           []models.ShopifyOrderRaw
	Facts         []models.ShopifyOrderFact
	Cursor        *CursorUpdate
}

// PersistShopify commits the batch in one transaction: raw upsert, per-date
// fact replace, aggregate rebuild, tenant summary rebuild, cursor step.
func (s *Store) PersistShopify(ctx context.Context, batch ShopifyBatch) (*PersistResult, error) {
	if len(batch.Raw) == 0 && len(batch.Facts) == 0 {
		return s.persistCursorOnly(ctx, batch.IntegrationID, batch.Cursor)
	}

	result := &PersistResult{}
	err := s.db.WithTxTimeout(ctx, s.txTimeout, func(tx *gorm.DB) error {
		if err := upsertShopifyRaw(ctx, tx, batch.Raw); err != nil {
			return err
		}
		result.RawRows = int64(len(batch.Raw))

		dates := shopifyFactDates(batch.Facts)
		if len(dates) > 0 {
			if err := replaceShopifyFacts(ctx, tx, batch.IntegrationID, dates, batch.Facts); err != nil {
				return err
			}
			result.FactRows = int64(len(batch.Facts))

			aggregates, err := rebuildShopifyAggregates(ctx, tx, batch.TenantID, batch.IntegrationID, dates)
			if err != nil {
				return err
			}
			result.Aggregates = aggregates

			if err := rebuildTenantSummaries(ctx, tx, batch.TenantID, dates); err != nil {
				return err
			}
		}

		changed, err := applyCursor(ctx, tx, batch.IntegrationID, batch.Cursor)
		if err != nil {
			return err
		}
		result.CursorChanged = changed
		return nil
	})
	if err != nil {
		return nil, wrapPersist(err, "persist shopify batch")
	}
	s.exportAggregates(ctx, result.Aggregates)
	return result, nil
}

func upsertShopifyRaw(ctx context.Context, tx *gorm.DB, rows []models.ShopifyOrderRaw) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		if rows[i].Grain == "" {
			rows[i].Grain = "order"
		}
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "integration_id"}, {Name: "external_id"}, {Name: "grain"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "external_updated_at", "updated_at"}),
		}).
		CreateInBatches(rows, insertBatchSize).Error
}

func shopifyFactDates(facts []models.ShopifyOrderFact) []time.Time {
	dates := make([]time.Time, 0, len(facts))
	for _, f := range facts {
		dates = append(dates, f.Date)
	}
	return distinctDates(dates)
}

// replaceShopifyFacts deletes every fact on the touched dates and inserts the
// incoming set, so reprocessing a window can only converge.
func replaceShopifyFacts(ctx context.Context, tx *gorm.DB, integrationID uuid.UUID, dates []time.Time, facts []models.ShopifyOrderFact) error {
	err := tx.WithContext(ctx).
		Where("integration_id = ? AND date IN ?", integrationID, dates).
		Delete(&models.ShopifyOrderFact{}).Error
	if err != nil {
		return err
	}
	for i := range facts {
		if facts[i].ID == uuid.Nil {
			facts[i].ID = uuid.New()
		}
	}
	return tx.WithContext(ctx).CreateInBatches(facts, insertBatchSize).Error
}

type shopifyAggregateRow struct {
	Date          time.Time
	OrdersCount   int64
	GrossCents    int64
	DiscountCents int64
	RefundCents   int64
	NetCents      int64
}

// rebuildShopifyAggregates recomputes the touched (integration, date) rollups
// from the facts now in place, replacing any prior rows.
func rebuildShopifyAggregates(ctx context.Context, tx *gorm.DB, tenantID, integrationID uuid.UUID, dates []time.Time) ([]AggregateSnapshot, error) {
	err := tx.WithContext(ctx).
		Where("integration_id = ? AND date IN ?", integrationID, dates).
		Delete(&models.ShopifyDailyAggregate{}).Error
	if err != nil {
		return nil, err
	}

	var grouped []shopifyAggregateRow
	err = tx.WithContext(ctx).
		Model(&models.ShopifyOrderFact{}).
		Select("date, COUNT(*) AS orders_count, COALESCE(SUM(gross_cents), 0) AS gross_cents, COALESCE(SUM(discount_cents), 0) AS discount_cents, COALESCE(SUM(refund_cents), 0) AS refund_cents, COALESCE(SUM(net_cents), 0) AS net_cents").
		Where("integration_id = ? AND date IN ?", integrationID, dates).
		Group("date").
		Scan(&grouped).Error
	if err != nil {
		return nil, err
	}
	if len(grouped) == 0 {
		return nil, nil
	}

	rows := make([]models.ShopifyDailyAggregate, 0, len(grouped))
	snapshots := make([]AggregateSnapshot, 0, len(grouped))
	for _, g := range grouped {
		rows = append(rows, models.ShopifyDailyAggregate{
			ID:            uuid.New(),
			TenantID:      tenantID,
			IntegrationID: integrationID,
			Date:          g.Date,
			OrdersCount:   g.OrdersCount,
			GrossCents:    g.GrossCents,
			DiscountCents: g.DiscountCents,
			RefundCents:   g.RefundCents,
			NetCents:      g.NetCents,
		})
		snapshots = append(snapshots, AggregateSnapshot{
			TenantID:      tenantID,
			IntegrationID: integrationID,
			Platform:      enums.PlatformShopify,
			Date:          g.Date,
			OrdersCount:   g.OrdersCount,
			GrossCents:    g.GrossCents,
			NetCents:      g.NetCents,
		})
	}
	if err := tx.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
