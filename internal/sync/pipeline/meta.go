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

// MetaBatch is one run's worth of normalized Meta insights. The replace scope
// includes the ad account, so integrations sharing a tenant never clobber
// each other's facts.
type MetaBatch struct {
	IntegrationID uuid.UUID
	TenantID      uuid.UUID
	AdAccountRef  string
	Raw           []models.MetaInsightRaw
	Facts         []models.MetaAdFact
	Cursor        *CursorUpdate
}

// PersistMeta commits the batch in one transaction, mirroring PersistShopify
// with the ad-account scope added to the fact and aggregate replace.
func (s *Store) PersistMeta(ctx context.Context, batch MetaBatch) (*PersistResult, error) {
	if len(batch.Raw) == 0 && len(batch.Facts) == 0 {
		return s.persistCursorOnly(ctx, batch.IntegrationID, batch.Cursor)
	}

	result := &PersistResult{}
	err := s.db.WithTxTimeout(ctx, s.txTimeout, func(tx *gorm.DB) error {
		if err := upsertMetaRaw(ctx, tx, batch.Raw); err != nil {
			return err
		}
		result.RawRows = int64(len(batch.Raw))

		dates := metaFactDates(batch.Facts)
		if len(dates) > 0 {
			if err := replaceMetaFacts(ctx, tx, batch.IntegrationID, batch.AdAccountRef, dates, batch.Facts); err != nil {
				return err
			}
			result.FactRows = int64(len(batch.Facts))

			aggregates, err := rebuildMetaAggregates(ctx, tx, batch.TenantID, batch.IntegrationID, batch.AdAccountRef, dates)
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
		return nil, wrapPersist(err, "persist meta batch")
	}
	s.exportAggregates(ctx, result.Aggregates)
	return result, nil
}

func upsertMetaRaw(ctx context.Context, tx *gorm.DB, rows []models.MetaInsightRaw) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		if rows[i].Grain == "" {
			rows[i].Grain = "ad_day"
		}
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "integration_id"}, {Name: "external_id"}, {Name: "grain"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "external_updated_at", "updated_at"}),
		}).
		CreateInBatches(rows, insertBatchSize).Error
}

func metaFactDates(facts []models.MetaAdFact) []time.Time {
	dates := make([]time.Time, 0, len(facts))
	for _, f := range facts {
		dates = append(dates, f.Date)
	}
	return distinctDates(dates)
}

func replaceMetaFacts(ctx context.Context, tx *gorm.DB, integrationID uuid.UUID, adAccountRef string, dates []time.Time, facts []models.MetaAdFact) error {
	err := tx.WithContext(ctx).
		Where("integration_id = ? AND ad_account_ref = ? AND date IN ?", integrationID, adAccountRef, dates).
		Delete(&models.MetaAdFact{}).Error
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

type metaAggregateRow struct {
	Date                 time.Time
	Impressions          int64
	Clicks               int64
	SpendCents           int64
	Conversions          int64
	ConversionValueCents int64
}

func rebuildMetaAggregates(ctx context.Context, tx *gorm.DB, tenantID, integrationID uuid.UUID, adAccountRef string, dates []time.Time) ([]AggregateSnapshot, error) {
	err := tx.WithContext(ctx).
		Where("integration_id = ? AND ad_account_ref = ? AND date IN ?", integrationID, adAccountRef, dates).
		Delete(&models.MetaDailyAggregate{}).Error
	if err != nil {
		return nil, err
	}

	var grouped []metaAggregateRow
	err = tx.WithContext(ctx).
		Model(&models.MetaAdFact{}).
		Select("date, COALESCE(SUM(impressions), 0) AS impressions, COALESCE(SUM(clicks), 0) AS clicks, COALESCE(SUM(spend_cents), 0) AS spend_cents, COALESCE(SUM(conversions), 0) AS conversions, COALESCE(SUM(conversion_value_cents), 0) AS conversion_value_cents").
		Where("integration_id = ? AND ad_account_ref = ? AND date IN ?", integrationID, adAccountRef, dates).
		Group("date").
		Scan(&grouped).Error
	if err != nil {
		return nil, err
	}
	if len(grouped) == 0 {
		return nil, nil
	}

	rows := make([]models.MetaDailyAggregate, 0, len(grouped))
	snapshots := make([]AggregateSnapshot, 0, len(grouped))
	for _, g := range grouped {
		rows = append(rows, models.MetaDailyAggregate{
			ID:                   uuid.New(),
			TenantID:             tenantID,
			IntegrationID:        integrationID,
			AdAccountRef:         adAccountRef,
			Date:                 g.Date,
			Impressions:          g.Impressions,
			Clicks:               g.Clicks,
			SpendCents:           g.SpendCents,
			Conversions:          g.Conversions,
			ConversionValueCents: g.ConversionValueCents,
		})
		snapshots = append(snapshots, AggregateSnapshot{
			TenantID:      tenantID,
			IntegrationID: integrationID,
			Platform:      enums.PlatformMeta,
			Date:          g.Date,
			SpendCents:    g.SpendCents,
			Impressions:   g.Impressions,
			Clicks:        g.Clicks,
			Conversions:   g.Conversions,
		})
	}
	if err := tx.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
