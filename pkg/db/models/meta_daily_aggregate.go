package models

import (
	"time"

	"github.com/google/uuid"
)

// MetaDailyAggregate is one (tenant, integration, ad account, date) rollup
// recomputed from current meta_ad_facts rows.
type MetaDailyAggregate struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID             uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_meta_daily_aggregates_key"`
	IntegrationID        uuid.UUID `gorm:"column:integration_id;type:uuid;not null;uniqueIndex:idx_meta_daily_aggregates_key"`
	AdAccountRef         string    `gorm:"column:ad_account_ref;not null;uniqueIndex:idx_meta_daily_aggregates_key"`
	Date                 time.Time `gorm:"column:date;type:date;not null;uniqueIndex:idx_meta_daily_aggregates_key"`
	Impressions          int64     `gorm:"column:impressions;not null"`
	Clicks               int64     `gorm:"column:clicks;not null"`
	SpendCents           int64     `gorm:"column:spend_cents;not null"`
	Conversions          int64     `gorm:"column:conversions;not null"`
	ConversionValueCents int64     `gorm:"column:conversion_value_cents;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (MetaDailyAggregate) TableName() string { return "meta_daily_aggregates" }
