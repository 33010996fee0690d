package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantDailySummary is the cross-platform rollup per (tenant, date). It is
// rebuilt from the union of every platform's daily aggregates for that date,
// not only the platform that most recently ran.
type TenantDailySummary struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID          uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_tenant_daily_summaries_key"`
	Date              time.Time `gorm:"column:date;type:date;not null;uniqueIndex:idx_tenant_daily_summaries_key"`
	OrdersCount       int64     `gorm:"column:orders_count;not null"`
	GrossRevenueCents int64     `gorm:"column:gross_revenue_cents;not null"`
	NetRevenueCents   int64     `gorm:"column:net_revenue_cents;not null"`
	AdSpendCents      int64     `gorm:"column:ad_spend_cents;not null"`
	AdImpressions     int64     `gorm:"column:ad_impressions;not null"`
	AdClicks          int64     `gorm:"column:ad_clicks;not null"`
	AdConversions     int64     `gorm:"column:ad_conversions;not null"`
	// BlendedRoasBps is net revenue over ad spend in basis points; zero when
	// there is no spend for the date.
	BlendedRoasBps int64     `gorm:"column:blended_roas_bps;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (TenantDailySummary) TableName() string { return "tenant_daily_summaries" }
