package models

import (
	"time"

	"github.com/google/uuid"
)

// ShopifyDailyAggregate is one (tenant, integration, date) rollup computed by
// grouped SUM over the current shopify_order_facts rows. Always fully
// recomputed, never patched.
type ShopifyDailyAggregate struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_shopify_daily_aggregates_key"`
	IntegrationID uuid.UUID `gorm:"column:integration_id;type:uuid;not null;uniqueIndex:idx_shopify_daily_aggregates_key"`
	Date          time.Time `gorm:"column:date;type:date;not null;uniqueIndex:idx_shopify_daily_aggregates_key"`
	OrdersCount   int64     `gorm:"column:orders_count;not null"`
	GrossCents    int64     `gorm:"column:gross_cents;not null"`
	DiscountCents int64     `gorm:"column:discount_cents;not null"`
	RefundCents   int64     `gorm:"column:refund_cents;not null"`
	NetCents      int64     `gorm:"column:net_cents;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (ShopifyDailyAggregate) TableName() string { return "shopify_daily_aggregates" }
