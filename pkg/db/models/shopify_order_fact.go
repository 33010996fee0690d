package models

import (
	"time"

	"github.com/google/uuid"
)

// ShopifyOrderFact is the normalized projection of one Shopify order, scoped
// to (integration, tenant, date). Facts for a touched date are fully replaced
// by each run; rows carry no identity that survives a resync.
type ShopifyOrderFact struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID   uuid.UUID `gorm:"column:integration_id;type:uuid;not null;index:idx_shopify_order_facts_scope"`
	TenantID        uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	Date            time.Time `gorm:"column:date;type:date;not null;index:idx_shopify_order_facts_scope"`
	OrderID         string    `gorm:"column:order_id;not null"`
	OrderName       string    `gorm:"column:order_name"`
	FinancialStatus string    `gorm:"column:financial_status"`
	Currency        string    `gorm:"column:currency;not null;default:'USD'"`
	GrossCents      int64     `gorm:"column:gross_cents;not null"`
	DiscountCents   int64     `gorm:"column:discount_cents;not null;default:0"`
	RefundCents     int64     `gorm:"column:refund_cents;not null;default:0"`
	NetCents        int64     `gorm:"column:net_cents;not null"`
	CustomerRef     *string   `gorm:"column:customer_ref"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's default pluralization.
func (ShopifyOrderFact) TableName() string { return "shopify_order_facts" }
