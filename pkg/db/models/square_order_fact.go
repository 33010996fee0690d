package models

import (
	"time"

	"github.com/google/uuid"
)

// SquareOrderFact is the normalized projection of one Square order.
type SquareOrderFact struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID uuid.UUID `gorm:"column:integration_id;type:uuid;not null;index:idx_square_order_facts_scope"`
	TenantID      uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	Date          time.Time `gorm:"column:date;type:date;not null;index:idx_square_order_facts_scope"`
	OrderID       string    `gorm:"column:order_id;not null"`
	LocationRef   string    `gorm:"column:location_ref"`
	State         string    `gorm:"column:state"`
	Currency      string    `gorm:"column:currency;not null;default:'USD'"`
	GrossCents    int64     `gorm:"column:gross_cents;not null"`
	DiscountCents int64     `gorm:"column:discount_cents;not null;default:0"`
	NetCents      int64     `gorm:"column:net_cents;not null"`
	TenderType    *string   `gorm:"column:tender_type"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's default pluralization.
func (SquareOrderFact) TableName() string { return "square_order_facts" }
