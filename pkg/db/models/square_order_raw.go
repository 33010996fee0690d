package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// SquareOrderRaw mirrors one Square order payload verbatim, keyed like the
// other raw tables on (integration, external id, grain).
type SquareOrderRaw struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID     uuid.UUID      `gorm:"column:integration_id;type:uuid;not null;uniqueIndex:idx_square_orders_raw_key"`
	ExternalID        string         `gorm:"column:external_id;not null;uniqueIndex:idx_square_orders_raw_key"`
	Grain             string         `gorm:"column:grain;not null;default:'order';uniqueIndex:idx_square_orders_raw_key"`
	Payload           types.JSONText `gorm:"column:payload;type:jsonb"`
	ExternalUpdatedAt time.Time      `gorm:"column:external_updated_at;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (SquareOrderRaw) TableName() string { return "square_orders_raw" }
