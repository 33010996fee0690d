package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// WebhookEvent stores one raw inbound platform event. The receiving endpoints
// live outside the engine; they only append here. Duplicate deliveries are
// absorbed by the (platform, external id) unique key.
type WebhookEvent struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID uuid.UUID      `gorm:"column:integration_id;type:uuid;not null;index"`
	Platform      enums.Platform `gorm:"column:platform;type:text;not null;uniqueIndex:idx_webhook_events_delivery"`
	Topic         string         `gorm:"column:topic;not null"`
	ExternalID    string         `gorm:"column:external_id;not null;uniqueIndex:idx_webhook_events_delivery"`
	Payload       types.JSONText `gorm:"column:payload;type:jsonb"`
	ReceivedAt    time.Time      `gorm:"column:received_at;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's default pluralization.
func (WebhookEvent) TableName() string { return "webhook_events" }
