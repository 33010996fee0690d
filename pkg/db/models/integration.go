package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// Integration is one tenant's authorized connection to one platform.
// Created by the OAuth install flow; the sync engine reads it once per run.
type Integration struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID              uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	Platform              enums.Platform          `gorm:"column:platform;type:text;not null"`
	ExternalAccountRef    string                  `gorm:"column:external_account_ref;not null"`
	Status                enums.IntegrationStatus `gorm:"column:status;type:text;not null;default:'connected'"`
	AttributionWindowDays int                     `gorm:"column:attribution_window_days;not null;default:7"`
	Settings              types.JSONMap           `gorm:"column:settings;type:jsonb;serializer:json"`
	Credential            *IntegrationCredential  `gorm:"foreignKey:IntegrationID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (Integration) TableName() string { return "integrations" }
