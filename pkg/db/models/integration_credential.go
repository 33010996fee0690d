package models

import (
	"time"

	"github.com/google/uuid"
)

// IntegrationCredential holds the opaque access credential for one
// integration. Issuance and rotation belong to the install flow; the sync
// engine treats the value as read-only.
type IntegrationCredential struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID uuid.UUID  `gorm:"column:integration_id;type:uuid;not null;uniqueIndex"`
	AccessToken   string     `gorm:"column:access_token;not null"`
	Scope         *string    `gorm:"column:scope"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (IntegrationCredential) TableName() string { return "integration_credentials" }
