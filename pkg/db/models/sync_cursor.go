package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
)

// SyncCursor is the durable watermark for one (integration, job type, name)
// triple. Value is an opaque string; platform conventions keep it either an
// RFC3339 timestamp or an ISO date, both of which order lexicographically.
type SyncCursor struct {
	ID            uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID uuid.UUID     `gorm:"column:integration_id;type:uuid;not null;uniqueIndex:idx_sync_cursors_scope"`
	JobType       enums.JobType `gorm:"column:job_type;type:text;not null;uniqueIndex:idx_sync_cursors_scope"`
	Name          string        `gorm:"column:name;not null;uniqueIndex:idx_sync_cursors_scope"`
	Value         string        `gorm:"column:value;not null"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (SyncCursor) TableName() string { return "sync_cursors" }
