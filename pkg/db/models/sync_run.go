package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// SyncRun is the durable record of a single engine invocation. The dispatcher
// creates it queued; the worker moves it through running to a terminal state
// and attaches the structured stats or the classified error.
type SyncRun struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	IntegrationID uuid.UUID        `gorm:"column:integration_id;type:uuid;not null;index"`
	JobType       enums.JobType    `gorm:"column:job_type;type:text;not null"`
	Trigger       enums.RunTrigger `gorm:"column:trigger;type:text;not null;default:'schedule'"`
	RetryCount    int              `gorm:"column:retry_count;not null;default:0"`
	Status        enums.RunStatus  `gorm:"column:status;type:text;not null;default:'queued'"`
	ErrorCode     *string          `gorm:"column:error_code"`
	ErrorMessage  *string          `gorm:"column:error_message"`
	Stats         types.JSONMap    `gorm:"column:stats;type:jsonb;serializer:json"`
	StartedAt     *time.Time       `gorm:"column:started_at"`
	FinishedAt    *time.Time       `gorm:"column:finished_at"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (SyncRun) TableName() string { return "sync_runs" }
