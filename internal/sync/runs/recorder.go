// Package runs records sync run lifecycle transitions on the sync_runs table.
package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/pkg/db"
	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// Recorder writes run status transitions. The dispatcher usually creates the
// queued row; Ensure covers descriptors that arrive without one.
type Recorder struct {
	db  *db.Client
	now func() time.Time
}

// NewRecorder builds a Recorder.
func NewRecorder(client *db.Client) (*Recorder, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db client is required")
	}
	return &Recorder{db: client, now: time.Now}, nil
}

// Ensure creates the queued run row if the dispatcher has not already.
func (r *Recorder) Ensure(ctx context.Context, desc registry.RunDescriptor) error {
	row := models.SyncRun{
		ID:            desc.RunID,
		IntegrationID: desc.IntegrationID,
		JobType:       desc.JobType,
		Trigger:       desc.NormalizedTrigger(),
		RetryCount:    desc.RetryCount,
		Status:        enums.RunStatusQueued,
	}
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&row).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "ensure run row")
	}
	return nil
}

// MarkRunning transitions the run to running and stamps started_at.
func (r *Recorder) MarkRunning(ctx context.Context, runID uuid.UUID) error {
	startedAt := r.now().UTC()
	return r.update(ctx, runID,
		[]string{"status", "started_at"},
		models.SyncRun{
			Status:    enums.RunStatusRunning,
			StartedAt: &startedAt,
		})
}

// MarkSucceeded finalizes the run with its stats payload.
func (r *Recorder) MarkSucceeded(ctx context.Context, runID uuid.UUID, stats types.JSONMap) error {
	finishedAt := r.now().UTC()
	return r.update(ctx, runID,
		[]string{"status", "stats", "error_code", "error_message", "finished_at"},
		models.SyncRun{
			Status:     enums.RunStatusSucceeded,
			Stats:      stats,
			FinishedAt: &finishedAt,
		})
}

// MarkFailed finalizes the run with the classified error. Stats may be nil
// when the run failed before fetching anything.
func (r *Recorder) MarkFailed(ctx context.Context, runID uuid.UUID, code, message string, stats types.JSONMap) error {
	finishedAt := r.now().UTC()
	return r.update(ctx, runID,
		[]string{"status", "stats", "error_code", "error_message", "finished_at"},
		models.SyncRun{
			Status:       enums.RunStatusFailed,
			Stats:        stats,
			ErrorCode:    &code,
			ErrorMessage: &message,
			FinishedAt:   &finishedAt,
		})
}

// update uses a struct payload with an explicit column list so the stats
// serializer applies and absent fields null out.
func (r *Recorder) update(ctx context.Context, runID uuid.UUID, columns []string, values models.SyncRun) error {
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.SyncRun{}).
			Where("id = ?", runID).
			Select(columns[0], toAny(columns[1:])...).
			Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update run row")
	}
	return nil
}

func toAny(columns []string) []any {
	out := make([]any, len(columns))
	for i, column := range columns {
		out[i] = column
	}
	return out
}
