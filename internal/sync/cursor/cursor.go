// Package cursor manages the durable sync watermarks.
package cursor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

// DefaultName is the cursor name used by all current jobs; the scope key
// leaves room for additional named cursors per job type.
const DefaultName = "watermark"

// Store reads and conditionally writes cursors on one connection, usually
// the persistence transaction so watermark changes commit atomically with
// the data they describe.
type Store struct {
	db *gorm.DB
}

// NewStore binds a cursor store to a connection or transaction.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored value and whether one exists.
func (s *Store) Get(ctx context.Context, integrationID uuid.UUID, jobType enums.JobType, name string) (string, bool, error) {
	var row models.SyncCursor
	err := s.db.WithContext(ctx).
		Where("integration_id = ? AND job_type = ? AND name = ?", integrationID, jobType, name).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "read cursor")
	}
	return row.Value, true, nil
}

// InitializeIfAbsent seeds the cursor only when no row exists yet. Fill jobs
// use it so a backfill never regresses a cursor the fresh job has already
// advanced. Reports whether a row was written.
func (s *Store) InitializeIfAbsent(ctx context.Context, integrationID uuid.UUID, jobType enums.JobType, name, value string) (bool, error) {
	row := models.SyncCursor{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		JobType:       jobType,
		Name:          name,
		Value:         value,
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "integration_id"}, {Name: "job_type"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "initialize cursor")
	}
	return result.RowsAffected > 0, nil
}

// AdvanceIfGreater moves the cursor forward only when the new value is
// strictly greater than the stored one, inserting when absent. Values are
// RFC3339 timestamps or ISO dates, so string comparison matches time order.
// Reports whether the stored value changed.
func (s *Store) AdvanceIfGreater(ctx context.Context, integrationID uuid.UUID, jobType enums.JobType, name, value string) (bool, error) {
	if value == "" {
		return false, nil
	}

	update := s.db.WithContext(ctx).
		Model(&models.SyncCursor{}).
		Where("integration_id = ? AND job_type = ? AND name = ? AND value < ?", integrationID, jobType, name, value).
		Update("value", value)
	if update.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, update.Error, "advance cursor")
	}
	if update.RowsAffected > 0 {
		return true, nil
	}

	// Either the row is absent or the stored value is already >= value.
	_, exists, err := s.Get(ctx, integrationID, jobType, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	return s.InitializeIfAbsent(ctx, integrationID, jobType, name, value)
}
