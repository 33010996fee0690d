// Package webhookstore appends raw platform webhook deliveries. Receipt
// endpoints live outside the engine; they hand events here for durable
// storage, deduplicated by (platform, external delivery id).
package webhookstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/channelsync-backend/pkg/db"
	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/pagination"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// Event is one inbound delivery as the receiving endpoint saw it.
type Event struct {
	IntegrationID uuid.UUID
	Platform      enums.Platform
	Topic         string
	ExternalID    string
	Payload       types.JSONText
	ReceivedAt    time.Time
}

// Store writes webhook events.
type Store struct {
	db *db.Client
}

// NewStore builds the writer.
func NewStore(client *db.Client) (*Store, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db client is required")
	}
	return &Store{db: client}, nil
}

// Append stores the event and reports whether it was new. Redeliveries of the
// same external id are absorbed without error.
func (s *Store) Append(ctx context.Context, event Event) (bool, error) {
	if err := validate(event); err != nil {
		return false, err
	}

	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	row := models.WebhookEvent{
		ID:            uuid.New(),
		IntegrationID: event.IntegrationID,
		Platform:      event.Platform,
		Topic:         event.Topic,
		ExternalID:    event.ExternalID,
		Payload:       event.Payload,
		ReceivedAt:    receivedAt,
	}

	var inserted bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "append webhook event")
		}
		inserted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Page is one page of stored events plus the cursor for the next call.
type Page struct {
	Events     []models.WebhookEvent
	NextCursor string
}

// ListByIntegration returns stored events for an integration, newest first,
// with keyset pagination on (received_at, id).
func (s *Store) ListByIntegration(ctx context.Context, integrationID uuid.UUID, params pagination.Params) (*Page, error) {
	if integrationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "integration id is required")
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := s.db.DB().WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("received_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if after != nil {
		query = query.Where(
			"received_at < ? OR (received_at = ? AND id < ?)",
			after.CreatedAt, after.CreatedAt, after.ID,
		)
	}

	var events []models.WebhookEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list webhook events")
	}

	page := &Page{Events: events}
	if len(events) > limit {
		last := events[limit-1]
		page.Events = events[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.ReceivedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func validate(event Event) error {
	if event.IntegrationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "integration id is required")
	}
	if event.Platform == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "platform is required")
	}
	if strings.TrimSpace(event.ExternalID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external delivery id is required")
	}
	if strings.TrimSpace(event.Topic) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "topic is required")
	}
	return nil
}
