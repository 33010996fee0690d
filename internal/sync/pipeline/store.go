// Package pipeline persists normalized sync batches. Each persist call runs
// one transaction covering the raw mirror upsert, the per-date fact replace,
// the aggregate rebuild, the tenant summary rebuild, and the cursor step, so
// a failure anywhere leaves both data and watermark untouched.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/channelsync-backend/internal/sync/cursor"
	"github.com/angelmondragon/channelsync-backend/pkg/db"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/logger"
	"github.com/angelmondragon/channelsync-backend/pkg/warehouse"
)

const (
	defaultTxTimeout = 30 * time.Second
	insertBatchSize  = 500
)

// CursorMode selects how the watermark step treats an existing cursor.
type CursorMode string

const (
	// CursorInitialize seeds the cursor only when absent. Fill jobs use it
	// so a backfill never regresses a watermark the fresh job owns.
	CursorInitialize CursorMode = "initialize"
	// CursorAdvance moves the cursor forward only when the new value is
	// strictly greater.
	CursorAdvance CursorMode = "advance"
)

// CursorUpdate describes the watermark write that commits with the batch.
type CursorUpdate struct {
	JobType enums.JobType
	Name    string
	Mode    CursorMode
	Value   string
}

// AggregateSnapshot is one rebuilt daily aggregate in platform-neutral shape,
// returned so callers can forward the fresh rollups to the warehouse.
type AggregateSnapshot struct {
	TenantID      uuid.UUID
	IntegrationID uuid.UUID
	Platform      enums.Platform
	Date          time.Time
	OrdersCount   int64
	GrossCents    int64
	NetCents      int64
	SpendCents    int64
	Impressions   int64
	Clicks        int64
	Conversions   int64
}

// PersistResult reports what one persist call wrote.
type PersistResult struct {
	RawRows       int64
	FactRows      int64
	CursorChanged bool
	Aggregates    []AggregateSnapshot
}

// AggregateExporter forwards rebuilt daily aggregates to the warehouse.
type AggregateExporter interface {
	Export(ctx context.Context, rows []warehouse.DailyAggregateRow) error
}

// StoreParams carries the dependencies for NewStore. Exporter is optional;
// when absent aggregates stay in postgres only.
type StoreParams struct {
	DB        *db.Client
	Logger    *logger.Logger
	Exporter  AggregateExporter
	TxTimeout time.Duration
}

// Store runs the persistence pipeline against the shared database client.
type Store struct {
	db        *db.Client
	logger    *logger.Logger
	exporter  AggregateExporter
	txTimeout time.Duration
}

// NewStore validates the dependencies and builds a Store.
func NewStore(params StoreParams) (*Store, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	timeout := params.TxTimeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &Store{
		db:        params.DB,
		logger:    params.Logger,
		exporter:  params.Exporter,
		txTimeout: timeout,
	}, nil
}

// exportAggregates streams the rebuilt rollups to the warehouse after commit.
// Export failures never fail the run; postgres stays the source of truth.
func (s *Store) exportAggregates(ctx context.Context, snapshots []AggregateSnapshot) {
	if s.exporter == nil || len(snapshots) == 0 {
		return
	}
	exportedAt := time.Now().UTC()
	rows := make([]warehouse.DailyAggregateRow, 0, len(snapshots))
	for _, snap := range snapshots {
		rows = append(rows, warehouse.DailyAggregateRow{
			TenantID:          snap.TenantID.String(),
			IntegrationID:     snap.IntegrationID.String(),
			Platform:          string(snap.Platform),
			Date:              snap.Date.Format("2006-01-02"),
			OrdersCount:       snap.OrdersCount,
			GrossRevenueCents: snap.GrossCents,
			NetRevenueCents:   snap.NetCents,
			AdSpendCents:      snap.SpendCents,
			Impressions:       snap.Impressions,
			Clicks:            snap.Clicks,
			Conversions:       snap.Conversions,
			ExportedAt:        exportedAt,
		})
	}
	if err := s.exporter.Export(ctx, rows); err != nil {
		s.logger.Error(ctx, "warehouse export failed, aggregates remain in postgres only", err)
	}
}

// applyCursor runs the watermark step inside the batch transaction.
func applyCursor(ctx context.Context, tx *gorm.DB, integrationID uuid.UUID, update *CursorUpdate) (bool, error) {
	if update == nil || update.Value == "" {
		return false, nil
	}
	name := update.Name
	if name == "" {
		name = cursor.DefaultName
	}
	store := cursor.NewStore(tx)
	switch update.Mode {
	case CursorInitialize:
		return store.InitializeIfAbsent(ctx, integrationID, update.JobType, name, update.Value)
	case CursorAdvance:
		return store.AdvanceIfGreater(ctx, integrationID, update.JobType, name, update.Value)
	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown cursor mode %q", update.Mode))
	}
}

// persistCursorOnly commits the watermark step when a run fetched nothing.
// The window was still fully observed, so fill jobs may seed their cursor and
// fresh jobs keep theirs unchanged.
func (s *Store) persistCursorOnly(ctx context.Context, integrationID uuid.UUID, update *CursorUpdate) (*PersistResult, error) {
	result := &PersistResult{}
	if update == nil || update.Value == "" {
		return result, nil
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := applyCursor(ctx, tx, integrationID, update)
		if err != nil {
			return err
		}
		result.CursorChanged = changed
		return nil
	})
	if err != nil {
		return nil, wrapPersist(err, "commit cursor")
	}
	return result, nil
}

// distinctDates returns the unique fact dates in insertion order.
func distinctDates(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func wrapPersist(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	wrapped := pkgerrors.Wrap(pkgerrors.CodePersistence, err, msg)
	if pkgerrors.IsUniqueViolation(err) {
		// Conflict writes go through ON CONFLICT, so a unique violation
		// here means a constraint the batch was not expected to hit.
		dump := pkgerrors.Dump(err)
		wrapped = wrapped.WithDetails(map[string]any{
			"pg_code":       dump.PGCode,
			"pg_constraint": dump.PGConstraint,
			"pg_table":      dump.PGTable,
		})
	}
	return wrapped
}
