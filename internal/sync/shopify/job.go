// Package shopify runs the Shopify order sync jobs: a fixed trailing-window
// fill and a watermark-driven fresh sync.
package shopify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/internal/sync/cursor"
	"github.com/angelmondragon/channelsync-backend/internal/sync/pipeline"
	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/internal/sync/resolver"
	"github.com/angelmondragon/channelsync-backend/internal/sync/window"
	"github.com/angelmondragon/channelsync-backend/pkg/config"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/logger"
	shopifyapi "github.com/angelmondragon/channelsync-backend/pkg/shopify"
)

// Fetcher is the order page retrieval surface of the Shopify API client.
type Fetcher interface {
	FetchOrdersPage(ctx context.Context, creds shopifyapi.Credentials, query shopifyapi.OrdersQuery) (*shopifyapi.OrdersPage, error)
}

// Persister commits one normalized batch.
type Persister interface {
	PersistShopify(ctx context.Context, batch pipeline.ShopifyBatch) (*pipeline.PersistResult, error)
}

// ContextResolver loads the integration context for a run.
type ContextResolver interface {
	Resolve(ctx context.Context, integrationID uuid.UUID, stubMode bool) (*resolver.Context, error)
}

// CursorReader reads the stored watermark outside the persist transaction.
type CursorReader interface {
	Get(ctx context.Context, integrationID uuid.UUID, jobType enums.JobType, name string) (string, bool, error)
}

// JobParams carries the dependencies shared by both Shopify jobs.
type JobParams struct {
	Fetcher  Fetcher
	Store    Persister
	Resolver ContextResolver
	Cursors  CursorReader
	Logger   *logger.Logger
	Sync     config.SyncConfig
	StubMode bool
	Now      func() time.Time
}

type job struct {
	fetcher  Fetcher
	store    Persister
	resolver ContextResolver
	cursors  CursorReader
	logger   *logger.Logger
	sync     config.SyncConfig
	stubMode bool
	now      func() time.Time
}

func newJob(params JobParams) (*job, error) {
	if params.Fetcher == nil && !params.StubMode {
		return nil, fmt.Errorf("shopify fetcher is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("pipeline store is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("integration resolver is required")
	}
	if params.Cursors == nil {
		return nil, fmt.Errorf("cursor reader is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &job{
		fetcher:  params.Fetcher,
		store:    params.Store,
		resolver: params.Resolver,
		cursors:  params.Cursors,
		logger:   params.Logger,
		sync:     params.Sync,
		stubMode: params.StubMode,
		now:      now,
	}, nil
}

// FillJob backfills the trailing window regardless of watermark state.
type FillJob struct {
	*job
}

// NewFillJob validates the dependencies and builds the fill handler.
func NewFillJob(params JobParams) (*FillJob, error) {
	j, err := newJob(params)
	if err != nil {
		return nil, err
	}
	return &FillJob{job: j}, nil
}

func (j *FillJob) JobType() enums.JobType { return enums.JobShopifyFill }

func (j *FillJob) Run(ctx context.Context, desc registry.RunDescriptor) (*registry.RunStats, error) {
	return j.run(ctx, desc, enums.JobShopifyFill, true)
}

// FreshJob syncs forward from the stored watermark.
type FreshJob struct {
	*job
}

// NewFreshJob validates the dependencies and builds the fresh handler.
func NewFreshJob(params JobParams) (*FreshJob, error) {
	j, err := newJob(params)
	if err != nil {
		return nil, err
	}
	return &FreshJob{job: j}, nil
}

func (j *FreshJob) JobType() enums.JobType { return enums.JobShopifyFresh }

func (j *FreshJob) Run(ctx context.Context, desc registry.RunDescriptor) (*registry.RunStats, error) {
	return j.run(ctx, desc, enums.JobShopifyFresh, false)
}

func (j *job) run(ctx context.Context, desc registry.RunDescriptor, jobType enums.JobType, fill bool) (*registry.RunStats, error) {
	resolved, err := j.resolver.Resolve(ctx, desc.IntegrationID, j.stubMode)
	if err != nil {
		return nil, err
	}
	if resolved.Platform != enums.PlatformShopify {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("integration %s is %s, not shopify", desc.IntegrationID, resolved.Platform))
	}

	ctx = j.logger.WithTenantID(ctx, resolved.TenantID.String())
	stats := &registry.RunStats{
		JobType:         jobType,
		IntegrationID:   desc.IntegrationID,
		DatesRequested:  []string{},
		StubModeEnabled: resolved.StubMode,
	}

	previous, _, err := j.cursors.Get(ctx, desc.IntegrationID, jobType, cursor.DefaultName)
	if err != nil {
		return nil, err
	}
	stats.CursorPrevious = previous

	now := j.now().UTC()
	var win window.Window
	if fill {
		win = window.FillWindow(now, j.sync.FillWindowDays)
	} else {
		win = window.FreshWindow(now, previous, j.sync.OrderLookbackDays, 0)
	}
	if win.IsEmpty() {
		j.logger.Info(ctx, "window is empty, nothing to sync")
		return stats, nil
	}
	stats.WindowStart = window.FormatDate(win.Start)
	stats.WindowEnd = window.FormatDate(win.End)
	for _, date := range win.Dates {
		stats.DatesRequested = append(stats.DatesRequested, window.FormatDate(date))
	}

	orders, err := j.fetch(ctx, resolved, win, stats)
	if err != nil {
		return nil, err
	}
	stats.FetchedRows = len(orders)

	raw, facts, maxUpdated, err := normalizeOrders(desc.IntegrationID, resolved.TenantID, orders)
	if err != nil {
		return nil, err
	}

	cursorValue := nextCursorValue(win, maxUpdated)
	mode := pipeline.CursorAdvance
	if fill {
		mode = pipeline.CursorInitialize
	}
	result, err := j.store.PersistShopify(ctx, pipeline.ShopifyBatch{
		IntegrationID: desc.IntegrationID,
		TenantID:      resolved.TenantID,
		Raw:           raw,
		Facts:         facts,
		Cursor: &pipeline.CursorUpdate{
			JobType: jobType,
			Mode:    mode,
			Value:   cursorValue,
		},
	})
	if err != nil {
		return nil, err
	}

	stats.PersistedRows = int(result.FactRows)
	stats.CursorNext = cursorValue
	if fill {
		stats.CursorInitialized = result.CursorChanged
	} else {
		stats.CursorAdvanced = result.CursorChanged
	}
	return stats, nil
}

// nextCursorValue is the watermark the run vouches for: the newest observed
// update, never earlier than the window's last date. A zero-row run still
// covered the window and may claim it.
func nextCursorValue(win window.Window, maxUpdated time.Time) string {
	value := win.End
	if maxUpdated.After(value) {
		value = maxUpdated
	}
	return value.UTC().Format(time.RFC3339)
}
