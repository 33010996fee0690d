package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/logger"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

type fakeHandler struct {
	jobType enums.JobType
	stats   *registry.RunStats
	err     error
	calls   int
}

func (f *fakeHandler) JobType() enums.JobType { return f.jobType }

func (f *fakeHandler) Run(context.Context, registry.RunDescriptor) (*registry.RunStats, error) {
	f.calls++
	return f.stats, f.err
}

type fakeRecorder struct {
	ensured      []uuid.UUID
	running      []uuid.UUID
	succeeded    map[uuid.UUID]types.JSONMap
	failed       map[uuid.UUID]string
	succeededErr error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		succeeded: map[uuid.UUID]types.JSONMap{},
		failed:    map[uuid.UUID]string{},
	}
}

func (f *fakeRecorder) Ensure(_ context.Context, desc registry.RunDescriptor) error {
	f.ensured = append(f.ensured, desc.RunID)
	return nil
}

func (f *fakeRecorder) MarkRunning(_ context.Context, runID uuid.UUID) error {
	f.running = append(f.running, runID)
	return nil
}

func (f *fakeRecorder) MarkSucceeded(_ context.Context, runID uuid.UUID, stats types.JSONMap) error {
	if f.succeededErr != nil {
		return f.succeededErr
	}
	f.succeeded[runID] = stats
	return nil
}

func (f *fakeRecorder) MarkFailed(_ context.Context, runID uuid.UUID, code, _ string, _ types.JSONMap) error {
	f.failed[runID] = code
	return nil
}

type fakeLock struct {
	acquired   bool
	acquireErr error
	released   bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	return f.acquired, f.acquireErr
}

func (f *fakeLock) Release(context.Context) error {
	f.released = true
	return nil
}

type nopSubscriber struct{}

func (nopSubscriber) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

func newTestService(t *testing.T, handler registry.Handler, recorder runRecorder, lock *fakeLock) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Subscription: nopSubscriber{},
		Registry:     registry.NewRegistry(handler),
		Recorder:     recorder,
		NewLock: func(uuid.UUID, enums.JobType) (runLock, error) {
			return lock, nil
		},
		Now: func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return service
}

func descriptorBytes(t *testing.T, desc registry.RunDescriptor) []byte {
	t.Helper()
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	return data
}

func TestHandleMessageDropsBadDescriptor(t *testing.T) {
	recorder := newFakeRecorder()
	service := newTestService(t, &fakeHandler{jobType: enums.JobShopifyFresh}, recorder, &fakeLock{acquired: true})

	result := service.handleMessage(context.Background(), []byte(`{"run_id":"not-a-uuid"}`))
	require.False(t, result.nack)
	require.Empty(t, recorder.ensured)
}

func TestProcessRunSuccess(t *testing.T) {
	recorder := newFakeRecorder()
	lock := &fakeLock{acquired: true}
	handler := &fakeHandler{
		jobType: enums.JobShopifyFresh,
		stats: &registry.RunStats{
			JobType:     enums.JobShopifyFresh,
			FetchedRows: 3,
		},
	}
	service := newTestService(t, handler, recorder, lock)

	desc := registry.RunDescriptor{
		RunID:         uuid.New(),
		IntegrationID: uuid.New(),
		JobType:       enums.JobShopifyFresh,
	}
	result := service.handleMessage(context.Background(), descriptorBytes(t, desc))

	require.False(t, result.nack)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, []uuid.UUID{desc.RunID}, recorder.ensured)
	require.Equal(t, []uuid.UUID{desc.RunID}, recorder.running)
	require.Contains(t, recorder.succeeded, desc.RunID)
	require.EqualValues(t, 3, recorder.succeeded[desc.RunID]["fetchedRows"])
	require.True(t, lock.released)
}

func TestProcessRunRedeliversWhenLockHeld(t *testing.T) {
	recorder := newFakeRecorder()
	handler := &fakeHandler{jobType: enums.JobShopifyFresh}
	service := newTestService(t, handler, recorder, &fakeLock{acquired: false})

	desc := registry.RunDescriptor{
		RunID:         uuid.New(),
		IntegrationID: uuid.New(),
		JobType:       enums.JobShopifyFresh,
	}
	result := service.handleMessage(context.Background(), descriptorBytes(t, desc))

	// The run row is still queued, so the message must come back once
	// the concurrent holder releases the lock.
	require.True(t, result.nack)
	require.Zero(t, handler.calls)
	require.Empty(t, recorder.ensured)
	require.Empty(t, recorder.failed)
}

func TestProcessRunRecordsClassifiedFailure(t *testing.T) {
	recorder := newFakeRecorder()
	lock := &fakeLock{acquired: true}
	handler := &fakeHandler{
		jobType: enums.JobMetaFresh,
		err:     pkgerrors.New(pkgerrors.CodeRateLimitExhausted, "meta throttle retries exhausted"),
	}
	service := newTestService(t, handler, recorder, lock)

	desc := registry.RunDescriptor{
		RunID:         uuid.New(),
		IntegrationID: uuid.New(),
		JobType:       enums.JobMetaFresh,
	}
	result := service.handleMessage(context.Background(), descriptorBytes(t, desc))

	require.False(t, result.nack)
	require.Equal(t, "RATE_LIMIT_EXHAUSTED", recorder.failed[desc.RunID])
	require.True(t, lock.released)
}

func TestProcessRunFailsUnregisteredJobType(t *testing.T) {
	recorder := newFakeRecorder()
	service := newTestService(t, &fakeHandler{jobType: enums.JobShopifyFill}, recorder, &fakeLock{acquired: true})

	desc := registry.RunDescriptor{
		RunID:         uuid.New(),
		IntegrationID: uuid.New(),
		JobType:       enums.JobSquareFresh,
	}
	result := service.handleMessage(context.Background(), descriptorBytes(t, desc))

	require.False(t, result.nack)
	require.Equal(t, "VALIDATION_ERROR", recorder.failed[desc.RunID])
}

func TestProcessRunNacksWhenRecorderFails(t *testing.T) {
	recorder := newFakeRecorder()
	recorder.succeededErr = errors.New("db down")
	handler := &fakeHandler{
		jobType: enums.JobShopifyFresh,
		stats:   &registry.RunStats{JobType: enums.JobShopifyFresh},
	}
	service := newTestService(t, handler, recorder, &fakeLock{acquired: true})

	desc := registry.RunDescriptor{
		RunID:         uuid.New(),
		IntegrationID: uuid.New(),
		JobType:       enums.JobShopifyFresh,
	}
	result := service.handleMessage(context.Background(), descriptorBytes(t, desc))
	require.True(t, result.nack)
}

func TestProcessRunNacksOnLockError(t *testing.T) {
	recorder := newFakeRecorder()
	handler := &fakeHandler{jobType: enums.JobShopifyFresh}
	service := newTestService(t, handler, recorder, &fakeLock{acquireErr: errors.New("redis down")})

	desc := registry.RunDescriptor{
		RunID:         uuid.New(),
		IntegrationID: uuid.New(),
		JobType:       enums.JobShopifyFresh,
	}
	result := service.handleMessage(context.Background(), descriptorBytes(t, desc))
	require.True(t, result.nack)
	require.Empty(t, recorder.ensured)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestProcessRunFailureLogsErrorChain(t *testing.T) {
	var buf bytes.Buffer
	recorder := newFakeRecorder()
	lock := &fakeLock{acquired: true}
	handler := &fakeHandler{
		jobType: enums.JobShopifyFill,
		err: pkgerrors.Wrap(pkgerrors.CodePersistence,
			&pgconn.PgError{Code: "23505", ConstraintName: "idx_shopify_orders_raw_key"},
			"persist shopify batch"),
	}

	service, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{ServiceName: "test", Output: &buf}),
		Subscription: nopSubscriber{},
		Registry:     registry.NewRegistry(handler),
		Recorder:     recorder,
		NewLock: func(uuid.UUID, enums.JobType) (runLock, error) {
			return lock, nil
		},
		Now: func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	desc := registry.RunDescriptor{
		RunID:         uuid.New(),
		IntegrationID: uuid.New(),
		JobType:       enums.JobShopifyFill,
	}
	result := service.handleMessage(context.Background(), descriptorBytes(t, desc))

	require.False(t, result.nack)
	require.Equal(t, "PERSISTENCE_ERROR", recorder.failed[desc.RunID])

	logged := buf.String()
	require.Contains(t, logged, "sync run failed")
	require.Contains(t, logged, "error_chain")
	require.Contains(t, logged, "23505")
	require.Contains(t, logged, "idx_shopify_orders_raw_key")
}
