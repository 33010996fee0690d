package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	values map[string]string
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeStore) SyncLockKey(integrationID, jobType string) string {
	return "cs:sync_lock:" + integrationID + ":" + jobType
}

func TestAcquireAndRelease(t *testing.T) {
	store := newFakeStore()
	lock, err := New(store, uuid.New(), "shopify_fresh", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, store.values, 1)

	require.NoError(t, lock.Release(context.Background()))
	require.Empty(t, store.values)
}

func TestAcquireHeldByOther(t *testing.T) {
	store := newFakeStore()
	integrationID := uuid.New()

	first, err := New(store, integrationID, "meta_fresh", time.Minute)
	require.NoError(t, err)
	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	second, err := New(store, integrationID, "meta_fresh", time.Minute)
	require.NoError(t, err)
	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	// Same integration, different job type is a separate scope.
	other, err := New(store, integrationID, "meta_7d_fill", time.Minute)
	require.NoError(t, err)
	ok, err = other.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReleaseSkipsForeignOwner(t *testing.T) {
	store := newFakeStore()
	integrationID := uuid.New()

	lock, err := New(store, integrationID, "square_fresh", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate expiry plus takeover by another worker.
	store.values[lock.Key()] = "someone-else"

	require.NoError(t, lock.Release(context.Background()))
	require.Equal(t, "someone-else", store.values[lock.Key()])
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	store := newFakeStore()
	lock, err := New(store, uuid.New(), "shopify_7d_fill", time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release(context.Background()))
}

func TestNewValidation(t *testing.T) {
	store := newFakeStore()

	_, err := New(nil, uuid.New(), "shopify_fresh", time.Minute)
	require.Error(t, err)

	_, err = New(store, uuid.Nil, "shopify_fresh", time.Minute)
	require.Error(t, err)

	_, err = New(store, uuid.New(), "", time.Minute)
	require.Error(t, err)
}
