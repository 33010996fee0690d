// Package runlock keeps at most one run per (integration, job type) active
// across worker replicas.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// defaultTTL bounds how long a crashed worker can hold the lock. Runs are
// minutes long, so an hour of fencing is generous.
const defaultTTL = time.Hour

// store defines the Redis operations the lock uses.
type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SyncLockKey(integrationID, jobType string) string
}

// Lock is a Redis SETNX lock owned by one run attempt. Release only frees
// the key when the stored owner token still matches, so an expired lock
// reclaimed by another worker is never stolen back.
type Lock struct {
	client store
	key    string
	ttl    time.Duration
	owner  string
}

// New builds a lock scoped to one (integration, job type).
func New(client store, integrationID uuid.UUID, jobType string, ttl time.Duration) (*Lock, error) {
	if client == nil {
		return nil, errors.New("redis client required for run lock")
	}
	if integrationID == uuid.Nil {
		return nil, errors.New("integration id is required")
	}
	if jobType == "" {
		return nil, errors.New("job type is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Lock{
		client: client,
		key:    client.SyncLockKey(integrationID.String(), jobType),
		ttl:    ttl,
	}, nil
}

// Acquire tries to own the lock for the configured TTL. A false return means
// another worker holds the scope and this run should be skipped, not failed.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this attempt still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// Key exposes the namespaced lock key, mostly for logging.
func (l *Lock) Key() string {
	return l.key
}
