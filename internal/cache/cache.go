package cache

import (
	"context"
	"time"
)

// Keys of the cross-trip read models. Every committed mutation drops all of
// them.
const (
	KeyDashboard = "tripledger:dashboard"
	KeyPersons   = "tripledger:persons"
	KeyProducts  = "tripledger:products"
)

var ReadModelKeys = []string{KeyDashboard, KeyPersons, KeyProducts}

// KeyGeneration counts committed mutations. Cached read models carry the
// generation they were built at and are stale once it moves on.
const KeyGeneration = "tripledger:generation"

type ReadCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type NoopReadCache struct{}

func (NoopReadCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReadCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopReadCache) Delete(_ context.Context, _ ...string) error {
	return nil
}

func (NoopReadCache) Incr(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
