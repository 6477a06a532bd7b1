package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates connector sweeps across replicas so that one
// connector is swept by a single instance at a time.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns false if the lock is held by another instance.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock. Safe to call when the lock has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a lock held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
