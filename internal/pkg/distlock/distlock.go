// Package distlock provides short-lived cross-process locks used to keep
// overlapping aggregation runs off the same date.
package distlock

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a single named lock. An instance is not safe for concurrent
// use; create one per holder.
type DistLock interface {
	// Acquire reports whether the lock was taken. It never blocks waiting
	// for another holder.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still holds it.
	Release(ctx context.Context) error
}

// NewLock returns a Redis lock when redisClient is set, otherwise a
// PostgreSQL advisory lock on db.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// Factory creates locks that share a backend and TTL.
type Factory struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
}

// NewFactory returns a Factory. redisClient may be nil.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Factory {
	return &Factory{redis: redisClient, db: db, ttl: ttl}
}

// For returns a new lock instance for key.
func (f *Factory) For(key string) DistLock {
	return NewLock(f.redis, f.db, key, f.ttl)
}
