package store

import (
	"context"
	"time"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// ExpiringStateStore stores state that disappears after a deadline.
type ExpiringStateStore interface {
	StateStore
	SetStateUntil(ctx context.Context, key, val string, expires time.Time) error
}

// EventStore journals narrative progress across sessions.
type EventStore interface {
	RecordSegment(ctx context.Context, session string, segment int) error
	SegmentCounts(ctx context.Context) (map[int]int, error)
}
