package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilaosgo/pkg/db"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewSQLiteStore(d)
}

func TestCacheStore(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, hit := s.GetCache(ctx, "osrm:missing")
	assert.False(t, hit)

	payload := []byte(strings.Repeat(`{"code":"Ok"}`, 50))
	require.NoError(t, s.SetCache(ctx, "osrm:a", payload))
	require.NoError(t, s.SetCache(ctx, "osrm:b", []byte("x")))
	require.NoError(t, s.SetCache(ctx, "other", []byte("y")))

	got, hit := s.GetCache(ctx, "osrm:a")
	require.True(t, hit)
	assert.Equal(t, payload, got, "compressed values are transparent to the reader")

	ok, err := s.HasCache(ctx, "osrm:b")
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := s.ListCacheKeys(ctx, "osrm:")
	require.NoError(t, err)
	assert.Equal(t, []string{"osrm:a", "osrm:b"}, keys)
}

func TestStateStore(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	tests := []struct {
		name   string
		set    func() error
		key    string
		want   string
		wantOK bool
	}{
		{
			name:   "plain value",
			set:    func() error { return s.SetState(ctx, "k1", "v1") },
			key:    "k1",
			want:   "v1",
			wantOK: true,
		},
		{
			name:   "value before expiry",
			set:    func() error { return s.SetStateUntil(ctx, "k2", "v2", now.Add(time.Hour)) },
			key:    "k2",
			want:   "v2",
			wantOK: true,
		},
		{
			name:   "expired value",
			set:    func() error { return s.SetStateUntil(ctx, "k3", "v3", now.Add(-time.Minute)) },
			key:    "k3",
			wantOK: false,
		},
		{
			name:   "missing",
			set:    func() error { return nil },
			key:    "nope",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.set())
			got, ok := s.GetState(ctx, tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, s.DeleteState(ctx, "k1"))
	_, ok := s.GetState(ctx, "k1")
	assert.False(t, ok)
}

func TestStateStore_ExpiresWithinTheDay(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Date(2026, 10, 19, 4, 25, 59, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetStateUntil(ctx, "session:a", "mayza", now.Add(30*time.Second)))

	got, ok := s.GetState(ctx, "session:a")
	require.True(t, ok)
	assert.Equal(t, "mayza", got)

	// Same UTC date, one minute later: the entry is gone without any pruning.
	now = now.Add(time.Minute)
	_, ok = s.GetState(ctx, "session:a")
	assert.False(t, ok)
}

func TestEventStore(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.RecordSegment(ctx, "a", 1))
	require.NoError(t, s.RecordSegment(ctx, "a", 1))
	require.NoError(t, s.RecordSegment(ctx, "a", 4))
	require.NoError(t, s.RecordSegment(ctx, "b", 1))

	counts, err := s.SegmentCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2, 4: 1}, counts)
}
