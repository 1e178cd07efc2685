package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"cilaosgo/pkg/db"
)

// Store composes the persistence concerns of the server.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CacheStore
	ExpiringStateStore
	EventStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(db.TimeFormat)
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}

	// Transparent Decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		if plain, err := decompress(val); err == nil {
			return plain, true
		}
	}
	return val, true
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	if compressed, err := compress(val); err == nil {
		val = compressed
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`, key, val, s.stamp())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ? ORDER BY key", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- Compression Pooling ---

var (
	gzipWriterPool = sync.Pool{
		New: func() any { return gzip.NewWriter(io.Discard) },
	}
	bufferPool = sync.Pool{
		New: func() any { return new(bytes.Buffer) },
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool
	return bytes.Clone(buf.Bytes()), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// --- State ---

// GetState returns the value of key. Expired entries read as missing.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	// Compare expires_at as stored text; scanned values come back as RFC3339.
	query := `SELECT value FROM persistent_state
		WHERE key = ? AND (expires_at IS NULL OR expires_at >= ?)`
	var val string
	err := s.db.QueryRowContext(ctx, query, key, s.stamp()).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("State read failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, expires_at, created_at) VALUES (?, ?, NULL, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, s.stamp())
	return err
}

// SetStateUntil stores key until expires.
func (s *SQLiteStore) SetStateUntil(ctx context.Context, key, val string, expires time.Time) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, expires.UTC().Format(db.TimeFormat), s.stamp())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}

// --- Narrative events ---

// RecordSegment journals that a session reached a segment.
func (s *SQLiteStore) RecordSegment(ctx context.Context, session string, segment int) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO narrative_events (session, segment, created_at) VALUES (?, ?, ?)", session, segment, s.stamp())
	return err
}

// SegmentCounts returns how many distinct sessions reached each segment.
func (s *SQLiteStore) SegmentCounts(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT segment, count(DISTINCT session) FROM narrative_events GROUP BY segment")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var seg, n int
		if err := rows.Scan(&seg, &n); err != nil {
			return nil, err
		}
		out[seg] = n
	}
	return out, rows.Err()
}
