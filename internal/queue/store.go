package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"hopper/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	path          string
	retryInterval time.Duration

	mu          sync.Mutex
	db          *sql.DB
	lastAttempt time.Time
	lastErr     error
}

// ErrUnavailable is returned by operations that cannot silently degrade when
// the backing database is unreachable.
var ErrUnavailable = errors.New("queue storage unavailable")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database. Connection failure leaves
// the store in a degraded state instead of failing: reads return empty
// results and reconnection is re-attempted on the configured interval.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store := &Store{
		path:          filepath.Join(cfg.Paths.LogDir, "queue.db"),
		retryInterval: time.Duration(cfg.Workflow.StoreReconnectInterval) * time.Second,
	}

	store.mu.Lock()
	store.connectLocked(context.Background())
	store.mu.Unlock()

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Available reports whether the store currently holds a usable connection.
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// LastError returns the most recent connection failure, if any.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// conn returns the live connection, re-attempting a connect when the retry
// interval has elapsed. A nil return means the store is degraded.
func (s *Store) conn(ctx context.Context) *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db
	}
	if !s.lastAttempt.IsZero() && time.Since(s.lastAttempt) < s.retryInterval {
		return nil
	}
	s.connectLocked(ctx)
	return s.db
}

func (s *Store) connectLocked(ctx context.Context) {
	s.lastAttempt = time.Now()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		s.lastErr = fmt.Errorf("open sqlite db: %w", err)
		return
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			s.lastErr = fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			return
		}
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		s.lastErr = err
		return
	}

	s.db = db
	s.lastErr = nil
}

// markDisconnected drops the connection after an unavailability error so the
// next access goes through the reconnect path.
func (s *Store) markDisconnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	s.lastErr = err
	s.lastAttempt = time.Now()
}

func isUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"disk I/O error",
		"unable to open database",
		"database disk image is malformed",
		"no such device",
		"read-only database",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// execRetry runs a write. When the store is degraded the write is dropped.
func (s *Store) execRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	db := s.conn(ctx)
	if db == nil {
		return nil, nil
	}
	var (
		res     sql.Result
		execErr error
	)
	err := retryOnBusy(ctx, func() error {
		res, execErr = db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		if isUnavailableError(err) {
			s.markDisconnected(err)
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// queryRows runs a read. When the store is degraded it returns nil rows.
func (s *Store) queryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx = ensureContext(ctx)
	db := s.conn(ctx)
	if db == nil {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		if isUnavailableError(err) {
			s.markDisconnected(err)
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
