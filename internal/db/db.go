// Package db is the SQLite (SQLCipher) implementation of store.Store.
package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kuitang/notebook/internal/obs"
	"github.com/kuitang/notebook/internal/store"
)

const (
	// DefaultPath is the default database file location.
	DefaultPath = "./data/notebook.db"

	// KeySize is the SQLCipher key length in bytes.
	KeySize = 32

	// MaxOpenConns is the maximum number of open connections.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2
)

var _ store.Store = (*Store)(nil)

// Store persists folders and notes in a single SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database file at path and applies the
// schema. A non-nil key encrypts the file with SQLCipher; it must be KeySize bytes.
func Open(ctx context.Context, path string, key []byte) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if key != nil && len(key) != KeySize {
		return nil, fmt.Errorf("database key must be exactly %d bytes, got %d", KeySize, len(key))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := path
	if key != nil {
		// Format: file.db?_pragma_key=x'HEX_KEY'&_pragma_cipher_page_size=4096
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, hex.EncodeToString(key))
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	// A wrong key only surfaces on the first real read.
	var sqliteVersion string
	if err := sqlDB.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	obs.Pkg("db").Info("sqlite store opened",
		"path", path,
		"encrypted", key != nil,
		"sqlite_version", sqliteVersion,
	)

	return NewFromSQL(sqlDB), nil
}

// NewFromSQL wraps an existing sql.DB whose schema is already applied.
func NewFromSQL(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB, now: store.Clock}
}

// SetClock overrides the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC().Truncate(time.Microsecond) }
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func sqliteCommonParams() string {
	// Production-safe defaults: WAL + NORMAL provides good throughput while preserving safety.
	// _txlock=immediate: transactions read before they write, and upgrading a
	// deferred read lock fails with SQLITE_BUSY without consulting busy_timeout.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// DecodeKey parses a hex-encoded SQLCipher key. An empty string yields a nil key.
func DecodeKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("database key is not valid hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("database key must be %d hex characters", KeySize*2)
	}
	return key, nil
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
