package testdb

import (
	"database/sql"
	"fmt"

	"github.com/kuitang/notebook/internal/db"
)

// NewStoreInMemory creates an isolated in-memory SQLite store for tests.
// Stores opened with the same name share one database.
func NewStoreInMemory(name string) (*db.Store, error) {
	if name == "" {
		name = "test-notebook"
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	sqlDB, err := sql.Open(db.SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Shared-cache tables lock instead of waiting on busy_timeout, so writers
	// are serialized through a single connection.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify in-memory database: %w", err)
	}

	if err := applyFastSQLitePragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply fast SQLite pragmas: %w", err)
	}

	if _, err := sqlDB.Exec(db.Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize in-memory schema: %w", err)
	}

	return db.NewFromSQL(sqlDB), nil
}

func applyFastSQLitePragmas(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA secure_delete=OFF",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
