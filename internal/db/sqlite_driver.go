package db

import (
	"database/sql"
	"fmt"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver. Every connection
	// it opens has foreign key enforcement switched on, including in-memory
	// connections whose DSN carries no pragma parameters.
	SQLiteDriverName = "sqlite3_notebook"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if _, err := conn.Exec("PRAGMA foreign_keys = ON", nil); err != nil {
				return fmt.Errorf("enable foreign keys: %w", err)
			}
			return nil
		},
	})
}
