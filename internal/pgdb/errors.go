package pgdb

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateError checks if error is a unique constraint violation
func isDuplicateError(err error) bool {
	return pgErrorCode(err) == pgerrcode.UniqueViolation
}

// isForeignKeyError checks if error is a foreign key violation
func isForeignKeyError(err error) bool {
	return pgErrorCode(err) == pgerrcode.ForeignKeyViolation
}

// isNoRowsError checks if error is a "no rows" error
func isNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
