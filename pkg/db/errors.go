package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres or SQLite. When names are provided, the violation must reference one
// of them: Postgres reports the constraint name, SQLite the table.column list.
func IsUniqueViolation(err error, names ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return matchesAny(pgErr.ConstraintName+" "+pgErr.Message, names)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return matchesAny(msg, names)
}

func matchesAny(haystack string, names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if name != "" && strings.Contains(haystack, name) {
			return true
		}
	}
	return false
}
