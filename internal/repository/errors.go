package repository

import (
	"errors"
	"strings"

	"authgate/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// translateError maps driver errors onto the domain persistence sentinels.
// Unrecognised errors are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if dup := duplicateFor(pgErr.ConstraintName); dup != nil {
			return dup
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		if dup := duplicateFor(liteErr.Error()); dup != nil {
			return dup
		}
	}
	return err
}

// duplicateFor inspects a constraint name (postgres) or message (sqlite).
func duplicateFor(s string) error {
	switch {
	case strings.Contains(s, "email"):
		return domain.ErrDuplicateEmail
	case strings.Contains(s, "nickname"):
		return domain.ErrDuplicateNickname
	case strings.Contains(s, "account"):
		return domain.ErrDuplicateAccount
	}
	return nil
}
