package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ferriskey/iam/internal/repository"
)

// ErrConflict is returned when an insert collides with a unique
// constraint (duplicate name, client ID, username, etc).
var ErrConflict = errors.New("storage: conflict")

// ErrNotFound aliases repository.ErrNotFound so every store in this package
// can return the sentinel service code branches on without importing the
// repository package directly in every file.
var ErrNotFound = repository.ErrNotFound

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal used throughout the IAM repositories to
// detect a losing side of a create-or-fetch race.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
