package storage

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrOpenFailure is returned when the database can neither be opened nor created.
	ErrOpenFailure = errors.New("database unavailable")

	// ErrConstraintViolation is returned when a record is missing a required field.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrClosed is returned by operations on a closed Database.
	ErrClosed = errors.New("database is closed")
)

// isConstraintError reports whether err came from an SQLite constraint check.
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintNotNull
}
