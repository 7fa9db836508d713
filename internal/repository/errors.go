// Package repository holds the owner-scoped data access layer.  Every
// query against a user's records carries `user_id = ?` in its WHERE
// clause; a record that does not exist and a record owned by someone else
// are indistinguishable to the caller (both yield ErrNotFound).
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a record is absent or not owned by the
// caller.  Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrItemNotFound is returned when the expense exists but the requested
// line item does not.
var ErrItemNotFound = errors.New("item not found")

// ErrDocumentNotFound is returned when the expense exists but the
// requested document does not.
var ErrDocumentNotFound = errors.New("document not found")

// ErrEmailExists is returned when registering or changing to an email
// that belongs to another account.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidToken is returned for refresh tokens that are unknown,
// revoked or expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// ValidationError reports a request field that violates a constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// isDuplicateKey reports whether err is a unique-constraint violation on
// either supported driver.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
