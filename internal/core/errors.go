package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound marks lookups for entities that do not exist. Callers wrap it
// with context: fmt.Errorf("order %d: %w", id, ErrNotFound).
var ErrNotFound = errors.New("not found")

// ErrExhaustedRetries is returned when order code generation runs out of
// attempts. The operation is safe for the caller to retry.
var ErrExhaustedRetries = errors.New("order code generation exhausted retries")

// ValidationError reports a business-rule violation in caller input. It is
// always surfaced to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a server-side unique constraint
// violation. The create workflow treats this the same as a detected code
// collision: a late loser of the check-then-insert race.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
