package store

import (
	"errors"
	"fmt"
)

// ErrUnknownDriver is returned by Open for drivers other than sqlite and postgres.
var ErrUnknownDriver = errors.New("unknown database driver")

// SchemaViolationError reports a resolved record that does not fit the table.
type SchemaViolationError struct {
	Table  string
	Index  int
	Column string
	Reason string
}

// Error implements the error interface.
func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation in %s for record %d, column %s: %s", e.Table, e.Index, e.Column, e.Reason)
}

// IsSchemaViolation reports whether err is a SchemaViolationError.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolationError
	return errors.As(err, &sv)
}
