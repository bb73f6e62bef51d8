package models

import (
	"fmt"
	"strings"
)

// SchemaMismatchError is returned when an imported file's header does not match the expected layout.
// The whole import is rejected; nothing is partially applied.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
	Missing  []string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("header mismatch: missing columns %s", strings.Join(e.Missing, ","))
	}
	return fmt.Sprintf("header mismatch: expected %q, got %q",
		strings.Join(e.Expected, ","), strings.Join(e.Got, ","))
}

// IsTransient returns false as a malformed file will not fix itself on retry
func (e *SchemaMismatchError) IsTransient() bool {
	return false
}

// ValidationError represents a rejected input value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
