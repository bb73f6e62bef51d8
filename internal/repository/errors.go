package repository

import "fmt"

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsTransient reports whether retrying could succeed
func (e *NotFoundError) IsTransient() bool {
	return false
}
