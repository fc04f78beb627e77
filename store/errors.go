package store

import "fmt"

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func required(field string) error {
	return &ValidationError{Field: field, Reason: "must not be empty"}
}
