package parser

import "fmt"

// FieldError is a problem with the value of a single field. It is attached
// to the record that holds the field; parsing goes on.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
