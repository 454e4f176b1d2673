package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// FieldError is a result field that does not match its declared type.
type FieldError struct {
	Field string
	Type  domain.Type
	// Value is nil when the field is missing.
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s): missing", e.Field, e.Type)
	}
	return fmt.Sprintf("%s (%s): %v", e.Field, e.Type, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// RowError collects the field errors of one result row, sorted by field.
type RowError []*FieldError

func (e RowError) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

func (e RowError) Unwrap() []error {
	errs := make([]error, len(e))
	for i, fe := range e {
		errs[i] = fe
	}
	return errs
}

// Fields returns the field errors carried by err, if any.
func Fields(err error) []*FieldError {
	var row RowError
	if errors.As(err, &row) {
		return row
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return []*FieldError{fe}
	}
	return nil
}
