package model

import "strings"

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError rejects an operation before anything is written.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// NewValidationError wraps err with the offending fields.
func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return ""
	}
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return e.Err.Error() + " (" + strings.Join(names, ", ") + ")"
}

func (e *ValidationError) Unwrap() error { return e.Err }
