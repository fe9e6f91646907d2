package utils

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest = errors.New("Bad request")
	ErrConfig     = errors.New("Invalid configuration")
	ErrNotFound   = errors.New("Not found")
	ErrParse      = errors.New("Parse error")
)

type DetailedError interface {
	error
	Details() string
}

type detailedError struct {
	err     error
	details string
}

// Attach details, e.g. the path of a failure screenshot, to an error.
// The wrapped error remains reachable through errors.Is/As.
func NewDetailedError(err error, details string) error {
	return &detailedError{err: err, details: details}
}

func (e *detailedError) Error() string {
	return e.err.Error()
}

func (e *detailedError) Details() string {
	return e.details
}

func (e *detailedError) Unwrap() error {
	return e.err
}

// Wrap a validation failure as a configuration error.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
