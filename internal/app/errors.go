package app

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the service is missing its index, artifact or
	// knowledge store and cannot answer at all.
	ErrUnavailable = errors.New("recommendation service unavailable")
	// ErrInvalidRequest matches every *ValidationError.
	ErrInvalidRequest = errors.New("invalid recommendation request")
)

// ValidationError rejects a request before any I/O, naming the parameter.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRequest) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}
