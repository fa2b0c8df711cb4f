package fusion

import "errors"

// Sentinel kinds for fusion errors.
var (
	ErrUnknownPolicy = errors.New("unknown fusion policy")
	ErrNoPolicy      = errors.New("fusion policy is required")
)
