package api

import "errors"

// ErrMethodNotAllowed is reported for any verb other than GET.
var ErrMethodNotAllowed = errors.New("method not allowed")
