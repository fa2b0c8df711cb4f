package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel kinds for knowledge store errors.
var (
	ErrNotFound = errors.New("not found in knowledge store")
	// ErrTransient marks an error as worth retrying.
	ErrTransient = errors.New("transient knowledge store failure")
	ErrBadGraph  = errors.New("invalid graph name")
)

// QueryError is a knowledge store query that failed for good.
type QueryError struct {
	Op        string
	Attempts  int
	Transient bool
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("knowledge store %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: timeouts, dropped
// connections, serialization failures and server restarts.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection exception
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization failure, deadlock
			return true
		case pgErr.Code == "53300", pgErr.Code == "57P01", pgErr.Code == "57P03": // too many connections, shutdown
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
