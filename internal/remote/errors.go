package remote

import (
	"errors"
	"fmt"
)

// ErrTransport marks network-level failures. These are recoverable: the
// engine queues the mutation or falls back to cached data, never surfaces
// them as hard failures.
var ErrTransport = errors.New("transport unavailable")

// ErrRejected marks application-level rejections (not-found, forbidden,
// validation). These are surfaced and never retried automatically.
var ErrRejected = errors.New("rejected by remote store")

type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport unavailable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

type RejectedError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: remote rejected (%d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: remote rejected (%d)", e.Op, e.StatusCode)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func (e *RejectedError) NotFound() bool { return e.StatusCode == 404 }
