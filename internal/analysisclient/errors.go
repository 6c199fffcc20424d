package analysisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

// CallError is returned for every failed external call. Err wraps
// venture.ErrCancelled or venture.ErrTimeout when the call was aborted.
type CallError struct {
	Domain  venture.Domain
	Status  int
	Body    string
	Timeout time.Duration
	Err     error
}

func (e *CallError) Error() string {
	switch {
	case errors.Is(e.Err, venture.ErrTimeout):
		return fmt.Sprintf("%s analysis timed out after %s", e.Domain, e.Timeout)
	case errors.Is(e.Err, venture.ErrCancelled):
		return fmt.Sprintf("%s analysis cancelled", e.Domain)
	case e.Status >= 400:
		return fmt.Sprintf("%s api error (%d): %s", e.Domain, e.Status, e.Body)
	}
	return fmt.Sprintf("%s analysis failed: %v", e.Domain, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// classify maps a transport failure onto the boundary error taxonomy. The
// parent context decides between cancellation and the call's own timeout.
func classify(parent, call context.Context, d venture.Domain, timeout time.Duration, status int, body []byte, err error) error {
	switch {
	case parent.Err() != nil:
		return &CallError{Domain: d, Err: venture.ErrCancelled}
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return &CallError{Domain: d, Timeout: timeout, Err: venture.ErrTimeout}
	}
	return &CallError{Domain: d, Status: status, Body: truncate(string(body), 500), Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
