package venture

import (
	"errors"
	"fmt"
)

var (
	ErrCancelled      = errors.New("analysis cancelled")
	ErrTimeout        = errors.New("analysis timed out")
	ErrAlreadyRunning = errors.New("analysis already in progress")
)

// ValidationError reports a required input or field that is absent or
// malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsCancellation reports whether err came from a cancelled or timed-out
// external call. The scheduler treats both the same way.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrTimeout)
}
