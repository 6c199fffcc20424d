package pipeline

import (
	"errors"
	"fmt"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

// PhaseError attributes a failure to the phase that produced it.
type PhaseError struct {
	Phase venture.Domain
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

// PhaseFromError returns the failing phase key, or "pipeline" when err is not
// attributable to a single phase.
func PhaseFromError(err error) string {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return string(pe.Phase)
	}
	return "pipeline"
}
