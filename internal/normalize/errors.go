package normalize

import (
	"fmt"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

// FormatError means no usable payload could be extracted from a slot.
type FormatError struct {
	Domain venture.Domain
	Slot   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Slot == "" {
		return fmt.Sprintf("%s response: %s", e.Domain, e.Reason)
	}
	return fmt.Sprintf("%s response %s: %s", e.Domain, e.Slot, e.Reason)
}

// InvalidScoreError means the score was missing or out of range and no
// qualitative fallback resolved.
type InvalidScoreError struct {
	Domain venture.Domain
	Raw    any
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid %s score: %v", e.Domain, e.Raw)
}
