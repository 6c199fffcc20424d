// Package report checks export readiness and renders the assessment report
// as Markdown and PDF.
package report

import (
	"fmt"

	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

// Readiness lists everything that blocks an export.
type Readiness struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateExport reports every missing domain result and every user score
// that has not been submitted.
func ValidateExport(agg *venture.Aggregate, board *scoring.Board) Readiness {
	errs := []string{}
	if agg.For(venture.DomainCompany) == nil {
		errs = append(errs, "Company data is missing")
	}
	for _, d := range venture.ScoredDomains {
		if _, ok := agg.For(d).ScoreValue(); !ok {
			errs = append(errs, fmt.Sprintf("%s assessment is incomplete", d.Label()))
		}
	}
	for _, d := range venture.ScoredDomains {
		a, ok := board.Get(d)
		if !ok || !a.Submitted {
			errs = append(errs, fmt.Sprintf("User %s score is missing", lowerLabel(d)))
		}
	}
	return Readiness{Valid: len(errs) == 0, Errors: errs}
}

func lowerLabel(d venture.Domain) string {
	if d == venture.DomainIPRisk {
		return "IP risk"
	}
	return string(d)
}
