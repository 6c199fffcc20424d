// Package normalize turns loosely shaped upstream analysis envelopes into
// fully populated venture.Result values.
package normalize

import (
	"fmt"
	"strings"

	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

// Normalizer converts one domain's raw envelope into its canonical result.
type Normalizer interface {
	Domain() venture.Domain
	Normalize(env venture.Envelope) (*venture.Result, error)
}

// slot is one expected output position. Candidates are tried in order.
type slot struct {
	label      string
	candidates []string
}

func (s slot) name() string { return strings.Join(s.candidates, "|") }

// Slots overrides the candidate output ids for a domain.
type Slots struct {
	Primary   []string
	Secondary []string
}

// DefaultSlots is the upstream output layout per domain.
var DefaultSlots = map[venture.Domain]Slots{
	venture.DomainCompany:     {Primary: []string{"out-6"}},
	venture.DomainTeam:        {Primary: []string{"out-0"}, Secondary: []string{"out-1"}},
	venture.DomainFunding:     {Primary: []string{"out-0"}, Secondary: []string{"out-1"}},
	venture.DomainCompetitive: {Primary: []string{"out-3"}, Secondary: []string{"out-4"}},
	venture.DomainMarket:      {Primary: []string{"out-2"}, Secondary: []string{"out-3"}},
	venture.DomainIPRisk:      {Primary: []string{"out-1"}, Secondary: []string{"out-2"}},
}

// For returns the normalizer for d using the default slot layout.
func For(d venture.Domain) (Normalizer, error) {
	return New(d, DefaultSlots[d])
}

// New returns the normalizer for d reading the given slots.
func New(d venture.Domain, slots Slots) (Normalizer, error) {
	primary := slot{candidates: slots.Primary}
	secondary := slot{candidates: slots.Secondary}
	if len(primary.candidates) == 0 {
		return nil, fmt.Errorf("normalize: no output slots for domain %q", d)
	}
	switch d {
	case venture.DomainCompany:
		primary.label = "company profile"
		return &companyNormalizer{profile: primary}, nil
	case venture.DomainTeam:
		primary.label, secondary.label = "team roster", "team scoring"
		return &teamNormalizer{roster: primary, scoring: secondary}, nil
	case venture.DomainFunding:
		primary.label, secondary.label = "funding analysis", "funding assessment"
		return &fundingNormalizer{analysis: primary, assessment: secondary}, nil
	case venture.DomainCompetitive:
		primary.label, secondary.label = "competitive analysis", "competitive assessment"
		return &competitiveNormalizer{analysis: primary, assessment: secondary}, nil
	case venture.DomainMarket:
		primary.label, secondary.label = "market analysis", "market scoring"
		return &marketNormalizer{analysis: primary, scoring: secondary}, nil
	case venture.DomainIPRisk:
		primary.label, secondary.label = "ip risk report", "ip risk summary"
		return &ipRiskNormalizer{detailed: primary, summary: secondary}, nil
	}
	return nil, fmt.Errorf("normalize: unknown domain %q", d)
}

// required resolves and extracts a slot that must carry a JSON object.
func required(d venture.Domain, s slot, outputs map[string]any) (map[string]any, error) {
	key, ok := ResolveSlot(outputs, s.candidates)
	if !ok {
		return nil, &FormatError{Domain: d, Slot: s.name(), Reason: "missing expected output"}
	}
	m, err := Extract(outputs[key])
	if err != nil {
		return nil, &FormatError{Domain: d, Slot: key, Reason: "invalid " + s.label + " format"}
	}
	if m == nil {
		return nil, &FormatError{Domain: d, Slot: key, Reason: "empty " + s.label}
	}
	return cloneMap(m), nil
}

// optional is like required but reports a missing or unusable slot as nil.
func optional(s slot, outputs map[string]any) (map[string]any, string) {
	key, ok := ResolveSlot(outputs, s.candidates)
	if !ok {
		return nil, "missing " + s.label
	}
	m, err := Extract(outputs[key])
	if err != nil {
		return nil, "unparsable " + s.label
	}
	if m == nil {
		return nil, "empty " + s.label
	}
	return cloneMap(m), ""
}

func outputsOf(d venture.Domain, env venture.Envelope) (map[string]any, error) {
	if env.Outputs == nil {
		return nil, &FormatError{Domain: d, Reason: "missing outputs in response"}
	}
	return env.Outputs, nil
}

// requireScore applies the shared score coercion and fails the phase when
// nothing usable is present.
func requireScore(d venture.Domain, raw any) (*int, error) {
	n, ok := scoring.NormalizeScore(raw)
	if !ok {
		return nil, &InvalidScoreError{Domain: d, Raw: raw}
	}
	return &n, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneValue(el)
		}
		return out
	}
	return v
}
