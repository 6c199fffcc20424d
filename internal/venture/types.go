// Package venture holds the contract shared by the analysis clients, the
// response normalizers and the phase scheduler.
package venture

import "encoding/json"

type Domain string

const (
	DomainCompany     Domain = "company"
	DomainTeam        Domain = "team"
	DomainFunding     Domain = "funding"
	DomainCompetitive Domain = "competitive"
	DomainMarket      Domain = "market"
	DomainIPRisk      Domain = "iprisk"
)

// ScoredDomains are the domains that carry a 1-9 score and a user counter-score.
var ScoredDomains = []Domain{DomainTeam, DomainFunding, DomainCompetitive, DomainMarket, DomainIPRisk}

func (d Domain) Label() string {
	switch d {
	case DomainCompany:
		return "Company"
	case DomainTeam:
		return "Team"
	case DomainFunding:
		return "Funding"
	case DomainCompetitive:
		return "Competitive"
	case DomainMarket:
		return "Market"
	case DomainIPRisk:
		return "IP Risk"
	default:
		return string(d)
	}
}

func ParseDomain(s string) (Domain, bool) {
	switch Domain(s) {
	case DomainCompany, DomainTeam, DomainFunding, DomainCompetitive, DomainMarket, DomainIPRisk:
		return Domain(s), true
	case "ip-risk", "ipRisk":
		return DomainIPRisk, true
	}
	return "", false
}

// Request is one outbound call to a hosted analysis endpoint.
type Request struct {
	Identifier     string `json:"identifier"`
	PrimaryInput   string `json:"primary_input"`
	SecondaryInput string `json:"secondary_input,omitempty"`
}

// Envelope is the raw upstream response: output slot id -> raw value.
type Envelope struct {
	Outputs map[string]any `json:"outputs"`
}

// Result is the canonical output of a phase. Primary and Secondary are the
// fully default-filled payloads; Display is the domain's typed projection.
type Result struct {
	Domain     Domain         `json:"domain"`
	Primary    map[string]any `json:"primary"`
	Secondary  map[string]any `json:"secondary,omitempty"`
	Score      *int           `json:"score"`
	Confidence *float64       `json:"confidence"`
	Display    any            `json:"display"`
	// Text is the canonical serialized primary payload, used as input by
	// dependent phases.
	Text     string   `json:"-"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Result) ScoreValue() (int, bool) {
	if r == nil || r.Score == nil {
		return 0, false
	}
	return *r.Score, true
}

// Aggregate is the outbound object handed to presentation and export.
type Aggregate struct {
	RunID                string  `json:"run_id"`
	CompanyURL           string  `json:"company_url"`
	Company              *Result `json:"company"`
	Team                 *Result `json:"team"`
	Funding              *Result `json:"funding"`
	Competitive          *Result `json:"competitive"`
	Market               *Result `json:"market"`
	IPRisk               *Result `json:"ipRisk"`
	TechDescription      string  `json:"synthesizedTechDescription"`
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
}

func (a *Aggregate) For(d Domain) *Result {
	if a == nil {
		return nil
	}
	switch d {
	case DomainCompany:
		return a.Company
	case DomainTeam:
		return a.Team
	case DomainFunding:
		return a.Funding
	case DomainCompetitive:
		return a.Competitive
	case DomainMarket:
		return a.Market
	case DomainIPRisk:
		return a.IPRisk
	}
	return nil
}

func (a *Aggregate) Set(d Domain, r *Result) {
	switch d {
	case DomainCompany:
		a.Company = r
	case DomainTeam:
		a.Team = r
	case DomainFunding:
		a.Funding = r
	case DomainCompetitive:
		a.Competitive = r
	case DomainMarket:
		a.Market = r
	case DomainIPRisk:
		a.IPRisk = r
	}
}

// MustJSON encodes v, yielding "" when v cannot be marshalled.
func MustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
