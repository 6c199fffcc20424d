package normalize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/joelkehle/venture-assessment/internal/venture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	companyJSON = `{
  "company_overview": {"name": "Acme Robotics", "website": "https://acme.example", "mission_statement": "Automate farms"},
  "technology": {"core_technology": "Vision-guided harvesting arms", "key_innovations": ["soft gripper", "yield model"]},
  "products_and_applications": {"primary_application": "Strawberry picking", "target_industries": ["agriculture"]},
  "market_context": {"problem_addressed": "Labor shortages"}
}`
	teamRosterJSON = `{
  "venture_name": "Acme Robotics",
  "team_members": [{"name": "Ada", "role_at_venture": "CEO", "work_history": ["Big Ag"]}, {}],
  "trusted_sources": ["https://acme.example/team"],
  "data_confidence": 0.8
}`
	teamScoringJSON    = `{"score": "Score: 6", "key_strengths": ["domain depth"], "team_composition": {"technical_experts": 1}, "rubric_match_explanation": "Regular conference participants"}`
	fundingAnalysisJSON = `{
  "research_topic": "agricultural robotics",
  "venture_funding": {"has_prior_funding": true, "funding_rounds": [{"type": "Seed", "amount": "$2M", "investor": "Ag Ventures"}]},
  "market_deals": [{"company": "PickCo", "round": "Series A", "vc_firms": ["Fund One"], "funding_amount": {"amount": 12000000, "is_estimate": true}}],
  "data_confidence": 1.4
}`
	fundingAssessmentJSON = `{"funding_score": 6, "score_justification": {"rubric_level": "steady", "funding_details": [{"funding_type": "Grant"}]}}`
	competitiveAnalysisJSON = `{
  "market_overview": {"size": "large"},
  "competitors": [{"company_name": "HarvestAI", "size_category": "startup"}, {"product_name": "Picker 2"}],
  "competitive_analysis": {"dominant_players": ["Deere"]},
  "data_quality": {"confidence_level": "0.65", "data_date": "2026-01-01"}
}`
	competitiveAssessmentJSON = `{"score": 5, "competitor_count": {"large_companies": "2", "mid_size_companies": 1, "startups": 4}, "market_leaders": ["Deere"]}`
	marketAnalysisJSON = `{
  "markets": [{"rank": 1, "description": "Ag robotics", "tam_current_usd": 7500000000, "tam_current_year": 2025, "cagr_percent": 22}],
  "primary_market": {"description": "Ag robotics", "tam_usd": 7500000000},
  "market_analysis": {"executive_summary": "Growing fast", "trends": ["automation"]}
}`
	marketScoringJSON = `{"score": 8, "justification": "Large and growing market", "rubric_application": {"tam_category": "over_5B"}}`
	ipDetailedJSON = `{
  "ipRiskSummary": {
    "overallIPRisk": {"score": 6, "riskLevel": "moderate", "analysis": "Detailed analysis", "thirdPartyChallenges": ["Patent thicket"]},
    "topPatentOwners": [{"assignee": "Deere", "patentCount": 40}]
  },
  "patentTable": {"awardedPatents": [{"id": "US1"}]}
}`
	ipSummaryJSON = `{"score": 3, "score_justification": "Summary analysis", "risk_level": "high", "key_risk_factors": ["Patent thicket", "Pending litigation"], "data_confidence": 0.55}`
)

var stringEnvelopes = map[venture.Domain]venture.Envelope{
	venture.DomainCompany:     {Outputs: map[string]any{"out-6": companyJSON}},
	venture.DomainTeam:        {Outputs: map[string]any{"out-0": teamRosterJSON, "out-1": teamScoringJSON}},
	venture.DomainFunding:     {Outputs: map[string]any{"out-0": fundingAnalysisJSON, "out-1": fundingAssessmentJSON}},
	venture.DomainCompetitive: {Outputs: map[string]any{"out-3": competitiveAnalysisJSON, "out-4": competitiveAssessmentJSON}},
	venture.DomainMarket:      {Outputs: map[string]any{"out-2": marketAnalysisJSON, "out-3": marketScoringJSON}},
	venture.DomainIPRisk:      {Outputs: map[string]any{"out-1": ipDetailedJSON, "out-2": ipSummaryJSON}},
}

func fixedClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func normalizeWith(t *testing.T, d venture.Domain, env venture.Envelope) (*venture.Result, error) {
	t.Helper()
	n, err := For(d)
	require.NoError(t, err)
	require.Equal(t, d, n.Domain())
	return n.Normalize(env)
}

func mustNormalize(t *testing.T, d venture.Domain, env venture.Envelope) *venture.Result {
	t.Helper()
	res, err := normalizeWith(t, d, env)
	require.NoError(t, err)
	return res
}

func decoded(t *testing.T, env venture.Envelope) venture.Envelope {
	t.Helper()
	out := map[string]any{}
	for k, v := range env.Outputs {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(v.(string)), &m))
		out[k] = m
	}
	return venture.Envelope{Outputs: out}
}

func wrapped(env venture.Envelope) venture.Envelope {
	out := map[string]any{}
	for k, v := range env.Outputs {
		out[k] = map[string]any{"text": v}
	}
	return venture.Envelope{Outputs: out}
}

func TestStringAndObjectEnvelopesAreEquivalent(t *testing.T) {
	fixedClock(t)
	for d, env := range stringEnvelopes {
		t.Run(string(d), func(t *testing.T) {
			fromString := mustNormalize(t, d, env)
			fromObject := mustNormalize(t, d, decoded(t, env))
			fromText := mustNormalize(t, d, wrapped(env))
			assert.Equal(t, fromString, fromObject)
			assert.Equal(t, fromString, fromText)
		})
	}
}

func TestNormalizeDoesNotMutateEnvelope(t *testing.T) {
	env := decoded(t, stringEnvelopes[venture.DomainTeam])
	before, err := json.Marshal(env)
	require.NoError(t, err)

	mustNormalize(t, venture.DomainTeam, env)

	after, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestMissingSlotIsFormatError(t *testing.T) {
	for d, env := range stringEnvelopes {
		t.Run(string(d), func(t *testing.T) {
			_, err := normalizeWith(t, d, venture.Envelope{Outputs: map[string]any{"unrelated": env.Outputs}})
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, d, fe.Domain)
		})
	}
}

func TestMissingOutputsIsFormatError(t *testing.T) {
	_, err := normalizeWith(t, venture.DomainMarket, venture.Envelope{})
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

func TestUnparsableSlotIsFormatError(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{"out-0": "no json here", "out-1": teamScoringJSON}}
	_, err := normalizeWith(t, venture.DomainTeam, env)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "out-0", fe.Slot)
}

func TestCompanyDefaultsAndWarnings(t *testing.T) {
	res := mustNormalize(t, venture.DomainCompany, stringEnvelopes[venture.DomainCompany])
	assert.Empty(t, res.Warnings)
	assert.Nil(t, res.Score)
	assert.Equal(t, "", lookup(res.Primary, "market_context", "industry"))
	assert.Equal(t, []any{}, lookup(res.Primary, "products_and_applications", "use_cases"))

	profile := res.Display.(CompanyProfile)
	assert.Equal(t, "Acme Robotics", profile.Name)
	assert.Equal(t, "Vision-guided harvesting arms", profile.CoreTechnology)

	partial := venture.Envelope{Outputs: map[string]any{"out-6": `{"company_overview": {"website": "acme"}}`}}
	res = mustNormalize(t, venture.DomainCompany, partial)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, "Unknown Company", lookup(res.Primary, "company_overview", "name"))
	assert.Equal(t, []any{}, lookup(res.Primary, "technology", "key_innovations"))
	assert.Equal(t, "", lookup(res.Primary, "market_context", "business_model"))
}

func TestTeamNormalization(t *testing.T) {
	res := mustNormalize(t, venture.DomainTeam, stringEnvelopes[venture.DomainTeam])
	require.NotNil(t, res.Score)
	assert.Equal(t, 6, *res.Score)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.8, *res.Confidence, 1e-9)

	view := res.Display.(TeamView)
	assert.Equal(t, "Acme Robotics", view.VentureName)
	assert.Equal(t, 2, view.Composition.Total)
	assert.Equal(t, 1, view.Composition.Technical)
	assert.Equal(t, []any{}, view.Gaps)
	assert.Equal(t, "Regular conference participants", view.Rubric)

	members := res.Primary["team_members"].([]any)
	second := members[1].(map[string]any)
	assert.Equal(t, "Unknown", second["name"])
	assert.Equal(t, "Team Member", second["role_at_venture"])
	assert.Equal(t, []any{}, second["awards_recognition"])
}

func TestTeamUnknownConfidence(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{"out-0": `{"team_members": []}`, "out-1": `{"score": 4}`}}
	res := mustNormalize(t, venture.DomainTeam, env)
	assert.Nil(t, res.Confidence)
	assert.Equal(t, "-", res.Display.(TeamView).VentureName)
}

func TestInvalidScores(t *testing.T) {
	tests := []struct {
		name   string
		domain venture.Domain
		env    venture.Envelope
	}{
		{"team out of range", venture.DomainTeam, venture.Envelope{Outputs: map[string]any{"out-0": `{}`, "out-1": `{"score": 12}`}}},
		{"team missing", venture.DomainTeam, venture.Envelope{Outputs: map[string]any{"out-0": `{}`, "out-1": `{"key_gaps": []}`}}},
		{"funding non numeric", venture.DomainFunding, venture.Envelope{Outputs: map[string]any{"out-0": `{}`, "out-1": `{"score": "strong"}`}}},
		{"competitive zero", venture.DomainCompetitive, venture.Envelope{Outputs: map[string]any{"out-3": `{}`, "out-4": `{"score": 0}`}}},
		{"market fraction", venture.DomainMarket, venture.Envelope{Outputs: map[string]any{"out-2": `{}`, "out-3": `{"score": 7.5}`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeWith(t, tt.domain, tt.env)
			var se *InvalidScoreError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.domain, se.Domain)
		})
	}
}

func TestFundingNormalization(t *testing.T) {
	res := mustNormalize(t, venture.DomainFunding, stringEnvelopes[venture.DomainFunding])
	assert.Equal(t, 6, *res.Score)
	assert.Equal(t, 6, res.Secondary["score"])
	require.NotNil(t, res.Confidence)
	assert.Equal(t, 1.0, *res.Confidence)

	view := res.Display.(FundingView)
	assert.True(t, view.HasPriorFunding)
	require.Len(t, view.FundingRounds, 1)
	assert.Equal(t, "Ag Ventures", view.FundingRounds[0].Source)
	require.Len(t, view.PeerDeals, 1)
	assert.Equal(t, "PickCo", view.PeerDeals[0].Company)
	assert.Equal(t, "Series A", view.PeerDeals[0].Series)
	assert.Equal(t, "USD", view.PeerDeals[0].Currency)
	assert.True(t, view.PeerDeals[0].IsEstimate)
	assert.Equal(t, 1, view.TotalPeerDeals)
	require.Len(t, view.FundingDetails, 1)
	assert.Equal(t, "Grant", view.FundingDetails[0].Type)
	assert.Equal(t, "Unknown amount", view.FundingDetails[0].Amount)
}

func TestFundingScoreKeysAndProseJustification(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{
		"out-0": `{}`,
		"out-1": `{"fundingScore": "7/9", "score_justification": "Several seed rounds"}`,
	}}
	res := mustNormalize(t, venture.DomainFunding, env)
	assert.Equal(t, 7, *res.Score)
	assert.Nil(t, res.Confidence)
	assert.Equal(t, "Several seed rounds", res.Display.(FundingView).Summary)
	assert.Equal(t, []any{}, lookup(res.Primary, "venture_funding", "funding_rounds"))
	assert.Equal(t, []any{}, res.Primary["market_deals"])
}

func TestCompetitiveNormalization(t *testing.T) {
	res := mustNormalize(t, venture.DomainCompetitive, stringEnvelopes[venture.DomainCompetitive])
	assert.Equal(t, 5, *res.Score)
	assert.InDelta(t, 0.65, *res.Confidence, 1e-9)

	view := res.Display.(CompetitiveView)
	assert.Equal(t, CompetitorCount{Total: 7, Large: 2, MidSize: 1, Startups: 4}, view.CompetitorCount)
	require.Len(t, view.Competitors, 2)
	assert.Equal(t, "Unknown", view.Competitors[1].Name)
	assert.Equal(t, "N/A", view.Competitors[1].Funding)
	assert.Equal(t, "unknown", view.CompetitiveIntensity)
	assert.Equal(t, []any{"Deere"}, view.DominantPlayers)
	assert.Equal(t, "2026-01-01", view.DataDate)

	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Text), &roundTrip))
	assert.Equal(t, "HarvestAI", roundTrip["competitors"].([]any)[0].(map[string]any)["company_name"])
}

func TestCompetitiveDefaults(t *testing.T) {
	fixedClock(t)
	comps := make([]any, 14)
	for i := range comps {
		comps[i] = map[string]any{"company_name": "c"}
	}
	env := venture.Envelope{Outputs: map[string]any{
		"out-3": map[string]any{"competitors": comps},
		"out-4": map[string]any{"score": 3.0, "competitor_count": map[string]any{"total": "n/a", "startups": 2.0}},
	}}
	res := mustNormalize(t, venture.DomainCompetitive, env)
	assert.InDelta(t, DefaultAnalysisConfidence, *res.Confidence, 1e-9)

	view := res.Display.(CompetitiveView)
	assert.Len(t, view.Competitors, maxDisplayedCompetitors)
	assert.Equal(t, 2.0, view.TotalCompetitors)
	assert.Equal(t, "2026-03-01T12:00:00Z", view.DataDate)
	assert.Equal(t, map[string]any{}, res.Primary["market_overview"])
}

func TestMarketNormalization(t *testing.T) {
	res := mustNormalize(t, venture.DomainMarket, stringEnvelopes[venture.DomainMarket])
	assert.Equal(t, 8, *res.Score)
	assert.InDelta(t, DefaultAnalysisConfidence, *res.Confidence, 1e-9)

	view := res.Display.(MarketView)
	assert.Equal(t, "over_5B", view.TAMCategory)
	assert.Equal(t, "under_10", view.CAGRCategory)
	assert.Equal(t, "Large and growing market", view.Justification)
	assert.Equal(t, "", view.PrimaryMarket.Rationale)
	assert.Equal(t, 8, view.RubricDetails.BaseScore)
	assert.Equal(t, "Unknown", view.DataRecency)
	require.Len(t, view.Markets, 1)
	assert.Equal(t, 0.5, view.Markets[0].Confidence)
}

func TestMarketCategories(t *testing.T) {
	assert.Equal(t, "under_500M", TAMCategory(499_999_999.0))
	assert.Equal(t, "500M_to_5B", TAMCategory(5_000_000_000.0))
	assert.Equal(t, "over_5B", TAMCategory("6000000000"))
	assert.Equal(t, "unknown", TAMCategory("lots"))
	assert.Equal(t, "under_10", CAGRCategory(9.9))
	assert.Equal(t, "10_to_35", CAGRCategory(35.0))
	assert.Equal(t, "over_35", CAGRCategory(40.0))
	assert.Equal(t, "unknown", CAGRCategory(nil))
}

func TestMarketConfidenceFromScoring(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{"out-2": `{}`, "out-3": `{"score": 2, "confidence": "40%"}`}}
	res := mustNormalize(t, venture.DomainMarket, env)
	assert.InDelta(t, 0.4, *res.Confidence, 1e-9)
	assert.Equal(t, "Unknown", lookup(res.Primary, "primary_market", "description"))
}

func TestIPRiskMergeKeepsDetailedValues(t *testing.T) {
	res := mustNormalize(t, venture.DomainIPRisk, stringEnvelopes[venture.DomainIPRisk])
	assert.Equal(t, 6, *res.Score)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.55, *res.Confidence, 1e-9)

	view := res.Display.(IPRiskView)
	assert.Equal(t, "moderate", view.RiskLevel)
	assert.Equal(t, "Detailed analysis", view.RiskAnalysis)
	assert.Equal(t, []any{"Patent thicket", "Pending litigation"}, view.Challenges)
	assert.Equal(t, "Summary analysis", view.CompanyIP["description"])
	require.Len(t, view.TopOwners, 1)
	assert.Equal(t, 40.0, view.TopOwners[0].PatentCount)
	assert.Equal(t, []any{}, view.PendingPatents)
	assert.NotNil(t, res.Secondary)
}

func TestIPRiskSummaryOnly(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{"out-1": "not json", "out-2": ipSummaryJSON}}
	res := mustNormalize(t, venture.DomainIPRisk, env)
	assert.Equal(t, 3, *res.Score)
	assert.Equal(t, "high", res.Display.(IPRiskView).RiskLevel)
	assert.NotEmpty(t, res.Warnings)
	assert.Nil(t, res.Secondary)
}

func TestIPRiskFallsBackToRiskLevel(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{
		"out-1": `{"ipRiskSummary": {"overallIPRisk": {"score": "n/a", "riskLevel": "Very_High"}}}`,
		"out-2": "",
	}}
	res := mustNormalize(t, venture.DomainIPRisk, env)
	assert.Equal(t, 2, *res.Score)
	assert.Nil(t, res.Confidence)
	assert.Equal(t, "No current IP description available.", lookup(res.Primary, "ipRiskSummary", "companyCurrentIP", "description"))
}

func TestIPRiskLegacyFlatReport(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{
		"out-1": `{
  "ipRiskScore": 7,
  "rubric_match_explanation": "Clear differentiation",
  "freedom_to_operate": {"key_constraints": ["Licensing needed"]},
  "litigation_risk": {"level": "low"},
  "patent_landscape": {"major_patent_holders": ["Deere", "CNH"]},
  "reference_patents": [{"patentID": "US123", "title": "Gripper"}]
}`,
		"out-2": nil,
	}}
	res := mustNormalize(t, venture.DomainIPRisk, env)
	assert.Equal(t, 7, *res.Score)

	view := res.Display.(IPRiskView)
	assert.Equal(t, "low", view.RiskLevel)
	assert.Equal(t, "Clear differentiation", view.RiskAnalysis)
	assert.Equal(t, []any{"Licensing needed"}, view.Challenges)
	require.Len(t, view.TopOwners, 2)
	assert.Equal(t, "CNH", view.TopOwners[1].Assignee)
	require.Len(t, view.RelevantPatents, 1)
	assert.Equal(t, "US123", view.RelevantPatents[0].ID)
	assert.Equal(t, "Unknown Assignee", view.RelevantPatents[0].Assignee)
}

func TestIPRiskUnresolvableScore(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{"out-1": `{"ipRiskSummary": {}}`}}
	_, err := normalizeWith(t, venture.DomainIPRisk, env)
	var se *InvalidScoreError
	require.ErrorAs(t, err, &se)
}

func TestIPRiskNoData(t *testing.T) {
	env := venture.Envelope{Outputs: map[string]any{"out-1": "", "out-2": "garbage"}}
	_, err := normalizeWith(t, venture.DomainIPRisk, env)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

func TestCustomSlots(t *testing.T) {
	n, err := New(venture.DomainCompetitive, Slots{Primary: []string{"analysis", "out-3"}, Secondary: []string{"assessment-v2", "out-4"}})
	require.NoError(t, err)
	env := venture.Envelope{Outputs: map[string]any{
		"out-3":         competitiveAnalysisJSON,
		"assessment-v2": `{"score": 9}`,
		"out-4":         `{"score": 1}`,
	}}
	res, err := n.Normalize(env)
	require.NoError(t, err)
	assert.Equal(t, 9, *res.Score)

	_, err = New("weather", DefaultSlots[venture.DomainTeam])
	assert.Error(t, err)
}
