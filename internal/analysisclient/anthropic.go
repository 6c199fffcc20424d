package analysisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

const anthropicSystemPrompt = "You are a venture analyst assessing an early-stage technology company for a university venture program. Respond with strict JSON only."

// Messager is the subset of the Anthropic messages service the client uses.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

func NewMessager(apiKey string) Messager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

// AnthropicClient produces the same slot envelope as the hosted flows by
// prompting a Claude model directly.
type AnthropicClient struct {
	domain   venture.Domain
	messages Messager
	timeout  time.Duration
}

func NewAnthropicClient(d venture.Domain, messages Messager, timeout time.Duration) *AnthropicClient {
	if timeout <= 0 {
		timeout = DefaultTimeouts[d]
	}
	return &AnthropicClient{domain: d, messages: messages, timeout: timeout}
}

func (a *AnthropicClient) Analyze(ctx context.Context, req venture.Request) (venture.Envelope, error) {
	prompt, err := buildPrompt(a.domain, req)
	if err != nil {
		return venture.Envelope{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.messages.New(callCtx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   8192,
		System:      []anthropic.TextBlockParam{{Text: anthropicSystemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return venture.Envelope{}, classify(ctx, callCtx, a.domain, a.timeout, 0, nil, err)
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	raw := stripCodeFences(sb.String())
	if raw == "" {
		return venture.Envelope{}, &CallError{Domain: a.domain, Err: errors.New("empty model response")}
	}
	var outputs map[string]any
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return venture.Envelope{}, &CallError{Domain: a.domain, Err: fmt.Errorf("decode model response: %w", err)}
	}
	return venture.Envelope{Outputs: outputs}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

var domainInstructions = map[venture.Domain]string{
	venture.DomainCompany: `Research the company at the URL below and return:
{"out-6": {"company_overview": {"name", "website", "mission_statement", "company_description"},
  "technology": {"core_technology", "technology_category", "technical_approach", "key_innovations": []},
  "products_and_applications": {"primary_application", "products": [], "use_cases": [], "target_industries": []},
  "market_context": {"industry", "problem_addressed", "value_proposition", "business_model"}}}`,
	venture.DomainTeam: `Assess the founding team of the company at the URL below and return:
{"out-0": {"venture_name", "team_members": [{"name", "role_at_venture", "work_history": [], "education_history": [],
  "papers_publications": [], "commercialization_experience": [], "awards_recognition": []}], "trusted_sources": [], "data_confidence": 0-1},
 "out-1": {"score": 1-9, "score_justification", "rubric_match_explanation", "key_strengths": [], "key_gaps": [],
  "relevant_experience": [], "team_composition": {"total_members", "technical_experts", "business_experts", "domain_experts"}}}`,
	venture.DomainFunding: `Assess the funding environment for the technology below and return:
{"out-0": {"research_topic", "application_area", "venture_funding": {"has_prior_funding", "funding_rounds": [{"date", "type", "amount", "source", "source_url"}]},
  "market_deals": [{"startup_name", "deal_date", "series", "vc_firms": [], "funding_amount": {"amount", "currency", "is_estimate"}, "source_url"}],
  "total_market_deals_found", "data_confidence": 0-1},
 "out-1": {"funding_score": 1-9, "venture_name", "assessment_date",
  "score_justification": {"rubric_level", "evidence_summary", "funding_details": [{"funding_type", "amount", "date", "investors": [], "document_reference"}]}}}`,
	venture.DomainCompetitive: `Map the competitive landscape for the technology below and return:
{"out-3": {"market_overview": {}, "competitors": [{"company_name", "size_category", "product_name", "product_description", "strengths": [], "weaknesses": [],
  "revenue", "funding_raised", "market_position"}], "competitive_analysis": {"dominant_players": [], "emerging_threats": [], "technology_trends": [], "market_gaps": []},
  "data_quality": {"overall_confidence": 0-1, "data_date", "sources_used": []}},
 "out-4": {"score": 1-9, "score_justification", "rubric_match_explanation", "competitor_count": {"total", "large_companies", "mid_size_companies", "startups"},
  "market_leaders": [], "competitive_intensity", "key_risk_factors": [], "differentiation_opportunities": []}}`,
	venture.DomainMarket: `Size the market opportunity for the technology below, using the competitive analysis that follows it, and return:
{"out-2": {"markets": [{"rank", "description", "tam_current_usd", "tam_current_year", "cagr_percent", "source_url", "confidence"}],
  "primary_market": {"description", "tam_usd", "cagr_percent", "selection_rationale"}, "scoring_alignment": {"tam_category", "cagr_category"},
  "market_analysis": {"executive_summary", "trends": [], "opportunities": [], "unmet_needs": [], "barriers_to_entry": [], "problem_statement", "differentiation"}},
 "out-3": {"score": 1-9, "confidence": 0-1, "rubric_application": {"tam_value", "tam_category", "cagr_value", "cagr_category", "base_score", "adjustment", "adjustment_rationale"},
  "justification": {"summary", "strengths_considered": [], "limitations_considered": [], "key_risks": []}, "data_quality": {"data_recency", "data_concerns": []}}}`,
	venture.DomainIPRisk: `Assess intellectual-property risk for the technology below and return:
{"out-1": {"ipRiskSummary": {"companyCurrentIP": {"description", "ownedPatents": []}, "uniquePatentableFeatures": [], "crowdedPatentableFeatures": [],
  "topPatentOwners": [{"assignee", "patentCount"}], "top5RelevantPatents": [{"patentID", "title", "assignee", "link"}],
  "overallIPRisk": {"score": 1-9, "riskLevel", "analysis", "thirdPartyChallenges": []}},
  "patentTable": {"awardedPatents": [], "patentApplications": []}, "dataConfidence": 0-1},
 "out-2": {"score": 1-9, "score_justification", "risk_level", "key_risk_factors": []}}`,
}

func buildPrompt(d venture.Domain, req venture.Request) (string, error) {
	instr, ok := domainInstructions[d]
	if !ok {
		return "", fmt.Errorf("no prompt for domain %s", d)
	}
	var b strings.Builder
	b.WriteString(instr)
	b.WriteString("\n\nScores use a 1-9 scale where 9 is best.\n\nINPUT:\n")
	b.WriteString(strings.TrimSpace(req.PrimaryInput))
	if req.SecondaryInput != "" {
		b.WriteString("\n\nCOMPETITIVE ANALYSIS:\n")
		b.WriteString(req.SecondaryInput)
	}
	b.WriteString("\n\nRespond with only valid JSON matching the shape above.")
	return b.String(), nil
}
