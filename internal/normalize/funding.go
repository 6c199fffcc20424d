package normalize

import (
	"github.com/joelkehle/venture-assessment/internal/venture"
)

var fundingAnalysisShape = Shape{
	ListAt("venture_funding.funding_rounds"),
	ListAt("market_deals"),
}

var fundingAssessmentShape = Shape{
	ListAt("score_justification.funding_details"),
}

type FundingRound struct {
	Date        any    `json:"date"`
	Type        string `json:"type"`
	Amount      any    `json:"amount"`
	Source      string `json:"source"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type PeerDeal struct {
	Company    string `json:"company"`
	Date       any    `json:"date"`
	Series     string `json:"series"`
	Investors  []any  `json:"investors"`
	Amount     any    `json:"amount"`
	Currency   string `json:"currency"`
	IsEstimate bool   `json:"isEstimate"`
	URL        string `json:"url"`
}

type FundingDetail struct {
	Type      string `json:"type"`
	Amount    any    `json:"amount"`
	Date      any    `json:"date"`
	Investors []any  `json:"investors"`
	Reference string `json:"reference"`
}

// FundingView is the display projection of the funding phase.
type FundingView struct {
	Score              int             `json:"score"`
	RubricLevel        string          `json:"rubricLevel"`
	Summary            string          `json:"summary"`
	Confidence         *float64        `json:"confidence"`
	ResearchTopic      string          `json:"researchTopic"`
	ApplicationArea    string          `json:"applicationArea"`
	SearchDate         any             `json:"searchDate"`
	HasPriorFunding    bool            `json:"hasPriorFunding"`
	FundingRounds      []FundingRound  `json:"fundingRounds"`
	TotalFundingRounds int             `json:"totalFundingRounds"`
	PeerDeals          []PeerDeal      `json:"peerDeals"`
	TotalPeerDeals     int             `json:"totalPeerDeals"`
	FundingDetails     []FundingDetail `json:"fundingDetails"`
	AssessmentDate     any             `json:"assessmentDate"`
	VentureName        string          `json:"ventureName"`
}

type fundingNormalizer struct {
	analysis   slot
	assessment slot
}

func (n *fundingNormalizer) Domain() venture.Domain { return venture.DomainFunding }

func (n *fundingNormalizer) Normalize(env venture.Envelope) (*venture.Result, error) {
	outputs, err := outputsOf(venture.DomainFunding, env)
	if err != nil {
		return nil, err
	}
	analysis, err := required(venture.DomainFunding, n.analysis, outputs)
	if err != nil {
		return nil, err
	}
	assessment, err := required(venture.DomainFunding, n.assessment, outputs)
	if err != nil {
		return nil, err
	}

	raw, _ := first(assessment["funding_score"], assessment["score"], assessment["fundingScore"])
	score, err := requireScore(venture.DomainFunding, raw)
	if err != nil {
		return nil, err
	}
	assessment["score"] = *score

	// Older assessments carried the justification as prose.
	if s, ok := assessment["score_justification"].(string); ok {
		assessment["score_justification"] = map[string]any{"evidence_summary": s}
	}
	fundingAnalysisShape.Apply(analysis)
	fundingAssessmentShape.Apply(assessment)
	confidence := resolveConfidence(nil, analysis["data_confidence"])
	analysis["data_confidence"] = confidenceValue(confidence)

	return &venture.Result{
		Domain:     venture.DomainFunding,
		Primary:    analysis,
		Secondary:  assessment,
		Score:      score,
		Confidence: confidence,
		Display:    fundingView(analysis, assessment, *score, confidence),
		Text:       venture.MustJSON(analysis),
	}, nil
}

func fundingView(analysis, assessment map[string]any, score int, confidence *float64) FundingView {
	vf := record(analysis["venture_funding"])
	justification := record(assessment["score_justification"])

	rounds := []FundingRound{}
	for _, r := range list(vf["funding_rounds"]) {
		round := record(r)
		rounds = append(rounds, FundingRound{
			Date:        firstTruthy(round["date"]),
			Type:        strOr(round["type"], "Unknown"),
			Amount:      orDefault(round["amount"], "Unknown"),
			Source:      strOr(firstTruthy(round["source"], round["investor"]), "Unknown source"),
			Description: str(round["description"]),
			URL:         str(round["source_url"]),
		})
	}

	deals := []PeerDeal{}
	for _, d := range list(analysis["market_deals"]) {
		deal := record(d)
		amount := record(deal["funding_amount"])
		deals = append(deals, PeerDeal{
			Company:    strOr(firstTruthy(deal["startup_name"], deal["company"]), "Unknown Company"),
			Date:       firstTruthy(deal["deal_date"]),
			Series:     strOr(firstTruthy(deal["series"], deal["round"]), "N/A"),
			Investors:  list(deal["vc_firms"]),
			Amount:     amount["amount"],
			Currency:   strOr(amount["currency"], "USD"),
			IsEstimate: truthy(amount["is_estimate"]),
			URL:        str(deal["source_url"]),
		})
	}

	details := []FundingDetail{}
	for _, it := range list(justification["funding_details"]) {
		item := record(it)
		details = append(details, FundingDetail{
			Type:      strOr(firstTruthy(item["funding_type"], item["type"]), "Funding"),
			Amount:    orDefault(item["amount"], "Unknown amount"),
			Date:      firstTruthy(item["date"]),
			Investors: list(item["investors"]),
			Reference: str(item["document_reference"]),
		})
	}

	totalDeals := len(deals)
	if v, ok := analysis["total_market_deals_found"]; ok && v != nil {
		totalDeals = intOr(v, len(deals))
	}

	return FundingView{
		Score:              score,
		RubricLevel:        str(justification["rubric_level"]),
		Summary:            str(justification["evidence_summary"]),
		Confidence:         confidence,
		ResearchTopic:      str(analysis["research_topic"]),
		ApplicationArea:    str(analysis["application_area"]),
		SearchDate:         firstTruthy(analysis["search_date"]),
		HasPriorFunding:    truthy(vf["has_prior_funding"]),
		FundingRounds:      rounds,
		TotalFundingRounds: len(rounds),
		PeerDeals:          deals,
		TotalPeerDeals:     totalDeals,
		FundingDetails:     details,
		AssessmentDate:     firstTruthy(assessment["assessment_date"]),
		VentureName:        str(assessment["venture_name"]),
	}
}
