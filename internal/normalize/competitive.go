package normalize

import (
	"time"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

const maxDisplayedCompetitors = 10

var competitiveAnalysisShape = Shape{
	RecordAt("market_overview"),
	ListAt("competitors"),
	RecordAt("competitive_analysis"),
	RecordAt("data_quality"),
}

var competitiveAssessmentShape = Shape{
	ListAt("market_leaders"),
	TextAt("competitive_intensity", "unknown"),
	ListAt("key_risk_factors"),
	ListAt("differentiation_opportunities"),
}

type CompetitorCount struct {
	Total    float64 `json:"total"`
	Large    float64 `json:"large_companies"`
	MidSize  float64 `json:"mid_size_companies"`
	Startups float64 `json:"startups"`
}

type Competitor struct {
	Name        string `json:"name"`
	Size        string `json:"size"`
	Product     string `json:"product"`
	Description string `json:"description"`
	Strengths   []any  `json:"strengths"`
	Weaknesses  []any  `json:"weaknesses"`
	Revenue     any    `json:"revenue"`
	Funding     any    `json:"funding"`
	Position    any    `json:"position"`
}

// CompetitiveView is the display projection of the competitive phase.
type CompetitiveView struct {
	Score                int             `json:"score"`
	Justification        string          `json:"justification"`
	RubricMatch          string          `json:"rubricMatch"`
	CompetitorCount      CompetitorCount `json:"competitorCount"`
	TotalCompetitors     float64         `json:"totalCompetitors"`
	Competitors          []Competitor    `json:"competitors"`
	MarketLeaders        []any           `json:"marketLeaders"`
	CompetitiveIntensity string          `json:"competitiveIntensity"`
	KeyRisks             []any           `json:"keyRisks"`
	Opportunities        []any           `json:"opportunities"`
	DominantPlayers      []any           `json:"dominantPlayers"`
	EmergingThreats      []any           `json:"emergingThreats"`
	TechnologyTrends     []any           `json:"technologyTrends"`
	MarketGaps           []any           `json:"marketGaps"`
	Confidence           float64         `json:"confidence"`
	DataDate             string          `json:"dataDate"`
	Sources              []any           `json:"sources"`
}

type competitiveNormalizer struct {
	analysis   slot
	assessment slot
}

func (n *competitiveNormalizer) Domain() venture.Domain { return venture.DomainCompetitive }

func (n *competitiveNormalizer) Normalize(env venture.Envelope) (*venture.Result, error) {
	outputs, err := outputsOf(venture.DomainCompetitive, env)
	if err != nil {
		return nil, err
	}
	analysis, err := required(venture.DomainCompetitive, n.analysis, outputs)
	if err != nil {
		return nil, err
	}
	assessment, err := required(venture.DomainCompetitive, n.assessment, outputs)
	if err != nil {
		return nil, err
	}
	score, err := requireScore(venture.DomainCompetitive, assessment["score"])
	if err != nil {
		return nil, err
	}
	assessment["score"] = *score

	competitiveAnalysisShape.Apply(analysis)
	competitiveAssessmentShape.Apply(assessment)

	dq := record(analysis["data_quality"])
	confidence := resolveConfidence(analysisDefault(),
		dq["overall_confidence"], dq["confidence"], dq["confidence_level"])
	dq["overall_confidence"] = *confidence

	counts := competitorCount(assessment["competitor_count"])
	assessment["competitor_count"] = map[string]any{
		"total":              counts.Total,
		"large_companies":    counts.Large,
		"mid_size_companies": counts.MidSize,
		"startups":           counts.Startups,
	}

	return &venture.Result{
		Domain:     venture.DomainCompetitive,
		Primary:    analysis,
		Secondary:  assessment,
		Score:      score,
		Confidence: confidence,
		Display:    competitiveView(analysis, assessment, *score, *confidence, counts),
		// Market consumes the serialized analysis as its competitive input.
		Text: venture.MustJSON(analysis),
	}, nil
}

// competitorCount coerces every bucket to a number and recomputes a missing
// or non-numeric total from the buckets.
func competitorCount(v any) CompetitorCount {
	raw, ok := v.(map[string]any)
	if !ok || len(raw) == 0 {
		return CompetitorCount{}
	}
	c := CompetitorCount{
		Large:    numOr(raw["large_companies"], 0),
		MidSize:  numOr(raw["mid_size_companies"], 0),
		Startups: numOr(raw["startups"], 0),
	}
	if total, ok := toFloat(raw["total"]); ok {
		c.Total = total
	} else {
		c.Total = c.Large + c.MidSize + c.Startups
	}
	return c
}

func competitiveView(analysis, assessment map[string]any, score int, confidence float64, counts CompetitorCount) CompetitiveView {
	competitors := []Competitor{}
	for i, c := range list(analysis["competitors"]) {
		if i == maxDisplayedCompetitors {
			break
		}
		comp := record(c)
		competitors = append(competitors, Competitor{
			Name:        strOr(comp["company_name"], "Unknown"),
			Size:        strOr(comp["size_category"], "Unknown"),
			Product:     str(comp["product_name"]),
			Description: str(comp["product_description"]),
			Strengths:   list(comp["strengths"]),
			Weaknesses:  list(comp["weaknesses"]),
			Revenue:     orDefault(comp["revenue"], "Unknown"),
			Funding:     orDefault(comp["funding_raised"], "N/A"),
			Position:    orDefault(comp["market_position"], "Unknown"),
		})
	}

	ca := record(analysis["competitive_analysis"])
	dq := record(analysis["data_quality"])
	return CompetitiveView{
		Score:                score,
		Justification:        str(assessment["score_justification"]),
		RubricMatch:          str(assessment["rubric_match_explanation"]),
		CompetitorCount:      counts,
		TotalCompetitors:     counts.Total,
		Competitors:          competitors,
		MarketLeaders:        list(assessment["market_leaders"]),
		CompetitiveIntensity: strOr(assessment["competitive_intensity"], "unknown"),
		KeyRisks:             list(assessment["key_risk_factors"]),
		Opportunities:        list(assessment["differentiation_opportunities"]),
		DominantPlayers:      list(ca["dominant_players"]),
		EmergingThreats:      list(ca["emerging_threats"]),
		TechnologyTrends:     list(ca["technology_trends"]),
		MarketGaps:           list(ca["market_gaps"]),
		Confidence:           confidence,
		DataDate:             strOr(dq["data_date"], now().UTC().Format(time.RFC3339)),
		Sources:              list(dq["sources_used"]),
	}
}
