package normalize

import (
	"github.com/joelkehle/venture-assessment/internal/venture"
)

const maxDisplayedMarkets = 5

var marketAnalysisShape = Shape{
	ListAt("markets"),
	TextAt("primary_market.description", "Unknown"),
	NumberAt("primary_market.tam_usd", 0),
	NumberAt("primary_market.cagr_percent", 0),
	TextAt("primary_market.selection_rationale", ""),
	RecordAt("scoring_alignment"),
	RecordAt("market_analysis"),
}

var marketScoringShape = Shape{
	RecordAt("rubric_application"),
	RecordAt("justification"),
	RecordAt("data_quality"),
}

type MarketEntry struct {
	Rank        any     `json:"rank"`
	Description string  `json:"description"`
	TAM         float64 `json:"tam"`
	TAMYear     any     `json:"tamYear"`
	CAGR        float64 `json:"cagr"`
	Source      string  `json:"source"`
	Confidence  float64 `json:"confidence"`
}

type PrimaryMarket struct {
	Description string  `json:"description"`
	TAM         float64 `json:"tam"`
	CAGR        float64 `json:"cagr"`
	Rationale   string  `json:"rationale"`
}

type RubricDetails struct {
	TAMValue            any    `json:"tamValue"`
	TAMCategory         string `json:"tamCategory"`
	CAGRValue           any    `json:"cagrValue"`
	CAGRCategory        string `json:"cagrCategory"`
	BaseScore           any    `json:"baseScore"`
	Adjustment          any    `json:"adjustment"`
	AdjustmentRationale string `json:"adjustmentRationale"`
}

// MarketView is the display projection of the market phase.
type MarketView struct {
	Score            int           `json:"score"`
	Confidence       float64       `json:"confidence"`
	PrimaryMarket    PrimaryMarket `json:"primaryMarket"`
	Markets          []MarketEntry `json:"markets"`
	TAMCategory      string        `json:"tamCategory"`
	CAGRCategory     string        `json:"cagrCategory"`
	Justification    string        `json:"justification"`
	Strengths        []any         `json:"strengths"`
	Limitations      []any         `json:"limitations"`
	Risks            []any         `json:"risks"`
	ExecutiveSummary string        `json:"executiveSummary"`
	Trends           []any         `json:"trends"`
	Opportunities    []any         `json:"opportunities"`
	UnmetNeeds       []any         `json:"unmetNeeds"`
	Barriers         []any         `json:"barriers"`
	ProblemStatement string        `json:"problemStatement"`
	Differentiation  string        `json:"differentiation"`
	RubricDetails    RubricDetails `json:"rubricDetails"`
	DataRecency      string        `json:"dataRecency"`
	DataConcerns     []any         `json:"dataConcerns"`
}

type marketNormalizer struct {
	analysis slot
	scoring  slot
}

func (n *marketNormalizer) Domain() venture.Domain { return venture.DomainMarket }

func (n *marketNormalizer) Normalize(env venture.Envelope) (*venture.Result, error) {
	outputs, err := outputsOf(venture.DomainMarket, env)
	if err != nil {
		return nil, err
	}
	analysis, err := required(venture.DomainMarket, n.analysis, outputs)
	if err != nil {
		return nil, err
	}
	scoring, err := required(venture.DomainMarket, n.scoring, outputs)
	if err != nil {
		return nil, err
	}
	score, err := requireScore(venture.DomainMarket, scoring["score"])
	if err != nil {
		return nil, err
	}
	scoring["score"] = *score

	if s, ok := scoring["justification"].(string); ok {
		scoring["justification"] = map[string]any{"summary": s}
	}
	marketAnalysisShape.Apply(analysis)
	marketScoringShape.Apply(scoring)
	confidence := resolveConfidence(analysisDefault(), scoring["confidence"])
	scoring["confidence"] = *confidence

	return &venture.Result{
		Domain:     venture.DomainMarket,
		Primary:    analysis,
		Secondary:  scoring,
		Score:      score,
		Confidence: confidence,
		Display:    marketView(analysis, scoring, *score, *confidence),
		Text:       venture.MustJSON(analysis),
	}, nil
}

// TAMCategory buckets a total addressable market in USD.
func TAMCategory(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return "unknown"
	}
	switch {
	case f < 500_000_000:
		return "under_500M"
	case f <= 5_000_000_000:
		return "500M_to_5B"
	}
	return "over_5B"
}

// CAGRCategory buckets a compound annual growth rate in percent.
func CAGRCategory(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return "unknown"
	}
	switch {
	case f < 10:
		return "under_10"
	case f <= 35:
		return "10_to_35"
	}
	return "over_35"
}

func marketView(analysis, scoring map[string]any, score int, confidence float64) MarketView {
	markets := []MarketEntry{}
	for i, m := range list(analysis["markets"]) {
		if i == maxDisplayedMarkets {
			break
		}
		entry := record(m)
		markets = append(markets, MarketEntry{
			Rank:        orDefault(entry["rank"], 0),
			Description: str(entry["description"]),
			TAM:         numOr(entry["tam_current_usd"], 0),
			TAMYear:     orDefault(entry["tam_current_year"], now().Year()),
			CAGR:        numOr(entry["cagr_percent"], 0),
			Source:      str(entry["source_url"]),
			Confidence:  nonZeroFloat(entry["confidence"], 0.5),
		})
	}

	primary := record(analysis["primary_market"])
	alignment := record(analysis["scoring_alignment"])
	ma := record(analysis["market_analysis"])
	just := record(scoring["justification"])
	rubric := record(scoring["rubric_application"])
	dq := record(scoring["data_quality"])

	return MarketView{
		Score:      score,
		Confidence: confidence,
		PrimaryMarket: PrimaryMarket{
			Description: str(primary["description"]),
			TAM:         numOr(primary["tam_usd"], 0),
			CAGR:        numOr(primary["cagr_percent"], 0),
			Rationale:   str(primary["selection_rationale"]),
		},
		Markets:          markets,
		TAMCategory:      strOr(alignment["tam_category"], TAMCategory(primary["tam_usd"])),
		CAGRCategory:     strOr(alignment["cagr_category"], CAGRCategory(primary["cagr_percent"])),
		Justification:    str(just["summary"]),
		Strengths:        list(just["strengths_considered"]),
		Limitations:      list(just["limitations_considered"]),
		Risks:            list(just["key_risks"]),
		ExecutiveSummary: str(ma["executive_summary"]),
		Trends:           list(ma["trends"]),
		Opportunities:    list(ma["opportunities"]),
		UnmetNeeds:       list(ma["unmet_needs"]),
		Barriers:         list(ma["barriers_to_entry"]),
		ProblemStatement: str(ma["problem_statement"]),
		Differentiation:  str(ma["differentiation"]),
		RubricDetails: RubricDetails{
			TAMValue:            orDefault(rubric["tam_value"], primary["tam_usd"]),
			TAMCategory:         str(rubric["tam_category"]),
			CAGRValue:           orDefault(rubric["cagr_value"], primary["cagr_percent"]),
			CAGRCategory:        str(rubric["cagr_category"]),
			BaseScore:           orDefault(rubric["base_score"], score),
			Adjustment:          orDefault(rubric["adjustment"], 0),
			AdjustmentRationale: str(rubric["adjustment_rationale"]),
		},
		DataRecency:  strOr(dq["data_recency"], "Unknown"),
		DataConcerns: list(dq["data_concerns"]),
	}
}
