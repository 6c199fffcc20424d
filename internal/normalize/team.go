package normalize

import (
	"github.com/joelkehle/venture-assessment/internal/venture"
)

var teamRosterShape = Shape{
	ListAt("team_members"),
	ListAt("trusted_sources"),
	TextAt("team_members[].name", "Unknown"),
	TextAt("team_members[].role_at_venture", "Team Member"),
	ListAt("team_members[].work_history"),
	ListAt("team_members[].education_history"),
	ListAt("team_members[].papers_publications"),
	ListAt("team_members[].commercialization_experience"),
	ListAt("team_members[].awards_recognition"),
}

var teamScoringShape = Shape{
	ListAt("key_strengths"),
	ListAt("key_gaps"),
	ListAt("relevant_experience"),
	RecordAt("team_composition"),
	TextAt("score_justification", ""),
}

type TeamComposition struct {
	Total     int `json:"total"`
	Technical int `json:"technical"`
	Business  int `json:"business"`
	Domain    int `json:"domain"`
}

// TeamView is the display projection of the team phase.
type TeamView struct {
	Score         int             `json:"score"`
	VentureName   string          `json:"ventureName"`
	Justification string          `json:"justification"`
	Confidence    *float64        `json:"confidence"`
	Composition   TeamComposition `json:"teamComposition"`
	Strengths     []any           `json:"strengths"`
	Gaps          []any           `json:"gaps"`
	Experiences   []any           `json:"experiences"`
	Rubric        string          `json:"rubric"`
	Members       []any           `json:"members"`
	Sources       []any           `json:"sources"`
}

type teamNormalizer struct {
	roster  slot
	scoring slot
}

func (n *teamNormalizer) Domain() venture.Domain { return venture.DomainTeam }

func (n *teamNormalizer) Normalize(env venture.Envelope) (*venture.Result, error) {
	outputs, err := outputsOf(venture.DomainTeam, env)
	if err != nil {
		return nil, err
	}
	team, err := required(venture.DomainTeam, n.roster, outputs)
	if err != nil {
		return nil, err
	}
	scoring, err := required(venture.DomainTeam, n.scoring, outputs)
	if err != nil {
		return nil, err
	}
	score, err := requireScore(venture.DomainTeam, scoring["score"])
	if err != nil {
		return nil, err
	}
	scoring["score"] = *score

	teamRosterShape.Apply(team)
	teamScoringShape.Apply(scoring)
	confidence := resolveConfidence(nil, team["data_confidence"])
	team["data_confidence"] = confidenceValue(confidence)

	composition := record(scoring["team_composition"])
	members := list(team["team_members"])
	view := TeamView{
		Score:         *score,
		VentureName:   strOr(team["venture_name"], "-"),
		Justification: str(scoring["score_justification"]),
		Confidence:    confidence,
		Composition: TeamComposition{
			Total:     nonZeroInt(composition["total_members"], len(members)),
			Technical: intOr(composition["technical_experts"], 0),
			Business:  intOr(composition["business_experts"], 0),
			Domain:    intOr(composition["domain_experts"], 0),
		},
		Strengths:   list(scoring["key_strengths"]),
		Gaps:        list(scoring["key_gaps"]),
		Experiences: list(scoring["relevant_experience"]),
		Rubric:      str(scoring["rubric_match_explanation"]),
		Members:     members,
		Sources:     list(team["trusted_sources"]),
	}

	return &venture.Result{
		Domain:     venture.DomainTeam,
		Primary:    team,
		Secondary:  scoring,
		Score:      score,
		Confidence: confidence,
		Display:    view,
		Text:       venture.MustJSON(team),
	}, nil
}
