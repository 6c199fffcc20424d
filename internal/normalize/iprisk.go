package normalize

import (
	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

var ipRiskShape = Shape{
	TextAt("ipRiskSummary.companyCurrentIP.description", "No current IP description available."),
	ListAt("ipRiskSummary.companyCurrentIP.ownedPatents"),
	ListAt("ipRiskSummary.uniquePatentableFeatures"),
	ListAt("ipRiskSummary.crowdedPatentableFeatures"),
	ListAt("ipRiskSummary.topPatentOwners"),
	ListAt("ipRiskSummary.top5RelevantPatents"),
	TextAt("ipRiskSummary.overallIPRisk.riskLevel", "unknown"),
	ListAt("ipRiskSummary.overallIPRisk.thirdPartyChallenges"),
	TextAt("ipRiskSummary.overallIPRisk.analysis", ""),
	ListAt("patentTable.awardedPatents"),
	ListAt("patentTable.patentApplications"),
	NullableAt("dataConfidence"),
}

type PatentOwner struct {
	Assignee    string `json:"assignee"`
	PatentCount any    `json:"patentCount"`
}

type PatentRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Assignee string `json:"assignee"`
	Link     string `json:"link"`
}

// IPRiskView is the display projection of the ip-risk phase.
type IPRiskView struct {
	Score           int            `json:"score"`
	RiskLevel       string         `json:"riskLevel"`
	RiskAnalysis    string         `json:"riskAnalysis"`
	Challenges      []any          `json:"challenges"`
	CompanyIP       map[string]any `json:"companyIP"`
	UniqueFeatures  []any          `json:"uniqueFeatures"`
	CrowdedFeatures []any          `json:"crowdedFeatures"`
	TopOwners       []PatentOwner  `json:"topOwners"`
	RelevantPatents []PatentRef    `json:"relevantPatents"`
	AwardedPatents  []any          `json:"awardedPatents"`
	PendingPatents  []any          `json:"pendingPatents"`
	DataConfidence  *float64       `json:"dataConfidence"`
}

type ipRiskNormalizer struct {
	detailed slot
	summary  slot
}

func (n *ipRiskNormalizer) Domain() venture.Domain { return venture.DomainIPRisk }

func (n *ipRiskNormalizer) Normalize(env venture.Envelope) (*venture.Result, error) {
	outputs, err := outputsOf(venture.DomainIPRisk, env)
	if err != nil {
		return nil, err
	}
	detailed, detailedProblem := optional(n.detailed, outputs)
	summary, summaryProblem := optional(n.summary, outputs)
	if detailed == nil && summary == nil {
		return nil, &FormatError{
			Domain: venture.DomainIPRisk,
			Slot:   n.detailed.name() + "," + n.summary.name(),
			Reason: "no ip risk data returned",
		}
	}

	var warnings []string
	report := detailed
	if report == nil {
		report = summary
		warnings = append(warnings, detailedProblem)
	} else if summary == nil && len(n.summary.candidates) > 0 {
		warnings = append(warnings, summaryProblem)
	}
	if summary != nil {
		mergeIPRiskSummary(report, summary)
	}
	liftLegacyIPRisk(report)
	ipRiskShape.Apply(report)

	risk := record(lookup(report, "ipRiskSummary", "overallIPRisk"))
	score, err := ipRiskScore(risk)
	if err != nil {
		return nil, err
	}
	risk["score"] = *score

	confidence := resolveConfidence(nil, report["dataConfidence"])
	report["dataConfidence"] = confidenceValue(confidence)

	var secondary map[string]any
	if detailed != nil && summary != nil {
		secondary = summary
	}
	return &venture.Result{
		Domain:     venture.DomainIPRisk,
		Primary:    report,
		Secondary:  secondary,
		Score:      score,
		Confidence: confidence,
		Display:    ipRiskView(report, *score, confidence),
		Text:       venture.MustJSON(report),
		Warnings:   warnings,
	}, nil
}

// ipRiskScore prefers the numeric score and falls back to the qualitative
// risk level.
func ipRiskScore(risk map[string]any) (*int, error) {
	if n, ok := scoring.NormalizeScore(risk["score"]); ok {
		return &n, nil
	}
	if n, ok := scoring.MapQualitativeLevel(risk["riskLevel"], scoring.RiskLevels); ok {
		return &n, nil
	}
	raw, _ := first(risk["score"], risk["riskLevel"])
	return nil, &InvalidScoreError{Domain: venture.DomainIPRisk, Raw: raw}
}

// mergeIPRiskSummary copies graded summary fields into the report. Values
// already present in the report are kept.
func mergeIPRiskSummary(report, summary map[string]any) {
	ipSummary := child(report, "ipRiskSummary")
	current := child(ipSummary, "companyCurrentIP")
	risk := child(ipSummary, "overallIPRisk")

	if s, ok := first(summary["score"], summary["ipRiskScore"]); ok {
		if _, present := risk["score"]; !present {
			risk["score"] = s
		}
	}
	if j := firstTruthy(summary["score_justification"], summary["rubric_match_explanation"]); j != nil {
		risk["analysis"] = orDefault(risk["analysis"], j)
		current["description"] = orDefault(current["description"], j)
	}
	level := firstTruthy(
		summary["risk_level"],
		lookup(summary, "litigation_risk", "level"),
		lookup(summary, "freedom_to_operate", "assessment"),
		lookup(summary, "patent_landscape", "patent_density"),
	)
	if level != nil {
		risk["riskLevel"] = orDefault(risk["riskLevel"], level)
	}

	var challenges []any
	challenges = append(challenges, list(risk["thirdPartyChallenges"])...)
	challenges = append(challenges, list(summary["key_risk_factors"])...)
	challenges = append(challenges, list(lookup(summary, "freedom_to_operate", "key_constraints"))...)
	if merged := dedupe(challenges); len(merged) > 0 {
		risk["thirdPartyChallenges"] = merged
	}

	if c, ok := summary["data_confidence"]; ok {
		if report["dataConfidence"] == nil {
			report["dataConfidence"] = c
		}
	}
}

// liftLegacyIPRisk maps the older flat report layout onto ipRiskSummary and
// patentTable without replacing values already in place.
func liftLegacyIPRisk(report map[string]any) {
	scoreValue, hasScore := first(report["score"], report["ipRiskScore"])
	justification := strOr(firstTruthy(report["score_justification"], report["rubric_match_explanation"]), "")
	factors := firstTruthy(report["key_risk_factors"], lookup(report, "freedom_to_operate", "key_constraints"))
	level := firstTruthy(
		lookup(report, "litigation_risk", "level"),
		lookup(report, "patent_landscape", "patent_density"),
		lookup(report, "freedom_to_operate", "assessment"),
		report["overall_risk_level"],
	)
	holders := lookup(report, "patent_landscape", "major_patent_holders")
	relevant := firstTruthy(report["relevant_patents"], report["reference_patents"])

	ipSummary := child(report, "ipRiskSummary")
	current := child(ipSummary, "companyCurrentIP")
	risk := child(ipSummary, "overallIPRisk")

	if _, present := risk["score"]; hasScore && !present {
		risk["score"] = scoreValue
	}
	if isFalsy(risk["analysis"]) && justification != "" {
		risk["analysis"] = justification
	}
	if isFalsy(risk["riskLevel"]) && level != nil {
		risk["riskLevel"] = level
	}
	if fl, ok := factors.([]any); ok && len(list(risk["thirdPartyChallenges"])) == 0 {
		risk["thirdPartyChallenges"] = fl
	}
	if isFalsy(current["description"]) && justification != "" {
		current["description"] = justification
	}
	if _, ok := ipSummary["topPatentOwners"].([]any); !ok {
		if hl, ok := holders.([]any); ok {
			owners := make([]any, 0, len(hl))
			for _, h := range hl {
				owners = append(owners, map[string]any{"assignee": h, "patentCount": 0.0})
			}
			ipSummary["topPatentOwners"] = owners
		}
	}
	table := child(report, "patentTable")
	if _, ok := table["top5RelevantPatents"].([]any); !ok {
		if rl, ok := relevant.([]any); ok {
			ipSummary["top5RelevantPatents"] = rl
			table["top5RelevantPatents"] = rl
		}
	}
	if c, ok := report["data_confidence"]; ok {
		if _, present := report["dataConfidence"]; !present {
			report["dataConfidence"] = c
		}
	}
}

func ipRiskView(report map[string]any, score int, confidence *float64) IPRiskView {
	ipSummary := record(report["ipRiskSummary"])
	risk := record(ipSummary["overallIPRisk"])
	table := record(report["patentTable"])

	owners := []PatentOwner{}
	for _, o := range list(ipSummary["topPatentOwners"]) {
		owner := record(o)
		count, ok := first(owner["patentCount"])
		if !ok {
			count = 0
		}
		owners = append(owners, PatentOwner{
			Assignee:    strOr(owner["assignee"], "Unknown Assignee"),
			PatentCount: count,
		})
	}
	patents := []PatentRef{}
	for _, p := range list(ipSummary["top5RelevantPatents"]) {
		patent := record(p)
		patents = append(patents, PatentRef{
			ID:       strOr(patent["patentID"], "Unknown ID"),
			Title:    strOr(patent["title"], "Untitled Patent"),
			Assignee: strOr(patent["assignee"], "Unknown Assignee"),
			Link:     str(patent["link"]),
		})
	}

	return IPRiskView{
		Score:           score,
		RiskLevel:       strOr(risk["riskLevel"], "unknown"),
		RiskAnalysis:    str(risk["analysis"]),
		Challenges:      list(risk["thirdPartyChallenges"]),
		CompanyIP:       record(ipSummary["companyCurrentIP"]),
		UniqueFeatures:  list(ipSummary["uniquePatentableFeatures"]),
		CrowdedFeatures: list(ipSummary["crowdedPatentableFeatures"]),
		TopOwners:       owners,
		RelevantPatents: patents,
		AwardedPatents:  list(table["awardedPatents"]),
		PendingPatents:  list(table["patentApplications"]),
		DataConfidence:  confidence,
	}
}
