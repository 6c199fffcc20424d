package report

import "github.com/joelkehle/venture-assessment/internal/venture"

var rubrics = map[venture.Domain][10]string{
	venture.DomainTeam: {
		1: "No trackable achievements or public presence. No industry connections or academic recognition.",
		2: "Completed a few small projects or published in minor journals. Limited visibility within a very small professional or academic circle.",
		3: "Growing portfolio of projects or publications in peer-reviewed journals. Building a network within their specific field.",
		4: "Recognized within their specific field or local area. Occasionally invited to present at seminars or local industry events.",
		5: "Consistent record of quality publications or successful industry projects. Regular participant in conferences or industry events.",
		6: "Publications in top-tier journals or lead complex industry projects. Frequently invited to speak at conferences or contribute to industry standards.",
		7: "Work is often cited or used as case studies in the field. Lead significant research grants or hold patents for industry innovations.",
		8: "Research or innovations significantly influence the direction of their field. Hold leadership positions in academia or industry (e.g., editorial boards, executive roles).",
		9: "Made groundbreaking discoveries that reshaped their entire field. Recipients of the highest honors or lead global organizations.",
	},
	venture.DomainFunding: {
		1: "No trackable funding activity and minimal investor interest in the space.",
		2: "Sparse evidence of funding with limited investor momentum.",
		3: "Emerging signals of capital availability with modest investor engagement.",
		4: "Growing interest with sporadic funding rounds or grants.",
		5: "Steady funding availability with multiple comparable deals.",
		6: "Strong funding momentum led by reputable investors or grants.",
		7: "Highly active funding environment with significant capital deployment.",
		8: "Very strong funding signals with marquee investors backing the sector.",
		9: "Exceptional funding climate with breakthrough-level capital activity.",
	},
	venture.DomainCompetitive: {
		1: "Dominant established players AND little tech OR business differentiation",
		2: "Established players AND little tech OR business differentiation",
		3: "Established players AND some tech OR business differentiation",
		4: "Established players AND significant tech differentiation",
		5: "Established players AND significant tech AND business differentiation",
		6: "Existing players AND significant tech OR business differentiation",
		7: "Existing players AND significant tech AND business differentiation",
		8: "Few existing players AND significant tech AND business differentiation",
		9: "No existing players in the market",
	},
	venture.DomainMarket: {
		1: "TAM is <$500M and CAGR is less than 10%",
		2: "TAM is <$500M and CAGR is between 10 and 35%",
		3: "TAM is <$500M and CAGR is greater than 35%",
		4: "TAM is between $500M and $5B and CAGR is less than 10%",
		5: "TAM is between $500M and $5B and CAGR is between 10 and 35%",
		6: "TAM is between $500M and $5B and CAGR is greater than 35%",
		7: "TAM is >$5B and CAGR is less than 10%",
		8: "TAM is >$5B and CAGR is between 10 and 35%",
		9: "TAM is >$5B and CAGR is greater than 35%",
	},
	venture.DomainIPRisk: {
		1: "Completely unprotectable or already widely used in the public domain, or immediate risk of infringement challenges.",
		2: "Minimal unique elements or closely resembles existing IP; multiple competing claims or active litigation risk.",
		3: "Some unique elements but major components unprotected; similar patents exist raising challenge risk.",
		4: "Partially protectable with significant coverage gaps; potential legal challenges require careful navigation.",
		5: "Mix of protectable and vulnerable elements with manageable IP conflict risk given due diligence.",
		6: "Mostly protectable with minor vulnerabilities; limited likelihood of significant IP conflicts.",
		7: "Strong protection around core elements and clear differentiation from existing IP; low challenge risk.",
		8: "Comprehensive protection across multiple IP types with a track record of successful defense.",
		9: "Groundbreaking, novel IP with robust, multi-layered protection and minimal risk of successful challenges.",
	},
}

// RubricDescription returns the rubric text for a score in 1..9.
func RubricDescription(d venture.Domain, score int) string {
	table, ok := rubrics[d]
	if !ok || score < 1 || score > 9 {
		return "No rubric description available"
	}
	return table[score]
}

var bandLabels = map[venture.Domain][4]string{
	venture.DomainTeam:        {"Severe Team Gaps", "Developing Team", "Strong Team", "Elite Team"},
	venture.DomainCompetitive: {"High Risk", "Moderate Risk", "Low Risk", "Minimal Risk"},
	venture.DomainMarket:      {"Weak Market", "Moderate Market", "Good Market", "Exceptional Market"},
	venture.DomainIPRisk:      {"High IP Exposure", "Moderate IP Exposure", "Manageable IP Risk", "Defensible IP Position"},
}

// ScoreLabel names the band a score falls into: 1-3, 4-5, 6-7 or 8-9.
func ScoreLabel(d venture.Domain, score int) string {
	if score < 1 || score > 9 {
		return "Invalid"
	}
	labels, ok := bandLabels[d]
	if !ok {
		labels = [4]string{"Low Score", "Average Score", "Good Score", "Strong Score"}
	}
	switch {
	case score <= 3:
		return labels[0]
	case score <= 5:
		return labels[1]
	case score <= 7:
		return labels[2]
	}
	return labels[3]
}
