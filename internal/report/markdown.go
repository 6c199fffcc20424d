package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/venture-assessment/internal/normalize"
	"github.com/joelkehle/venture-assessment/internal/scoring"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

const maxListItems = 8

// BuildMarkdown renders the assessment report: a summary table of AI and
// user scores followed by one section per domain.
func BuildMarkdown(agg *venture.Aggregate, assessments []scoring.UserAssessment, generatedAt time.Time) string {
	byDomain := make(map[venture.Domain]scoring.UserAssessment, len(assessments))
	for _, a := range assessments {
		byDomain[a.Domain] = a
	}

	var b strings.Builder
	company := companyOf(agg)
	b.WriteString("# Venture Assessment Report\n\n")
	fmt.Fprintf(&b, "**Company:** %s\n\n", mdText(orDash(company.Name)))
	if agg != nil && agg.CompanyURL != "" {
		fmt.Fprintf(&b, "**Website:** %s\n\n", agg.CompanyURL)
	}
	fmt.Fprintf(&b, "**Generated:** %s\n\n", generatedAt.UTC().Format("January 2, 2006 15:04 MST"))

	b.WriteString("## Executive Summary\n\n")
	b.WriteString("| Dimension | AI Score | User Score | Deviation |\n|---|---|---|---|\n")
	for _, d := range venture.ScoredDomains {
		ai, hasAI := agg.For(d).ScoreValue()
		aiCell, userCell, devCell := "-", "-", "-"
		if hasAI {
			aiCell = fmt.Sprintf("%d/9 (%s)", ai, ScoreLabel(d, ai))
		}
		if a, ok := byDomain[d]; ok && a.Submitted {
			userCell = fmt.Sprintf("%d/9", a.Score)
			if hasAI {
				dev := scoring.CheckDeviation(ai, a.Score)
				devCell = fmt.Sprintf("%d", dev.Deviation)
				if dev.HasDeviation {
					devCell += " (review)"
				}
			}
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", d.Label(), aiCell, userCell, devCell)
	}
	b.WriteString("\n")

	writeCompany(&b, company)
	for _, d := range venture.ScoredDomains {
		res := agg.For(d)
		if res == nil {
			continue
		}
		fmt.Fprintf(&b, "## %s Assessment\n\n", d.Label())
		if score, ok := res.ScoreValue(); ok {
			fmt.Fprintf(&b, "**AI Score:** %d/9 (%s)\n\n", score, ScoreLabel(d, score))
			fmt.Fprintf(&b, "> %s\n\n", RubricDescription(d, score))
		}
		if res.Confidence != nil {
			fmt.Fprintf(&b, "**Confidence:** %.0f%%\n\n", *res.Confidence*100)
		}
		writeDomain(&b, res.Display)
		if a, ok := byDomain[d]; ok && a.Submitted {
			fmt.Fprintf(&b, "### User Assessment\n\n**Score:** %d/9\n\n%s\n\n", a.Score, mdText(a.Justification))
		}
	}
	return b.String()
}

func companyOf(agg *venture.Aggregate) normalize.CompanyProfile {
	if res := agg.For(venture.DomainCompany); res != nil {
		if p, ok := res.Display.(normalize.CompanyProfile); ok {
			return p
		}
	}
	return normalize.CompanyProfile{}
}

func writeCompany(b *strings.Builder, p normalize.CompanyProfile) {
	b.WriteString("## Company Overview\n\n")
	field(b, "Mission", p.Mission)
	field(b, "Description", p.Description)
	field(b, "Core Technology", p.CoreTechnology)
	field(b, "Technology Category", p.TechnologyCategory)
	field(b, "Primary Application", p.PrimaryApplication)
	field(b, "Industry", p.Industry)
	list(b, "Key Innovations", p.KeyInnovations)
	list(b, "Target Industries", p.TargetIndustries)
}

func writeDomain(b *strings.Builder, display any) {
	switch v := display.(type) {
	case normalize.TeamView:
		field(b, "Justification", v.Justification)
		fmt.Fprintf(b, "**Team Size:** %d\n\n", v.Composition.Total)
		list(b, "Strengths", v.Strengths)
		list(b, "Gaps", v.Gaps)
	case normalize.FundingView:
		field(b, "Summary", v.Summary)
		fmt.Fprintf(b, "**Funding Rounds:** %d  \n**Comparable Deals:** %d\n\n", v.TotalFundingRounds, v.TotalPeerDeals)
	case normalize.CompetitiveView:
		field(b, "Justification", v.Justification)
		field(b, "Competitive Intensity", v.CompetitiveIntensity)
		if len(v.Competitors) > 0 {
			b.WriteString("| Competitor | Size | Product |\n|---|---|---|\n")
			for _, c := range v.Competitors {
				fmt.Fprintf(b, "| %s | %s | %s |\n", cell(c.Name), cell(c.Size), cell(c.Product))
			}
			b.WriteString("\n")
		}
		list(b, "Key Risks", v.KeyRisks)
		list(b, "Opportunities", v.Opportunities)
	case normalize.MarketView:
		field(b, "Primary Market", v.PrimaryMarket.Description)
		fmt.Fprintf(b, "**TAM:** %s (%s)  \n**CAGR:** %.1f%% (%s)\n\n", formatUSD(v.PrimaryMarket.TAM), v.TAMCategory, v.PrimaryMarket.CAGR, v.CAGRCategory)
		field(b, "Justification", v.Justification)
		list(b, "Risks", v.Risks)
	case normalize.IPRiskView:
		field(b, "Risk Level", v.RiskLevel)
		field(b, "Analysis", v.RiskAnalysis)
		list(b, "Third-Party Challenges", v.Challenges)
		if len(v.TopOwners) > 0 {
			b.WriteString("| Patent Owner | Patents |\n|---|---|\n")
			for _, o := range v.TopOwners {
				fmt.Fprintf(b, "| %s | %v |\n", cell(o.Assignee), o.PatentCount)
			}
			b.WriteString("\n")
		}
	}
}

func field(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "**%s:** %s\n\n", label, mdText(value))
	}
}

func list(b *strings.Builder, label string, items []any) {
	var lines []string
	for _, it := range items {
		s := strings.TrimSpace(fmt.Sprint(it))
		if it == nil || s == "" {
			continue
		}
		lines = append(lines, "- "+mdText(s))
	}
	if len(lines) == 0 {
		return
	}
	if len(lines) > maxListItems {
		more := len(lines) - maxListItems
		lines = append(lines[:maxListItems], fmt.Sprintf("- +%d more", more))
	}
	fmt.Fprintf(b, "**%s:**\n\n%s\n\n", label, strings.Join(lines, "\n"))
}

func formatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v > 0:
		return fmt.Sprintf("$%.0f", v)
	}
	return "unknown"
}

func mdText(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}

func cell(s string) string {
	return strings.ReplaceAll(orDash(mdText(s)), "|", "/")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
