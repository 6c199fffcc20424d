package pipeline

import (
	"fmt"
	"strings"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

const (
	minTechDescriptionChars = 200
	techDescriptionFiller   = "This company is developing innovative technology solutions for their target market."
)

// BuildTechDescription assembles the free-text summary that feeds the
// funding, competitive, market and ip-risk phases.
func BuildTechDescription(company *venture.Result) string {
	if company == nil {
		return techDescriptionFiller
	}
	data := company.Primary
	var parts []string
	add := func(prefix string, v any) {
		s, _ := v.(string)
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, prefix+s)
		}
	}

	overview, _ := data["company_overview"].(map[string]any)
	add("Company: ", overview["name"])
	add("Mission: ", overview["mission_statement"])
	add("", overview["company_description"])

	tech, _ := data["technology"].(map[string]any)
	add("Core Technology: ", tech["core_technology"])
	add("Technical Approach: ", tech["technical_approach"])
	if innovations := joinItems(tech["key_innovations"], 3, "; "); innovations != "" {
		parts = append(parts, "Key Innovations: "+innovations)
	}

	products, _ := data["products_and_applications"].(map[string]any)
	add("Primary Application: ", products["primary_application"])
	if industries := joinItems(products["target_industries"], 0, ", "); industries != "" {
		parts = append(parts, "Target Industries: "+industries)
	}

	market, _ := data["market_context"].(map[string]any)
	add("Problem Addressed: ", market["problem_addressed"])
	add("Value Proposition: ", market["value_proposition"])

	if len(strings.Join(parts, "\n\n")) < minTechDescriptionChars {
		parts = append(parts, techDescriptionFiller)
	}
	return strings.Join(parts, "\n\n")
}

// joinItems joins up to limit list items; limit 0 means all.
func joinItems(v any, limit int, sep string) string {
	items, _ := v.([]any)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(fmt.Sprint(it)); s != "" && it != nil {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
