package normalize

import (
	"fmt"

	"github.com/joelkehle/venture-assessment/internal/venture"
	"github.com/xeipuuv/gojsonschema"
)

const companySchema = `{
  "type": "object",
  "required": ["company_overview", "technology", "products_and_applications", "market_context"],
  "properties": {
    "company_overview": {
      "type": "object",
      "required": ["name", "website"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "website": {"type": "string", "format": "uri"}
      }
    },
    "technology": {
      "type": "object",
      "required": ["core_technology"],
      "properties": {
        "core_technology": {"type": "string", "minLength": 1}
      }
    },
    "products_and_applications": {"type": "object"},
    "market_context": {"type": "object"}
  }
}`

var companySchemaLoader = gojsonschema.NewStringLoader(companySchema)

var companyShape = Shape{
	TextAt("company_overview.name", "Unknown Company"),
	TextAt("company_overview.website", ""),
	TextAt("company_overview.mission_statement", ""),
	TextAt("company_overview.company_description", ""),
	TextAt("technology.core_technology", ""),
	TextAt("technology.technology_category", ""),
	TextAt("technology.technical_approach", ""),
	ListAt("technology.key_innovations"),
	TextAt("products_and_applications.primary_application", ""),
	ListAt("products_and_applications.products"),
	ListAt("products_and_applications.use_cases"),
	ListAt("products_and_applications.target_industries"),
	TextAt("market_context.industry", ""),
	TextAt("market_context.problem_addressed", ""),
	TextAt("market_context.value_proposition", ""),
	TextAt("market_context.business_model", ""),
}

// CompanyProfile is the display projection of the company phase.
type CompanyProfile struct {
	Name               string `json:"name"`
	Website            string `json:"website"`
	Mission            string `json:"mission"`
	Description        string `json:"description"`
	CoreTechnology     string `json:"coreTechnology"`
	TechnologyCategory string `json:"technologyCategory"`
	PrimaryApplication string `json:"primaryApplication"`
	Industry           string `json:"industry"`
	TargetIndustries   []any  `json:"targetIndustries"`
	KeyInnovations     []any  `json:"keyInnovations"`
}

type companyNormalizer struct {
	profile slot
}

func (n *companyNormalizer) Domain() venture.Domain { return venture.DomainCompany }

func (n *companyNormalizer) Normalize(env venture.Envelope) (*venture.Result, error) {
	outputs, err := outputsOf(venture.DomainCompany, env)
	if err != nil {
		return nil, err
	}
	data, err := required(venture.DomainCompany, n.profile, outputs)
	if err != nil {
		return nil, err
	}

	// Structural defects are reported, then default-filled.
	warnings := validateCompany(data)
	companyShape.Apply(data)

	return &venture.Result{
		Domain:   venture.DomainCompany,
		Primary:  data,
		Display:  companyProfile(data),
		Text:     venture.MustJSON(data),
		Warnings: warnings,
	}, nil
}

func validateCompany(data map[string]any) []string {
	result, err := gojsonschema.Validate(companySchemaLoader, gojsonschema.NewGoLoader(data))
	if err != nil {
		return []string{fmt.Sprintf("company schema check: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	var out []string
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		out = append(out, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return out
}

func companyProfile(data map[string]any) CompanyProfile {
	overview := record(data["company_overview"])
	tech := record(data["technology"])
	products := record(data["products_and_applications"])
	market := record(data["market_context"])
	return CompanyProfile{
		Name:               str(overview["name"]),
		Website:            str(overview["website"]),
		Mission:            str(overview["mission_statement"]),
		Description:        str(overview["company_description"]),
		CoreTechnology:     str(tech["core_technology"]),
		TechnologyCategory: str(tech["technology_category"]),
		PrimaryApplication: str(products["primary_application"]),
		Industry:           str(market["industry"]),
		TargetIndustries:   list(products["target_industries"]),
		KeyInnovations:     list(tech["key_innovations"]),
	}
}
