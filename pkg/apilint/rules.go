package apilint

import (
	"github.com/daveshanley/vacuum/model"
	"github.com/daveshanley/vacuum/rulesets"
)

// ruleDef declares one quarry rule and the custom function that checks it.
type ruleDef struct {
	id       string
	desc     string
	severity string
	function string
	category string
}

// Default quarry ruleset. IDs are stable; .apilint.yaml overrides key on them.
var ruleDefs = []ruleDef{
	{
		id:       "quarry-operation-id",
		desc:     "every operation carries a unique operationId",
		severity: model.SeverityError,
		function: "quarryOperationID",
		category: model.CategoryOperations,
	},
	{
		id:       "quarry-operation-tags",
		desc:     "every operation is tagged for documentation grouping",
		severity: model.SeverityError,
		function: "quarryOperationTags",
		category: model.CategoryOperations,
	},
	{
		id:       "quarry-schema-ref",
		desc:     "request and response bodies reference component schemas instead of inlining them",
		severity: model.SeverityWarn,
		function: "quarrySchemaRef",
		category: model.CategoryOperations,
	},
	{
		id:       "quarry-error-responses",
		desc:     "4xx and 5xx responses use the shared Error envelope",
		severity: model.SeverityError,
		function: "quarryErrorResponses",
		category: model.CategoryOperations,
	},
	{
		id:       "quarry-pagination-params",
		desc:     "list operations returning Paginated* schemas accept max_results and page_token",
		severity: model.SeverityError,
		function: "quarryPaginationParams",
		category: model.CategoryOperations,
	},
	{
		id:       "quarry-paginated-schema",
		desc:     "Paginated* component schemas carry data and next_page_token",
		severity: model.SeverityError,
		function: "quarryPaginatedSchema",
		category: model.CategorySchemas,
	},
	{
		id:       "quarry-secured-401",
		desc:     "operations under global security document a 401 response",
		severity: model.SeverityWarn,
		function: "quarrySecured401",
		category: model.CategorySecurity,
	},
	{
		id:       "quarry-admin-403",
		desc:     "admin-only operations document a 403 response",
		severity: model.SeverityWarn,
		function: "quarryAdmin403",
		category: model.CategorySecurity,
	},
	{
		id:       "quarry-delete-204",
		desc:     "DELETE operations answer 204 with no body",
		severity: model.SeverityWarn,
		function: "quarryDelete204",
		category: model.CategoryOperations,
	},
	{
		id:       "quarry-post-201",
		desc:     "resource-creating POST operations answer 201",
		severity: model.SeverityWarn,
		function: "quarryPost201",
		category: model.CategoryOperations,
	},
}

// buildRuleSet assembles the vacuum ruleset, applying config overrides.
// A rule overridden to "off" is dropped before execution.
func buildRuleSet(cfg *Config) *rulesets.RuleSet {
	rules := make(map[string]*model.Rule, len(ruleDefs))
	for _, def := range ruleDefs {
		severity := def.severity
		if cfg != nil {
			switch override := cfg.Rules[def.id]; override {
			case "":
				// keep default
			case "off":
				continue
			default:
				severity = override
			}
		}
		rules[def.id] = &model.Rule{
			Id:           def.id,
			Description:  def.desc,
			Given:        "$",
			Resolved:     false,
			Recommended:  true,
			Type:         "validation",
			Severity:     severity,
			RuleCategory: model.RuleCategories[def.category],
			Then: &model.RuleAction{
				Function: def.function,
			},
		}
	}
	return &rulesets.RuleSet{
		Description: "quarry API conventions",
		Rules:       rules,
	}
}

// RuleIDs lists the configured rule IDs in declaration order, for --list-rules.
func RuleIDs() []string {
	ids := make([]string, len(ruleDefs))
	for i, def := range ruleDefs {
		ids[i] = def.id
	}
	return ids
}
