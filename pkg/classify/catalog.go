package classify

import "github.com/conclave-ai/conclave/pkg/models"

// catalogEntry describes one intent: its trigger keywords, the complexity
// floor it implies, and the entity kinds it typically needs.
type catalogEntry struct {
	Intent          models.Intent
	Keywords        []string
	ComplexityFloor models.Complexity
	EntityKinds     []string
}

// intentCatalog is scanned in order; ties go to the earlier entry.
var intentCatalog = []catalogEntry{
	{
		Intent:          models.IntentPolicy,
		Keywords:        []string{"should", "policy", "invest", "subsidy", "subsidies", "regulation", "reform", "incentive", "strategy"},
		ComplexityFloor: models.ComplexityStandard,
		EntityKinds:     []string{models.EntityKindSector, models.EntityKindCountry},
	},
	{
		Intent:          models.IntentComparison,
		Keywords:        []string{"compare", "comparison", "versus", "vs", "relative to", "better than", "worse than", "against"},
		ComplexityFloor: models.ComplexityStandard,
		EntityKinds:     []string{models.EntityKindCountry, models.EntityKindMetric},
	},
	{
		Intent:          models.IntentTrend,
		Keywords:        []string{"trend", "over time", "trajectory", "evolution", "historically", "has grown", "has declined"},
		ComplexityFloor: models.ComplexityStandard,
		EntityKinds:     []string{models.EntityKindMetric, models.EntityKindTimeWindow},
	},
	{
		Intent:          models.IntentForecast,
		Keywords:        []string{"forecast", "projection", "project", "outlook", "will reach", "expected to", "by the year"},
		ComplexityFloor: models.ComplexityStandard,
		EntityKinds:     []string{models.EntityKindMetric, models.EntityKindTimeWindow},
	},
	{
		Intent:          models.IntentDiagnostic,
		Keywords:        []string{"what is", "what are", "how much", "how many", "why", "current", "latest"},
		ComplexityFloor: models.ComplexitySimple,
		EntityKinds:     []string{models.EntityKindMetric},
	},
}

// sectorLexicon maps surface forms to normalized sector names.
var sectorLexicon = map[string]string{
	"food":            "food",
	"food valley":     "food",
	"agriculture":     "agriculture",
	"agri":            "agriculture",
	"energy":          "energy",
	"oil":             "energy",
	"gas":             "energy",
	"lng":             "energy",
	"finance":         "finance",
	"banking":         "finance",
	"islamic banking": "finance",
	"sukuk":           "finance",
	"tourism":         "tourism",
	"hospitality":     "tourism",
	"logistics":       "logistics",
	"manufacturing":   "manufacturing",
	"technology":      "technology",
	"tech":            "technology",
	"education":       "education",
	"healthcare":      "healthcare",
	"health":          "healthcare",
	"construction":    "construction",
	"real estate":     "real-estate",
}

// metricLexicon maps surface forms to normalized metric names.
var metricLexicon = map[string]string{
	"unemployment":         "unemployment_rate",
	"unemployment rate":    "unemployment_rate",
	"participation rate":   "participation_rate",
	"labor participation":  "participation_rate",
	"gdp":                  "gdp_growth",
	"gdp growth":           "gdp_growth",
	"inflation":            "inflation_rate",
	"inflation rate":       "inflation_rate",
	"cpi":                  "inflation_rate",
	"fdi":                  "fdi_share",
	"foreign investment":   "fdi_share",
	"self-sufficiency":     "self_sufficiency",
	"self sufficiency":     "self_sufficiency",
	"trade balance":        "trade_balance",
	"exports":              "exports",
	"imports":              "imports",
	"population":           "population",
	"wages":                "average_wage",
	"average wage":         "average_wage",
	"productivity":         "productivity",
	"interest rate":        "interest_rate",
	"government debt":      "government_debt",
	"budget deficit":       "budget_deficit",
	"diversification":      "diversification_index",
}

// countryLexicon maps surface forms to normalized country names.
var countryLexicon = map[string]string{
	"qatar":                "qatar",
	"qatari":               "qatar",
	"saudi arabia":         "saudi-arabia",
	"saudi":                "saudi-arabia",
	"uae":                  "uae",
	"united arab emirates": "uae",
	"emirates":             "uae",
	"kuwait":               "kuwait",
	"bahrain":              "bahrain",
	"oman":                 "oman",
	"gcc":                  "gcc",
	"singapore":            "singapore",
	"norway":               "norway",
	"netherlands":          "netherlands",
}

// strategicKeywords force complexity=complex regardless of score: terms that
// name national strategies, large capital programs, or multi-year ambitions.
var strategicKeywords = []string{
	"national strategy",
	"national vision",
	"vision 2030",
	"sovereign wealth",
	"diversification strategy",
	"strategic investment",
	"mega-project",
	"megaproject",
	"food security",
	"self-sufficiency",
	"self sufficiency",
}
