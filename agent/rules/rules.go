package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	contractx "github.com/techflowhq/support-agent/agent/contract"
)

// Reason categories and their sub-keys inside the rule source. The top-level
// JSON keys are the categories; financial hardship is keyed by tier,
// product_issues and service_value by a sub-reason shared across tiers.
const (
	categoryFinancial = "financial_hardship"
	categoryProduct   = "product_issues"
	categoryService   = "service_value"
)

var tierKeys = map[string]string{
	"premium": "premium_customers",
	"regular": "regular_customers",
	"new":     "new_customers",
}

// reasonAliases maps the free-form reasons models pass in to a
// (category, sub-key) pair. Empty sub-key means "use the tier key".
var reasonAliases = []struct {
	match    string
	category string
	subKey   string
}{
	{"financial_hardship", categoryFinancial, ""},
	{"financial", categoryFinancial, ""},
	{"money", categoryFinancial, ""},
	{"afford", categoryFinancial, ""},
	{"overheating", categoryProduct, "overheating"},
	{"battery_issues", categoryProduct, "battery_issues"},
	{"battery", categoryProduct, "battery_issues"},
	{"product_issues", categoryProduct, "overheating"},
	{"service_value", categoryService, "care_plus_premium"},
	{"value", categoryService, "care_plus_premium"},
}

// Table is the retention rule mapping, loaded once at startup and never
// mutated afterwards.
type Table struct {
	categories map[string]map[string][]contractx.Offer
}

// Load reads the rule JSON once. A missing file yields an empty table; every
// offer calculation then returns an explanatory note instead of offers.
func Load(path string) (*Table, error) {
	t := &Table{categories: make(map[string]map[string][]contractx.Offer)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("open retention rules: %w", err)
	}

	if err := json.Unmarshal(raw, &t.categories); err != nil {
		return nil, fmt.Errorf("parse retention rules: %w", err)
	}
	return t, nil
}

// Offers resolves (tier, reason) to the ordered offer list. Unknown tier or
// reason is not a fault: the result carries an empty list and a note the
// agent can act on.
func (t *Table) Offers(tier, reason string) contractx.OfferResult {
	normTier := strings.ToLower(strings.TrimSpace(tier))
	normReason := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(reason)), " ", "_")

	tierKey, ok := tierKeys[normTier]
	if !ok {
		return contractx.OfferResult{
			Offers:  []contractx.Offer{},
			Message: fmt.Sprintf("Invalid customer_tier: %s. Use premium, regular, or new.", tier),
		}
	}

	if len(t.categories) == 0 {
		return contractx.OfferResult{
			Offers:  []contractx.Offer{},
			Tier:    normTier,
			Reason:  normReason,
			Message: "Retention rules not available.",
		}
	}

	category, subKey := resolveReason(normReason)
	if category == "" {
		return contractx.OfferResult{
			Offers:  []contractx.Offer{},
			Tier:    normTier,
			Reason:  normReason,
			Message: fmt.Sprintf("No retention rules for reason %q.", reason),
		}
	}
	if subKey == "" {
		subKey = tierKey
	}

	offers := t.categories[category][subKey]
	out := make([]contractx.Offer, len(offers))
	copy(out, offers)

	return contractx.OfferResult{
		Offers: out,
		Tier:   normTier,
		Reason: normReason,
	}
}

func resolveReason(reason string) (category, subKey string) {
	compact := strings.ReplaceAll(reason, "_", "")
	for _, alias := range reasonAliases {
		if strings.Contains(reason, alias.match) || strings.Contains(compact, alias.match) {
			return alias.category, alias.subKey
		}
	}
	return "", ""
}
