// Package evaluator computes the revenue-attribution split between the
// two origins for each consolidated item and flags records that violate
// the configured business expectations.
//
// Category expectations are data, not code: the taxonomy of the sales
// exports changes without notice, so the rules table is injected and
// validated up front. An invalid table fails fast at construction;
// evaluation itself never fails and never drops or reorders items.
package evaluator

import (
	"strings"

	"sales-export-reconciler/pkg/errors"
)

// CategoryRule configures the expectations for one category tag.
type CategoryRule struct {
	// Bypass exempts the category from the quantity-mismatch rule and
	// forces the fixed display split. Bypass categories represent lines
	// where both origins record genuinely distinct physical movements.
	Bypass bool `json:"bypass" mapstructure:"bypass"`

	// ExpectedPctA is origin A's expected share of the item value, in
	// whole percent. Ignored for bypass categories. Use NoExpectation to
	// skip the ratio check for a non-bypass category.
	ExpectedPctA int `json:"expected_pct_a" mapstructure:"expected_pct_a"`
}

// NoExpectation disables the expected-ratio check for a category.
const NoExpectation = -1

// Rules is the injected category-expectation table.
type Rules struct {
	// Categories maps a category tag to its rule. Tags are compared
	// case-sensitively, exactly as extracted from the line description.
	Categories map[string]CategoryRule `json:"categories" mapstructure:"categories"`

	// BypassDisplay is the fixed split string shown for bypass
	// categories regardless of the computed ratio.
	BypassDisplay string `json:"bypass_display" mapstructure:"bypass_display"`
}

// DefaultRules returns an empty table with the standard bypass display.
// With no category rules configured, no cell anomalies are ever raised
// and every category is subject to the quantity-mismatch rule.
func DefaultRules() *Rules {
	return &Rules{
		Categories:    map[string]CategoryRule{},
		BypassDisplay: "100/0",
	}
}

// Validate checks the rules table. Rule problems are contract errors and
// fail loud rather than being swallowed at evaluation time.
func (r *Rules) Validate() error {
	if strings.TrimSpace(r.BypassDisplay) == "" {
		return errors.RulesError("bypass display string cannot be empty")
	}

	for category, rule := range r.Categories {
		if strings.TrimSpace(category) == "" {
			return errors.RulesError("category tag cannot be empty")
		}
		if rule.Bypass {
			continue
		}
		if rule.ExpectedPctA != NoExpectation && (rule.ExpectedPctA < 0 || rule.ExpectedPctA > 100) {
			return errors.RulesError(
				"expected pctA for category '" + category + "' must be 0..100 or unset")
		}
	}
	return nil
}

// IsBypass reports whether the category is configured as a bypass line.
func (r *Rules) IsBypass(category string) bool {
	rule, ok := r.Categories[category]
	return ok && rule.Bypass
}

// ExpectedPctA returns the configured expected split for a non-bypass
// category. ok is false when the category has no ratio expectation.
func (r *Rules) ExpectedPctA(category string) (int, bool) {
	rule, ok := r.Categories[category]
	if !ok || rule.Bypass || rule.ExpectedPctA == NoExpectation {
		return 0, false
	}
	return rule.ExpectedPctA, true
}
