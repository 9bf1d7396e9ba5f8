// Package aggregator rolls the evaluated ledger up into one summary per
// commercial reference, cross-referenced against the canonical product
// catalog.
//
// Values sum plainly across origins: each ledger item already holds at
// most one contribution per origin, so value is never double-counted.
// Quantities are category-dependent: for a bypass category both origins
// represent genuinely distinct physical movements and are summed, while
// for every other category the two origins are presumed to report the
// same physical movement from two vantage points, so the per-item
// quantity is max(A, B). This policy lives on the injected rules table,
// not in code.
package aggregator

import (
	"sort"

	"sales-export-reconciler/internal/evaluator"
	"sales-export-reconciler/internal/models"
	"sales-export-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// Aggregator groups an evaluated ledger by reference and resolves
// canonical product codes.
type Aggregator struct {
	rules  *evaluator.Rules
	logger logger.Logger
}

// New creates an Aggregator sharing the evaluator's rules table (the
// bypass flag drives the quantity rollup policy).
func New(rules *evaluator.Rules) *Aggregator {
	if rules == nil {
		rules = evaluator.DefaultRules()
	}
	return &Aggregator{
		rules:  rules,
		logger: logger.WithComponent("aggregator"),
	}
}

// Aggregate produces one ProductSummary per distinct reference, sorted
// by reference ascending. The catalog is consulted once per reference;
// uncataloged references fall back to a report-local line key, preferring
// an origin-A record in a bypass category.
func (a *Aggregator) Aggregate(ledger *models.ConsolidatedLedger, catalog Catalog) []*models.ProductSummary {
	if catalog == nil {
		catalog = EmptyCatalog
	}

	groups := make(map[string][]*models.ConsolidatedItem)
	var order []string
	for _, item := range ledger.Items {
		if _, seen := groups[item.Reference]; !seen {
			order = append(order, item.Reference)
		}
		groups[item.Reference] = append(groups[item.Reference], item)
	}
	sort.Strings(order)

	summaries := make([]*models.ProductSummary, 0, len(order))
	for _, reference := range order {
		summaries = append(summaries, a.summarize(reference, groups[reference], catalog))
	}

	a.logger.WithFields(logger.Fields{
		"items":    ledger.Len(),
		"products": len(summaries),
	}).Debug("Aggregated ledger by reference")

	return summaries
}

func (a *Aggregator) summarize(reference string, items []*models.ConsolidatedItem, catalog Catalog) *models.ProductSummary {
	summary := &models.ProductSummary{Reference: reference}

	for _, item := range items {
		summary.QuantityA = summary.QuantityA.Add(item.QuantityA)
		summary.QuantityB = summary.QuantityB.Add(item.QuantityB)
		summary.ValueA = summary.ValueA.Add(item.ValueA)
		summary.ValueB = summary.ValueB.Add(item.ValueB)
		summary.QuantityTotal = summary.QuantityTotal.Add(a.itemQuantity(item))
	}
	summary.ValueTotal = summary.ValueA.Add(summary.ValueB)

	if code, ok := catalog.LookupByName(reference); ok {
		summary.CanonicalCode = code
		summary.IsCanonical = true
	} else {
		summary.CanonicalCode = fallbackCode(items, a.rules)
		summary.IsCanonical = false
	}

	return summary
}

// itemQuantity applies the category-dependent rollup rule to one item.
func (a *Aggregator) itemQuantity(item *models.ConsolidatedItem) decimal.Decimal {
	if a.rules.IsBypass(item.Category) {
		return item.QuantityA.Add(item.QuantityB)
	}
	if item.QuantityA.GreaterThanOrEqual(item.QuantityB) {
		return item.QuantityA
	}
	return item.QuantityB
}

// fallbackCode picks the report-local identifier for an uncataloged
// reference: the first line key of an origin-A record in a bypass
// category, or failing that the group's first line key.
func fallbackCode(items []*models.ConsolidatedItem, rules *evaluator.Rules) string {
	for _, item := range items {
		if item.Presence != models.PresenceBOnly && rules.IsBypass(item.Category) {
			return item.Key
		}
	}
	if len(items) > 0 {
		return items[0].Key
	}
	return ""
}
