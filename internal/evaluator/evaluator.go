package evaluator

import (
	"fmt"

	"sales-export-reconciler/internal/models"
	"sales-export-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluator annotates a consolidated ledger with split ratios and
// anomaly flags. It is a pure validation pass: items are never dropped
// or reordered, only annotated in place.
type Evaluator struct {
	rules  *Rules
	logger logger.Logger
}

// NewEvaluator creates an Evaluator with the given rules table. The
// table is validated here; an invalid table is a configuration error
// and fails immediately.
func NewEvaluator(rules *Rules) (*Evaluator, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		rules:  rules,
		logger: logger.WithComponent("evaluator"),
	}, nil
}

// Evaluate computes the split ratio and anomaly flags for every item in
// the ledger.
//
// For each item:
//   - pctA is origin A's value share rounded to whole percent, with a
//     quantity-presence fallback when the item carries no value at all.
//   - Bypass categories always display the fixed split string and are
//     exempt from the quantity-mismatch rule.
//   - RowAnomaly flags a quantity disagreement between origins.
//   - CellAnomaly flags a deviation from the category's expected split,
//     evaluated only when RowAnomaly is false.
func (e *Evaluator) Evaluate(ledger *models.ConsolidatedLedger) {
	for _, item := range ledger.Items {
		e.evaluateItem(item)
	}

	rows, cells := ledger.AnomalyCounts()
	e.logger.WithFields(logger.Fields{
		"items":          ledger.Len(),
		"row_anomalies":  rows,
		"cell_anomalies": cells,
	}).Debug("Evaluated ledger")
}

func (e *Evaluator) evaluateItem(item *models.ConsolidatedItem) {
	pctA := e.splitPctA(item)
	bypass := e.rules.IsBypass(item.Category)

	if bypass {
		item.SplitDisplay = e.rules.BypassDisplay
	} else {
		item.SplitDisplay = fmt.Sprintf("%d/%d", pctA, 100-pctA)
	}

	item.RowAnomaly = !bypass && !item.QuantityA.Equal(item.QuantityB)

	item.CellAnomaly = false
	if !item.RowAnomaly && !bypass {
		if expected, ok := e.rules.ExpectedPctA(item.Category); ok && pctA != expected {
			item.CellAnomaly = true
		}
	}
}

// splitPctA computes origin A's whole-percent share of the item value.
// Items with no monetary value fall back to quantity presence, and items
// with neither value nor quantity fall back to origin presence.
func (e *Evaluator) splitPctA(item *models.ConsolidatedItem) int {
	valueTotal := item.ValueTotal()
	if valueTotal.IsPositive() {
		return int(item.ValueA.Div(valueTotal).Mul(hundred).Round(0).IntPart())
	}

	hasA := item.QuantityA.IsPositive()
	hasB := item.QuantityB.IsPositive()
	switch {
	case hasA && hasB:
		return 50
	case hasA:
		return 100
	case hasB:
		return 0
	}

	switch item.Presence {
	case models.PresenceAOnly:
		return 100
	case models.PresenceBOnly:
		return 0
	default:
		return 50
	}
}
