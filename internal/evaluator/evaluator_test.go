package evaluator

import (
	"testing"

	"sales-export-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func testRules() *Rules {
	return &Rules{
		Categories: map[string]CategoryRule{
			"PREMIUM": {Bypass: true},
			"X":       {ExpectedPctA: 50},
			"Y":       {ExpectedPctA: 40},
			"UNRULED": {ExpectedPctA: NoExpectation},
		},
		BypassDisplay: "100/0",
	}
}

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(testRules())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func item(category string, qtyA, qtyB, valA, valB int64) *models.ConsolidatedItem {
	presence := models.PresenceBoth
	return &models.ConsolidatedItem{
		Key:       "1",
		Reference: "REF",
		Category:  category,
		Presence:  presence,
		QuantityA: decimal.NewFromInt(qtyA),
		QuantityB: decimal.NewFromInt(qtyB),
		ValueA:    decimal.NewFromInt(valA),
		ValueB:    decimal.NewFromInt(valB),
	}
}

func evaluateOne(t *testing.T, it *models.ConsolidatedItem) *models.ConsolidatedItem {
	t.Helper()
	ledger := &models.ConsolidatedLedger{Items: []*models.ConsolidatedItem{it}}
	newTestEvaluator(t).Evaluate(ledger)
	return ledger.Items[0]
}

func TestSplitFromValues(t *testing.T) {
	it := evaluateOne(t, item("X", 5, 5, 40, 60))

	if it.SplitDisplay != "40/60" {
		t.Errorf("SplitDisplay = %q, want 40/60", it.SplitDisplay)
	}
	if it.RowAnomaly {
		t.Error("equal quantities must not raise a row anomaly")
	}
	// Category X expects exactly 50, computed 40.
	if !it.CellAnomaly {
		t.Error("expected cell anomaly for 40/60 against a 50/50 expectation")
	}
}

func TestSplitMatchingExpectation(t *testing.T) {
	it := evaluateOne(t, item("Y", 5, 5, 40, 60))

	if it.SplitDisplay != "40/60" {
		t.Errorf("SplitDisplay = %q", it.SplitDisplay)
	}
	if it.CellAnomaly {
		t.Error("category Y expects 40, computed 40: no cell anomaly")
	}
}

func TestZeroValueFallsBackToQuantityPresence(t *testing.T) {
	tests := []struct {
		name       string
		qtyA, qtyB int64
		want       string
	}{
		{"both quantities", 10, 8, "50/50"},
		{"only A", 10, 0, "100/0"},
		{"only B", 0, 8, "0/100"},
	}

	for _, tt := range tests {
		it := evaluateOne(t, item("UNRULED", tt.qtyA, tt.qtyB, 0, 0))
		if it.SplitDisplay != tt.want {
			t.Errorf("%s: SplitDisplay = %q, want %q", tt.name, it.SplitDisplay, tt.want)
		}
	}
}

func TestZeroValueZeroQuantityUsesPresence(t *testing.T) {
	it := item("UNRULED", 0, 0, 0, 0)
	it.Presence = models.PresenceAOnly
	got := evaluateOne(t, it)
	if got.SplitDisplay != "100/0" {
		t.Errorf("SplitDisplay = %q, want 100/0 for an A-only empty item", got.SplitDisplay)
	}
}

func TestQuantityMismatchRaisesRowAnomaly(t *testing.T) {
	it := evaluateOne(t, item("X", 10, 8, 100, 80))

	if !it.RowAnomaly {
		t.Error("expected row anomaly for mismatched quantities")
	}
	// Cell anomaly is only evaluated when the row is clean.
	if it.CellAnomaly {
		t.Error("cell anomaly must not be evaluated on a row anomaly")
	}
}

func TestBypassCategoryExemptFromRowAnomaly(t *testing.T) {
	it := evaluateOne(t, item("PREMIUM", 10, 8, 100, 80))

	if it.RowAnomaly {
		t.Error("bypass category must never raise a row anomaly")
	}
	if it.CellAnomaly {
		t.Error("bypass category must never raise a cell anomaly")
	}
	if it.SplitDisplay != "100/0" {
		t.Errorf("SplitDisplay = %q, want the fixed bypass display", it.SplitDisplay)
	}
}

func TestUnknownCategoryHasNoExpectation(t *testing.T) {
	it := evaluateOne(t, item("NOVELTY", 5, 5, 30, 70))

	if it.CellAnomaly {
		t.Error("categories without a rule must not raise cell anomalies")
	}
	if it.SplitDisplay != "30/70" {
		t.Errorf("SplitDisplay = %q", it.SplitDisplay)
	}
}

func TestEvaluatePreservesOrder(t *testing.T) {
	ledger := &models.ConsolidatedLedger{Items: []*models.ConsolidatedItem{
		item("X", 1, 1, 10, 10),
		item("Y", 2, 2, 20, 20),
		item("PREMIUM", 3, 3, 30, 30),
	}}
	ledger.Items[0].Key, ledger.Items[1].Key, ledger.Items[2].Key = "a", "b", "c"

	newTestEvaluator(t).Evaluate(ledger)

	if ledger.Len() != 3 {
		t.Fatalf("evaluation must not drop items, got %d", ledger.Len())
	}
	for i, want := range []string{"a", "b", "c"} {
		if ledger.Items[i].Key != want {
			t.Fatalf("evaluation must not reorder items")
		}
	}
}

func TestInvalidRulesFailFast(t *testing.T) {
	bad := &Rules{
		Categories:    map[string]CategoryRule{"X": {ExpectedPctA: 140}},
		BypassDisplay: "100/0",
	}
	if _, err := NewEvaluator(bad); err == nil {
		t.Error("out-of-range expectation must be rejected at construction")
	}

	bad = &Rules{Categories: map[string]CategoryRule{}, BypassDisplay: " "}
	if _, err := NewEvaluator(bad); err == nil {
		t.Error("blank bypass display must be rejected")
	}

	bad = &Rules{
		Categories:    map[string]CategoryRule{"": {Bypass: true}},
		BypassDisplay: "100/0",
	}
	if _, err := NewEvaluator(bad); err == nil {
		t.Error("empty category tag must be rejected")
	}
}

func TestNilRulesUseDefaults(t *testing.T) {
	e, err := NewEvaluator(nil)
	if err != nil {
		t.Fatalf("NewEvaluator(nil): %v", err)
	}

	it := item("ANY", 10, 8, 100, 80)
	ledger := &models.ConsolidatedLedger{Items: []*models.ConsolidatedItem{it}}
	e.Evaluate(ledger)

	// No rules configured: every category is subject to the quantity
	// rule and no cell anomalies are possible.
	if !it.RowAnomaly {
		t.Error("expected row anomaly under default rules")
	}
	if it.CellAnomaly {
		t.Error("default rules cannot raise cell anomalies")
	}
}

func TestSplitRounding(t *testing.T) {
	// 1/3 of the value on origin A rounds to 33/67.
	it := evaluateOne(t, item("UNRULED", 1, 1, 100, 200))
	if it.SplitDisplay != "33/67" {
		t.Errorf("SplitDisplay = %q, want 33/67", it.SplitDisplay)
	}
}
