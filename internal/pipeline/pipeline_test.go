package pipeline

import (
	"context"
	"strings"
	"testing"

	"sales-export-reconciler/internal/aggregator"
	"sales-export-reconciler/internal/evaluator"
	"sales-export-reconciler/internal/parsers"

	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T, catalog aggregator.Catalog) *Service {
	t.Helper()

	rules := evaluator.DefaultRules()
	rules.Categories["PREMIUM"] = evaluator.CategoryRule{ExpectedPctA: 50}
	rules.Categories["FREIGHT"] = evaluator.CategoryRule{Bypass: true, ExpectedPctA: evaluator.NoExpectation}

	svc, err := NewService(parsers.DefaultConfig(), rules, catalog)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func reportA(lines ...string) []byte {
	all := append([]string{
		"SALES EXPORT - HEADQUARTERS",
		"Period 01/01/2024 a 31/01/2024",
		"",
	}, lines...)
	return []byte(strings.Join(all, "\n"))
}

func reportB(period string, lines ...string) []byte {
	all := append([]string{
		"SALES EXPORT - BRANCH",
		"Period " + period,
		"",
	}, lines...)
	return []byte(strings.Join(all, "\n"))
}

func TestRunEndToEnd(t *testing.T) {
	svc := newTestService(t, aggregator.MapCatalog{"REFW": "PROD-001"})

	req := &Request{
		RawA: reportA(
			"101 WIDGET X PREMIUM REFW U CX 10,000 100,00",
			"901 FREIGHT CHARGE FREIGHT REFW U CX 1,000 15,00",
			"--- page 1 ---",
		),
		RawB: reportB("01/01/2024 a 31/01/2024",
			"101 WIDGET X PREMIUM REFW U CX 10,000 100,00",
		),
		LabelA: "hq.txt",
		LabelB: "branch.txt",
	}

	result, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if result.Ledger.Len() != 2 {
		t.Fatalf("Ledger.Len() = %d, want 2", result.Ledger.Len())
	}

	widget := result.Ledger.ItemByKey("101")
	if widget == nil {
		t.Fatal("missing ledger item 101")
	}
	if widget.SplitDisplay != "50/50" {
		t.Errorf("SplitDisplay = %q, want 50/50", widget.SplitDisplay)
	}
	if widget.RowAnomaly || widget.CellAnomaly {
		t.Errorf("unexpected anomaly flags: row=%v cell=%v", widget.RowAnomaly, widget.CellAnomaly)
	}

	if len(result.Products) != 1 {
		t.Fatalf("len(Products) = %d, want 1 (both lines share reference REFW)", len(result.Products))
	}
	product := result.Products[0]
	if product.CanonicalCode != "PROD-001" || !product.IsCanonical {
		t.Errorf("CanonicalCode = %q canonical=%v, want PROD-001 from catalog", product.CanonicalCode, product.IsCanonical)
	}
	if !product.ValueTotal.Equal(decimal.NewFromInt(215)) {
		t.Errorf("ValueTotal = %s, want 215", product.ValueTotal)
	}
}

func TestRunPeriodMismatchWarning(t *testing.T) {
	svc := newTestService(t, nil)

	req := &Request{
		RawA:   reportA("101 WIDGET X PREMIUM REFW U CX 1,0 10,00"),
		RawB:   reportB("01/02/2024 a 29/02/2024", "101 WIDGET X PREMIUM REFW U CX 1,0 10,00"),
		LabelA: "hq.txt",
		LabelB: "branch.txt",
	}

	result, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "periods differ") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a period mismatch warning, got %v", result.Warnings)
	}
	if result.Ledger.Len() != 1 {
		t.Errorf("mismatched periods must not block the merge, Ledger.Len() = %d", result.Ledger.Len())
	}
}

func TestRunIdentityWarnings(t *testing.T) {
	svc := newTestService(t, nil)

	// Branch report in the A slot, unmarked report in the B slot.
	req := &Request{
		RawA:   reportB("01/01/2024 a 31/01/2024", "101 WIDGET X PREMIUM REFW U CX 1,0 10,00"),
		RawB:   []byte("101 WIDGET X PREMIUM REFW U CX 1,0 10,00\n"),
		LabelA: "hq.txt",
		LabelB: "branch.txt",
	}

	result, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Warnings) != 2 {
		t.Fatalf("len(Warnings) = %d, want 2: %v", len(result.Warnings), result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "identifies as origin B") {
		t.Errorf("Warnings[0] = %q", result.Warnings[0])
	}
	if !strings.Contains(result.Warnings[1], "no origin marker") {
		t.Errorf("Warnings[1] = %q", result.Warnings[1])
	}
}

func TestRunCancelledContext(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Run(ctx, &Request{RawA: reportA(), RawB: reportB("01/01/2024 a 31/01/2024")}); err == nil {
		t.Error("Run() with cancelled context should fail")
	}
}

func TestNewServiceRejectsInvalidRules(t *testing.T) {
	rules := evaluator.DefaultRules()
	rules.Categories["BAD"] = evaluator.CategoryRule{ExpectedPctA: 140}

	if _, err := NewService(parsers.DefaultConfig(), rules, nil); err == nil {
		t.Error("NewService() should reject out-of-range expectations")
	}
}
