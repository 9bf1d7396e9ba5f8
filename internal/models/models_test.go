package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOriginString(t *testing.T) {
	tests := []struct {
		origin Origin
		want   string
	}{
		{OriginA, "A"},
		{OriginB, "B"},
		{OriginUnknown, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.origin.String(); got != tt.want {
			t.Errorf("Origin(%q).String() = %q, want %q", string(tt.origin), got, tt.want)
		}
	}

	if OriginUnknown.IsValid() {
		t.Error("OriginUnknown.IsValid() = true")
	}
	if !OriginA.IsValid() || !OriginB.IsValid() {
		t.Error("report slots should be valid origins")
	}
}

func TestOriginPresenceString(t *testing.T) {
	tests := []struct {
		presence OriginPresence
		want     string
	}{
		{PresenceAOnly, "A_ONLY"},
		{PresenceBOnly, "B_ONLY"},
		{PresenceBoth, "BOTH"},
		{OriginPresence(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.presence.String(); got != tt.want {
			t.Errorf("OriginPresence(%d).String() = %q, want %q", int(tt.presence), got, tt.want)
		}
	}
}

func TestRawRecordValidate(t *testing.T) {
	valid := &RawRecord{
		LineKey:  "101",
		Quantity: decimal.NewFromInt(10),
		Total:    decimal.NewFromInt(100),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		record *RawRecord
	}{
		{"empty line key", &RawRecord{LineKey: "  "}},
		{"negative quantity", &RawRecord{LineKey: "101", Quantity: decimal.NewFromInt(-1)}},
		{"negative total", &RawRecord{LineKey: "101", Total: decimal.NewFromInt(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.record.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestConsolidatedItemTotals(t *testing.T) {
	item := &ConsolidatedItem{
		QuantityA: decimal.NewFromInt(10),
		QuantityB: decimal.NewFromInt(8),
		ValueA:    decimal.NewFromInt(100),
		ValueB:    decimal.NewFromInt(80),
	}

	if !item.QuantityTotal().Equal(decimal.NewFromInt(18)) {
		t.Errorf("QuantityTotal() = %s, want 18", item.QuantityTotal())
	}
	if !item.ValueTotal().Equal(decimal.NewFromInt(180)) {
		t.Errorf("ValueTotal() = %s, want 180", item.ValueTotal())
	}
}

func TestConsolidatedLedgerHelpers(t *testing.T) {
	ledger := &ConsolidatedLedger{
		Items: []*ConsolidatedItem{
			{Key: "101", RowAnomaly: true},
			{Key: "102", CellAnomaly: true},
			{Key: "103"},
		},
	}

	if ledger.Len() != 3 {
		t.Errorf("Len() = %d", ledger.Len())
	}
	if item := ledger.ItemByKey("102"); item == nil || !item.CellAnomaly {
		t.Error("ItemByKey(102) should find the flagged item")
	}
	if ledger.ItemByKey("999") != nil {
		t.Error("ItemByKey(999) should return nil")
	}

	rows, cells := ledger.AnomalyCounts()
	if rows != 1 || cells != 1 {
		t.Errorf("AnomalyCounts() = %d, %d, want 1, 1", rows, cells)
	}
}

func TestReportSummaryHasPeriod(t *testing.T) {
	summary := &ReportSummary{}
	if summary.HasPeriod() {
		t.Error("HasPeriod() = true for an empty summary")
	}
	summary.PeriodRaw = "01012024-31012024"
	if !summary.HasPeriod() {
		t.Error("HasPeriod() = false with a detected period")
	}
}
