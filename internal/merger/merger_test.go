package merger

import (
	"testing"

	"sales-export-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func record(key, ref, category string, qty, total int64) *models.RawRecord {
	return &models.RawRecord{
		LineKey:     key,
		Reference:   ref,
		Description: "ITEM " + category,
		Category:    category,
		Quantity:    decimal.NewFromInt(qty),
		Total:       decimal.NewFromInt(total),
	}
}

func TestMergeBothOrigins(t *testing.T) {
	recordsA := []*models.RawRecord{record("101", "REFA", "PREMIUM", 10, 100)}
	recordsB := []*models.RawRecord{record("101", "REFA", "PREMIUM", 8, 80)}

	ledger := New().Merge(recordsA, recordsB)

	if ledger.Len() != 1 {
		t.Fatalf("expected 1 item, got %d", ledger.Len())
	}

	item := ledger.Items[0]
	if item.Presence != models.PresenceBoth {
		t.Errorf("Presence = %s, want BOTH", item.Presence)
	}
	if !item.QuantityA.Equal(decimal.NewFromInt(10)) || !item.QuantityB.Equal(decimal.NewFromInt(8)) {
		t.Errorf("quantities = %s/%s", item.QuantityA, item.QuantityB)
	}
	if !item.QuantityTotal().Equal(decimal.NewFromInt(18)) {
		t.Errorf("QuantityTotal = %s, want 18", item.QuantityTotal())
	}
	if !item.ValueTotal().Equal(decimal.NewFromInt(180)) {
		t.Errorf("ValueTotal = %s, want 180", item.ValueTotal())
	}
}

func TestMergeSingleOriginEntries(t *testing.T) {
	recordsA := []*models.RawRecord{record("101", "REFA", "PREMIUM", 10, 100)}
	recordsB := []*models.RawRecord{record("202", "REFB", "STANDARD", 5, 50)}

	ledger := New().Merge(recordsA, recordsB)

	if ledger.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", ledger.Len())
	}

	a := ledger.ItemByKey("101")
	if a == nil || a.Presence != models.PresenceAOnly {
		t.Errorf("key 101 presence = %v, want A_ONLY", a)
	}
	if a != nil && !a.QuantityB.IsZero() {
		t.Errorf("A-only item has QuantityB = %s", a.QuantityB)
	}

	b := ledger.ItemByKey("202")
	if b == nil || b.Presence != models.PresenceBOnly {
		t.Errorf("key 202 presence = %v, want B_ONLY", b)
	}
}

func TestMergeDuplicateKeysLastWriteWins(t *testing.T) {
	// Duplicate keys within one origin overwrite in accumulation order;
	// they do not accumulate. Upstream behavior, preserved.
	recordsA := []*models.RawRecord{
		record("101", "REFA", "PREMIUM", 10, 100),
		record("101", "REFA", "PREMIUM", 3, 30),
	}

	ledger := New().Merge(recordsA, nil)

	item := ledger.ItemByKey("101")
	if item == nil {
		t.Fatal("expected item for key 101")
	}
	if !item.QuantityA.Equal(decimal.NewFromInt(3)) {
		t.Errorf("QuantityA = %s, want 3 (last write)", item.QuantityA)
	}
	if !item.ValueA.Equal(decimal.NewFromInt(30)) {
		t.Errorf("ValueA = %s, want 30 (last write)", item.ValueA)
	}
}

func TestMergeTotalsCommutative(t *testing.T) {
	recordsA := []*models.RawRecord{
		record("101", "REFA", "PREMIUM", 10, 100),
		record("101", "REFA", "PREMIUM", 3, 30),
		record("202", "REFB", "STANDARD", 5, 50),
	}
	recordsB := []*models.RawRecord{
		record("101", "REFA", "PREMIUM", 8, 80),
		record("303", "REFC", "STANDARD", 2, 20),
	}

	m := New()
	forward := m.Merge(recordsA, recordsB)
	reverse := m.Merge(recordsB, recordsA)

	if forward.Len() != reverse.Len() {
		t.Fatalf("item counts differ: %d vs %d", forward.Len(), reverse.Len())
	}

	for _, f := range forward.Items {
		r := reverse.ItemByKey(f.Key)
		if r == nil {
			t.Fatalf("key %s missing from reverse merge", f.Key)
		}
		if !f.QuantityTotal().Equal(r.QuantityTotal()) {
			t.Errorf("key %s: quantity totals differ: %s vs %s",
				f.Key, f.QuantityTotal(), r.QuantityTotal())
		}
		if !f.ValueTotal().Equal(r.ValueTotal()) {
			t.Errorf("key %s: value totals differ: %s vs %s",
				f.Key, f.ValueTotal(), r.ValueTotal())
		}
	}
}

func TestMergeCategoryBackfill(t *testing.T) {
	recordsA := []*models.RawRecord{
		{LineKey: "101", Reference: "REFA", Quantity: decimal.NewFromInt(1), Total: decimal.NewFromInt(10)},
	}
	recordsB := []*models.RawRecord{record("101", "OTHER", "PREMIUM", 1, 10)}

	ledger := New().Merge(recordsA, recordsB)
	item := ledger.ItemByKey("101")

	if item.Category != "PREMIUM" {
		t.Errorf("Category = %q, want backfilled PREMIUM", item.Category)
	}
	// Reference was supplied by A first and must not be overwritten.
	if item.Reference != "REFA" {
		t.Errorf("Reference = %q, want REFA", item.Reference)
	}
}

func TestMergeDeterministicOrder(t *testing.T) {
	recordsA := []*models.RawRecord{
		record("3", "REFC", "X", 1, 1),
		record("2", "REFA", "X", 1, 1),
		record("1", "REFB", "X", 1, 1),
		record("0", "REFA", "X", 1, 1),
	}

	ledger := New().Merge(recordsA, nil)

	var keys []string
	for _, item := range ledger.Items {
		keys = append(keys, item.Key)
	}
	want := []string{"0", "2", "1", "3"} // REFA/0, REFA/2, REFB/1, REFC/3
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("order = %v, want %v", keys, want)
		}
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	ledger := New().Merge(nil, nil)
	if ledger.Len() != 0 {
		t.Errorf("expected empty ledger, got %d items", ledger.Len())
	}
}
