// Package merger consolidates the two origins' record sets into a single
// ledger keyed by the shared line key.
//
// The merge is strictly additive: an item's quantity and value totals are
// always the arithmetic sum of what each origin contributed, never an
// overwrite. Within a single origin, duplicate line keys collapse
// last-write-wins before the fold - this mirrors the upstream
// accumulation behavior and is a known limitation, preserved rather than
// corrected. Collapsing both origins the same way keeps the per-key
// totals commutative: merging A into B yields the same quantity and
// value totals as merging B into A.
package merger

import (
	"sort"

	"sales-export-reconciler/internal/models"
	"sales-export-reconciler/pkg/logger"
)

// Merger builds a ConsolidatedLedger from the two origins' raw records.
type Merger struct {
	logger logger.Logger
}

// New creates a Merger.
func New() *Merger {
	return &Merger{logger: logger.WithComponent("merger")}
}

// Merge consolidates the record sets of origin A and origin B. Origin A
// is inserted first; origin B's quantities and values are added into
// existing entries (upgrading presence to BOTH) or inserted as B_ONLY
// entries. Reference and category come from whichever origin supplied
// them first; a missing category is backfilled by the other origin but
// never overwritten once set.
//
// The resulting items are sorted by reference ascending, with the line
// key as the tie-breaker, so the output is deterministic regardless of
// input order.
func (m *Merger) Merge(recordsA, recordsB []*models.RawRecord) *models.ConsolidatedLedger {
	index := make(map[string]*models.ConsolidatedItem)

	for _, r := range collapse(recordsA) {
		index[r.LineKey] = &models.ConsolidatedItem{
			Key:       r.LineKey,
			Reference: r.Reference,
			Category:  r.Category,
			Presence:  models.PresenceAOnly,
			QuantityA: r.Quantity,
			ValueA:    r.Total,
		}
	}

	for _, r := range collapse(recordsB) {
		item, exists := index[r.LineKey]
		if !exists {
			index[r.LineKey] = &models.ConsolidatedItem{
				Key:       r.LineKey,
				Reference: r.Reference,
				Category:  r.Category,
				Presence:  models.PresenceBOnly,
				QuantityB: r.Quantity,
				ValueB:    r.Total,
			}
			continue
		}

		item.Presence = models.PresenceBoth
		item.QuantityB = item.QuantityB.Add(r.Quantity)
		item.ValueB = item.ValueB.Add(r.Total)

		if item.Reference == "" {
			item.Reference = r.Reference
		}
		if item.Category == "" {
			item.Category = r.Category
		}
	}

	items := make([]*models.ConsolidatedItem, 0, len(index))
	for _, item := range index {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Reference != items[j].Reference {
			return items[i].Reference < items[j].Reference
		}
		return items[i].Key < items[j].Key
	})

	m.logger.WithFields(logger.Fields{
		"records_a": len(recordsA),
		"records_b": len(recordsB),
		"items":     len(items),
	}).Debug("Merged origin record sets")

	return &models.ConsolidatedLedger{Items: items}
}

// collapse reduces a single origin's records to one per line key,
// last write wins, preserving first-seen key order.
func collapse(records []*models.RawRecord) []*models.RawRecord {
	byKey := make(map[string]int, len(records))
	out := make([]*models.RawRecord, 0, len(records))

	for _, r := range records {
		if idx, seen := byKey[r.LineKey]; seen {
			out[idx] = r
			continue
		}
		byKey[r.LineKey] = len(out)
		out = append(out, r)
	}
	return out
}
