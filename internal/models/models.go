// Package models defines the data model shared by the reconciliation
// pipeline stages: raw parsed records, per-report summaries, the
// consolidated ledger and the product-level rollup.
package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Origin identifies which business unit produced a report.
type Origin string

const (
	// OriginA is the first report slot (e.g. headquarters).
	OriginA Origin = "A"
	// OriginB is the second report slot (e.g. branch).
	OriginB Origin = "B"
	// OriginUnknown means no identity marker was found in the report text.
	OriginUnknown Origin = ""
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	if o == OriginUnknown {
		return "unknown"
	}
	return string(o)
}

// IsValid checks if the origin is one of the two report slots.
func (o Origin) IsValid() bool {
	return o == OriginA || o == OriginB
}

// OriginPresence records which origins contributed to a consolidated item.
type OriginPresence int

const (
	PresenceAOnly OriginPresence = iota
	PresenceBOnly
	PresenceBoth
)

// String returns the string representation of OriginPresence.
func (p OriginPresence) String() string {
	switch p {
	case PresenceAOnly:
		return "A_ONLY"
	case PresenceBOnly:
		return "B_ONLY"
	case PresenceBoth:
		return "BOTH"
	default:
		return "UNKNOWN"
	}
}

// RawRecord is one parsed line of one origin report. Records are created
// by the report parser, consumed by the merger and never mutated.
type RawRecord struct {
	// LineKey is the join identifier shared across origins. It is not
	// guaranteed unique within one report; duplicates overwrite in
	// accumulation order.
	LineKey string `json:"lineKey"`

	// Reference is the short product reference code, distinct from LineKey.
	Reference string `json:"reference"`

	// Description is the free-text description as printed in the report.
	Description string `json:"description"`

	// Category is the last whitespace token of Description, used as a
	// coarse classification tag. A heuristic, not a guaranteed taxonomy.
	Category string `json:"category"`

	Quantity decimal.Decimal `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// Validate performs basic validation on the RawRecord.
func (r *RawRecord) Validate() error {
	if strings.TrimSpace(r.LineKey) == "" {
		return fmt.Errorf("record line key cannot be empty")
	}
	if r.Quantity.IsNegative() {
		return fmt.Errorf("record quantity cannot be negative: %s", r.Quantity)
	}
	if r.Total.IsNegative() {
		return fmt.Errorf("record total cannot be negative: %s", r.Total)
	}
	return nil
}

// String returns a string representation of the RawRecord.
func (r *RawRecord) String() string {
	return fmt.Sprintf("RawRecord{Key: %s, Ref: %s, Cat: %s, Qty: %s, Total: %s}",
		r.LineKey, r.Reference, r.Category, r.Quantity, r.Total)
}

// ReportSummary holds per-report accumulated totals and provenance.
type ReportSummary struct {
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	TotalTax      decimal.Decimal `json:"totalTax"`

	// SourceLabel and SourceSize are provenance metadata (typically the
	// upload file name and its byte size).
	SourceLabel string `json:"sourceLabel"`
	SourceSize  int    `json:"sourceSize"`

	// DetectedIdentity is the origin whose marker phrase was found in the
	// report text, independent of which slot the report was loaded into.
	DetectedIdentity Origin `json:"detectedIdentity"`

	// PeriodDisplay is the declared reporting window as shown to the
	// operator; PeriodRaw is its canonical form used for equality checks
	// between the two origins.
	PeriodDisplay string `json:"periodDisplay"`
	PeriodRaw     string `json:"periodRaw"`

	// MatchedLines and SkippedLines are parse diagnostics. Skipped lines
	// are expected noise (headers, footers, blanks), never errors.
	MatchedLines int `json:"matchedLines"`
	SkippedLines int `json:"skippedLines"`
}

// HasPeriod reports whether a reporting window was detected in the header.
func (s *ReportSummary) HasPeriod() bool {
	return s.PeriodRaw != ""
}

// String returns a string representation of the ReportSummary.
func (s *ReportSummary) String() string {
	return fmt.Sprintf("ReportSummary{Source: %s, Identity: %s, Period: %s, Qty: %s, Value: %s, Tax: %s, Lines: %d matched/%d skipped}",
		s.SourceLabel, s.DetectedIdentity, s.PeriodDisplay,
		s.TotalQuantity, s.TotalValue, s.TotalTax, s.MatchedLines, s.SkippedLines)
}

// ConsolidatedItem is one entry of the consolidated ledger: the same
// commercial event seen from both origins (or just one). Items are
// created by the merger, annotated in place by the evaluator and
// read-only afterward.
type ConsolidatedItem struct {
	// Key is the shared line key.
	Key string `json:"key"`

	// Reference and Category are resolved preferring origin A's value,
	// falling back to origin B's.
	Reference string `json:"reference"`
	Category  string `json:"category"`

	Presence OriginPresence `json:"originPresence"`

	QuantityA decimal.Decimal `json:"quantityA"`
	QuantityB decimal.Decimal `json:"quantityB"`
	ValueA    decimal.Decimal `json:"valueA"`
	ValueB    decimal.Decimal `json:"valueB"`

	// SplitDisplay is the human-readable "pctA/pctB" attribution string,
	// or a fixed override for bypass categories.
	SplitDisplay string `json:"splitDisplay"`

	// RowAnomaly flags a quantity disagreement between origins.
	// CellAnomaly flags a split-ratio deviation from the category's
	// expected ratio; it is only evaluated when RowAnomaly is false.
	RowAnomaly  bool `json:"rowAnomaly"`
	CellAnomaly bool `json:"cellAnomaly"`
}

// QuantityTotal is always the arithmetic sum of the two origins.
func (c *ConsolidatedItem) QuantityTotal() decimal.Decimal {
	return c.QuantityA.Add(c.QuantityB)
}

// ValueTotal is always the arithmetic sum of the two origins.
func (c *ConsolidatedItem) ValueTotal() decimal.Decimal {
	return c.ValueA.Add(c.ValueB)
}

// String returns a string representation of the ConsolidatedItem.
func (c *ConsolidatedItem) String() string {
	return fmt.Sprintf("ConsolidatedItem{Key: %s, Ref: %s, Presence: %s, Qty: %s+%s, Value: %s+%s, Split: %s}",
		c.Key, c.Reference, c.Presence, c.QuantityA, c.QuantityB, c.ValueA, c.ValueB, c.SplitDisplay)
}

// ConsolidatedLedger is the ordered result of merging the two origin
// record sets: one item per line key, sorted by reference then key.
type ConsolidatedLedger struct {
	Items []*ConsolidatedItem `json:"items"`
}

// Len returns the number of consolidated items.
func (l *ConsolidatedLedger) Len() int {
	return len(l.Items)
}

// ItemByKey returns the item with the given line key, or nil.
func (l *ConsolidatedLedger) ItemByKey(key string) *ConsolidatedItem {
	for _, item := range l.Items {
		if item.Key == key {
			return item
		}
	}
	return nil
}

// AnomalyCounts returns the number of row and cell anomalies in the ledger.
func (l *ConsolidatedLedger) AnomalyCounts() (rows, cells int) {
	for _, item := range l.Items {
		if item.RowAnomaly {
			rows++
		}
		if item.CellAnomaly {
			cells++
		}
	}
	return rows, cells
}

// ProductSummary is the per-reference rollup of the evaluated ledger.
type ProductSummary struct {
	Reference string `json:"reference"`

	// CanonicalCode is the product identifier resolved from the catalog,
	// or a report-local fallback identifier when the reference is not
	// cataloged. IsCanonical distinguishes the two.
	CanonicalCode string `json:"canonicalCode"`
	IsCanonical   bool   `json:"isCanonical"`

	QuantityA decimal.Decimal `json:"quantityA"`
	QuantityB decimal.Decimal `json:"quantityB"`

	// QuantityTotal uses category-dependent summation, never a naive sum
	// of both origins, to avoid double counting a single physical
	// transfer recorded from two vantage points.
	QuantityTotal decimal.Decimal `json:"quantityTotal"`

	ValueA     decimal.Decimal `json:"valueA"`
	ValueB     decimal.Decimal `json:"valueB"`
	ValueTotal decimal.Decimal `json:"valueTotal"`
}

// String returns a string representation of the ProductSummary.
func (p *ProductSummary) String() string {
	return fmt.Sprintf("ProductSummary{Ref: %s, Code: %s (canonical=%t), Qty: %s, Value: %s}",
		p.Reference, p.CanonicalCode, p.IsCanonical, p.QuantityTotal, p.ValueTotal)
}
