// Package persist converts the product aggregate into a normalized,
// idempotent upsert payload and applies the pre-commit guards.
//
// The guards (backdated import, negative totals) are the only conditions
// that can halt the pipeline; both return marker-carrying validation
// errors that the operator may explicitly override. The store write is
// the single point of external mutation and must happen at most once per
// confirmed invocation; payloads are keyed so that retried writes are
// idempotent.
package persist

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"sales-export-reconciler/internal/models"
	"sales-export-reconciler/internal/parsers"
	"sales-export-reconciler/pkg/errors"
	"sales-export-reconciler/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpsertRecord is one normalized row of the upsert payload, keyed by
// (Reference, CanonicalCode).
type UpsertRecord struct {
	Reference     string          `json:"reference"`
	CanonicalCode string          `json:"canonicalCode"`
	IsCanonical   bool            `json:"isCanonical"`
	QuantityA     decimal.Decimal `json:"quantityA"`
	QuantityB     decimal.Decimal `json:"quantityB"`
	QuantityTotal decimal.Decimal `json:"quantityTotal"`
	ValueA        decimal.Decimal `json:"valueA"`
	ValueB        decimal.Decimal `json:"valueB"`
	ValueTotal    decimal.Decimal `json:"valueTotal"`
}

// UpsertKey returns the row key within a series.
func (r *UpsertRecord) UpsertKey() string {
	return r.Reference + "|" + r.CanonicalCode
}

// Metrics summarizes a payload for the series header row.
type Metrics struct {
	Products      int             `json:"products"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
}

// Payload is the complete upsert request handed to the store.
type Payload struct {
	Series        string         `json:"series"`
	BatchID       string         `json:"batchId"`
	EffectiveDate time.Time      `json:"effectiveDate"`
	Records       []UpsertRecord `json:"records"`
	Metrics       Metrics        `json:"metrics"`
}

// Preparer builds and validates upsert payloads for one series.
type Preparer struct {
	store  Store
	series string
	clock  func() time.Time
	logger logger.Logger
}

// NewPreparer creates a Preparer writing to the given store and series.
func NewPreparer(store Store, series string) *Preparer {
	return &Preparer{
		store:  store,
		series: series,
		clock:  time.Now,
		logger: logger.WithComponent("persist"),
	}
}

// Prepare converts the product summaries into an upsert payload and
// applies the pre-commit guards. The effective business date is the end
// of the detected reporting period (periodRaw as produced by the
// parser), falling back to the current date when undetectable.
//
// Each guard is independently triggerable and blocks the write unless
// override is set: (a) the effective date is earlier than the latest
// already-persisted date for this series; (b) any summary's total value
// is negative. Guard failures return a nil payload and an overridable
// validation error; no write is performed here in any case.
func (p *Preparer) Prepare(ctx context.Context, summaries []*models.ProductSummary, periodRaw string, override bool) (*Payload, error) {
	effective, ok := parsers.ParsePeriodEnd(periodRaw)
	if !ok {
		now := p.clock()
		effective = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	payload := &Payload{
		Series:        p.series,
		EffectiveDate: effective,
	}

	// Idempotent normalization: one row per (reference, canonicalCode),
	// later values overwrite, never accumulate.
	index := make(map[string]int)
	for _, s := range summaries {
		record := UpsertRecord{
			Reference:     s.Reference,
			CanonicalCode: s.CanonicalCode,
			IsCanonical:   s.IsCanonical,
			QuantityA:     s.QuantityA,
			QuantityB:     s.QuantityB,
			QuantityTotal: s.QuantityTotal,
			ValueA:        s.ValueA,
			ValueB:        s.ValueB,
			ValueTotal:    s.ValueTotal,
		}
		if idx, seen := index[record.UpsertKey()]; seen {
			payload.Records[idx] = record
			continue
		}
		index[record.UpsertKey()] = len(payload.Records)
		payload.Records = append(payload.Records, record)
	}

	for _, record := range payload.Records {
		payload.Metrics.Products++
		payload.Metrics.TotalQuantity = payload.Metrics.TotalQuantity.Add(record.QuantityTotal)
		payload.Metrics.TotalValue = payload.Metrics.TotalValue.Add(record.ValueTotal)
	}

	payload.BatchID = batchID(payload)

	if !override {
		if err := p.checkGuards(ctx, payload); err != nil {
			return nil, err
		}
	}

	return payload, nil
}

func (p *Preparer) checkGuards(ctx context.Context, payload *Payload) error {
	latest, found, err := p.store.LatestDate(ctx, p.series)
	if err != nil {
		return errors.PersistenceError(p.series, err)
	}
	if found && payload.EffectiveDate.Before(latest) {
		return errors.GuardError(errors.CodeBackdatedImport,
			fmt.Sprintf("effective date %s is before the latest persisted date %s for series %s",
				payload.EffectiveDate.Format("2006-01-02"), latest.Format("2006-01-02"), p.series))
	}

	for _, record := range payload.Records {
		if record.ValueTotal.IsNegative() {
			return errors.GuardError(errors.CodeNegativeTotal,
				fmt.Sprintf("product %s has total value %s", record.Reference, record.ValueTotal))
		}
	}

	return nil
}

// Persist executes the store write for a prepared payload. The write is
// idempotent on (series, reference, canonicalCode); retry policy belongs
// to the caller.
func (p *Preparer) Persist(ctx context.Context, payload *Payload) error {
	if payload == nil {
		return errors.InternalError("persist", fmt.Errorf("nil payload"))
	}

	p.logger.WithFields(logger.Fields{
		"series":         payload.Series,
		"batch_id":       payload.BatchID,
		"effective_date": payload.EffectiveDate.Format("2006-01-02"),
		"products":       payload.Metrics.Products,
	}).Info("Persisting series")

	return p.store.UpsertSeries(ctx, payload)
}

// batchID derives a deterministic identifier from the payload content,
// so preparing the same input twice yields an identical payload.
func batchID(payload *Payload) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s\n", payload.Series, payload.EffectiveDate.Format("2006-01-02"))
	for _, r := range payload.Records {
		fmt.Fprintf(h, "%s|%s|%s|%s\n", r.UpsertKey(), r.QuantityTotal, r.ValueTotal, r.QuantityA)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, h.Sum(nil)).String()
}
