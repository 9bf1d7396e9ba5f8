// Package pipeline orchestrates the reconciliation run: decode the two
// origin reports, parse them concurrently, merge into the consolidated
// ledger, evaluate splits and anomalies, and aggregate into product
// summaries. Everything downstream of decoding is advisory or
// best-effort; the only hard failures here are undecodable input and a
// cancelled context.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sales-export-reconciler/internal/aggregator"
	"sales-export-reconciler/internal/evaluator"
	"sales-export-reconciler/internal/merger"
	"sales-export-reconciler/internal/models"
	"sales-export-reconciler/internal/parsers"
	"sales-export-reconciler/pkg/logger"
)

// Request carries the raw report bytes for one reconciliation run.
// Labels identify the sources in summaries and warnings, usually file
// names.
type Request struct {
	RawA   []byte
	RawB   []byte
	LabelA string
	LabelB string
}

// Result is the complete outcome of a run: the per-source parse
// summaries, the consolidated ledger, the product aggregate, and any
// advisory warnings. Warnings never block the run.
type Result struct {
	RecordsA []*models.RawRecord
	RecordsB []*models.RawRecord
	SummaryA *models.ReportSummary
	SummaryB *models.ReportSummary
	Ledger   *models.ConsolidatedLedger
	Products []*models.ProductSummary
	Warnings []string
	Elapsed  time.Duration
}

// Service wires the pipeline stages together.
type Service struct {
	config     *parsers.Config
	parser     *parsers.ReportParser
	merger     *merger.Merger
	evaluator  *evaluator.Evaluator
	aggregator *aggregator.Aggregator
	catalog    aggregator.Catalog
	logger     logger.Logger
}

// NewService builds a Service from validated parser config and category
// rules. A nil catalog disables canonical lookup.
func NewService(config *parsers.Config, rules *evaluator.Rules, catalog aggregator.Catalog) (*Service, error) {
	parser, err := parsers.NewReportParser(config)
	if err != nil {
		return nil, err
	}
	eval, err := evaluator.NewEvaluator(rules)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = aggregator.EmptyCatalog
	}

	return &Service{
		config:     config,
		parser:     parser,
		merger:     merger.New(),
		evaluator:  eval,
		aggregator: aggregator.New(rules),
		catalog:    catalog,
		logger:     logger.WithComponent("pipeline"),
	}, nil
}

// Run executes the full pipeline over one pair of reports.
func (s *Service) Run(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	textA, err := parsers.DecodeText(req.RawA, s.config.Encoding)
	if err != nil {
		return nil, err
	}
	textB, err := parsers.DecodeText(req.RawB, s.config.Encoding)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}

	// The two reports are independent until the merge.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.RecordsA, result.SummaryA = s.parser.Parse(textA, req.LabelA, models.OriginA)
	}()
	go func() {
		defer wg.Done()
		result.RecordsB, result.SummaryB = s.parser.Parse(textB, req.LabelB, models.OriginB)
	}()
	wg.Wait()

	result.Warnings = append(result.Warnings, identityWarnings(result.SummaryA, result.SummaryB)...)
	result.Warnings = append(result.Warnings, periodWarnings(result.SummaryA, result.SummaryB)...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Ledger = s.merger.Merge(result.RecordsA, result.RecordsB)
	s.evaluator.Evaluate(result.Ledger)
	result.Products = s.aggregator.Aggregate(result.Ledger, s.catalog)

	result.Elapsed = time.Since(start)

	rows, cells := result.Ledger.AnomalyCounts()
	s.logger.WithFields(logger.Fields{
		"lines_a":        len(result.RecordsA),
		"lines_b":        len(result.RecordsB),
		"ledger_items":   result.Ledger.Len(),
		"products":       len(result.Products),
		"row_anomalies":  rows,
		"cell_anomalies": cells,
		"warnings":       len(result.Warnings),
		"elapsed":        result.Elapsed.String(),
	}).Info("Reconciliation complete")

	return result, nil
}

// identityWarnings flags reports whose embedded origin markers disagree
// with the slot they were supplied in, or carry no marker at all.
func identityWarnings(a, b *models.ReportSummary) []string {
	var warnings []string
	for _, check := range []struct {
		summary  *models.ReportSummary
		expected models.Origin
	}{
		{a, models.OriginA},
		{b, models.OriginB},
	} {
		switch check.summary.DetectedIdentity {
		case check.expected:
		case models.OriginUnknown:
			warnings = append(warnings, fmt.Sprintf(
				"%s: no origin marker found, treating as origin %s",
				check.summary.SourceLabel, check.expected))
		default:
			warnings = append(warnings, fmt.Sprintf(
				"%s: report identifies as origin %s but was supplied as origin %s",
				check.summary.SourceLabel, check.summary.DetectedIdentity, check.expected))
		}
	}
	return warnings
}

// periodWarnings flags reports whose detected reporting periods differ.
// A missing period on either side is not flagged here; the persist
// stage falls back to the current date in that case.
func periodWarnings(a, b *models.ReportSummary) []string {
	if !a.HasPeriod() || !b.HasPeriod() {
		return nil
	}
	if a.PeriodRaw == b.PeriodRaw {
		return nil
	}
	return []string{fmt.Sprintf(
		"reporting periods differ: %s covers %s, %s covers %s",
		a.SourceLabel, a.PeriodDisplay, b.SourceLabel, b.PeriodDisplay)}
}
