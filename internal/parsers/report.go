// Package parsers turns raw sales-export text into records and summaries.
//
// The exports are not a clean tabular format: each origin's generator
// prints headers, footers, page breaks and free-form noise around the
// data lines. The parser is therefore line-oriented and best-effort: a
// fixed positional+regex grammar is applied per line, lines that do not
// match are silently skipped and counted, and a zero-valued result is a
// valid outcome for garbage input. Nothing in this package performs I/O.
//
// Grammar per data line:
//
//	<id> <description...> <reference> <unused> CX <quantity> <total>
//
// where the description is matched greedily and the reference and unused
// tokens are the two non-whitespace tokens immediately preceding the
// literal unit marker. The record's category is the last whitespace
// token of the description - a deliberate heuristic, not a grammar field.
package parsers

import (
	"regexp"
	"strings"

	"sales-export-reconciler/internal/models"
	"sales-export-reconciler/pkg/errors"
	"sales-export-reconciler/pkg/logger"
)

// ReportParser parses one origin's raw report text into records plus a
// summary. It is safe for concurrent use; parsing is a pure function of
// its input.
type ReportParser struct {
	config      *Config
	linePattern *regexp.Regexp
	taxPattern  *regexp.Regexp
	logger      logger.Logger
}

// NewReportParser creates a ReportParser with the given configuration.
func NewReportParser(config *Config) (*ReportParser, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError("report_parser", err.Error())
	}

	linePattern := regexp.MustCompile(
		`^\s*(\S+)\s+(.+)\s+(\S+)\s+(\S+)\s+` +
			regexp.QuoteMeta(config.UnitMarker) +
			`\s+([0-9.,]+)\s+([0-9.,]+)\s*$`)

	var taxPattern *regexp.Regexp
	if config.TaxLabelPattern != "" {
		taxPattern = regexp.MustCompile(config.TaxLabelPattern)
	}

	return &ReportParser{
		config:      config,
		linePattern: linePattern,
		taxPattern:  taxPattern,
		logger:      logger.WithComponent("report_parser"),
	}, nil
}

// Parse consumes one decoded report text and emits its records and
// summary. It never fails: malformed or empty input yields an empty
// record list and a zero-valued summary, and downstream stages must
// treat "no records" as a valid, if unhelpful, outcome.
//
// expectedOrigin is recorded for logging only; the detected identity on
// the summary is derived from the text itself, and the caller is
// responsible for warning the operator when the two disagree.
func (p *ReportParser) Parse(text, sourceLabel string, expectedOrigin models.Origin) ([]*models.RawRecord, *models.ReportSummary) {
	summary := &models.ReportSummary{
		SourceLabel: sourceLabel,
		SourceSize:  len(text),
	}

	summary.DetectedIdentity = p.detectIdentity(text)
	if display, raw, ok := ExtractPeriod(text, p.config.HeaderScanLines); ok {
		summary.PeriodDisplay = display
		summary.PeriodRaw = raw
	}
	summary.TotalTax = p.config.Numeric.ExtractTax(text, p.taxPattern)

	var records []*models.RawRecord
	for _, line := range strings.Split(text, "\n") {
		record, ok := p.parseLine(line)
		if !ok {
			if strings.TrimSpace(line) != "" {
				summary.SkippedLines++
			}
			continue
		}
		records = append(records, record)
		summary.MatchedLines++
		summary.TotalQuantity = summary.TotalQuantity.Add(record.Quantity)
		summary.TotalValue = summary.TotalValue.Add(record.Total)
	}

	p.logger.WithFields(logger.Fields{
		"source":          sourceLabel,
		"expected_origin": expectedOrigin.String(),
		"detected_origin": summary.DetectedIdentity.String(),
		"matched_lines":   summary.MatchedLines,
		"skipped_lines":   summary.SkippedLines,
	}).Debug("Parsed report")

	return records, summary
}

// parseLine applies the line grammar to a single line. ok is false for
// the expected noise (headers, footers, blanks) around the data lines.
func (p *ReportParser) parseLine(line string) (*models.RawRecord, bool) {
	m := p.linePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	description := strings.TrimSpace(m[2])

	return &models.RawRecord{
		LineKey:     m[1],
		Description: description,
		Category:    lastToken(description),
		Reference:   m[3],
		Quantity:    p.config.Numeric.ParseDecimal(m[5]),
		Total:       p.config.Numeric.ParseDecimal(m[6]),
	}, true
}

// detectIdentity scans the text for one of the two origin marker
// phrases. When both appear (a malformed composite export) origin A's
// marker wins, matching the slot-preference used elsewhere.
func (p *ReportParser) detectIdentity(text string) models.Origin {
	if strings.Contains(text, p.config.MarkerA) {
		return models.OriginA
	}
	if strings.Contains(text, p.config.MarkerB) {
		return models.OriginB
	}
	return models.OriginUnknown
}

func lastToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
