// Package reporter renders reconciliation results for operators.
//
// Three views are produced from one pipeline result: the per-source
// parse summaries, the consolidated ledger with split ratios and
// anomaly flags, and the per-product aggregate. Output formats:
//
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: ledger and product rows for spreadsheet applications
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"sales-export-reconciler/internal/models"
	"sales-export-reconciler/internal/pipeline"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options.
	IncludeLedger   bool `json:"include_ledger"`
	IncludeProducts bool `json:"include_products"`
	AnomaliesOnly   bool `json:"anomalies_only"`

	// CSV options.
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatConsole,
		IncludeLedger:   true,
		IncludeProducts: true,
		AnomaliesOnly:   false,
		CSVDelimiter:    ',',
		CSVHeaders:      true,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders pipeline results in the configured format.
type ReportGenerator struct {
	config *ReportConfig
	now    func() time.Time
}

// NewReportGenerator creates a report generator with the specified
// configuration. A nil config selects the defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config, now: time.Now}, nil
}

// GenerateReport writes the result to the provided writer.
func (rg *ReportGenerator) GenerateReport(result *pipeline.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *pipeline.Result, writer io.Writer) error {
	fmt.Fprintf(writer, "SALES EXPORT RECONCILIATION\n")
	fmt.Fprintf(writer, "Generated: %s\n", rg.now().Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", result.Elapsed)

	fmt.Fprintf(writer, "=== SOURCES ===\n")
	rg.printSourceSummary(result.SummaryA, writer)
	rg.printSourceSummary(result.SummaryB, writer)
	fmt.Fprintf(writer, "\n")

	if len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "=== WARNINGS ===\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(writer, "  ! %s\n", w)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeLedger {
		rows, cells := result.Ledger.AnomalyCounts()
		fmt.Fprintf(writer, "=== CONSOLIDATED LEDGER (%d items, %d quantity anomalies, %d split anomalies) ===\n",
			result.Ledger.Len(), rows, cells)
		rg.printLedger(result.Ledger, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeProducts {
		fmt.Fprintf(writer, "=== PRODUCTS (%d) ===\n", len(result.Products))
		rg.printProducts(result.Products, writer)
	}

	return nil
}

func (rg *ReportGenerator) printSourceSummary(summary *models.ReportSummary, writer io.Writer) {
	identity := summary.DetectedIdentity.String()
	fmt.Fprintf(writer, "%s (origin %s):\n", summary.SourceLabel, identity)
	fmt.Fprintf(writer, "  Matched Lines:  %d\n", summary.MatchedLines)
	fmt.Fprintf(writer, "  Skipped Lines:  %d\n", summary.SkippedLines)
	fmt.Fprintf(writer, "  Total Quantity: %s\n", summary.TotalQuantity.StringFixed(2))
	fmt.Fprintf(writer, "  Total Value:    %s\n", summary.TotalValue.StringFixed(2))
	if !summary.TotalTax.IsZero() {
		fmt.Fprintf(writer, "  Total Tax:      %s\n", summary.TotalTax.StringFixed(2))
	}
	if summary.HasPeriod() {
		fmt.Fprintf(writer, "  Period:         %s\n", summary.PeriodDisplay)
	}
}

func (rg *ReportGenerator) printLedger(ledger *models.ConsolidatedLedger, writer io.Writer) {
	fmt.Fprintf(writer, "%-10s %-16s %-12s %-6s %10s %10s %12s %12s %8s %s\n",
		"KEY", "REFERENCE", "CATEGORY", "ORIGIN", "QTY A", "QTY B", "VALUE A", "VALUE B", "SPLIT", "FLAGS")
	for _, item := range ledger.Items {
		if rg.config.AnomaliesOnly && !item.RowAnomaly && !item.CellAnomaly {
			continue
		}
		fmt.Fprintf(writer, "%-10s %-16s %-12s %-6s %10s %10s %12s %12s %8s %s\n",
			item.Key,
			item.Reference,
			item.Category,
			item.Presence,
			item.QuantityA.StringFixed(2),
			item.QuantityB.StringFixed(2),
			item.ValueA.StringFixed(2),
			item.ValueB.StringFixed(2),
			item.SplitDisplay,
			anomalyFlags(item))
	}
}

func (rg *ReportGenerator) printProducts(products []*models.ProductSummary, writer io.Writer) {
	fmt.Fprintf(writer, "%-16s %-12s %-10s %12s %14s\n",
		"REFERENCE", "CODE", "CATALOGED", "QUANTITY", "VALUE")
	for _, p := range products {
		fmt.Fprintf(writer, "%-16s %-12s %-10v %12s %14s\n",
			p.Reference,
			p.CanonicalCode,
			p.IsCanonical,
			p.QuantityTotal.StringFixed(2),
			p.ValueTotal.StringFixed(2))
	}
}

func anomalyFlags(item *models.ConsolidatedItem) string {
	switch {
	case item.RowAnomaly:
		return "QTY-MISMATCH"
	case item.CellAnomaly:
		return "SPLIT-DEVIATION"
	default:
		return "-"
	}
}

func (rg *ReportGenerator) generateJSONReport(result *pipeline.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(result))
}

func (rg *ReportGenerator) filterResultForOutput(result *pipeline.Result) map[string]interface{} {
	output := map[string]interface{}{
		"generated_at": rg.now(),
		"source_a":     result.SummaryA,
		"source_b":     result.SummaryB,
		"warnings":     result.Warnings,
	}

	if rg.config.IncludeLedger {
		items := result.Ledger.Items
		if rg.config.AnomaliesOnly {
			filtered := make([]*models.ConsolidatedItem, 0)
			for _, item := range items {
				if item.RowAnomaly || item.CellAnomaly {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}
		output["ledger"] = items
	}

	if rg.config.IncludeProducts {
		output["products"] = result.Products
	}

	return output
}

func (rg *ReportGenerator) generateCSVReport(result *pipeline.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Type",
			"Key",
			"Reference",
			"Category_Or_Code",
			"Origin",
			"Quantity_A",
			"Quantity_B",
			"Quantity_Total",
			"Value_A",
			"Value_B",
			"Value_Total",
			"Split",
			"Flags",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if rg.config.IncludeLedger {
		for _, item := range result.Ledger.Items {
			if rg.config.AnomaliesOnly && !item.RowAnomaly && !item.CellAnomaly {
				continue
			}
			record := []string{
				"Ledger Item",
				item.Key,
				item.Reference,
				item.Category,
				item.Presence.String(),
				item.QuantityA.String(),
				item.QuantityB.String(),
				item.QuantityTotal().String(),
				item.ValueA.String(),
				item.ValueB.String(),
				item.ValueTotal().String(),
				item.SplitDisplay,
				anomalyFlags(item),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write ledger record: %w", err)
			}
		}
	}

	if rg.config.IncludeProducts {
		for _, p := range result.Products {
			record := []string{
				"Product",
				"",
				p.Reference,
				p.CanonicalCode,
				"",
				p.QuantityA.String(),
				p.QuantityB.String(),
				p.QuantityTotal.String(),
				p.ValueA.String(),
				p.ValueB.String(),
				p.ValueTotal.String(),
				"",
				fmt.Sprintf("cataloged=%v", p.IsCanonical),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write product record: %w", err)
			}
		}
	}

	return nil
}
