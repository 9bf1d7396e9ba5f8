// Package config builds the engine configurations from CLI flags and the
// viper-backed config file.
package config

import (
	"sales-export-reconciler/internal/aggregator"
	"sales-export-reconciler/internal/evaluator"
	"sales-export-reconciler/internal/parsers"
	"sales-export-reconciler/internal/reporter"
	"sales-export-reconciler/pkg/errors"

	"github.com/spf13/viper"
)

// CreateParserConfig builds the report parser configuration, applying
// CLI overrides on top of the defaults.
func CreateParserConfig(encoding, markerA, markerB, unitMarker string) (*parsers.Config, error) {
	config := parsers.DefaultConfig()

	if encoding != "" {
		config.Encoding = encoding
	}
	if markerA != "" {
		config.MarkerA = markerA
	}
	if markerB != "" {
		config.MarkerB = markerB
	}
	if unitMarker != "" {
		config.UnitMarker = unitMarker
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// rawCategoryRule mirrors evaluator.CategoryRule with an optional
// expectation, so a category configured without expected_pct_a means
// "no ratio check" rather than "expect 0%".
type rawCategoryRule struct {
	Bypass       bool `mapstructure:"bypass"`
	ExpectedPctA *int `mapstructure:"expected_pct_a"`
}

// CreateRules builds the category-expectation table from the config
// file's categories section, then applies the bypass-category flag
// override. bypassCategory marks one extra tag as bypass without
// touching the config file; bypassDisplay overrides the fixed split
// string when non-empty.
func CreateRules(bypassCategory, bypassDisplay string) (*evaluator.Rules, error) {
	rules := evaluator.DefaultRules()

	if viper.IsSet("categories") {
		raw := make(map[string]rawCategoryRule)
		if err := viper.UnmarshalKey("categories", &raw); err != nil {
			return nil, errors.ConfigError("categories", err.Error())
		}
		for tag, r := range raw {
			rule := evaluator.CategoryRule{
				Bypass:       r.Bypass,
				ExpectedPctA: evaluator.NoExpectation,
			}
			if r.ExpectedPctA != nil {
				rule.ExpectedPctA = *r.ExpectedPctA
			}
			rules.Categories[tag] = rule
		}
	}

	if bypassCategory != "" {
		rules.Categories[bypassCategory] = evaluator.CategoryRule{
			Bypass:       true,
			ExpectedPctA: evaluator.NoExpectation,
		}
	}
	if bypassDisplay != "" {
		rules.BypassDisplay = bypassDisplay
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadCatalog loads the canonical product catalog, decoding the file
// with the same encoding used for the reports. An empty path means no
// catalog; every reference then falls back to its report-local code.
func LoadCatalog(path, encoding string) (aggregator.Catalog, error) {
	if path == "" {
		return aggregator.EmptyCatalog, nil
	}
	return aggregator.LoadFileCatalog(path, func(data []byte) (string, error) {
		return parsers.DecodeText(data, encoding)
	})
}

// CreateReportConfig creates a report configuration for the specified
// output format.
func CreateReportConfig(format string, anomaliesOnly bool) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.AnomaliesOnly = anomaliesOnly

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	}

	return config
}
