package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sales-export-reconciler/cmd/salesrecon/config"
	"sales-export-reconciler/internal/persist"
	"sales-export-reconciler/internal/pipeline"
	"sales-export-reconciler/internal/reporter"
	"sales-export-reconciler/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	originAFile    string
	originBFile    string
	catalogFile    string
	encodingName   string
	markerA        string
	markerB        string
	unitMarker     string
	bypassCategory string
	bypassDisplay  string
	outputFormat   string
	outputFile     string
	anomaliesOnly  bool
	storeDir       string
	seriesName     string
	override       bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the sales exports of the two origins",
	Long: `Reconcile parses the two origin report files, consolidates them line
by line, evaluates value attribution and anomalies, and aggregates the
result by product against the canonical catalog.

When --store is given the product aggregate is also persisted as an
idempotent monthly series. Backdated imports and negative totals block
the write unless --override is set.

Examples:
  # Report only, no persistence
  salesrecon reconcile --origin-a hq.txt --origin-b branch.txt

  # With catalog lookup and JSON output
  salesrecon reconcile -a hq.txt -b branch.txt \
    --catalog products.csv --output-format json --output-file report.json

  # Persist the monthly series
  salesrecon reconcile -a hq.txt -b branch.txt --store ./series --series monthly-sales

  # Accept a backdated re-import
  salesrecon reconcile -a hq.txt -b branch.txt --store ./series --override`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&originAFile, "origin-a", "a", "", "path to the origin A report file (required)")
	reconcileCmd.Flags().StringVarP(&originBFile, "origin-b", "b", "", "path to the origin B report file (required)")

	// Input interpretation flags
	reconcileCmd.Flags().StringVar(&catalogFile, "catalog", "", "path to the canonical product catalog (code;name CSV)")
	reconcileCmd.Flags().StringVar(&encodingName, "encoding", "", "report file encoding: utf-8, iso8859-1, windows1252")
	reconcileCmd.Flags().StringVar(&markerA, "marker-a", "", "identity marker expected in origin A reports")
	reconcileCmd.Flags().StringVar(&markerB, "marker-b", "", "identity marker expected in origin B reports")
	reconcileCmd.Flags().StringVar(&unitMarker, "unit-marker", "", "unit token that anchors the line grammar")
	reconcileCmd.Flags().StringVar(&bypassCategory, "bypass-category", "", "category tag exempt from anomaly checks")
	reconcileCmd.Flags().StringVar(&bypassDisplay, "bypass-display", "", "fixed split display for bypass categories")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().BoolVar(&anomaliesOnly, "anomalies-only", false, "limit the ledger view to flagged rows")

	// Persistence flags
	reconcileCmd.Flags().StringVar(&storeDir, "store", "", "series store directory (omit to skip persistence)")
	reconcileCmd.Flags().StringVar(&seriesName, "series", "monthly-sales", "series name within the store")
	reconcileCmd.Flags().BoolVar(&override, "override", false, "persist despite backdating or negative-total guards")

	reconcileCmd.MarkFlagRequired("origin-a")
	reconcileCmd.MarkFlagRequired("origin-b")

	// Bind flags to viper
	viper.BindPFlag("origin-a", reconcileCmd.Flags().Lookup("origin-a"))
	viper.BindPFlag("origin-b", reconcileCmd.Flags().Lookup("origin-b"))
	viper.BindPFlag("catalog", reconcileCmd.Flags().Lookup("catalog"))
	viper.BindPFlag("encoding", reconcileCmd.Flags().Lookup("encoding"))
	viper.BindPFlag("marker-a", reconcileCmd.Flags().Lookup("marker-a"))
	viper.BindPFlag("marker-b", reconcileCmd.Flags().Lookup("marker-b"))
	viper.BindPFlag("unit-marker", reconcileCmd.Flags().Lookup("unit-marker"))
	viper.BindPFlag("bypass-category", reconcileCmd.Flags().Lookup("bypass-category"))
	viper.BindPFlag("bypass-display", reconcileCmd.Flags().Lookup("bypass-display"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("anomalies-only", reconcileCmd.Flags().Lookup("anomalies-only"))
	viper.BindPFlag("store", reconcileCmd.Flags().Lookup("store"))
	viper.BindPFlag("series", reconcileCmd.Flags().Lookup("series"))
	viper.BindPFlag("override", reconcileCmd.Flags().Lookup("override"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	originAFile = viper.GetString("origin-a")
	originBFile = viper.GetString("origin-b")
	catalogFile = viper.GetString("catalog")
	encodingName = viper.GetString("encoding")
	markerA = viper.GetString("marker-a")
	markerB = viper.GetString("marker-b")
	unitMarker = viper.GetString("unit-marker")
	bypassCategory = viper.GetString("bypass-category")
	bypassDisplay = viper.GetString("bypass-display")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	anomaliesOnly = viper.GetBool("anomalies-only")
	storeDir = viper.GetString("store")
	seriesName = viper.GetString("series")
	override = viper.GetBool("override")

	if originAFile == "" {
		return fmt.Errorf("origin-a is required")
	}
	if originBFile == "" {
		return fmt.Errorf("origin-b is required")
	}

	if err := validateFileExists(originAFile, "origin A report"); err != nil {
		return err
	}
	if err := validateFileExists(originBFile, "origin B report"); err != nil {
		return err
	}
	if catalogFile != "" {
		if err := validateFileExists(catalogFile, "product catalog"); err != nil {
			return err
		}
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if storeDir != "" && seriesName == "" {
		return fmt.Errorf("series name is required when a store is configured")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Origin A: %s\n", originAFile)
		fmt.Fprintf(os.Stderr, "Origin B: %s\n", originBFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if storeDir != "" {
			fmt.Fprintf(os.Stderr, "Store: %s (series %s)\n", storeDir, seriesName)
		}
	}

	// Create configurations
	parserConfig, err := config.CreateParserConfig(encodingName, markerA, markerB, unitMarker)
	if err != nil {
		return err
	}

	rules, err := config.CreateRules(bypassCategory, bypassDisplay)
	if err != nil {
		return err
	}

	catalog, err := config.LoadCatalog(catalogFile, parserConfig.Encoding)
	if err != nil {
		return err
	}

	service, err := pipeline.NewService(parserConfig, rules, catalog)
	if err != nil {
		return err
	}

	rawA, err := readReport(originAFile)
	if err != nil {
		return err
	}
	rawB, err := readReport(originBFile)
	if err != nil {
		return err
	}

	result, err := service.Run(ctx, &pipeline.Request{
		RawA:   rawA,
		RawB:   rawB,
		LabelA: filepath.Base(originAFile),
		LabelB: filepath.Base(originBFile),
	})
	if err != nil {
		return err
	}

	// Warnings go to stderr so they survive output redirection.
	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	// Generate report
	reportGenerator, err := reporter.NewReportGenerator(config.CreateReportConfig(outputFormat, anomaliesOnly))
	if err != nil {
		return err
	}

	output := os.Stdout
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return errors.FileError(errors.CodeFileUnreadable, outputFile, err)
		}
		defer output.Close()
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return err
	}

	if storeDir != "" {
		if err := persistResult(ctx, result); err != nil {
			return err
		}
	}

	if viper.GetBool("verbose") {
		rows, cells := result.Ledger.AnomalyCounts()
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Consolidated %d items into %d products.\n",
			result.Ledger.Len(), len(result.Products))
		fmt.Fprintf(os.Stderr, "Found %d quantity anomalies and %d split deviations.\n", rows, cells)
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.Elapsed)
	}

	return nil
}

func persistResult(ctx context.Context, result *pipeline.Result) error {
	store, err := persist.NewFileStore(storeDir)
	if err != nil {
		return err
	}

	preparer := persist.NewPreparer(store, seriesName)
	payload, err := preparer.Prepare(ctx, result.Products, result.SummaryA.PeriodRaw, override)
	if err != nil {
		if errors.IsOverridable(err) {
			if e, ok := errors.AsError(err); ok && e.Suggestion == "" {
				e.WithSuggestion("re-run with --override to persist anyway")
			}
		}
		return err
	}

	if err := preparer.Persist(ctx, payload); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Persisted series %s (batch %s, effective %s).\n",
		payload.Series, payload.BatchID, payload.EffectiveDate.Format("2006-01-02"))
	return nil
}

func readReport(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := errors.CodeFileUnreadable
		if os.IsNotExist(err) {
			code = errors.CodeFileNotFound
		} else if os.IsPermission(err) {
			code = errors.CodeFilePermission
		}
		return nil, errors.FileError(code, path, err)
	}
	return data, nil
}
