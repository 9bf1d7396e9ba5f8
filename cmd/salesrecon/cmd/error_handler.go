package cmd

import (
	"fmt"
	"os"

	"sales-export-reconciler/pkg/errors"
	"sales-export-reconciler/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message and returns the exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if categorized, ok := errors.AsError(err); ok {
		return h.handleCategorizedError(categorized)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleCategorizedError(err *errors.Error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := categoryHelp(err.Category); help != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "Run with --verbose for more details\n")
	}

	return 1
}

func categoryHelp(category errors.Category) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
  - Check if the file exists and is readable
  - Verify the file path is correct (use absolute paths if needed)
  - Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
  - Verify the report file encoding (--encoding utf-8, iso8859-1, windows1252)
  - Check that the export was not truncated or corrupted
  - Unrecognized report lines are skipped, not errors; this failure is structural`

	case errors.CategoryConfig:
		return `Configuration error help:
  - Check the config file syntax and the categories section
  - Verify flag values (markers must be distinct, encoding must be known)
  - Run with --verbose to see which config file was loaded`

	case errors.CategoryValidation:
		return `Validation guard help:
  - Backdated imports and negative totals block the write by default
  - Verify you are importing the intended reporting period
  - Use --override to persist anyway once you have checked the data`

	case errors.CategoryCatalog:
		return `Catalog error help:
  - Check the catalog file exists and uses the code;name layout
  - Verify the catalog encoding matches the --encoding flag`

	case errors.CategoryPersistence:
		return `Persistence error help:
  - Check the store directory exists and is writable
  - Verify there is sufficient disk space
  - Inspect the series JSON file for corruption`

	default:
		return ""
	}
}
