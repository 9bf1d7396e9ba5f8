// Package errors defines the categorized error type shared by every stage
// of the reconciliation engine.
//
// Errors carry a category, a machine-readable code, an optional suggestion
// for the operator and arbitrary context values. Categories map onto CLI
// exit codes so calling scripts can distinguish a bad input file from a
// blocked write.
//
// Two conditions deserve special mention:
//   - Parse noise (unmatched report lines, missing header fields) is never
//     represented as an error at all; the parsers count and skip it.
//   - Validation guards (backdated import, negative totals) block the
//     final write but are overridable; use IsOverridable to detect them.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by the subsystem that produced them.
type Category string

const (
	CategoryFile        Category = "file"
	CategoryParse       Category = "parse"
	CategoryConfig      Category = "config"
	CategoryValidation  Category = "validation"
	CategoryCatalog     Category = "catalog"
	CategoryPersistence Category = "persistence"
	CategoryInternal    Category = "internal"
)

// Code identifies a specific error condition within a category.
type Code string

const (
	// File errors
	CodeFileNotFound   Code = "file_not_found"
	CodeFilePermission Code = "file_permission"
	CodeFileUnreadable Code = "file_unreadable"

	// Parse errors (hard failures only; skipped lines are not errors)
	CodeEncodingError Code = "encoding_error"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"
	CodeInvalidRules  Code = "invalid_rules"

	// Validation guard codes. These are the recognizable markers the
	// store contract requires: callers match on them to decide whether
	// an operator override may be offered.
	CodeBackdatedImport Code = "backdated_import"
	CodeNegativeTotal   Code = "negative_total"

	// Catalog errors
	CodeCatalogUnavailable Code = "catalog_unavailable"

	// Persistence errors
	CodeWriteFailed Code = "write_failed"

	// Internal errors
	CodeUnexpected Code = "unexpected_error"
)

// Error is the categorized error type used throughout the engine.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries additional key/value information about an error.
type Context map[string]interface{}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps the error category to a process exit code.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse:
		return 3
	case CategoryConfig:
		return 4
	case CategoryValidation:
		return 5
	case CategoryCatalog, CategoryPersistence:
		return 6
	case CategoryInternal:
		return 7
	default:
		return 1
	}
}

// WithContext attaches a context value to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches an operator-facing suggestion.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new categorized error with a captured stack trace.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// FileError creates a file-access error for the given path.
func FileError(code Code, path string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check that the report path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("cannot read file: %s", path)
		suggestion = "verify the file is a readable report export"
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}
	return result.WithSuggestion(suggestion).WithContext("file_path", path)
}

// EncodingError creates an error for a report blob that cannot be decoded
// with the configured source encoding.
func EncodingError(encoding string, err error) *Error {
	return Wrap(err, CategoryParse, CodeEncodingError,
		fmt.Sprintf("cannot decode report text as %s", encoding)).
		WithSuggestion("check the --encoding flag against the export's actual encoding").
		WithContext("encoding", encoding)
}

// ConfigError creates a configuration error for a specific setting.
func ConfigError(setting string, value interface{}) *Error {
	return New(CategoryConfig, CodeInvalidConfig,
		fmt.Sprintf("invalid configuration for '%s': %v", setting, value)).
		WithSuggestion("check the configuration documentation for valid values").
		WithContext("setting", setting).
		WithContext("value", value)
}

// RulesError creates a fail-fast error for an invalid category rules table.
// Rules problems are programmer/configuration errors, never swallowed.
func RulesError(detail string) *Error {
	return New(CategoryConfig, CodeInvalidRules,
		fmt.Sprintf("invalid category rules: %s", detail)).
		WithSuggestion("fix the rules table before running the pipeline")
}

// GuardError creates a validation-guard error. Guard errors block the
// final write; callers detect them with IsOverridable and may re-invoke
// with an explicit operator override.
func GuardError(code Code, detail string) *Error {
	var message, suggestion string
	switch code {
	case CodeBackdatedImport:
		message = fmt.Sprintf("backdated import: %s", detail)
		suggestion = "confirm the report period with the operator, then re-run with --override"
	case CodeNegativeTotal:
		message = fmt.Sprintf("negative total value: %s", detail)
		suggestion = "inspect the flagged product rows, then re-run with --override if intended"
	default:
		message = detail
		suggestion = "review the validation failure before forcing the write"
	}
	return New(CategoryValidation, code, message).WithSuggestion(suggestion)
}

// CatalogError creates an error for a catalog that cannot be loaded.
func CatalogError(source string, err error) *Error {
	return Wrap(err, CategoryCatalog, CodeCatalogUnavailable,
		fmt.Sprintf("product catalog unavailable: %s", source)).
		WithSuggestion("check the catalog source; reconciliation can proceed without canonical codes").
		WithContext("source", source)
}

// PersistenceError creates an error for a failed store write.
func PersistenceError(target string, err error) *Error {
	return Wrap(err, CategoryPersistence, CodeWriteFailed,
		fmt.Sprintf("failed to persist series to %s", target)).
		WithSuggestion("check the store target and retry; writes are idempotent").
		WithContext("target", target)
}

// InternalError creates an error for unexpected conditions.
func InternalError(operation string, err error) *Error {
	return Wrap(err, CategoryInternal, CodeUnexpected,
		fmt.Sprintf("unexpected error during %s", operation)).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// IsOverridable reports whether the error is a validation guard that an
// explicit operator override can bypass.
func IsOverridable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	return e.Category == CategoryValidation &&
		(e.Code == CodeBackdatedImport || e.Code == CodeNegativeTotal)
}

// HasMarker reports whether the error chain carries the given guard code.
// The code strings double as the wire markers the store contract exposes,
// so this also matches markers embedded in plain error text.
func HasMarker(err error, code Code) bool {
	if err == nil {
		return false
	}
	if e, ok := AsError(err); ok && e.Code == code {
		return true
	}
	return strings.Contains(err.Error(), string(code))
}

// IsError checks if an error is a categorized Error.
func IsError(err error) bool {
	_, ok := err.(*Error)
	return ok
}

// AsError extracts a categorized Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ExitCodeFor returns the exit code for any error, defaulting to 1 for
// uncategorized errors and 0 for nil.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := AsError(err); ok {
		return e.ExitCode()
	}
	return 1
}
