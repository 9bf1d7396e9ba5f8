package parsers

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NumericFormat describes the regional numeric convention used by the
// sales exports: a thousands separator that must be stripped and a
// decimal separator that must be canonicalized before parsing.
type NumericFormat struct {
	ThousandsSeparator string `json:"thousands_separator"`
	DecimalSeparator   string `json:"decimal_separator"`
}

// DefaultNumericFormat returns the convention of the legacy exports:
// "." for thousands, "," for decimals.
func DefaultNumericFormat() NumericFormat {
	return NumericFormat{
		ThousandsSeparator: ".",
		DecimalSeparator:   ",",
	}
}

// ParseDecimal converts a region-formatted decimal string into a decimal
// value. Empty or unparseable input yields zero rather than an error;
// source files routinely contain blank cells and the pipeline treats
// them as zero amounts.
func (f NumericFormat) ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	if f.ThousandsSeparator != "" {
		s = strings.ReplaceAll(s, f.ThousandsSeparator, "")
	}
	if f.DecimalSeparator != "" && f.DecimalSeparator != "." {
		s = strings.ReplaceAll(s, f.DecimalSeparator, ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatDecimal renders a decimal value back into the regional
// convention with the given number of decimal places. Thousands
// separators are only inserted when the convention defines one.
func (f NumericFormat) FormatDecimal(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}

	if f.ThousandsSeparator != "" {
		var groups []string
		for len(intPart) > 3 {
			groups = append([]string{intPart[len(intPart)-3:]}, groups...)
			intPart = intPart[:len(intPart)-3]
		}
		groups = append([]string{intPart}, groups...)
		intPart = strings.Join(groups, f.ThousandsSeparator)
	}

	out := intPart
	if fracPart != "" {
		sep := f.DecimalSeparator
		if sep == "" {
			sep = "."
		}
		out += sep + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

const periodDateLayout = "02/01/2006"

// periodPattern matches the declared reporting window in report headers:
// "... DD/MM/YYYY a DD/MM/YYYY".
var periodPattern = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s*a\s*(\d{2}/\d{2}/\d{4})`)

// ExtractPeriod scans the first maxLines lines of the header text for a
// declared reporting window. It returns the window as printed (display)
// and in a canonical whitespace-free form (raw) used to compare the two
// origins' periods. ok is false when no window is found.
func ExtractPeriod(headerText string, maxLines int) (display, raw string, ok bool) {
	lines := strings.Split(headerText, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	for _, line := range lines {
		m := periodPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start, end := m[1], m[2]
		display = start + " a " + end
		raw = canonicalPeriod(start) + "-" + canonicalPeriod(end)
		return display, raw, true
	}
	return "", "", false
}

func canonicalPeriod(date string) string {
	return strings.ReplaceAll(date, "/", "")
}

// ParsePeriodEnd returns the end date of a canonical period raw string
// produced by ExtractPeriod. ok is false for empty or malformed input.
func ParsePeriodEnd(raw string) (time.Time, bool) {
	idx := strings.IndexByte(raw, '-')
	if idx < 0 || len(raw) != idx+1+8 {
		return time.Time{}, false
	}
	end := raw[idx+1:]
	t, err := time.Parse("02012006", end)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractTax scans the full report text for the labeled tax-total line
// and parses its amount. Returns zero when the label is absent; many
// exports omit the tax summary entirely.
func (f NumericFormat) ExtractTax(fullText string, pattern *regexp.Regexp) decimal.Decimal {
	if pattern == nil {
		return decimal.Zero
	}
	m := pattern.FindStringSubmatch(fullText)
	if m == nil || len(m) < 2 {
		return decimal.Zero
	}
	return f.ParseDecimal(m[1])
}
