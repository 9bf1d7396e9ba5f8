package parsers

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Supported source encodings. The legacy report generators emit
// single-byte encodings; new ones emit UTF-8.
const (
	EncodingUTF8        = "utf-8"
	EncodingISO8859_1   = "iso8859-1"
	EncodingWindows1252 = "windows1252"
)

// DefaultTaxLabelPattern matches the labeled tax-total line emitted by
// the report generators, e.g. "TOTAL TAX: 1.234,56".
const DefaultTaxLabelPattern = `(?i)TOTAL\s+TAX\s*[:.]?\s*([0-9.,]+)`

// Config holds the report parser configuration: source encoding, the
// line-grammar unit marker, the origin identity markers and the numeric
// convention.
type Config struct {
	// Encoding is the source text encoding of the report blobs.
	Encoding string `json:"encoding"`

	// UnitMarker is the literal token that anchors the line grammar
	// immediately before the quantity and total columns.
	UnitMarker string `json:"unit_marker"`

	// MarkerA and MarkerB are the two disjoint phrases identifying which
	// origin produced a report. The detector records whichever is found,
	// independent of the slot the report was loaded into.
	MarkerA string `json:"marker_a"`
	MarkerB string `json:"marker_b"`

	// HeaderScanLines bounds the period search to the top of the report.
	HeaderScanLines int `json:"header_scan_lines"`

	// TaxLabelPattern is the regexp (one capture group: the amount) for
	// the tax-total line.
	TaxLabelPattern string `json:"tax_label_pattern"`

	Numeric NumericFormat `json:"numeric"`
}

// DefaultConfig returns the configuration matching the current report
// generators.
func DefaultConfig() *Config {
	return &Config{
		Encoding:        EncodingISO8859_1,
		UnitMarker:      "CX",
		MarkerA:         "HEADQUARTERS",
		MarkerB:         "BRANCH",
		HeaderScanLines: 10,
		TaxLabelPattern: DefaultTaxLabelPattern,
		Numeric:         DefaultNumericFormat(),
	}
}

// Validate checks the parser configuration.
func (c *Config) Validate() error {
	if _, err := decoderFor(c.Encoding); err != nil {
		return err
	}

	if strings.TrimSpace(c.UnitMarker) == "" {
		return fmt.Errorf("unit marker cannot be empty")
	}

	if strings.TrimSpace(c.MarkerA) == "" || strings.TrimSpace(c.MarkerB) == "" {
		return fmt.Errorf("both origin markers must be set")
	}
	if strings.Contains(c.MarkerA, c.MarkerB) || strings.Contains(c.MarkerB, c.MarkerA) {
		return fmt.Errorf("origin markers must be disjoint phrases: %q vs %q", c.MarkerA, c.MarkerB)
	}

	if c.HeaderScanLines <= 0 {
		return fmt.Errorf("header scan lines must be positive: %d", c.HeaderScanLines)
	}

	if c.TaxLabelPattern != "" {
		re, err := regexp.Compile(c.TaxLabelPattern)
		if err != nil {
			return fmt.Errorf("invalid tax label pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("tax label pattern needs a capture group for the amount")
		}
	}

	return nil
}

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncodingUTF8, "utf8", "":
		return nil, nil
	case EncodingISO8859_1, "latin1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

// DecodeText converts a raw report blob from the named source encoding
// into a UTF-8 string.
func DecodeText(data []byte, encodingName string) (string, error) {
	decoder, err := decoderFor(encodingName)
	if err != nil {
		return "", err
	}
	if decoder == nil {
		return string(data), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return "", fmt.Errorf("decoding %s text: %w", encodingName, err)
	}
	return string(decoded), nil
}
