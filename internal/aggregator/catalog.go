package aggregator

import (
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"sales-export-reconciler/pkg/errors"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Catalog is the read-only product catalog collaborator. Implementations
// resolve a commercial reference name to its canonical product code.
type Catalog interface {
	// LookupByName returns the canonical product code for an exact
	// reference name, or ok=false when the reference is not cataloged.
	LookupByName(name string) (code string, ok bool)
}

// MapCatalog is an in-memory Catalog backed by a name-to-code map.
type MapCatalog map[string]string

// LookupByName implements Catalog.
func (m MapCatalog) LookupByName(name string) (string, bool) {
	code, ok := m[name]
	return code, ok
}

// EmptyCatalog resolves nothing; every reference falls back to its
// report-local identifier.
var EmptyCatalog Catalog = MapCatalog(nil)

// FileCatalog is a Catalog loaded from a semicolon-separated export of
// the canonical product table (code;name per row). Names are indexed in
// a normalized form (uppercase, accents stripped, whitespace collapsed)
// so that minor formatting drift in the legacy exports still hits.
type FileCatalog struct {
	byName map[string]string
}

var (
	nonAlphanumericPattern = regexp.MustCompile(`[^A-Z0-9 ]+`)
	whitespacePattern      = regexp.MustCompile(`\s+`)
)

// normalizeName strips accents and collapses the name to uppercase
// alphanumeric tokens.
func normalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	result = strings.ToUpper(result)
	result = nonAlphanumericPattern.ReplaceAllString(result, " ")
	result = whitespacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// LoadFileCatalog reads a catalog export from disk. decode converts the
// file bytes from the export's encoding; pass nil for UTF-8 input.
func LoadFileCatalog(path string, decode func([]byte) (string, error)) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.CatalogError(path, err)
	}

	text := string(data)
	if decode != nil {
		text, err = decode(data)
		if err != nil {
			return nil, errors.CatalogError(path, err)
		}
	}

	return ParseFileCatalog(strings.NewReader(text))
}

// ParseFileCatalog builds a FileCatalog from semicolon-separated rows of
// the form "code;name". Rows without both fields are skipped; the first
// occurrence of a name wins.
func ParseFileCatalog(r io.Reader) (*FileCatalog, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.CatalogError("catalog data", err)
	}

	byName := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		code := strings.TrimSpace(row[0])
		name := normalizeName(row[1])
		if code == "" || name == "" {
			continue
		}
		if _, exists := byName[name]; !exists {
			byName[name] = code
		}
	}

	return &FileCatalog{byName: byName}, nil
}

// LookupByName implements Catalog.
func (c *FileCatalog) LookupByName(name string) (string, bool) {
	code, ok := c.byName[normalizeName(name)]
	return code, ok
}

// Len returns the number of cataloged names.
func (c *FileCatalog) Len() int {
	return len(c.byName)
}
