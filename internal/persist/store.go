package persist

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"sales-export-reconciler/pkg/errors"
)

// Store is the persistence boundary for reconciled series. LatestDate
// reports the most recent effective date already written for a series,
// with found=false when the series has no data. UpsertSeries writes the
// payload idempotently: rows replace existing rows with the same
// (reference, canonicalCode) key rather than accumulating.
type Store interface {
	LatestDate(ctx context.Context, series string) (latest time.Time, found bool, err error)
	UpsertSeries(ctx context.Context, payload *Payload) error
}

// storedSeries is the on-disk shape of one series document.
type storedSeries struct {
	Series      string                  `json:"series"`
	LastBatchID string                  `json:"lastBatchId"`
	Dates       []string                `json:"dates"`
	Rows        map[string]UpsertRecord `json:"rows"`
}

// FileStore persists series as one JSON document per series under a
// base directory. It is intended for local runs and tests; swapping in
// a database-backed Store changes nothing upstream.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.PersistenceError(dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(series string) string {
	return filepath.Join(s.dir, series+".json")
}

func (s *FileStore) load(series string) (*storedSeries, error) {
	data, err := os.ReadFile(s.path(series))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.PersistenceError(s.path(series), err)
	}
	doc := &storedSeries{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.PersistenceError(s.path(series), err)
	}
	return doc, nil
}

// LatestDate returns the maximum effective date recorded for the series.
func (s *FileStore) LatestDate(ctx context.Context, series string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	doc, err := s.load(series)
	if err != nil {
		return time.Time{}, false, err
	}
	if doc == nil || len(doc.Dates) == 0 {
		return time.Time{}, false, nil
	}

	var latest time.Time
	for _, raw := range doc.Dates {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		if d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return time.Time{}, false, nil
	}
	return latest, true, nil
}

// UpsertSeries merges the payload rows into the series document and
// records the effective date. Replaying the same payload leaves the
// document unchanged apart from being rewritten byte-identically.
func (s *FileStore) UpsertSeries(ctx context.Context, payload *Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := s.load(payload.Series)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &storedSeries{Series: payload.Series, Rows: make(map[string]UpsertRecord)}
	}

	for _, record := range payload.Records {
		doc.Rows[record.UpsertKey()] = record
	}

	date := payload.EffectiveDate.Format("2006-01-02")
	seen := false
	for _, existing := range doc.Dates {
		if existing == date {
			seen = true
			break
		}
	}
	if !seen {
		doc.Dates = append(doc.Dates, date)
	}
	doc.LastBatchID = payload.BatchID

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.PersistenceError(payload.Series, err)
	}

	tmp := s.path(payload.Series) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.PersistenceError(tmp, err)
	}
	if err := os.Rename(tmp, s.path(payload.Series)); err != nil {
		return errors.PersistenceError(s.path(payload.Series), err)
	}
	return nil
}
