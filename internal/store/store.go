// Package store persists one dataset document per calendar day as a JSON
// file, replaced atomically on every write, plus an append-only archive of
// raw trending pages.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bilitrend/internal/dataset"
)

// ErrNotFound marks a missing daily document. Harvesters that depend on
// prior state treat it as a fatal precondition failure.
var ErrNotFound = errors.New("daily dataset not found")

// Store reads and writes daily documents under dir.
type Store struct {
	dir string
}

// New creates a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// DailyPath returns the path of the document for a day.
func (s *Store) DailyPath(day string) string {
	return filepath.Join(s.dir, "daily", day+".json")
}

// Load reads the dataset for a day. A missing document yields an error
// wrapping ErrNotFound.
func (s *Store) Load(day string) (*dataset.Dataset, error) {
	path := s.DailyPath(day)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read daily dataset: %w", err)
	}

	var ds dataset.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse daily dataset %s: %w", path, err)
	}
	ds.Reindex()
	return &ds, nil
}

// LoadOrInit reads the dataset for a day, or builds the empty skeleton when
// no document exists yet.
func (s *Store) LoadOrInit(day string, now int64) (*dataset.Dataset, error) {
	ds, err := s.Load(day)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return dataset.New(day, now), nil
		}
		return nil, err
	}
	return ds, nil
}

// Save writes the whole document for a day in one atomic replace: marshal,
// write to a temporary path, rename over the final one. No reader can ever
// observe a half-written document.
func (s *Store) Save(day string, ds *dataset.Dataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal daily dataset: %w", err)
	}
	return atomicWrite(s.DailyPath(day), data)
}

// SaveRaw archives one raw trending page payload. Filenames carry the
// capture time and page number so successive runs never collide.
func (s *Store) SaveRaw(ts time.Time, page int, payload []byte) (string, error) {
	name := fmt.Sprintf("%s_pn%d.json", ts.Format("2006-01-02T150405"), page)
	path := filepath.Join(s.dir, "raw", "popular", name)
	if err := atomicWrite(path, payload); err != nil {
		return "", err
	}
	return path, nil
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
