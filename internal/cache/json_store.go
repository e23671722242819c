package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"secretsweep/models"
)

// fileFormat is the on-disk layout, shared with earlier versions of the
// scanner.
type fileFormat struct {
	Repos     []string `json:"repos"`
	LastScan  *string  `json:"last_scan"`
	ScanCount int      `json:"scan_count"`
}

// JSONStore keeps the state in one JSON file, rewritten on every save.
type JSONStore struct {
	path string
	now  func() time.Time
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return Empty(), fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, s.path, err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return Empty(), fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, s.path, err)
	}

	st := Empty()
	for _, r := range f.Repos {
		st.Repos[r] = struct{}{}
	}
	if f.LastScan != nil {
		st.LastScan = *f.LastScan
	}
	if f.ScanCount > 0 {
		st.ScanCount = f.ScanCount
	}
	return st, nil
}

// Save writes previous ∪ seen. The file is replaced through a rename so
// an interrupted save leaves the old state intact.
func (s *JSONStore) Save(seen []string, previous State) error {
	next := Merge(previous, seen, s.now())
	lastScan := next.LastScan
	data, err := json.MarshalIndent(fileFormat{
		Repos:     next.Sorted(),
		LastScan:  &lastScan,
		ScanCount: next.ScanCount,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scan-cache-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
