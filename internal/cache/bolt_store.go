package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"secretsweep/models"
)

var (
	reposBucket = []byte("repos")
	metaBucket  = []byte("meta")
	keyLastScan = []byte("last_scan")
	keyCount    = []byte("scan_count")
)

// BoltStore keeps the state in a bbolt file: one key per repository
// (value: the run that first saw it) plus run metadata.
type BoltStore struct {
	path    string
	timeout time.Duration
	now     func() time.Time
}

func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path, timeout: time.Second, now: time.Now}
}

func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) open(readOnly bool) (*bolt.DB, error) {
	return bolt.Open(s.path, 0o600, &bolt.Options{Timeout: s.timeout, ReadOnly: readOnly})
}

func (s *BoltStore) Load() (State, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return Empty(), nil
	}

	db, err := s.open(true)
	if err != nil {
		return Empty(), fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, s.path, err)
	}
	defer db.Close()

	st := Empty()
	err = db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(reposBucket); b != nil {
			if err := b.ForEach(func(k, _ []byte) error {
				st.Repos[string(k)] = struct{}{}
				return nil
			}); err != nil {
				return err
			}
		}
		if b := tx.Bucket(metaBucket); b != nil {
			st.LastScan = string(b.Get(keyLastScan))
			if n, err := strconv.Atoi(string(b.Get(keyCount))); err == nil {
				st.ScanCount = n
			}
		}
		return nil
	})
	if err != nil {
		return Empty(), fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, s.path, err)
	}
	return st, nil
}

// Save adds previous ∪ seen in one transaction. An unreadable file is
// moved aside and replaced.
func (s *BoltStore) Save(seen []string, previous State) error {
	db, err := s.open(false)
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		if db, err = s.open(false); err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
	}
	defer db.Close()

	next := Merge(previous, seen, s.now())
	return db.Update(func(tx *bolt.Tx) error {
		repos, err := tx.CreateBucketIfNotExists(reposBucket)
		if err != nil {
			return err
		}
		run := []byte(strconv.Itoa(next.ScanCount))
		for r := range next.Repos {
			if repos.Get([]byte(r)) != nil {
				continue
			}
			if err := repos.Put([]byte(r), run); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if err := meta.Put(keyLastScan, []byte(next.LastScan)); err != nil {
			return err
		}
		return meta.Put(keyCount, run)
	})
}
