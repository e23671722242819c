// Package cache persists the set of repositories seen by previous runs.
// The state only grows: every save writes the union of what was loaded
// and what the current run observed.
package cache

import (
	"sort"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// State is the persisted cross-run record. Keys of Repos are canonical
// repository browse URLs.
type State struct {
	Repos     map[string]struct{}
	LastScan  string
	ScanCount int
}

func Empty() State {
	return State{Repos: make(map[string]struct{})}
}

// Contains reports whether url was seen by an earlier run.
func (s State) Contains(url string) bool {
	_, ok := s.Repos[url]
	return ok
}

func (s State) Len() int {
	return len(s.Repos)
}

// Sorted returns the identifiers in lexical order.
func (s State) Sorted() []string {
	out := make([]string, 0, len(s.Repos))
	for r := range s.Repos {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Merge returns previous ∪ seen with a fresh timestamp and the run
// counter advanced by one. previous is not modified.
func Merge(previous State, seen []string, now time.Time) State {
	next := State{
		Repos:     make(map[string]struct{}, len(previous.Repos)+len(seen)),
		LastScan:  now.Format(timeLayout),
		ScanCount: previous.ScanCount + 1,
	}
	for r := range previous.Repos {
		next.Repos[r] = struct{}{}
	}
	for _, r := range seen {
		if r != "" {
			next.Repos[r] = struct{}{}
		}
	}
	return next
}

// Store loads and saves State. Load never fails hard: an absent or
// unreadable store yields Empty() and, for unreadable ones, an error
// wrapping models.ErrCacheCorrupt for the caller to log.
type Store interface {
	Load() (State, error)
	Save(seen []string, previous State) error
	Path() string
}
