package report

import (
	"fmt"
	"sort"
	"time"

	"secretsweep/models"
)

// SecondsPerSkippedRepo is the rough cost of cloning and scanning one
// repository, used to estimate time saved by skips.
const SecondsPerSkippedRepo = 5

// Tally is a count for one detector type or keyword.
type Tally struct {
	Name  string
	Count int
}

// CountByDetector counts findings per detector type, most frequent first.
// Findings without a detector type are ignored.
func CountByDetector(findings []models.Finding) []Tally {
	return tally(findings, func(f models.Finding) string { return f.DetectorType })
}

// CountByKeyword counts findings per keyword, most frequent first.
func CountByKeyword(findings []models.Finding) []Tally {
	return tally(findings, func(f models.Finding) string { return f.Keyword })
}

func tally(findings []models.Finding, key func(models.Finding) string) []Tally {
	counts := make(map[string]int)
	for _, f := range findings {
		if k := key(f); k != "" {
			counts[k]++
		}
	}
	out := make([]Tally, 0, len(counts))
	for name, n := range counts {
		out = append(out, Tally{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Top returns at most n entries.
func Top(t []Tally, n int) []Tally {
	if len(t) > n {
		return t[:n]
	}
	return t
}

// Summary is the end-of-run digest shared by the log and the mail report.
type Summary struct {
	RunID      string
	Stats      models.RunStatistics
	Findings   []models.Finding
	MinYear    int
	Formats    []string
	Files      []string
	FinishedAt time.Time
}

// Lines renders the summary for the log, one statement per line.
func (s Summary) Lines() []string {
	st := s.Stats
	lines := []string{
		fmt.Sprintf("Total repositories found: %d", st.TotalCandidates),
		fmt.Sprintf("Unique repositories scanned: %d", st.UniqueRepos),
	}
	if st.NewRepos > 0 {
		lines = append(lines, fmt.Sprintf("NEW repositories (not in previous scans): %d repos", st.NewRepos))
	}
	if st.StaleSkipped > 0 {
		lines = append(lines, fmt.Sprintf("Skipped (old, before %d): %d repos", s.MinYear, st.StaleSkipped))
	}
	if st.DuplicatesSkipped > 0 {
		lines = append(lines,
			fmt.Sprintf("Skipped (already scanned): %d repos", st.DuplicatesSkipped),
			fmt.Sprintf("Time saved by caching: ~%d seconds", st.DuplicatesSkipped*SecondsPerSkippedRepo),
		)
	}
	if st.StaleSkipped > 0 {
		lines = append(lines, fmt.Sprintf("Time saved by year filter: ~%d seconds", st.StaleSkipped*SecondsPerSkippedRepo))
	}
	if n := st.PrivateSkipped + st.TooLargeSkipped; n > 0 {
		lines = append(lines, fmt.Sprintf("Skipped (private or too large): %d repos", n))
	}
	if st.CloneFailures > 0 || st.DetectorFailures > 0 {
		lines = append(lines, fmt.Sprintf("Clone failures: %d, detector failures: %d", st.CloneFailures, st.DetectorFailures))
	}
	lines = append(lines,
		fmt.Sprintf("Repositories with secrets found: %d", st.Matched),
		fmt.Sprintf("Scan duration: %.1f seconds", st.Duration.Seconds()),
	)
	return lines
}
