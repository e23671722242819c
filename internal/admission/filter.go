// Package admission decides whether a candidate repository is worth
// cloning and scanning.
package admission

import (
	"strconv"
	"strings"

	"secretsweep/models"
)

// UnknownPolicy says what to do with metadata that could not be resolved.
type UnknownPolicy int

const (
	// FailOpen lets unknown size, visibility or commit year through.
	FailOpen UnknownPolicy = iota
	// FailClosed rejects a candidate at the first unknown value.
	FailClosed
)

func (p UnknownPolicy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

type Config struct {
	MaxSizeKB int
	MinYear   int
	Unknown   UnknownPolicy
}

// Filter is the ordered predicate cascade: visibility, size ceiling,
// activity recency. The first rejecting predicate wins.
type Filter struct {
	cfg Config
}

func NewFilter(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

func (f *Filter) Config() Config {
	return f.cfg
}

// Evaluate runs the whole cascade.
func (f *Filter) Evaluate(meta models.RepositoryMetadata, activity models.Activity) models.Verdict {
	if v := f.EvaluateMetadata(meta); v != models.Admit {
		return v
	}
	return f.EvaluateActivity(activity)
}

// EvaluateMetadata runs the visibility and size steps. It lets callers
// skip the commit-history lookup for candidates already rejected.
func (f *Filter) EvaluateMetadata(meta models.RepositoryMetadata) models.Verdict {
	switch {
	case meta.Private != nil && *meta.Private:
		return models.RejectPrivate
	case meta.Private == nil && f.cfg.Unknown == FailClosed:
		return models.RejectPrivate
	}

	switch {
	case meta.SizeKB != nil && *meta.SizeKB > f.cfg.MaxSizeKB:
		return models.RejectTooLarge
	case meta.SizeKB == nil && f.cfg.Unknown == FailClosed:
		return models.RejectTooLarge
	}
	return models.Admit
}

// EvaluateActivity runs the recency step.
func (f *Filter) EvaluateActivity(activity models.Activity) models.Verdict {
	year, ok := CommitYear(activity.Timestamp)
	switch {
	case ok && year < f.cfg.MinYear:
		return models.RejectStale
	case !ok && f.cfg.Unknown == FailClosed:
		return models.RejectStale
	}
	return models.Admit
}

// CommitYear extracts the leading year of an ISO-8601 timestamp by
// taking everything before the first '-'. Anything unparseable reports
// ok=false.
func CommitYear(timestamp string) (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(timestamp), "-")
	year, err := strconv.Atoi(head)
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
