package models

import "time"

// SearchMode selects the search index a keyword is run against.
type SearchMode int

const (
	ModeCode SearchMode = iota
	ModeIssues
)

func (m SearchMode) String() string {
	if m == ModeIssues {
		return "issues"
	}
	return "code"
}

// SearchHit is one item returned by the search index for a keyword.
// For code search RepoFullName/RepoURL identify the repository; issue
// hits additionally carry the issue fields.
type SearchHit struct {
	Keyword      string
	RepoFullName string // Ex.: "org/repo"
	RepoURL      string // canonical browse URL, used as the repository identifier

	IssueURL   string
	IssueTitle string
	IssueBody  string
}

// RepositoryMetadata holds the per-repository lookup result. Nil pointers
// mean the value could not be resolved.
type RepositoryMetadata struct {
	SizeKB  *int
	Private *bool
}

// Activity is the latest commit seen for a repository.
type Activity struct {
	Author    string
	Timestamp string // ISO-8601, or "Unknown"
}

const UnknownActivity = "Unknown"

// Verdict is the admission outcome for one candidate.
type Verdict int

const (
	Admit Verdict = iota
	RejectPrivate
	RejectTooLarge
	RejectStale
)

func (v Verdict) String() string {
	switch v {
	case Admit:
		return "admitted"
	case RejectPrivate:
		return "private"
	case RejectTooLarge:
		return "too_large"
	case RejectStale:
		return "stale"
	}
	return "unknown"
}

// Outcome is the terminal state of a candidate inside one run.
type Outcome string

const (
	OutcomeRecorded         Outcome = "recorded"
	OutcomeRejectedPrivate  Outcome = "rejected_private"
	OutcomeRejectedTooLarge Outcome = "rejected_too_large"
	OutcomeRejectedStale    Outcome = "rejected_stale"
	OutcomeDuplicateInRun   Outcome = "duplicate_in_run"
	OutcomeCloneFailed      Outcome = "clone_failed"
)

// OutcomeFor maps a rejecting verdict to its terminal outcome.
func OutcomeFor(v Verdict) Outcome {
	switch v {
	case RejectPrivate:
		return OutcomeRejectedPrivate
	case RejectTooLarge:
		return OutcomeRejectedTooLarge
	case RejectStale:
		return OutcomeRejectedStale
	}
	return OutcomeRecorded
}

const (
	StatusNew      = "NEW"
	StatusExisting = "Existing"
)

// CandidateRecord is the audit row emitted for every de-duplicated
// candidate, admitted or not. Unresolved fields stay empty.
type CandidateRecord struct {
	RepoURL  string  `json:"github_link"`
	Author   string  `json:"author"`
	Date     string  `json:"date_of_last_commit"`
	Keyword  string  `json:"keyword"`
	Status   string  `json:"status"`
	Outcome  Outcome `json:"outcome"`
	SizeKB   *int    `json:"size_kb,omitempty"`
	IsNew    bool    `json:"-"`
	Admitted bool    `json:"-"`
}

// Finding is one verified secret occurrence, or one matching issue in
// issue-search mode.
type Finding struct {
	Keyword      string `json:"keyword"`
	RepoURL      string `json:"github_link"`
	Committer    string `json:"last_commiter"`
	CommitDate   string `json:"date_of_last_commit"`
	DetectorType string `json:"detector_type"`
	FilePath     string `json:"file_path"`
	LineNumber   string `json:"line_number"`
	RawResult    string `json:"raw_result"`

	IssueURL     string `json:"issue_url"`
	IssueTitle   string `json:"issue_title"`
	IssueSnippet string `json:"issue_body_snippet"`
}

// RunStatistics are accumulated by the orchestrator for one run.
type RunStatistics struct {
	TotalCandidates   int           `json:"total_candidates"`
	UniqueRepos       int           `json:"unique_repos"`
	Scanned           int           `json:"scanned"`
	NewRepos          int           `json:"new_repos"`
	DuplicatesSkipped int           `json:"duplicates_skipped"`
	StaleSkipped      int           `json:"stale_skipped"`
	PrivateSkipped    int           `json:"private_skipped"`
	TooLargeSkipped   int           `json:"too_large_skipped"`
	CloneFailures     int           `json:"clone_failures"`
	DetectorFailures  int           `json:"detector_failures"`
	Matched           int           `json:"matched"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
}
