// Package services drives the discovery, admission, checkout and
// detection pipeline for a list of keywords.
package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"secretsweep/internal/admission"
	"secretsweep/internal/cache"
	"secretsweep/internal/git"
	"secretsweep/internal/logger"
	"secretsweep/internal/scan"
	"secretsweep/models"
)

const issueSnippetLen = 200

// Searcher yields search hits for one keyword, lazily and best-effort.
type Searcher interface {
	Search(ctx context.Context, keyword string, mode models.SearchMode) iter.Seq[models.SearchHit]
}

// MetadataFetcher resolves per-repository facts. Both lookups degrade to
// "unknown" values instead of failing.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, fullName string) models.RepositoryMetadata
	FetchLastActivity(ctx context.Context, fullName string) models.Activity
}

// Checkouter hands out scoped working copies.
type Checkouter interface {
	Checkout(ctx context.Context, repoURL, fullName string) (*git.WorkingCopy, error)
}

type Options struct {
	Searcher Searcher
	Metadata MetadataFetcher
	Repos    Checkouter
	Detector scan.Detector
	Filter   *admission.Filter

	// Previous is the cache state loaded at start; it only tags
	// candidates as new or existing.
	Previous cache.State
	Mode     models.SearchMode

	// LogSecrets prints raw secrets instead of a masked prefix.
	LogSecrets bool
	Log        *zap.SugaredLogger
}

// RunResult is everything one run produced. Seen lists every
// de-duplicated repository URL in discovery order and is the input of the
// cache merge.
type RunResult struct {
	RunID      uuid.UUID
	Findings   []models.Finding
	Candidates []models.CandidateRecord
	NewRepos   []models.CandidateRecord
	Seen       []string
	Stats      models.RunStatistics
}

// Orchestrator is the single writer of the in-run seen-set and of the run
// statistics. It is not safe for concurrent Run calls.
type Orchestrator struct {
	opts Options
	log  *zap.SugaredLogger
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Filter == nil {
		opts.Filter = admission.NewFilter(admission.Config{MaxSizeKB: math.MaxInt})
	}
	if opts.Previous.Repos == nil {
		opts.Previous = cache.Empty()
	}
	return &Orchestrator{opts: opts, log: logger.OrDefault(opts.Log)}
}

type run struct {
	res  *RunResult
	seen map[string]struct{}
}

// Run processes keywords in order. Per-candidate failures never end the
// run; on cancellation the partial result is returned together with an
// error wrapping models.ErrInterrupted.
func (o *Orchestrator) Run(ctx context.Context, keywords []string) (res *RunResult, err error) {
	defer logger.TraceAuto()()
	start := time.Now()

	r := &run{
		res: &RunResult{
			RunID: uuid.New(),
			Stats: models.RunStatistics{StartedAt: start},
		},
		seen: make(map[string]struct{}),
	}
	o.log.Infow("Iniciando varredura",
		"run_id", r.res.RunID.String(),
		"keywords", len(keywords),
		"mode", o.opts.Mode.String(),
		"unknown_metadata", o.opts.Filter.Config().Unknown.String(),
	)

	// Um panic no laço devolve o resultado parcial para que o chamador
	// ainda salve o cache e as estatísticas.
	defer func() {
		if p := recover(); p != nil {
			r.res.Stats.UniqueRepos = len(r.res.Seen)
			r.res.Stats.Duration = time.Since(start)
			o.log.Errorw("Scan aborted", "run_id", r.res.RunID.String(), "panic", p)
			res, err = r.res, fmt.Errorf("%w: %v", models.ErrUnclassified, p)
		}
	}()

	for _, keyword := range keywords {
		if ctx.Err() != nil {
			break
		}
		o.log.Infof("Processing keyword: %q", keyword)
		for hit := range o.opts.Searcher.Search(ctx, keyword, o.opts.Mode) {
			if ctx.Err() != nil {
				break
			}
			if o.opts.Mode == models.ModeIssues {
				o.recordIssue(r, hit)
				continue
			}
			o.processHit(ctx, r, hit)
		}
	}

	r.res.Stats.UniqueRepos = len(r.res.Seen)
	r.res.Stats.Duration = time.Since(start)

	if cerr := ctx.Err(); cerr != nil {
		return r.res, fmt.Errorf("%w: %v", models.ErrInterrupted, cerr)
	}
	return r.res, nil
}

func (o *Orchestrator) recordIssue(r *run, hit models.SearchHit) {
	r.res.Stats.TotalCandidates++
	f := models.Finding{
		Keyword:      hit.Keyword,
		IssueURL:     hit.IssueURL,
		IssueTitle:   hit.IssueTitle,
		IssueSnippet: Snippet(hit.IssueBody, issueSnippetLen),
	}
	r.res.Findings = append(r.res.Findings, f)
	r.res.Stats.Matched++
	o.log.Warnw("[ISSUE]",
		"keyword", f.Keyword,
		"url", f.IssueURL,
		"title", f.IssueTitle,
	)
}

func (o *Orchestrator) processHit(ctx context.Context, r *run, hit models.SearchHit) {
	stats := &r.res.Stats
	stats.TotalCandidates++

	if _, dup := r.seen[hit.RepoURL]; dup {
		stats.DuplicatesSkipped++
		o.log.Infof("Skipping already scanned repo: %s", hit.RepoURL)
		return
	}
	r.seen[hit.RepoURL] = struct{}{}
	r.res.Seen = append(r.res.Seen, hit.RepoURL)

	rec := models.CandidateRecord{
		RepoURL: hit.RepoURL,
		Keyword: hit.Keyword,
		Status:  models.StatusExisting,
	}
	if !o.opts.Previous.Contains(hit.RepoURL) {
		rec.IsNew = true
		rec.Status = models.StatusNew
		stats.NewRepos++
		o.log.Infof("NEW repository detected: %s", hit.RepoURL)
	}

	meta := o.opts.Metadata.FetchMetadata(ctx, hit.RepoFullName)
	rec.SizeKB = meta.SizeKB
	if v := o.opts.Filter.EvaluateMetadata(meta); v != models.Admit {
		o.reject(r, rec, v)
		return
	}

	activity := o.opts.Metadata.FetchLastActivity(ctx, hit.RepoFullName)
	rec.Author = activity.Author
	rec.Date = activity.Timestamp
	if v := o.opts.Filter.EvaluateActivity(activity); v != models.Admit {
		o.reject(r, rec, v)
		return
	}

	wc, err := o.opts.Repos.Checkout(ctx, hit.RepoURL, hit.RepoFullName)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		stats.CloneFailures++
		rec.Outcome = models.OutcomeCloneFailed
		r.res.Candidates = append(r.res.Candidates, rec)
		o.log.Warnf("Failed to clone %s: %v", hit.RepoURL, err)
		return
	}
	defer func() {
		if err := wc.Close(); err != nil {
			o.log.Warnf("failed to remove %s: %v", wc.Path, err)
		}
	}()

	rec.Outcome = models.OutcomeRecorded
	rec.Admitted = true
	r.res.Candidates = append(r.res.Candidates, rec)
	if rec.IsNew {
		r.res.NewRepos = append(r.res.NewRepos, rec)
	}
	stats.Scanned++

	out, err := o.opts.Detector.Invoke(ctx, wc.Path)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// keep whatever the detector printed before the interrupt
		case errors.Is(err, models.ErrDetectorTimeout):
			stats.DetectorFailures++
			o.log.Warnf("Detector timed out on %s, keeping partial output: %v", hit.RepoURL, err)
		default:
			stats.DetectorFailures++
			o.log.Warnf("Error scanning repo %s: %v", hit.RepoURL, err)
			return
		}
	}

	for _, m := range scan.ParseAll(out) {
		f := models.Finding{
			Keyword:      hit.Keyword,
			RepoURL:      hit.RepoURL,
			Committer:    activity.Author,
			CommitDate:   activity.Timestamp,
			DetectorType: m.Detector,
			FilePath:     m.File,
			LineNumber:   m.Line,
			RawResult:    m.Raw,
		}
		r.res.Findings = append(r.res.Findings, f)
		stats.Matched++
		o.logFinding(f)
	}
	o.log.Infof("SUCCESS scanning repo: %s", hit.RepoURL)
}

func (o *Orchestrator) reject(r *run, rec models.CandidateRecord, v models.Verdict) {
	stats := &r.res.Stats
	rec.Outcome = models.OutcomeFor(v)

	switch v {
	case models.RejectPrivate:
		stats.PrivateSkipped++
		o.log.Warnf("Skipping repo (private): %s", rec.RepoURL)
	case models.RejectTooLarge:
		stats.TooLargeSkipped++
		o.log.Warnf("Skipping repo (too large %.2f MB > %d MB): %s",
			float64(derefInt(rec.SizeKB))/1024, o.opts.Filter.Config().MaxSizeKB/1024, rec.RepoURL)
		// Nenhum dado de commit foi buscado para este candidato.
		rec.Author, rec.Date = "", ""
	case models.RejectStale:
		stats.StaleSkipped++
		o.log.Warnf("Skipping old repo (last commit: %s): %s", rec.Date, rec.RepoURL)
	}
	r.res.Candidates = append(r.res.Candidates, rec)
}

func (o *Orchestrator) logFinding(f models.Finding) {
	secret := f.RawResult
	if !o.opts.LogSecrets {
		secret = logger.MaskSecret(secret)
	}
	o.log.Warnw("[SECRET]",
		"keyword", f.Keyword,
		"repo", f.RepoURL,
		"detector", f.DetectorType,
		"location", f.FilePath+":"+f.LineNumber,
		"secret", secret,
	)
}

// Snippet returns the first n characters of s with newlines flattened to
// spaces.
func Snippet(s string, n int) string {
	if utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n])
	}
	return strings.ReplaceAll(s, "\n", " ")
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
