package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"secretsweep/config"
	"secretsweep/internal/admission"
	"secretsweep/internal/cache"
	"secretsweep/internal/db"
	"secretsweep/internal/git"
	"secretsweep/internal/github"
	"secretsweep/internal/logger"
	"secretsweep/internal/notify"
	"secretsweep/internal/report"
	"secretsweep/internal/scan"
	"secretsweep/internal/services"
	"secretsweep/internal/vault"
	"secretsweep/models"
)

const (
	statusCompleted   = "completed"
	statusInterrupted = "interrupted"

	// Prazo para os destinos finais (arquivos, banco, SQS, e-mail), mesmo
	// depois de um Ctrl+C.
	sinkTimeout = 2 * time.Minute
)

type app struct {
	cfg config.Config
	log *zap.SugaredLogger

	mailer    *notify.Mailer
	publisher *notify.SQSPublisher
}

func newApp(cfg config.Config, log *zap.SugaredLogger) *app {
	return &app{cfg: cfg, log: log}
}

// Execute runs one scan. Failures after the notifiers are set up are
// mailed before being returned.
func (a *app) Execute(ctx context.Context, keywords []string) error {
	if err := a.setupNotifiers(ctx); err != nil {
		return err
	}

	res, err := a.scan(ctx, keywords)
	if err == nil || errors.Is(err, models.ErrInterrupted) {
		return err
	}

	a.log.Errorf("Critical error: %v", err)
	if a.mailer != nil {
		scanned, secrets := 0, 0
		if res != nil {
			scanned, secrets = res.Stats.TotalCandidates, res.Stats.Matched
		}
		sinkCtx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if mailErr := a.mailer.Send(sinkCtx, notify.ErrorMessage(err, time.Now(), scanned, secrets)); mailErr != nil {
			a.log.Warnf("Error sending email: %v", mailErr)
		}
	}
	return err
}

func (a *app) setupNotifiers(ctx context.Context) error {
	if !a.cfg.EmailEnabled() && a.cfg.SQSQueueURL == "" {
		return nil
	}
	awsCfg, err := notify.LoadAWSConfig(ctx, a.cfg.AWSRegion)
	if err != nil {
		return err
	}
	if a.cfg.EmailEnabled() {
		a.mailer = notify.NewMailer(notify.NewSESClient(awsCfg), a.cfg.EmailSender, a.cfg.EmailRecipient, a.log)
	}
	if a.cfg.SQSQueueURL != "" {
		a.publisher = notify.NewSQSPublisher(notify.NewSQSClient(awsCfg), a.cfg.SQSQueueURL, a.log)
	}
	return nil
}

func (a *app) scan(ctx context.Context, keywords []string) (*services.RunResult, error) {
	defer logger.TraceAuto()()
	cfg := a.cfg

	/* ────────── 1. credenciais e cliente GitHub ────────── */
	creds := vault.Resolve(cfg.Token)
	token := ""
	if c, err := creds.GetGitHubCredentials(); err == nil && !c.Anonymous() {
		token = c.Token
	} else {
		a.log.Warn("No GitHub token configured, using unauthenticated requests (lower rate limits)")
	}

	retry := github.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries
	retry.MaxWait = cfg.MaxRateWait
	gh, err := github.NewClient(github.Options{
		BaseURL:   cfg.APIBaseURL,
		Token:     token,
		PageDelay: cfg.PageDelay,
		Retry:     retry,
		Logger:    a.log,
	})
	if err != nil {
		return nil, err
	}

	/* ────────── 2. cache entre execuções ────────── */
	store := newCacheStore(cfg)
	previous, err := store.Load()
	if err != nil {
		a.log.Warnf("Cache %s unreadable, starting fresh: %v", store.Path(), err)
	}
	if previous.Len() > 0 {
		a.log.Infof("Loaded cache: %d repos from previous scans", previous.Len())
		a.log.Infof("   Last scan: %s", previous.LastScan)
		a.log.Infof("   Total scans: %d", previous.ScanCount)
	} else {
		a.log.Info("No previous cache found - first scan")
	}

	/* ────────── 3. working copies e detector ────────── */
	repos := git.NewManager(cfg.TempDir, newCloner(cfg, creds), a.log)
	if err := repos.Prepare(); err != nil {
		return nil, err
	}
	defer func() {
		if err := repos.Cleanup(); err != nil {
			a.log.Warnf("failed to remove %s: %v", cfg.TempDir, err)
		}
	}()

	unknown := admission.FailOpen
	if cfg.StrictMetadata {
		unknown = admission.FailClosed
	}
	mode := models.ModeCode
	if cfg.Issues {
		mode = models.ModeIssues
	}

	orch := services.NewOrchestrator(services.Options{
		Searcher: gh,
		Metadata: gh,
		Repos:    repos,
		Detector: &scan.TrufflehogDetector{Path: cfg.TrufflehogPath, Timeout: cfg.DetectorTimeout, Log: a.log},
		Filter: admission.NewFilter(admission.Config{
			MaxSizeKB: cfg.MaxSizeKB(),
			MinYear:   cfg.MinYear,
			Unknown:   unknown,
		}),
		Previous:   previous,
		Mode:       mode,
		LogSecrets: cfg.LogSecrets,
		Log:        a.log,
	})

	/* ────────── 4. varredura ────────── */
	res, runErr := orch.Run(ctx, keywords)
	interrupted := errors.Is(runErr, models.ErrInterrupted)
	if interrupted {
		a.log.Warn("Scan interrupted by user, saving partial results")
	}

	// O cache é salvo mesmo quando a execução foi interrompida.
	if err := store.Save(res.Seen, previous); err != nil {
		a.log.Errorf("failed to save cache %s: %v", store.Path(), err)
	}
	if runErr != nil && !interrupted {
		a.log.Errorf("Scan aborted: %d candidates, %d unique repos, %d secrets found so far",
			res.Stats.TotalCandidates, res.Stats.UniqueRepos, res.Stats.Matched)
		return res, runErr
	}

	sinkCtx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	/* ────────── 5. destinos ────────── */
	a.log.Info("Saving results...")
	files, saveErr := a.saveReports(res)
	if saveErr != nil {
		a.log.Errorf("failed to save results: %v", saveErr)
	}

	status := statusCompleted
	if interrupted {
		status = statusInterrupted
	}
	if cfg.PGDSN != "" {
		if err := a.storeFindings(sinkCtx, res, status); err != nil {
			a.log.Errorf("failed to store findings in PostgreSQL: %v", err)
		}
	}

	summary := report.Summary{
		RunID:      res.RunID.String(),
		Stats:      res.Stats,
		Findings:   res.Findings,
		MinYear:    cfg.MinYear,
		Formats:    cfg.Formats,
		Files:      files,
		FinishedAt: time.Now(),
	}
	for _, line := range summary.Lines() {
		a.log.Info(line)
	}

	if a.publisher != nil {
		ev := notify.RunEvent{
			RunID:      summary.RunID,
			Status:     status,
			Mode:       mode.String(),
			Keywords:   keywords,
			Stats:      res.Stats,
			Files:      files,
			FinishedAt: summary.FinishedAt,
		}
		if err := a.publisher.Publish(sinkCtx, ev); err != nil {
			a.log.Warnf("failed to publish run event: %v", err)
		}
	}

	if a.mailer != nil {
		msg := notify.ReportMessage(summary)
		if interrupted {
			msg = notify.InterruptMessage(time.Now(), res.Stats.TotalCandidates, res.Stats.Matched)
		}
		a.log.Info("Preparing email report...")
		if err := a.mailer.Send(sinkCtx, msg); err != nil {
			a.log.Warnf("Error sending email: %v", err)
		}
	}

	if interrupted {
		return res, runErr
	}
	a.log.Info("Scan complete!")
	return res, saveErr
}

func (a *app) saveReports(res *services.RunResult) ([]string, error) {
	saver := report.NewSaver(a.cfg.Formats, a.log)

	var files []string
	var errs []error
	save := func(basename string, t report.Table) {
		written, err := saver.Save(basename, t)
		files = append(files, written...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	save(a.cfg.Output, report.FindingsTable(res.Findings))
	save(a.cfg.Output+"_public_repos", report.CandidatesTable(res.Candidates))
	if len(res.NewRepos) > 0 {
		a.log.Infof("Saving NEW repositories report (%d repos)...", len(res.NewRepos))
		save(a.cfg.Output+"_new_repos", report.NewReposTable(res.NewRepos))
	}
	return files, errors.Join(errs...)
}

func (a *app) storeFindings(ctx context.Context, res *services.RunResult, status string) error {
	store, err := db.Open(ctx, a.cfg.PGDSN, a.log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if _, err := store.SaveFindings(ctx, res.RunID, res.Findings); err != nil {
		return err
	}
	return store.RecordRun(ctx, res.RunID, status, res.Stats)
}

func newCacheStore(cfg config.Config) cache.Store {
	if cfg.CacheBackend == config.BackendBolt {
		return cache.NewBoltStore(cfg.CacheFile)
	}
	return cache.NewJSONStore(cfg.CacheFile)
}

func newCloner(cfg config.Config, creds vault.VaultClient) git.Cloner {
	if cfg.CloneBackend == config.CloneGoGit {
		return &git.GoGitCloner{Vault: creds, Depth: 1}
	}
	return &git.CLICloner{Depth: 1}
}
