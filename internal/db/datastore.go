// Package db stores findings and run records in PostgreSQL.
package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"secretsweep/internal/logger"
	"secretsweep/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
    run_id       UUID PRIMARY KEY,
    status       TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL,
    candidates   INTEGER NOT NULL,
    unique_repos INTEGER NOT NULL,
    scanned      INTEGER NOT NULL,
    findings     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS findings (
    finding_id    UUID PRIMARY KEY,
    run_id        UUID NOT NULL,
    keyword       TEXT NOT NULL,
    repo_url      TEXT NOT NULL,
    committer     TEXT NOT NULL,
    commit_date   TEXT NOT NULL,
    detector_type TEXT NOT NULL,
    file_path     TEXT NOT NULL,
    line_number   TEXT NOT NULL,
    raw_result    TEXT NOT NULL,
    issue_url     TEXT NOT NULL,
    issue_title   TEXT NOT NULL,
    fingerprint   TEXT NOT NULL UNIQUE,
    created_at    TIMESTAMPTZ NOT NULL
);`

const insertFinding = `INSERT INTO findings (
        finding_id,
        run_id,
        keyword,
        repo_url,
        committer,
        commit_date,
        detector_type,
        file_path,
        line_number,
        raw_result,
        issue_url,
        issue_title,
        fingerprint,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    ) ON CONFLICT (fingerprint) DO NOTHING`

const upsertRun = `INSERT INTO scan_runs (
        run_id, status, started_at, finished_at, candidates, unique_repos, scanned, findings
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (run_id) DO UPDATE SET
        status = EXCLUDED.status,
        finished_at = EXCLUDED.finished_at,
        candidates = EXCLUDED.candidates,
        unique_repos = EXCLUDED.unique_repos,
        scanned = EXCLUDED.scanned,
        findings = EXCLUDED.findings`

// Store é um wrapper fino em torno de *sql.DB para facilitar testes (sqlmock).
type Store struct {
	conn *sql.DB
	log  *zap.SugaredLogger
	now  func() time.Time
}

func NewStore(conn *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{conn: conn, log: logger.OrDefault(log), now: time.Now}
}

// Open abre conexão PostgreSQL usando lib/pq e valida com Ping().
func Open(ctx context.Context, dsn string, log *zap.SugaredLogger) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open conn: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return NewStore(conn, log), nil
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Fingerprint identifies a finding across runs.
func Fingerprint(f models.Finding) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		f.RepoURL, f.DetectorType, f.FilePath, f.LineNumber, f.RawResult, f.IssueURL,
	}, "\x00")))
	return hex.EncodeToString(h[:])
}

// SaveFindings deduplica por fingerprint e insere em lote numa única
// transação, garantindo idempotência entre execuções. It returns the
// number of rows actually inserted.
func (s *Store) SaveFindings(ctx context.Context, runID uuid.UUID, findings []models.Finding) (int, error) {
	start := time.Now()
	defer logger.Trace("SaveFindings", start)

	seen := make(map[string]struct{}, len(findings))
	type row struct {
		f           models.Finding
		fingerprint string
	}
	uniq := make([]row, 0, len(findings))
	for _, f := range findings {
		fp := Fingerprint(f)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		uniq = append(uniq, row{f: f, fingerprint: fp})
	}
	if len(uniq) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertFinding)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	createdAt := s.now().UTC()
	for _, r := range uniq {
		res, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			runID.String(),
			r.f.Keyword,
			r.f.RepoURL,
			r.f.Committer,
			r.f.CommitDate,
			r.f.DetectorType,
			r.f.FilePath,
			r.f.LineNumber,
			r.f.RawResult,
			r.f.IssueURL,
			r.f.IssueTitle,
			r.fingerprint,
			createdAt,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.log.Infof("Stored %d new findings (%d already known)", inserted, len(uniq)-inserted)
	return inserted, nil
}

// RecordRun upserts the run row with its final status.
func (s *Store) RecordRun(ctx context.Context, runID uuid.UUID, status string, stats models.RunStatistics) error {
	start := time.Now()
	defer logger.Trace("RecordRun", start)

	_, err := s.conn.ExecContext(ctx, upsertRun,
		runID.String(),
		status,
		stats.StartedAt.UTC(),
		stats.StartedAt.Add(stats.Duration).UTC(),
		stats.TotalCandidates,
		stats.UniqueRepos,
		stats.Scanned,
		stats.Matched,
	)
	if err != nil {
		return fmt.Errorf("erro ao registrar execução %s: %w", runID, err)
	}
	return nil
}
