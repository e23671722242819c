// Package report turns run results into tables and writes them in the
// selected file formats.
package report

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"secretsweep/internal/logger"
	"secretsweep/models"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatTXT  = "txt"
)

var (
	FindingColumns = []string{
		"Keyword", "Github Link", "Last Commiter", "Date of Last Commit",
		"Detector Type", "File Path", "Line Number", "Raw Result",
		"Issue URL", "Issue Title", "Issue Body Snippet",
	}
	CandidateColumns = []string{"Github Link", "Author", "Date of Last Commit", "Keyword", "Status", "Verdict"}
	NewRepoColumns   = []string{"Github Link", "Author", "Date of Last Commit", "Keyword"}
)

// Table is a result set with a fixed column order.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

func FindingsTable(findings []models.Finding) Table {
	t := Table{Columns: FindingColumns, Rows: make([][]string, 0, len(findings))}
	for _, f := range findings {
		t.Rows = append(t.Rows, []string{
			f.Keyword, f.RepoURL, f.Committer, f.CommitDate,
			f.DetectorType, f.FilePath, f.LineNumber, f.RawResult,
			f.IssueURL, f.IssueTitle, f.IssueSnippet,
		})
	}
	return t
}

func CandidatesTable(records []models.CandidateRecord) Table {
	t := Table{Columns: CandidateColumns, Rows: make([][]string, 0, len(records))}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{r.RepoURL, r.Author, r.Date, r.Keyword, r.Status, string(r.Outcome)})
	}
	return t
}

func NewReposTable(records []models.CandidateRecord) Table {
	t := Table{Columns: NewRepoColumns, Rows: make([][]string, 0, len(records))}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{r.RepoURL, r.Author, r.Date, r.Keyword})
	}
	return t
}

// writeFunc writes t to path. It reports false when it chose not to
// write anything.
type writeFunc func(path string, t Table) (bool, error)

// Saver writes every table in each configured format.
type Saver struct {
	formats []string
	log     *zap.SugaredLogger
	writers map[string]writeFunc
}

func NewSaver(formats []string, log *zap.SugaredLogger) *Saver {
	s := &Saver{formats: formats, log: logger.OrDefault(log)}
	s.writers = map[string]writeFunc{
		FormatXLSX: writeXLSX,
		FormatCSV:  s.skipEmpty(writeCSV),
		FormatJSON: writeJSON,
		FormatXML:  writeXML,
		FormatTXT:  s.skipEmpty(writeTXT),
	}
	return s
}

func (s *Saver) Formats() []string {
	return s.formats
}

// Save writes t as <basename>.<format> for every format and returns the
// paths written. A failing format does not stop the others.
func (s *Saver) Save(basename string, t Table) ([]string, error) {
	start := time.Now()
	defer logger.Trace("Saver.Save", start)

	var (
		written []string
		errs    []error
	)
	for _, format := range s.formats {
		write, ok := s.writers[format]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown output format %q", format))
			continue
		}
		path := Path(basename, format)
		ok, err := write(path, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", path, err))
			continue
		}
		if ok {
			s.log.Infof("Results saved to %s", path)
			written = append(written, path)
		}
	}
	return written, errors.Join(errs...)
}

func (s *Saver) skipEmpty(w writeFunc) writeFunc {
	return func(path string, t Table) (bool, error) {
		if t.Empty() {
			s.log.Warnf("No data to save to %s", path)
			return false, nil
		}
		return w(path, t)
	}
}

func Path(basename, format string) string {
	return basename + "." + format
}
