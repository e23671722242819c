package github

import (
	"context"
	"fmt"
	"iter"
	"time"

	gogithub "github.com/google/go-github/v41/github"

	"secretsweep/internal/logger"
	"secretsweep/models"
)

// Search yields every hit for keyword, page by page. Pagination stops on
// a short page or on an error; hits already yielded are kept and the
// error is only logged, so callers get a best-effort sequence.
func (c *Client) Search(ctx context.Context, keyword string, mode models.SearchMode) iter.Seq[models.SearchHit] {
	return func(yield func(models.SearchHit) bool) {
		for page := 1; ; page++ {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}

			hits, err := c.searchPage(ctx, keyword, mode, page)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Warnf("GitHub %s search for %q aborted at page %d: %s", mode, keyword, page, describe(err))
				}
				return
			}
			for _, hit := range hits {
				if !yield(hit) {
					return
				}
			}
			if len(hits) < c.perPage {
				return
			}
		}
	}
}

func (c *Client) searchPage(ctx context.Context, keyword string, mode models.SearchMode, page int) ([]models.SearchHit, error) {
	start := time.Now()
	defer logger.Trace(fmt.Sprintf("SearchPage(%s,%d)", mode, page), start)

	opts := &gogithub.SearchOptions{
		ListOptions: gogithub.ListOptions{Page: page, PerPage: c.perPage},
	}

	var hits []models.SearchHit
	err := c.retry.Do(ctx, c.log, "search", false, func(ctx context.Context) error {
		hits = hits[:0]
		if mode == models.ModeIssues {
			res, _, err := c.gh.Search.Issues(ctx, keyword+" in:title,body is:issue", opts)
			if err != nil {
				return err
			}
			for _, issue := range res.Issues {
				hits = append(hits, models.SearchHit{
					Keyword:    keyword,
					IssueURL:   issue.GetHTMLURL(),
					IssueTitle: issue.GetTitle(),
					IssueBody:  issue.GetBody(),
				})
			}
			return nil
		}

		res, _, err := c.gh.Search.Code(ctx, keyword+" in:file", opts)
		if err != nil {
			return err
		}
		for _, item := range res.CodeResults {
			repo := item.GetRepository()
			hits = append(hits, models.SearchHit{
				Keyword:      keyword,
				RepoFullName: repo.GetFullName(),
				RepoURL:      repo.GetHTMLURL(),
			})
		}
		return nil
	})
	return hits, err
}
