package github

import (
	"context"
	"time"

	gogithub "github.com/google/go-github/v41/github"

	"secretsweep/internal/logger"
	"secretsweep/models"
)

// FetchMetadata looks up size and visibility. Any failure yields an empty
// RepositoryMetadata, which admission treats as unknown.
func (c *Client) FetchMetadata(ctx context.Context, fullName string) models.RepositoryMetadata {
	start := time.Now()
	defer logger.Trace("FetchMetadata", start)

	owner, name, err := splitFullName(fullName)
	if err != nil {
		c.log.Warnf("metadata lookup skipped: %v", err)
		return models.RepositoryMetadata{}
	}

	var repo *gogithub.Repository
	err = c.retry.Do(ctx, c.log, "repository", true, func(ctx context.Context) error {
		r, _, err := c.gh.Repositories.Get(ctx, owner, name)
		repo = r
		return err
	})
	if err != nil || repo == nil {
		if err != nil {
			c.log.Warnf("metadata lookup for %s failed: %s", fullName, describe(err))
		}
		return models.RepositoryMetadata{}
	}
	return models.RepositoryMetadata{SizeKB: repo.Size, Private: repo.Private}
}

// FetchLastActivity returns author and ISO-8601 date of the latest
// commit, or "Unknown" for both when history is empty or unavailable.
func (c *Client) FetchLastActivity(ctx context.Context, fullName string) models.Activity {
	start := time.Now()
	defer logger.Trace("FetchLastActivity", start)

	unknown := models.Activity{Author: models.UnknownActivity, Timestamp: models.UnknownActivity}

	owner, name, err := splitFullName(fullName)
	if err != nil {
		return unknown
	}

	var commits []*gogithub.RepositoryCommit
	err = c.retry.Do(ctx, c.log, "commits", true, func(ctx context.Context) error {
		cs, _, err := c.gh.Repositories.ListCommits(ctx, owner, name, &gogithub.CommitsListOptions{
			ListOptions: gogithub.ListOptions{PerPage: 1},
		})
		commits = cs
		return err
	})
	if err != nil {
		c.log.Debugf("commit lookup for %s failed: %s", fullName, describe(err))
		return unknown
	}
	if len(commits) == 0 || commits[0] == nil {
		return unknown
	}

	commit := commits[0]
	author := commit.GetCommit().GetAuthor()
	authorName := author.GetName()
	// Web commits are authored as "GitHub"; the account login is more useful.
	if authorName == "" || authorName == "GitHub" || authorName == models.UnknownActivity {
		if login := commit.GetAuthor().GetLogin(); login != "" {
			authorName = login
		}
	}
	if authorName == "" {
		authorName = models.UnknownActivity
	}

	date := models.UnknownActivity
	if d := author.GetDate(); !d.IsZero() {
		date = d.UTC().Format(time.RFC3339)
	}
	return models.Activity{Author: authorName, Timestamp: date}
}
