// Package github wraps the GitHub REST API calls the pipeline needs:
// paginated code/issue search and per-repository metadata lookups.
package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v41/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"secretsweep/internal/logger"
)

const defaultPerPage = 100

type Options struct {
	BaseURL    string        // empty uses api.github.com
	Token      string        // empty sends unauthenticated requests
	PageDelay  time.Duration // floor between page requests; <= 0 disables
	PerPage    int
	Timeout    time.Duration
	Retry      RetryPolicy
	HTTPClient *http.Client // overrides Token/Timeout when set
	Logger     *zap.SugaredLogger
}

// Client is shared by the search client and the metadata fetcher.
type Client struct {
	gh      *gogithub.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	perPage int
	log     *zap.SugaredLogger
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		var transport http.RoundTripper = http.DefaultTransport
		if opts.Token != "" {
			transport = &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
				Base:   http.DefaultTransport,
			}
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	gh := gogithub.NewClient(httpClient)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse api url: %w", err)
		}
		gh.BaseURL = u
	}

	limit := rate.Inf
	if opts.PageDelay > 0 {
		limit = rate.Every(opts.PageDelay)
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	return &Client{
		gh:      gh,
		limiter: rate.NewLimiter(limit, 1),
		retry:   opts.Retry,
		perPage: perPage,
		log:     logger.OrDefault(opts.Logger),
	}, nil
}

// splitFullName turns "org/repo" into its two parts.
func splitFullName(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository name %q", fullName)
	}
	return owner, repo, nil
}

// describe renders an API error as "status: message" for the logs.
func describe(err error) string {
	var errResp *gogithub.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return fmt.Sprintf("%d: %s", errResp.Response.StatusCode, errResp.Message)
	}
	return err.Error()
}
