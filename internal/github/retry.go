package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	gogithub "github.com/google/go-github/v41/github"
	"go.uber.org/zap"

	"secretsweep/models"
)

// RetryPolicy retries calls that failed on rate limiting or transient
// server errors. The wait before each retry is the exponential backoff
// interval or the server's own hint, whichever is longer, capped at
// MaxWait.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxWait         time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxWait:         90 * time.Second,
	}
}

type failureKind int

const (
	failPermanent failureKind = iota
	failRateLimited
	failServer
)

// classify inspects an API error and extracts the server's wait hint.
func classify(err error) (failureKind, time.Duration) {
	var rle *gogithub.RateLimitError
	if errors.As(err, &rle) {
		return failRateLimited, time.Until(rle.Rate.Reset.Time)
	}
	var abuse *gogithub.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return failRateLimited, abuse.GetRetryAfter()
	}
	var errResp *gogithub.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		hint := retryAfter(errResp.Response)
		switch code := errResp.Response.StatusCode; {
		case code == http.StatusTooManyRequests:
			return failRateLimited, hint
		case code >= 500:
			return failServer, hint
		}
		return failPermanent, 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failPermanent, 0
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return failServer, 0
	}
	return failPermanent, 0
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Until(time.Unix(epoch, 0))
		}
	}
	return 0
}

// Do runs fn until it succeeds, fails permanently or the retries are
// spent. With rateLimitOnly set, server errors are not retried.
func (p RetryPolicy) Do(ctx context.Context, log *zap.SugaredLogger, name string, rateLimitOnly bool, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		kind, hint := classify(err)
		retryable := kind == failRateLimited || (kind == failServer && !rateLimitOnly)
		if !retryable {
			return err
		}
		if attempt >= p.MaxRetries {
			return fmt.Errorf("%s: %w: %w", name, models.ErrTransientNetwork, err)
		}

		wait := b.NextBackOff()
		if hint > wait {
			wait = hint
		}
		if p.MaxWait > 0 && wait > p.MaxWait {
			wait = p.MaxWait
		}
		log.Warnf("%s: attempt %d failed (%s), retrying in %s", name, attempt+1, describe(err), wait.Round(time.Millisecond))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
