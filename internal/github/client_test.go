package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secretsweep/models"
)

func newTestClient(t *testing.T, handler http.Handler, perPage int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Options{
		BaseURL: server.URL,
		PerPage: perPage,
		Retry: RetryPolicy{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			MaxWait:         20 * time.Millisecond,
		},
		Logger: zaptest.NewLogger(t).Sugar(),
	})
	require.NoError(t, err)
	return c
}

func codeItems(names ...string) map[string]any {
	items := make([]map[string]any, 0, len(names))
	for _, n := range names {
		items = append(items, map[string]any{
			"name": "config.py",
			"repository": map[string]any{
				"full_name": n,
				"html_url":  "https://github.com/" + n,
			},
		})
	}
	return map[string]any{"total_count": len(names), "items": items}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func collect(c *Client, keyword string, mode models.SearchMode) []models.SearchHit {
	var out []models.SearchHit
	for hit := range c.Search(context.Background(), keyword, mode) {
		out = append(out, hit)
	}
	return out
}

func TestSearch_PaginatesUntilShortPage(t *testing.T) {
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "password in:file", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(w, codeItems("o/a", "o/b"))
		case "2":
			writeJSON(w, codeItems("o/c"))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	})

	hits := collect(newTestClient(t, mux, 2), "password", models.ModeCode)

	require.Len(t, hits, 3)
	assert.Equal(t, "o/a", hits[0].RepoFullName)
	assert.Equal(t, "https://github.com/o/c", hits[2].RepoURL)
	assert.Equal(t, "password", hits[1].Keyword)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests))
}

func TestSearch_ErrorKeepsPartialResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			writeJSON(w, codeItems("o/a", "o/b"))
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		writeJSON(w, map[string]any{"message": "Only the first 1000 search results are available"})
	})

	hits := collect(newTestClient(t, mux, 2), "password", models.ModeCode)
	assert.Len(t, hits, 2)
}

func TestSearch_RetriesServerErrors(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			writeJSON(w, map[string]any{"message": "bad gateway"})
			return
		}
		writeJSON(w, codeItems("o/a"))
	})

	hits := collect(newTestClient(t, mux, 2), "password", models.ModeCode)
	assert.Len(t, hits, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestSearch_RetriesPrimaryRateLimit(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("X-RateLimit-Limit", "10")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(-time.Second).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			writeJSON(w, map[string]any{"message": "API rate limit exceeded for 127.0.0.1."})
			return
		}
		writeJSON(w, codeItems("o/a"))
	})

	hits := collect(newTestClient(t, mux, 2), "password", models.ModeCode)
	assert.Len(t, hits, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestSearch_GivesUpAfterRetries(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(w, map[string]any{"message": "slow down"})
	})

	hits := collect(newTestClient(t, mux, 2), "password", models.ModeCode)
	assert.Empty(t, hits)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestSearch_StopsWhenConsumerBreaks(t *testing.T) {
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeJSON(w, codeItems("o/a", "o/b"))
	})

	c := newTestClient(t, mux, 2)
	for range c.Search(context.Background(), "password", models.ModeCode) {
		break
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&requests))
}

func TestSearch_Issues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token in:title,body is:issue", r.URL.Query().Get("q"))
		writeJSON(w, map[string]any{
			"total_count": 1,
			"items": []map[string]any{{
				"html_url": "https://github.com/o/r/issues/1",
				"title":    "leaked token",
				"body":     "here it is",
			}},
		})
	})

	hits := collect(newTestClient(t, mux, 100), "token", models.ModeIssues)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://github.com/o/r/issues/1", hits[0].IssueURL)
	assert.Equal(t, "leaked token", hits[0].IssueTitle)
	assert.Equal(t, "here it is", hits[0].IssueBody)
}

func TestSearch_PageDelayFloor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "3" {
			writeJSON(w, codeItems())
			return
		}
		writeJSON(w, codeItems("o/a"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL, PerPage: 1, PageDelay: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	hits := collect(c, "password", models.ModeCode)
	assert.Len(t, hits, 2)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestNewClient_SendsBearerToken(t *testing.T) {
	var auth atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		writeJSON(w, codeItems())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL, Token: "s3cret"})
	require.NoError(t, err)
	collect(c, "password", models.ModeCode)

	assert.Equal(t, "Bearer s3cret", auth.Load())
}

func TestFetchMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/small", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"full_name": "o/small", "size": 10, "private": false})
	})
	mux.HandleFunc("/repos/o/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"message": "Not Found"})
	})
	c := newTestClient(t, mux, 100)

	meta := c.FetchMetadata(context.Background(), "o/small")
	require.NotNil(t, meta.SizeKB)
	require.NotNil(t, meta.Private)
	assert.Equal(t, 10, *meta.SizeKB)
	assert.False(t, *meta.Private)

	missing := c.FetchMetadata(context.Background(), "o/gone")
	assert.Nil(t, missing.SizeKB)
	assert.Nil(t, missing.Private)

	invalid := c.FetchMetadata(context.Background(), "not-a-full-name")
	assert.Nil(t, invalid.SizeKB)
}

func TestFetchLastActivity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/web/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		writeJSON(w, []map[string]any{{
			"commit": map[string]any{
				"author": map[string]any{"name": "GitHub", "date": "2025-03-01T10:30:00Z"},
			},
			"author": map[string]any{"login": "octocat"},
		}})
	})
	mux.HandleFunc("/repos/o/plain/commits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{
			"commit": map[string]any{
				"author": map[string]any{"name": "Jane Doe", "date": "2023-01-15T10:30:00Z"},
			},
		}})
	})
	mux.HandleFunc("/repos/o/empty/commits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{})
	})
	mux.HandleFunc("/repos/o/broken/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]any{"message": "Git Repository is empty."})
	})
	c := newTestClient(t, mux, 100)
	ctx := context.Background()

	assert.Equal(t, models.Activity{Author: "octocat", Timestamp: "2025-03-01T10:30:00Z"}, c.FetchLastActivity(ctx, "o/web"))
	assert.Equal(t, models.Activity{Author: "Jane Doe", Timestamp: "2023-01-15T10:30:00Z"}, c.FetchLastActivity(ctx, "o/plain"))

	unknown := models.Activity{Author: "Unknown", Timestamp: "Unknown"}
	assert.Equal(t, unknown, c.FetchLastActivity(ctx, "o/empty"))
	assert.Equal(t, unknown, c.FetchLastActivity(ctx, "o/broken"))
}

func TestClassify(t *testing.T) {
	kind, _ := classify(fmt.Errorf("boom"))
	assert.Equal(t, failPermanent, kind)

	kind, _ = classify(context.Canceled)
	assert.Equal(t, failPermanent, kind)
}
