package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Policy gates fetches behind the site's crawl policy. It is satisfied by
// robots.Checker.
type Policy interface {
	Load(ctx context.Context, baseURL string) error
	Allowed(path string) bool
}

// Visit receives each fetched page in order. Returning an error stops the
// crawl early; the error is propagated to the Crawl caller.
type Visit func(page RawPage) error

// Engine fetches listing pages one at a time until a stop condition is met:
// the caller's page limit, end-of-data, or an unrecoverable fetch error.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	policy  Policy
	retry   RetryPolicy
	logger  *zap.Logger
}

// NewEngine constructs an Engine. A nil retry policy disables retries.
func NewEngine(cfg Config, fetcher Fetcher, policy Policy, retry RetryPolicy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		policy:  policy,
		retry:   retry,
		logger:  logger,
	}
}

// Crawl walks the listing starting at startPage, fetching one page per step
// and handing each to visit before deciding whether another page exists. A
// limit of 0 means unbounded. On a fetch failure that survives retries the
// crawl stops and returns the pages already visited alongside the error; it
// never silently drops the remainder.
func (e *Engine) Crawl(ctx context.Context, startPage, limit int, visit Visit) (Stats, error) {
	var stats Stats
	if startPage < 1 {
		startPage = 1
	}

	if err := e.policy.Load(ctx, e.cfg.BaseURL); err != nil {
		return stats, &PolicyError{Err: err}
	}

	for page := startPage; limit <= 0 || stats.PagesFetched < limit; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL, err := e.pageURL(page)
		if err != nil {
			return stats, err
		}
		if !e.policy.Allowed(requestPath(pageURL)) {
			TotalPolicyDenials.Inc()
			return stats, &PolicyError{Path: requestPath(pageURL)}
		}

		raw, err := e.fetchWithRetry(ctx, pageURL)
		if err != nil {
			return stats, err
		}
		raw.Number = page
		stats.PagesFetched++
		TotalPagesFetched.Inc()
		e.logger.Info("fetched listing page",
			zap.Int("page", page),
			zap.Int("status", raw.StatusCode),
			zap.Duration("duration", raw.Duration),
		)

		if err := visit(raw); err != nil {
			return stats, err
		}

		if !hasMorePages(raw.Body, page) {
			stats.EndOfData = true
			e.logger.Info("end of listing data", zap.Int("last_page", page))
			break
		}
	}
	return stats, nil
}

func (e *Engine) fetchWithRetry(ctx context.Context, pageURL string) (RawPage, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		raw, err := e.fetcher.Fetch(ctx, pageURL)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		TotalFetchErrors.Inc()

		if e.retry == nil || !e.retry.ShouldRetry(err, attempt) {
			return RawPage{}, &FetchError{URL: pageURL, Attempts: attempt + 1, Err: lastErr}
		}
		TotalFetchRetries.Inc()
		delay := e.retry.Backoff(attempt)
		e.logger.Warn("page fetch failed; retrying",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return RawPage{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (e *Engine) pageURL(page int) (string, error) {
	u, err := url.Parse(e.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func requestPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.RequestURI()
}
