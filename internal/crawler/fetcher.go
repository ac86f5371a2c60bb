package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Fetcher retrieves one listing page and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (RawPage, error)
}

// CollyFetcher implements Fetcher on top of a Colly collector.
type CollyFetcher struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher. The collector
// identifies itself with cfg.UserAgent on every request and throttles to one
// in-flight request with the configured per-request delay, since listing
// pages must be walked in order anyway.
func NewCollyFetcher(cfg Config, logger *zap.Logger) (*CollyFetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.Async(false),
	)
	base.AllowURLRevisit = true // re-crawls of the same page number are deliberate
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	return &CollyFetcher{base: base, logger: logger}, nil
}

// Fetch retrieves a single page via a cloned collector.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (RawPage, error) {
	collector := f.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}
	started := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: RawPage{
			URL:        rawURL,
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			FetchedAt:  time.Now().UTC(),
			Duration:   time.Since(started),
		}})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode > 0 {
			err = &HTTPError{StatusCode: r.StatusCode, Err: err}
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return RawPage{}, fmt.Errorf("visit %s: %w", rawURL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return RawPage{}, err
		}
		return res.page, res.err
	default:
		return RawPage{}, errors.New("colly fetch produced no result")
	}
}

type fetchResult struct {
	page RawPage
	err  error
}
