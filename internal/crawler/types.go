// Package crawler walks the paginated admission-results listing one page at
// a time, gated by the site's crawl policy.
package crawler

import (
	"fmt"
	"time"
)

// RawPage is one fetched listing page, handed to the record parser untouched.
type RawPage struct {
	Number     int
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Duration   time.Duration
}

// Config holds the settings for a crawl session.
type Config struct {
	// BaseURL is the listing endpoint; the page number is appended as a
	// query parameter (e.g. https://example.com/survey/?page=3).
	BaseURL        string
	UserAgent      string
	RequestTimeout time.Duration
	Delay          time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	return nil
}

// Stats summarizes a finished (or aborted) crawl.
type Stats struct {
	PagesFetched int
	// EndOfData is true when the listing ran out of pages before the
	// caller's limit was reached; false means more data was available.
	EndOfData bool
}
