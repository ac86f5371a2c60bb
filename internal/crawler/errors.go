package crawler

import "fmt"

// PolicyError signals that the crawl policy forbids a fetch or that the
// policy resource itself could not be confirmed. Either way the crawl aborts.
type PolicyError struct {
	Path string
	Err  error
}

func (e *PolicyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crawl policy: %v", e.Err)
	}
	return fmt.Sprintf("crawl policy disallows %s", e.Path)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// HTTPError reports a fetch that reached the server but came back with a
// failure status. The retry policy uses the status to classify the failure.
type HTTPError struct {
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %v", e.StatusCode, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// FetchError reports a page fetch that failed after exhausting retries.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
