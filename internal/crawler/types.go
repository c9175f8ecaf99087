package crawler

import (
	"net/http"
	"sync/atomic"
	"time"
)

// WorkItem is one unit of crawl work: a URL and its hop distance from the seed.
type WorkItem struct {
	URL   string
	Depth int
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Depth   int
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
// Body is always UTF-8 text.
type FetchResponse struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Redirects  int
}

// SearchResult is one ranked row of a multi-word query.
type SearchResult struct {
	URL            string `json:"url"`
	TotalFrequency int64  `json:"total_frequency"`
}

// Counters tracks per-run progress. Safe for concurrent use.
type Counters struct {
	Fetched  atomic.Int64
	Indexed  atomic.Int64
	Failed   atomic.Int64
	Skipped  atomic.Int64
	Enqueued atomic.Int64
}

// Snapshot copies the counters into a plain value.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Fetched:  c.Fetched.Load(),
		Indexed:  c.Indexed.Load(),
		Failed:   c.Failed.Load(),
		Skipped:  c.Skipped.Load(),
		Enqueued: c.Enqueued.Load(),
	}
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Fetched  int64 `json:"fetched"`
	Indexed  int64 `json:"indexed"`
	Failed   int64 `json:"failed"`
	Skipped  int64 `json:"skipped"`
	Enqueued int64 `json:"enqueued"`
}
