package crawler

import "context"

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Frontier is the shared pending-work queue plus the set of URLs already seen.
type Frontier interface {
	// Enqueue records item.URL as seen and queues it. It returns false when the
	// URL was already seen or the item is deeper than the crawl allows.
	Enqueue(item WorkItem) bool
	// Dequeue blocks until an item is available. It returns false once the
	// crawl is quiescent or the frontier has been closed.
	Dequeue() (WorkItem, bool)
	// Done reports that the item returned by the last Dequeue is finished.
	Done()
	// MarkSeen records a URL as seen without queueing it.
	MarkSeen(url string) bool
	// Len returns the number of queued items.
	Len() int
}

// IndexTx is the atomic unit in which one page's rows are written.
type IndexTx interface {
	// SaveDocument inserts url if absent and returns its document ID. An
	// existing row is returned untouched.
	SaveDocument(ctx context.Context, url, content string) (int64, error)
	// SaveWordFrequency records frequency for (documentID, word) unless the
	// pair already exists, in which case the stored value is kept.
	SaveWordFrequency(ctx context.Context, documentID int64, word string, frequency int) error
}

// IndexWriter persists documents and their word frequencies.
type IndexWriter interface {
	// WithinTx runs fn inside one transaction. A non-nil error from fn, or a
	// failed commit, discards every write made through the IndexTx.
	WithinTx(ctx context.Context, fn func(IndexTx) error) error
}

// Searcher ranks documents by summed term frequency.
type Searcher interface {
	Search(ctx context.Context, words []string, limit int) ([]SearchResult, error)
}
