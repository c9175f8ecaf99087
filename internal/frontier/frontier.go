// Package frontier implements the shared crawl queue and seen-URL set.
package frontier

import (
	"sync"

	"github.com/JakeFAU/websearch/internal/crawler"
)

// Frontier is a FIFO queue of work items plus the set of URLs ever queued.
//
// The queue, the seen set, the active-worker count and the stop flag share
// one mutex, so a URL's membership check and its insertion can never be
// split by another worker.
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []crawler.WorkItem
	seen     map[string]struct{}
	active   int
	maxDepth int
	closed   bool
	drained  bool
}

// New returns an empty Frontier that rejects items deeper than maxDepth.
func New(maxDepth int) *Frontier {
	f := &Frontier{
		seen:     make(map[string]struct{}),
		maxDepth: maxDepth,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Enqueue marks item.URL as seen and appends it to the queue. It returns
// false when the URL was already seen, the item is too deep, or the frontier
// has stopped.
func (f *Frontier) Enqueue(item crawler.WorkItem) bool {
	if item.URL == "" || item.Depth < 0 || item.Depth > f.maxDepth {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.drained {
		return false
	}
	if _, ok := f.seen[item.URL]; ok {
		return false
	}
	f.seen[item.URL] = struct{}{}
	f.queue = append(f.queue, item)
	f.cond.Signal()
	return true
}

// MarkSeen records url as seen without queueing it. It reports whether the
// URL was new.
func (f *Frontier) MarkSeen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	return true
}

// Dequeue blocks until an item can be claimed. A claimed item counts as
// active until the caller invokes Done. Dequeue returns false when the
// frontier is closed or when the queue is empty with no active item left to
// produce more work.
func (f *Frontier) Dequeue() (crawler.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if f.closed || f.drained {
			return crawler.WorkItem{}, false
		}
		if len(f.queue) > 0 {
			item := f.queue[0]
			f.queue[0] = crawler.WorkItem{}
			f.queue = f.queue[1:]
			f.active++
			return item, true
		}
		if f.active == 0 {
			f.drained = true
			f.cond.Broadcast()
			return crawler.WorkItem{}, false
		}
		f.cond.Wait()
	}
}

// Done releases the item claimed by a previous Dequeue. When it was the last
// active item and nothing is queued, every waiting worker is released.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == 0 {
		return
	}
	f.active--
	if f.active == 0 && len(f.queue) == 0 && !f.closed {
		f.drained = true
		f.cond.Broadcast()
	}
}

// Close stops the frontier. Blocked and future Dequeue calls return false.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Active returns the number of claimed items not yet marked done.
func (f *Frontier) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Seen reports whether url has been queued or marked.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}

// Quiescent reports whether the crawl ran out of work before any Close.
func (f *Frontier) Quiescent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drained
}

var _ crawler.Frontier = (*Frontier)(nil)
