// Package worker implements the per-item crawl pipeline and its execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/content"
	"github.com/JakeFAU/websearch/internal/crawler"
	"github.com/JakeFAU/websearch/internal/metrics"
)

// StatusIndexed labels pages that made it into the index.
const StatusIndexed = "indexed"

// Config controls Worker behavior.
type Config struct {
	MaxDepth int
}

// Worker consumes frontier items: fetch, extract links, enqueue, index.
type Worker struct {
	frontier crawler.Frontier
	fetcher  crawler.Fetcher
	index    crawler.IndexWriter
	counters *crawler.Counters
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	frontier crawler.Frontier,
	fetcher crawler.Fetcher,
	index crawler.IndexWriter,
	counters *crawler.Counters,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counters == nil {
		counters = &crawler.Counters{}
	}
	metrics.Init()
	return &Worker{
		frontier: frontier,
		fetcher:  fetcher,
		index:    index,
		counters: counters,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming frontier items until the frontier reports that the
// crawl is quiescent or closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, ok := w.frontier.Dequeue()
		if !ok {
			w.logger.Debug("frontier exhausted, worker exiting")
			return
		}
		w.process(ctx, item)
		w.frontier.Done()
	}
}

// process handles one item. Every failure is logged and counted here and
// never reaches the caller.
func (w *Worker) process(ctx context.Context, item crawler.WorkItem) {
	log := w.logger.With(zap.String("url", item.URL), zap.Int("depth", item.Depth))
	defer func() {
		if r := recover(); r != nil {
			w.counters.Failed.Add(1)
			log.Error("page processing panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if item.Depth > w.cfg.MaxDepth {
		w.counters.Skipped.Add(1)
		log.Debug("item beyond max depth skipped", zap.Int("max_depth", w.cfg.MaxDepth))
		return
	}
	if ctx.Err() != nil {
		w.counters.Skipped.Add(1)
		log.Debug("crawl canceled, item skipped")
		return
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	resp, err := w.fetch(ctx, item)
	if err != nil {
		w.fail(log, item, err, len(resp.Body))
		return
	}
	w.counters.Fetched.Add(1)
	if len(resp.Body) == 0 {
		w.fail(log, item, fmt.Errorf("%w: %s", crawler.ErrEmptyContent, item.URL), 0)
		return
	}

	base := item.URL
	if resp.FinalURL != "" && resp.FinalURL != item.URL {
		base = resp.FinalURL
		w.frontier.MarkSeen(base)
	}
	accepted := w.enqueueLinks(log, item, base, resp.Body)

	freq := content.Tokenize(string(resp.Body))
	start := time.Now()
	err = w.index.WithinTx(ctx, func(tx crawler.IndexTx) error {
		return indexPage(ctx, tx, item.URL, string(resp.Body), freq)
	})
	metrics.ObserveIndex(time.Since(start))
	if err != nil {
		w.fail(log, item, err, len(resp.Body))
		return
	}

	w.counters.Indexed.Add(1)
	metrics.ObservePage(item.URL, StatusIndexed, len(resp.Body))
	log.Info("page indexed",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("words", len(freq)),
		zap.Int("links_enqueued", accepted),
		zap.Duration("fetch_duration", resp.Duration),
	)
}

func (w *Worker) fetch(ctx context.Context, item crawler.WorkItem) (crawler.FetchResponse, error) {
	start := time.Now()
	resp, err := w.fetcher.Fetch(ctx, crawler.FetchRequest{URL: item.URL, Depth: item.Depth})
	status := "ok"
	if err != nil {
		status = crawler.ErrorKind(err)
	}
	metrics.ObserveFetch(status, time.Since(start))
	return resp, err
}

// enqueueLinks extracts links from body and offers each to the frontier at
// the next depth. It returns how many the frontier accepted.
func (w *Worker) enqueueLinks(log *zap.Logger, item crawler.WorkItem, base string, body []byte) int {
	next := item.Depth + 1
	if next > w.cfg.MaxDepth {
		return 0
	}
	links, err := content.ExtractLinks(base, body)
	if err != nil {
		log.Warn("link extraction failed",
			zap.String("base_url", base),
			zap.String("error_kind", crawler.ErrorKind(err)),
			zap.Error(err),
		)
		return 0
	}
	accepted := 0
	for _, link := range links {
		if w.frontier.Enqueue(crawler.WorkItem{URL: link, Depth: next}) {
			accepted++
		}
	}
	w.counters.Enqueued.Add(int64(accepted))
	metrics.ObserveEnqueued(accepted)
	metrics.SetFrontierSize(w.frontier.Len())
	return accepted
}

// indexPage writes the document and its word counts. Words are written in
// sorted order so concurrent transactions lock rows in the same order.
func indexPage(ctx context.Context, tx crawler.IndexTx, url, body string, freq map[string]int) error {
	id, err := tx.SaveDocument(ctx, url, body)
	if err != nil {
		return err
	}
	words := make([]string, 0, len(freq))
	for word := range freq {
		words = append(words, word)
	}
	sort.Strings(words)
	for _, word := range words {
		if err := tx.SaveWordFrequency(ctx, id, word, freq[word]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) fail(log *zap.Logger, item crawler.WorkItem, err error, bytes int) {
	w.counters.Failed.Add(1)
	kind := crawler.ErrorKind(err)
	metrics.ObservePage(item.URL, kind, bytes)
	if errors.Is(err, context.Canceled) {
		log.Debug("page abandoned", zap.String("error_kind", kind), zap.Error(err))
		return
	}
	log.Warn("page failed", zap.String("error_kind", kind), zap.Error(err))
}
