// Package spider coordinates one crawl run: it seeds the frontier, fans work
// out to a fixed pool of workers and returns once the crawl is quiescent.
package spider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/crawler"
	"github.com/JakeFAU/websearch/internal/frontier"
	"github.com/JakeFAU/websearch/internal/logging"
	"github.com/JakeFAU/websearch/internal/metrics"
	"github.com/JakeFAU/websearch/internal/worker"
)

// Config controls one crawl run.
type Config struct {
	StartURL    string
	MaxDepth    int
	WorkerCount int
}

// Summary reports the outcome of a crawl run.
type Summary struct {
	RunID     string                  `json:"run_id"`
	StartURL  string                  `json:"start_url"`
	Counters  crawler.CounterSnapshot `json:"counters"`
	Duration  time.Duration           `json:"duration"`
	Quiescent bool                    `json:"quiescent"`
}

// Spider runs bounded-depth crawls.
type Spider struct {
	cfg     Config
	seed    string
	fetcher crawler.Fetcher
	index   crawler.IndexWriter
	logger  *zap.Logger
}

// New validates cfg and builds a Spider.
func New(cfg Config, fetcher crawler.Fetcher, index crawler.IndexWriter, logger *zap.Logger) (*Spider, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if index == nil {
		return nil, errors.New("index writer is required")
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", cfg.MaxDepth)
	}
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be > 0, got %d", cfg.WorkerCount)
	}
	parts, err := crawler.ParseURL(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("start url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Spider{
		cfg:     cfg,
		seed:    parts.Scheme + "://" + parts.Host + parts.Path,
		fetcher: fetcher,
		index:   index,
		logger:  logger,
	}, nil
}

// Start crawls from the seed URL and blocks until no work remains and every
// worker has exited. Canceling ctx closes the frontier; in-flight items see
// the cancellation through their fetch and index calls.
func (s *Spider) Start(ctx context.Context) (Summary, error) {
	runID := newRunID()
	logger := logging.ForRun(s.logger, runID)
	started := time.Now()

	f := frontier.New(s.cfg.MaxDepth)
	counters := &crawler.Counters{}
	if f.Enqueue(crawler.WorkItem{URL: s.seed, Depth: 0}) {
		counters.Enqueued.Add(1)
		metrics.ObserveEnqueued(1)
	}
	stop := context.AfterFunc(ctx, f.Close)
	defer stop()

	logger.Info("crawl started",
		zap.String("start_url", s.seed),
		zap.Int("max_depth", s.cfg.MaxDepth),
		zap.Int("worker_count", s.cfg.WorkerCount),
	)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WorkerCount; i++ {
		w := worker.New(f, s.fetcher, s.index, counters,
			worker.Config{MaxDepth: s.cfg.MaxDepth},
			logger.Named("worker").With(zap.Int("index", i)),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	wg.Wait()
	metrics.SetFrontierSize(f.Len())

	summary := Summary{
		RunID:     runID,
		StartURL:  s.seed,
		Counters:  counters.Snapshot(),
		Duration:  time.Since(started),
		Quiescent: f.Quiescent(),
	}
	fields := []zap.Field{
		zap.Int64("fetched", summary.Counters.Fetched),
		zap.Int64("indexed", summary.Counters.Indexed),
		zap.Int64("failed", summary.Counters.Failed),
		zap.Int64("skipped", summary.Counters.Skipped),
		zap.Int64("enqueued", summary.Counters.Enqueued),
		zap.Duration("duration", summary.Duration),
	}
	if !summary.Quiescent && ctx.Err() != nil {
		logger.Warn("crawl interrupted", append(fields, zap.Error(ctx.Err()))...)
		return summary, fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	logger.Info("crawl finished", fields...)
	return summary, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
