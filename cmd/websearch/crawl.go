package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/config"
	collyfetcher "github.com/JakeFAU/websearch/internal/fetcher/colly"
	"github.com/JakeFAU/websearch/internal/metrics"
	"github.com/JakeFAU/websearch/internal/spider"
)

type crawlFlags struct {
	depth   int
	workers int
}

// newCrawlCmd creates the crawl subcommand. An optional positional argument
// overrides spider.start_url. The run summary is printed as JSON; an
// interrupted crawl still prints its partial summary and exits cleanly.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl [start-url]",
		Short: "Crawl from a start URL and index every page within the depth limit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := applyCrawlOverrides(cmd, a.cfg, args, flags)
			return runCrawl(cmd.Context(), cmd.OutOrStdout(), cfg, a.logger)
		},
	}
	cmd.Flags().IntVar(&flags.depth, "depth", 0, "override spider.max_depth")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "override spider.worker_count")
	return cmd
}

func applyCrawlOverrides(cmd *cobra.Command, cfg config.Config, args []string, flags crawlFlags) config.Config {
	if len(args) == 1 {
		cfg.Spider.StartURL = args[0]
	}
	if cmd.Flags().Changed("depth") {
		cfg.Spider.MaxDepth = flags.depth
	}
	if cmd.Flags().Changed("workers") {
		cfg.Spider.WorkerCount = flags.workers
	}
	return cfg
}

func runCrawl(ctx context.Context, out io.Writer, cfg config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateCrawl(); err != nil {
		return err
	}

	store, err := openIndexStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	stopMetrics := startMetricsListener(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:           cfg.Spider.UserAgent,
		Timeout:             cfg.FetchTimeout(),
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout(),
		MaxRedirects:        cfg.HTTP.MaxRedirects,
		MaxBodyBytes:        cfg.HTTP.MaxBodyBytes,
	})

	sp, err := spider.New(spider.Config{
		StartURL:    cfg.Spider.StartURL,
		MaxDepth:    cfg.Spider.MaxDepth,
		WorkerCount: cfg.Spider.WorkerCount,
	}, fetcher, store, logger.Named("spider"))
	if err != nil {
		return fmt.Errorf("build spider: %w", err)
	}

	summary, err := sp.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(summary); encErr != nil {
		return fmt.Errorf("write summary: %w", encErr)
	}
	return nil
}

// startMetricsListener serves /metrics on addr for the lifetime of a crawl.
// An empty addr disables it.
func startMetricsListener(addr string, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listener started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener error", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics listener shutdown error", zap.Error(err))
		}
	}
}
