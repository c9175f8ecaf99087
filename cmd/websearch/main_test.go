package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/config"
	"github.com/JakeFAU/websearch/internal/spider"
)

func TestCrawlCommandWithMemoryStore(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body>alpha beta <a href="/next">next</a></body></html>`)
		case "/next":
			fmt.Fprint(w, `<html><body>gamma delta</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	path := writeConfig(t, `
database:
  driver: memory
spider:
  max_depth: 1
  worker_count: 2
logging:
  development: true
`)
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "crawl", srv.URL + "/"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var summary spider.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	require.True(t, summary.Quiescent)
	require.Equal(t, int64(2), summary.Counters.Indexed)
	require.Equal(t, int64(0), summary.Counters.Failed)
}

func TestCrawlCommandRequiresStartURL(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "database:\n  driver: memory\n")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "crawl"})
	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "spider.start_url is required")
}

func TestMigrateCommandWithMemoryStore(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "database:\n  driver: memory\n")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "migrate"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "database:\n  driver: sqlite\n")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "migrate"})
	require.ErrorContains(t, cmd.ExecuteContext(context.Background()), "load config")
}

func TestApplyCrawlOverrides(t *testing.T) {
	t.Parallel()

	cmd := newCrawlCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--depth", "3"}))

	base := config.Config{Spider: config.SpiderConfig{StartURL: "http://a.test/", MaxDepth: 1, WorkerCount: 4}}
	got := applyCrawlOverrides(cmd, base, []string{"http://b.test/"}, crawlFlags{depth: 3, workers: 9})

	require.Equal(t, "http://b.test/", got.Spider.StartURL)
	require.Equal(t, 3, got.Spider.MaxDepth)
	require.Equal(t, 4, got.Spider.WorkerCount, "unchanged flags keep config values")
}

func TestOpenIndexStoreUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := openIndexStore(context.Background(), config.DatabaseConfig{Driver: "sqlite"}, zap.NewNop())
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestStartMetricsListenerDisabled(t *testing.T) {
	t.Parallel()

	stop := startMetricsListener("", zap.NewNop())
	stop()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
