// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/websearch/internal/crawler"
)

const (
	// DefaultUserAgent is sent when Config.UserAgent is empty.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	defaultTimeout             = 15 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultMaxRedirects        = 5
	defaultMaxBodyBytes        = 5 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent           string
	Timeout             time.Duration
	TLSHandshakeTimeout time.Duration
	// MaxRedirects caps how many redirects one fetch follows.
	MaxRedirects int
	MaxBodyBytes int
	// TLSConfig is cloned for every TLS connection. Nil means system roots.
	TLSConfig *tls.Config
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = defaultTLSHandshakeTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type redirectCountKey struct{}

// New builds a Fetcher. Clones share the base collector's HTTP client, so
// the timeout, redirect policy and transport are configured here once.
func New(cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
		colly.UserAgent(cfg.UserAgent),
	)

	f := &Fetcher{cfg: cfg, baseCollector: c}
	c.SetRequestTimeout(cfg.Timeout)
	c.SetRedirectHandler(f.checkRedirect)
	c.WithTransport(newHTTPTransport(cfg))
	return f
}

// Fetch executes a single HTTP GET using Colly. A non-2xx terminal status is
// returned together with an ErrHTTPStatus error.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	parts, err := crawler.ParseURL(request.URL)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %q: %w", request.URL, err)
	}
	if _, ok := connectorFor(parts.Scheme, f.cfg); !ok {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %q: %w: unsupported scheme %q",
			request.URL, crawler.ErrMalformedURL, parts.Scheme)
	}

	var (
		result    crawler.FetchResponse
		fetchErr  error
		redirects int
	)
	start := time.Now()
	collector := f.buildCollector(ctx, request, start, &result, &fetchErr, &redirects)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return crawler.FetchResponse{}, err
	}
	result.Redirects = redirects
	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("fetch %q: %w: %d %s",
			request.URL, crawler.ErrHTTPStatus, result.StatusCode, http.StatusText(result.StatusCode))
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
	redirects *int,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = context.WithValue(ctx, redirectCountKey{}, redirects)
	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        request.URL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch %q: %w: %w", url, crawler.ErrNetwork, ctx.Err())
	case err := <-done:
		if err == nil {
			err = *fetchErr
		}
		if err != nil {
			return classifyError(url, err)
		}
		return nil
	}
}

// classifyError wraps a transport-level failure in the crawler taxonomy.
func classifyError(url string, err error) error {
	if errors.Is(err, crawler.ErrRedirectLimit) {
		return fmt.Errorf("fetch %q: %w", url, err)
	}
	return fmt.Errorf("fetch %q: %w: %w", url, crawler.ErrNetwork, err)
}

// checkRedirect enforces the redirect cap and records how many hops the
// request has taken so far.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > f.cfg.MaxRedirects {
		return fmt.Errorf("%w: stopped after %d redirects", crawler.ErrRedirectLimit, f.cfg.MaxRedirects)
	}
	if n, ok := req.Context().Value(redirectCountKey{}).(*int); ok {
		*n = len(via)
	}
	return nil
}

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

var _ crawler.Fetcher = (*Fetcher)(nil)
