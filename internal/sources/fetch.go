package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is requests per second across all adapters sharing
	// one fetcher.
	DefaultRateLimit = 5

	defaultUserAgent = "econolens/1.0 (+https://github.com/econolens/econolens)"

	maxBodyBytes = 8 << 20
)

// Fetcher is the single HTTP gateway the adapters go through: one timeout,
// one rate limiter, one place that maps HTTP status to the failure
// taxonomy.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
	log       *slog.Logger
}

// FetcherOption configures the Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRateLimit sets the upstream request budget per second.
func WithRateLimit(perSecond int) FetcherOption {
	return func(f *Fetcher) {
		if perSecond > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

// WithHTTPClient swaps the underlying client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

// NewFetcher builds a fetcher with sane defaults. The per-call context
// deadline is the only timeout; the client carries none, so a configured
// timeout above the default is honored rather than capped.
func NewFetcher(log *slog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{},
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		timeout:   DefaultTimeout,
		userAgent: defaultUserAgent,
		log:       log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches a URL and returns the body. HTTP 404 maps to NotFound, any
// other non-2xx status and every transport error map to FetchError, and a
// blown deadline maps to Timeout.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, FetchFailed("rate limiter", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, FetchFailed("build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.log.Debug("upstream request", slog.String("url", rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, FetchFailed(fmt.Sprintf("GET %s", rawURL), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NotFound(fmt.Sprintf("GET %s: 404", rawURL))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, FetchFailed(fmt.Sprintf("GET %s", rawURL), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, FetchFailed(fmt.Sprintf("read %s", rawURL), err)
	}
	return body, nil
}

// Document fetches a URL and parses it as HTML.
func (f *Fetcher) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, FetchFailed(fmt.Sprintf("parse %s", rawURL), err)
	}
	return doc, nil
}
