package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultMaxPageSize limits how much of a page body is parsed.
	DefaultMaxPageSize int64 = 5 * 1024 * 1024

	// DefaultMaxRedirects limits the meta refresh hops followed for one page.
	DefaultMaxRedirects = 5

	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// PageFetcher retrieves pages and follows meta refresh directives.
type PageFetcher struct {
	client       *http.Client
	maxBodySize  int64
	maxRedirects int
}

// FetcherOption configures a PageFetcher.
type FetcherOption func(*PageFetcher)

// WithFetcherMaxBodySize sets the maximum number of body bytes parsed.
func WithFetcherMaxBodySize(size int64) FetcherOption {
	return func(f *PageFetcher) {
		f.maxBodySize = size
	}
}

// WithFetcherMaxRedirects sets how many meta refresh hops are followed.
// With 0 every page carrying a refresh target is skipped.
func WithFetcherMaxRedirects(n int) FetcherOption {
	return func(f *PageFetcher) {
		f.maxRedirects = n
	}
}

// NewPageFetcher creates a fetcher that sends requests through client.
func NewPageFetcher(client *http.Client, opts ...FetcherOption) *PageFetcher {
	f := &PageFetcher{
		client:       client,
		maxBodySize:  DefaultMaxPageSize,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchedPage is the page that was actually scanned for a requested URL.
type FetchedPage struct {
	// URL is the final URL of the scanned page.
	URL string

	// Chain lists the requested URL followed by every meta refresh target
	// fetched in its place.
	Chain []string

	StatusCode int
	Result     *ParseResult
}

// Redirected reports whether a meta refresh replaced the requested page.
func (p *FetchedPage) Redirected() bool {
	return len(p.Chain) > 1
}

// Fetch GETs pageURL and parses it. When the page carries a meta refresh
// directive, the target is fetched in its place and the original page is not
// scanned. Hops are followed in a loop bounded by the redirect limit; a
// target already fetched in the same chain ends it and the current page is
// scanned.
//
// On error the returned page is non-nil and its Chain lists the URLs
// requested so far.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (*FetchedPage, error) {
	page := &FetchedPage{Chain: []string{pageURL}}
	seen := map[string]struct{}{normalizeURL(pageURL): {}}
	current := pageURL

	for hops := 0; ; hops++ {
		finalURL, status, result, err := f.get(ctx, current)
		page.StatusCode = status
		if err != nil {
			return page, err
		}
		page.URL = finalURL
		page.Result = result

		if result.Refresh == "" {
			return page, nil
		}
		key := normalizeURL(result.Refresh)
		if _, loop := seen[key]; loop {
			return page, nil
		}
		if hops >= f.maxRedirects {
			page.Result = nil
			return page, fmt.Errorf("%w: %s after %d hops", ErrTooManyRedirects, pageURL, hops)
		}
		seen[key] = struct{}{}
		page.Chain = append(page.Chain, result.Refresh)
		current = result.Refresh
	}
}

// get performs one request and parses the body.
func (f *PageFetcher) get(ctx context.Context, pageURL string) (string, int, *ParseResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHTML)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, pageURL, resp.StatusCode)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	result, err := NewParser(finalURL).Parse(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return finalURL, resp.StatusCode, nil, fmt.Errorf("failed to parse %s: %w", finalURL, err)
	}
	return finalURL, resp.StatusCode, result, nil
}
