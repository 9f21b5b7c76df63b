package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"rental-scraper/utils"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 8 << 20

// HTTP transport defaults
const (
	defaultMaxIdleConns          = 100
	defaultMaxIdleConnsPerHost   = 4
	defaultIdleConnTimeout       = 90 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultDialTimeout           = 10 * time.Second
)

// Fetcher retrieves the markup of one page. Timeouts are carried by ctx.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// HTTPFetcher fetches pages with a plain HTTP client and retries transient
// failures with exponential back-off.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retry     *utils.RetryConfig
}

// NewHTTPFetcher creates an HTTPFetcher sending the given user agent.
func NewHTTPFetcher(userAgent string, retry *utils.RetryConfig) *HTTPFetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}
	return &HTTPFetcher{
		client:    &http.Client{Transport: transport},
		userAgent: userAgent,
		retry:     retry,
	}
}

// Fetch performs a GET request. Client errors (4xx) are not retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, "fetch "+pageURL, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return utils.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{URL: pageURL, Code: resp.StatusCode}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return utils.Permanent(statusErr)
			}
			return statusErr
		}

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		body = b
		return nil
	})
	return body, err
}
