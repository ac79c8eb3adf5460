package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultFetchTimeout caps each stylesheet download
const DefaultFetchTimeout = 5 * time.Second

// maxStylesheetSize bounds how much of a response body is read
const maxStylesheetSize = 8 << 20

// ErrTooLarge is returned for stylesheets over maxStylesheetSize
var ErrTooLarge = errors.New("stylesheet exceeds size limit")

// Fetcher downloads a stylesheet body
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// StatusError is returned for responses outside the 2xx range
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// HTTPFetcher fetches stylesheets over HTTP
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Fetch performs a GET and returns the body of a 2xx response
func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/css,*/*;q=0.1")
	req.Header.Set("User-Agent", "OptiCore")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: src, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStylesheetSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src, err)
	}
	if len(body) > maxStylesheetSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, src)
	}
	return body, nil
}

// ValidURL reports whether src is an absolute http(s) URL with a host
func ValidURL(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && u.User == nil
}
