// Package catalog is the rate-limited client for the external anime catalog APIs.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultDelay = 1000 * time.Millisecond
	maxBodySize  = 5 * 1024 * 1024
	userAgent    = "AnimeVerse/1.0"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Client.
type Option func(*Client)

// WithDelay overrides the fixed delay paid before every request.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithGlobalLimit admits a single in-flight request across all callers.
// Without it each call only pays its own delay, so concurrent callers are
// not bounded as a group.
func WithGlobalLimit() Option {
	return func(c *Client) { c.serial = semaphore.NewWeighted(1) }
}

// WithGenreCache shares a genre cache between clients.
func WithGenreCache(cache *GenreCache) Option {
	return func(c *Client) { c.genres = cache }
}

// Client issues GET requests against the catalog REST API.
type Client struct {
	client  HTTPClient
	baseURL string
	delay   time.Duration
	serial  *semaphore.Weighted
	genres  *GenreCache
}

// New creates a Client for the API rooted at baseURL.
func New(client HTTPClient, baseURL string, opts ...Option) *Client {
	c := &Client{
		client:  client,
		baseURL: baseURL,
		delay:   defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.genres == nil {
		c.genres = NewGenreCache()
	}
	return c
}

// Fetch waits the fixed delay, then issues a GET for path and returns the raw body.
// Any status outside 2xx is returned as a *NetworkError. Nothing is retried.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	if c.serial != nil {
		if err := c.serial.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.serial.Release(1)
	}

	if err := sleep(ctx, c.delay); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Path: path, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Path: path, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
