// Package supabase talks to a Supabase project: GoTrue for identity and
// PostgREST for the profiles and anime tables.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

const maxBodySize = 1 << 20

// HTTPClient is an interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client holds the project URL and publishable key shared by Auth and Profiles.
type Client struct {
	http    HTTPClient
	baseURL string
	apiKey  string
}

// New creates a Client for the project at baseURL.
func New(client HTTPClient, baseURL, apiKey string) *Client {
	return &Client{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	token   string
	headers map[string]string
}

type response struct {
	status int
	body   []byte
}

// do sends req and returns the raw response. Non-2xx statuses become *APIError.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	token := req.token
	if token == "" {
		token = c.apiKey
	}
	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, raw)
	}
	return &response{status: resp.StatusCode, body: raw}, nil
}
