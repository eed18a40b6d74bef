// Package search queries the Serper web search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://google.serper.dev"
	searchPath     = "/search"

	// maxErrorBody caps how much of an error response is logged.
	maxErrorBody = 1 << 10
)

var (
	ErrMissingAPIKey = errors.New("search: api key is required")
	ErrEmptyQuery    = errors.New("search: query is empty")
	ErrUpstream      = errors.New("search: upstream error")
)

// Result is a single organic search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Client calls the Serper search endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each search call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}

	return c, nil
}

type apiRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type apiResponse struct {
	Organic []Result `json:"organic"`
}

// Search returns up to num organic results for query. The request is bound to
// ctx, so cancelling the caller aborts the HTTP round trip.
func (c *Client) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	body, err := json.Marshal(apiRequest{Q: query, Num: num})
	if err != nil {
		return nil, fmt.Errorf("search.Search: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search.Search: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("search.Search: %w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		zerolog.Ctx(ctx).Warn().
			Int("status", resp.StatusCode).
			Bytes("body", bytes.TrimSpace(msg)).
			Msg("search.Search: upstream rejected request")
		return nil, fmt.Errorf("search.Search: %w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("search.Search: %w: decode: %w", ErrUpstream, err)
	}

	if num > 0 && len(out.Organic) > num {
		out.Organic = out.Organic[:num]
	}

	return out.Organic, nil
}
