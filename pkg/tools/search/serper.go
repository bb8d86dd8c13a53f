// Package search provides the Serper-backed web search tools.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the Serper API endpoint.
const DefaultBaseURL = "https://google.serper.dev"

// ErrMissingKey is returned when no API key is configured.
var ErrMissingKey = errors.New("serper: SERPER_API_KEY is not set (get a free key at https://serper.dev)")

// Hit is one organic search result.
type Hit struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
	Position int    `json:"position,omitempty"`
}

// StatusError is a non-2xx Serper response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("serper http %d: %s", e.Code, e.Body)
}

// Client calls the Serper search API.
type Client struct {
	APIKey  string
	BaseURL string
	client  *http.Client

	// MaxRateLimitRetries bounds the 429 backoff loop.
	MaxRateLimitRetries int
	backoff             time.Duration
}

// NewClient constructs a Serper client with a 10s HTTP timeout.
func NewClient(apiKey string) *Client {
	return NewClientWithHTTP(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewClientWithHTTP constructs a Serper client using the supplied HTTP client.
func NewClientWithHTTP(apiKey string, hc *http.Client) *Client {
	return &Client{
		APIKey:              apiKey,
		BaseURL:             DefaultBaseURL,
		client:              hc,
		MaxRateLimitRetries: 3,
		backoff:             time.Second,
	}
}

// Search runs a query and returns up to num organic hits.
func (c *Client) Search(ctx context.Context, query string, num int) ([]Hit, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, ErrMissingKey
	}
	if num <= 0 {
		num = 10
	}
	payload, err := json.Marshal(map[string]any{"q": query, "num": num})
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := c.backoff
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/search", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-KEY", c.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.MaxRateLimitRetries {
			break
		}
		resp.Body.Close()

		// Back off on 429, doubling up to 30s.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var response struct {
		Organic []Hit `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("serper: decode response: %w", err)
	}
	if len(response.Organic) > num {
		response.Organic = response.Organic[:num]
	}
	return response.Organic, nil
}
