// Package github provides the github_org_profile tool, which reads a
// company's public GitHub organization for tech-stack evidence.
package github

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v60/github"
)

// Client wraps the GitHub API client. The token is optional; without one
// requests are unauthenticated and rate limited more tightly.
type Client struct {
	inner *gh.Client
}

// NewClient creates a GitHub API client.
func NewClient(token string) *Client {
	httpClient := &http.Client{}
	if token != "" {
		httpClient.Transport = &tokenTransport{token: token}
	}
	return &Client{inner: gh.NewClient(httpClient)}
}

// NewClientWithBaseURL points the client at a GitHub Enterprise or test API.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	c := NewClient(token)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("github: parse base url: %w", err)
	}
	c.inner.BaseURL = u
	return c, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}
