// Package web provides the fetch_page tool: a domain-restricted page fetch
// that turns a page into text evidence.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
)

const (
	name = "fetch_page"

	// DefaultMaxBytes caps how much of a response body is read.
	DefaultMaxBytes = 2 << 20
	maxText         = 32 * 1024
	maxValue        = 400
)

// FetchTool implements fetch_page with domain allowlisting.
type FetchTool struct {
	allowedDomains []string
	maxBytes       int64
	client         *http.Client
}

// NewFetchTool creates the tool. An empty allowlist permits every domain;
// maxBytes <= 0 uses DefaultMaxBytes.
func NewFetchTool(allowedDomains []string, maxBytes int64) *FetchTool {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &FetchTool{
		allowedDomains: allowedDomains,
		maxBytes:       maxBytes,
		client:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *FetchTool) Name() string                  { return name }
func (f *FetchTool) Description() string           { return "Fetch a web page and record its text as evidence" }
func (f *FetchTool) RequiredCredentials() []string { return nil }

func (f *FetchTool) InputSchema() tools.Schema {
	return tools.Schema{
		Type: "object",
		Properties: map[string]tools.SchemaField{
			"url":    {Type: "string", Description: "URL to fetch"},
			"field":  {Type: "string", Description: "Field the page text populates (default page)"},
			"entity": {Type: "string", Description: "Company or person the page is about"},
		},
		Required: []string{"url"},
	}
}

// Invoke fetches the page. Emails on the page become email records.
func (f *FetchTool) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	rawURL := tools.String(args, "url")
	if err := evidence.ValidateURL(rawURL); err != nil {
		return tools.Result{}, tools.InvalidArgs(name, "%v", err)
	}
	if err := checkAllowedDomain(rawURL, f.allowedDomains); err != nil {
		return tools.Result{}, tools.Fatal(name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return tools.Result{}, tools.Fatal(name, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bdagent/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return tools.Result{}, tools.Unavailable(name, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tools.Result{}, tools.HTTPStatus(name, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return tools.Result{}, tools.Unavailable(name, fmt.Errorf("read body: %w", err))
	}

	html := string(body)
	text := stripHTML(html)
	if len(text) > maxText {
		text = evidence.Cut(text, maxText)
	}
	if text == "" {
		return tools.Found(), nil
	}

	field := tools.String(args, "field")
	if field == "" {
		field = "page"
	}
	entity := tools.String(args, "entity")
	title := pageTitle(html)
	if title == "" {
		title = rawURL
	}

	var records []evidence.Evidence
	if e, err := evidence.New(evidence.Params{
		Claim: title, Field: field, Entity: entity, Value: evidence.Clip(text, maxValue),
		SourceURL: rawURL, Snippet: evidence.Clip(text, 500), Confidence: 0.6,
	}); err == nil {
		records = append(records, e)
	}
	seen := make(map[string]bool)
	for _, em := range emailPattern.FindAllString(text, 20) {
		em = strings.ToLower(em)
		if seen[em] {
			continue
		}
		seen[em] = true
		if e, err := evidence.New(evidence.Params{
			Claim: "Email " + em + " appears on " + title, Field: "email", Entity: entity, Value: em,
			SourceURL: rawURL, Snippet: around(text, em, 120), Confidence: 0.55,
		}); err == nil {
			records = append(records, e)
		}
	}
	return tools.Found(records...), nil
}

// checkAllowedDomain verifies the URL's host, or a parent of it, is allowed.
func checkAllowedDomain(rawURL string, allowedDomains []string) error {
	if len(allowedDomains) == 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	host := strings.ToLower(parsed.Hostname())
	for _, d := range allowedDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return errors.New("domain " + host + " is not in the allowed list")
}

var (
	reTitle      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNav        = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	reFooter     = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`[ \t]+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

var entities = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
)

func pageTitle(html string) string {
	m := reTitle.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(entities.Replace(m[1]))
}

// stripHTML drops scripts, styles and chrome, then all tags, and collapses
// whitespace into non-empty lines.
func stripHTML(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")
	s = reTitle.ReplaceAllString(s, "")
	s = reTags.ReplaceAllString(s, " ")
	s = entities.Replace(s)
	s = reWhitespace.ReplaceAllString(s, " ")

	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func around(text, needle string, n int) string {
	i := strings.Index(strings.ToLower(text), needle)
	if i < 0 {
		return ""
	}
	start, end := max(0, i-n/2), min(len(text), i+len(needle)+n/2)
	return strings.TrimSpace(text[start:end])
}

