// Package perplexity provides a research tool backed by Perplexity's online
// models. Only cited answers become evidence.
package perplexity

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

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
)

const (
	// Credential is the environment variable the tool needs.
	Credential = "PERPLEXITY_API_KEY"
	// DefaultBaseURL is the Perplexity API endpoint.
	DefaultBaseURL = "https://api.perplexity.ai"
	// DefaultModel is the online model used for research.
	DefaultModel = "llama-3.1-sonar-small-128k-online"

	name       = "perplexity_search"
	maxValue   = 400
	maxSnippet = 500
)

// Tool is the perplexity_search tool.
type Tool struct {
	APIKey  string
	BaseURL string
	Model   string
	client  *http.Client
}

// New creates the tool with a 30s HTTP timeout.
func New(apiKey string) *Tool {
	return &Tool{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Tool) Name() string                  { return name }
func (t *Tool) RequiredCredentials() []string { return []string{Credential} }

func (t *Tool) Description() string {
	return "Ask a research question; the cited sources of the answer become evidence."
}

func (t *Tool) InputSchema() tools.Schema {
	return tools.Schema{
		Type: "object",
		Properties: map[string]tools.SchemaField{
			"query":  {Type: "string", Description: "Research question"},
			"field":  {Type: "string", Description: "Field the answer populates, e.g. signal.funding"},
			"entity": {Type: "string", Description: "Company or person the question is about"},
		},
		Required: []string{"query"},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Invoke asks the question and turns each citation into a record.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return tools.Result{}, tools.Fatal(name, errors.New("PERPLEXITY_API_KEY not set"))
	}
	query := tools.String(args, "query")
	payload, err := json.Marshal(map[string]any{
		"model":    t.Model,
		"messages": []map[string]string{{"role": "user", "content": query}},
	})
	if err != nil {
		return tools.Result{}, tools.Fatal(name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return tools.Result{}, tools.Fatal(name, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return tools.Result{}, tools.Unavailable(name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return tools.Result{}, tools.HTTPStatus(name, resp.StatusCode, string(body))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return tools.Result{}, tools.Unavailable(name, fmt.Errorf("decode response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return tools.Found(), nil
	}
	answer := strings.TrimSpace(cr.Choices[0].Message.Content)

	field, entity := tools.String(args, "field"), tools.String(args, "entity")
	claim := firstSentence(answer)
	var records []evidence.Evidence
	for i, url := range cr.Citations {
		e, err := evidence.New(evidence.Params{
			Claim:      claim,
			Field:      field,
			Entity:     entity,
			Value:      evidence.Clip(answer, maxValue),
			SourceURL:  url,
			Snippet:    evidence.Clip(answer, maxSnippet),
			Confidence: max(0.3, 0.65-0.05*float64(i)),
		})
		if err == nil {
			records = append(records, e)
		}
	}
	return tools.Found(records...), nil
}

func firstSentence(s string) string {
	for i, r := range s {
		if (r == '.' || r == '\n') && i > 20 {
			return strings.TrimSpace(s[:i+1])
		}
	}
	return evidence.Clip(s, 200)
}

