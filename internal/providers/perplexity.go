package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	perplexityBaseURL = "https://api.perplexity.ai"
	perplexityModel   = "sonar"
	perplexityTimeout = 30 * time.Second
)

// Answer is a grounded answer with its citations.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// PerplexityClient asks grounded research questions through the
// Perplexity API, which answers from live web search with citations.
type PerplexityClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPerplexityClient builds a question-answering client.
func NewPerplexityClient(apiKey string, logger *zap.Logger) *PerplexityClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerplexityClient{
		apiKey:     apiKey,
		baseURL:    perplexityBaseURL,
		model:      perplexityModel,
		httpClient: &http.Client{Timeout: perplexityTimeout},
		logger:     logger,
	}
}

// Available reports whether the Perplexity API is configured.
func (c *PerplexityClient) Available() bool {
	return c.apiKey != ""
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model               string              `json:"model"`
	Messages            []perplexityMessage `json:"messages"`
	SearchRecencyFilter string              `json:"search_recency_filter,omitempty"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Query asks one research question. Recency filters search to a
// window ("day", "week", "month", "year"); empty means unrestricted.
func (c *PerplexityClient) Query(ctx context.Context, question, recency string) (*Answer, error) {
	if !c.Available() {
		return nil, fmt.Errorf("perplexity API key not configured")
	}

	payload := perplexityRequest{
		Model: c.model,
		Messages: []perplexityMessage{
			{Role: "system", Content: "You are a precise business research assistant. Answer factually and cite sources."},
			{Role: "user", Content: question},
		},
		SearchRecencyFilter: recency,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("perplexity API returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse query response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("perplexity API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("perplexity returned no choices")
	}

	c.logger.Debug("perplexity query complete",
		zap.Int("citations", len(parsed.Citations)))
	return &Answer{
		Answer:  parsed.Choices[0].Message.Content,
		Sources: parsed.Citations,
	}, nil
}

// VerifyFact asks whether a specific claim holds, scoped to recent
// sources.
func (c *PerplexityClient) VerifyFact(ctx context.Context, claim string) (*Answer, error) {
	question := fmt.Sprintf("Verify this claim and state whether it is accurate, outdated, or wrong: %s", claim)
	return c.Query(ctx, question, "month")
}
