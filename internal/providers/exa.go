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
	exaBaseURL = "https://api.exa.ai"
	exaTimeout = 30 * time.Second
)

// SearchResult is one hit from a semantic search.
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	PublishedDate string  `json:"published_date,omitempty"`
	Text          string  `json:"text,omitempty"`
	Score         float64 `json:"score,omitempty"`
}

// ExaClient performs semantic web search through the Exa API.
type ExaClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewExaClient builds a search client.
func NewExaClient(apiKey string, logger *zap.Logger) *ExaClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExaClient{
		apiKey:     apiKey,
		baseURL:    exaBaseURL,
		httpClient: &http.Client{Timeout: exaTimeout},
		logger:     logger,
	}
}

// Available reports whether the Exa API is configured.
func (c *ExaClient) Available() bool {
	return c.apiKey != ""
}

type exaRequest struct {
	Query      string       `json:"query,omitempty"`
	URL        string       `json:"url,omitempty"`
	NumResults int          `json:"numResults"`
	Category   string       `json:"category,omitempty"`
	Contents   *exaContents `json:"contents,omitempty"`
}

type exaContents struct {
	Text exaText `json:"text"`
}

type exaText struct {
	MaxCharacters int `json:"maxCharacters"`
}

type exaResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		PublishedDate string  `json:"publishedDate"`
		Text          string  `json:"text"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// Search runs a semantic query and returns hits with text excerpts.
func (c *ExaClient) Search(ctx context.Context, query string, numResults int) ([]SearchResult, error) {
	if numResults <= 0 {
		numResults = 5
	}
	return c.post(ctx, "/search", exaRequest{
		Query:      query,
		NumResults: numResults,
		Contents:   &exaContents{Text: exaText{MaxCharacters: 2000}},
	})
}

// SearchCompanyInfo searches for background on a company.
func (c *ExaClient) SearchCompanyInfo(ctx context.Context, company string) ([]SearchResult, error) {
	query := fmt.Sprintf("%s company business model products services overview", company)
	return c.Search(ctx, query, 5)
}

// SearchMarketTrends searches for trends in an industry.
func (c *ExaClient) SearchMarketTrends(ctx context.Context, industry string) ([]SearchResult, error) {
	query := fmt.Sprintf("%s industry market trends analysis 2026", industry)
	return c.Search(ctx, query, 5)
}

// SearchNews searches recent news about a company.
func (c *ExaClient) SearchNews(ctx context.Context, company string) ([]SearchResult, error) {
	query := fmt.Sprintf("%s company news announcements", company)
	return c.post(ctx, "/search", exaRequest{
		Query:      query,
		NumResults: 5,
		Category:   "news",
		Contents:   &exaContents{Text: exaText{MaxCharacters: 1500}},
	})
}

// FindSimilarCompanies finds companies similar to the one at the
// given website.
func (c *ExaClient) FindSimilarCompanies(ctx context.Context, websiteURL string, numResults int) ([]SearchResult, error) {
	if numResults <= 0 {
		numResults = 5
	}
	return c.post(ctx, "/findSimilar", exaRequest{
		URL:        websiteURL,
		NumResults: numResults,
		Contents:   &exaContents{Text: exaText{MaxCharacters: 1000}},
	})
}

func (c *ExaClient) post(ctx context.Context, path string, payload exaRequest) ([]SearchResult, error) {
	if !c.Available() {
		return nil, fmt.Errorf("exa API key not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exa API returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed exaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			PublishedDate: r.PublishedDate,
			Text:          r.Text,
			Score:         r.Score,
		})
	}
	c.logger.Debug("exa search complete",
		zap.String("path", path),
		zap.Int("results", len(results)))
	return results, nil
}
