// Package providers implements clients for the external research data
// sources: Firecrawl for web scraping, Exa for semantic search, and
// Perplexity for grounded question answering. Every client reports
// availability from its API key so skills can degrade gracefully when
// a source is not configured.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	firecrawlBaseURL = "https://api.firecrawl.dev"
	scrapeTimeout    = 60 * time.Second
	maxResponseBytes = 4 * 1024 * 1024
	maxPlainText     = 20000
)

// ScrapeResult is the extracted content of one page.
type ScrapeResult struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
}

// FirecrawlClient scrapes pages through the Firecrawl API, falling
// back to a plain HTTP fetch with HTML text extraction when no API
// key is configured or the API call fails.
type FirecrawlClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFirecrawlClient builds a scraping client. An empty API key is
// allowed; the client then always uses the plain-fetch fallback.
func NewFirecrawlClient(apiKey string, logger *zap.Logger) *FirecrawlClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirecrawlClient{
		apiKey:     apiKey,
		baseURL:    firecrawlBaseURL,
		httpClient: &http.Client{Timeout: scrapeTimeout},
		logger:     logger,
	}
}

// Available reports whether the Firecrawl API is configured.
func (c *FirecrawlClient) Available() bool {
	return c.apiKey != ""
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

// Scrape fetches one page. It prefers the Firecrawl API and degrades
// to a plain fetch on any failure.
func (c *FirecrawlClient) Scrape(ctx context.Context, pageURL string) (*ScrapeResult, error) {
	if c.Available() {
		result, err := c.scrapeAPI(ctx, pageURL)
		if err == nil {
			return result, nil
		}
		c.logger.Warn("firecrawl scrape failed, falling back to plain fetch",
			zap.String("url", pageURL),
			zap.Error(err))
	}
	return c.fetchPlain(ctx, pageURL)
}

func (c *FirecrawlClient) scrapeAPI(ctx context.Context, pageURL string) (*ScrapeResult, error) {
	body, err := json.Marshal(firecrawlRequest{URL: pageURL, Formats: []string{"markdown"}})
	if err != nil {
		return nil, fmt.Errorf("marshal scrape request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read scrape response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape API returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse scrape response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("scrape API error: %s", parsed.Error)
	}
	return &ScrapeResult{
		URL:         pageURL,
		Title:       parsed.Data.Metadata.Title,
		Description: parsed.Data.Metadata.Description,
		Content:     parsed.Data.Markdown,
	}, nil
}

// fetchPlain downloads the page directly and extracts visible text.
func (c *FirecrawlClient) fetchPlain(ctx context.Context, pageURL string) (*ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bcos-research/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	result := &ScrapeResult{URL: pageURL}
	var text strings.Builder
	extractText(doc, result, &text)
	result.Content = truncate(normalizeWhitespace(text.String()), maxPlainText)
	return result, nil
}

// extractText walks the DOM collecting visible text, skipping script
// and style subtrees, and picks up the title along the way.
func extractText(n *html.Node, result *ScrapeResult, text *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "iframe":
			return
		case "title":
			if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				result.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			if result.Description == "" && attrValue(n, "name") == "description" {
				result.Description = attrValue(n, "content")
			}
		}
	}
	if n.Type == html.TextNode {
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			text.WriteString(trimmed)
			text.WriteByte(' ')
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		extractText(child, result, text)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
