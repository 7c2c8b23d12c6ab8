package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"veritas/pkg/veritas"
)

const (
	defaultBaseURL     = "https://api.tavily.com"
	defaultHTTPTimeout = 30 * time.Second

	searchPath = "/search"
)

// ClientOption mutates Tavily client configuration.
type ClientOption func(*Client)

// WithBaseURL overrides the Tavily API endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// Client is a Tavily web search API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Tavily search client.
func NewClient(apiKey string, options ...ClientOption) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, fmt.Errorf("new tavily client: missing api key")
	}

	client := &Client{
		apiKey:  trimmedKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
	for _, option := range options {
		option(client)
	}

	if _, err := url.Parse(client.baseURL); err != nil {
		return nil, fmt.Errorf("new tavily client: parse base url: %w", err)
	}

	return client, nil
}

type searchRequestBody struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type searchResponseBody struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one query against the Tavily API.
func (c *Client) Search(ctx context.Context, req veritas.SearchRequest) (veritas.SearchResponse, error) {
	if c == nil {
		return veritas.SearchResponse{}, fmt.Errorf("tavily search: nil client")
	}
	if err := req.Validate(); err != nil {
		return veritas.SearchResponse{}, fmt.Errorf("tavily search validate request: %w", err)
	}

	body, err := json.Marshal(searchRequestBody{
		APIKey:            c.apiKey,
		Query:             req.Query,
		SearchDepth:       string(req.Depth),
		MaxResults:        req.MaxResults,
		IncludeAnswer:     req.IncludeAnswer,
		IncludeRawContent: false,
	})
	if err != nil {
		return veritas.SearchResponse{}, fmt.Errorf("tavily search encode request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+searchPath,
		bytes.NewReader(body),
	)
	if err != nil {
		return veritas.SearchResponse{}, fmt.Errorf("tavily search build request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return veritas.SearchResponse{}, fmt.Errorf("%w: tavily request: %w", veritas.ErrSearchFailed, err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		// Bounded read keeps provider error snippets out of unbounded memory.
		snippet, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 512))
		return veritas.SearchResponse{}, fmt.Errorf(
			"%w: tavily returned HTTP %d: %s",
			veritas.ErrSearchFailed,
			httpResponse.StatusCode,
			strings.TrimSpace(string(snippet)),
		)
	}

	var decoded searchResponseBody
	if err := json.NewDecoder(httpResponse.Body).Decode(&decoded); err != nil {
		return veritas.SearchResponse{}, fmt.Errorf("%w: tavily decode response: %w", veritas.ErrSearchFailed, err)
	}

	response := veritas.SearchResponse{
		Answer:  decoded.Answer,
		Results: make([]veritas.SearchResult, 0, len(decoded.Results)),
	}
	for _, result := range decoded.Results {
		response.Results = append(response.Results, veritas.SearchResult{
			Title:   result.Title,
			URL:     result.URL,
			Content: result.Content,
			Score:   result.Score,
		})
	}

	return response, nil
}

var _ veritas.SearchClient = (*Client)(nil)
