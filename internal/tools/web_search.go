package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultSearchCount   = 5
	maxSearchCount       = 10
	searchTimeoutSeconds = 10
)

// searchHit is one normalized search result item.
type searchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchProviderConfig holds one provider's credentials and endpoint override.
type SearchProviderConfig struct {
	APIKey  string
	BaseURL string
}

// WebSearchConfig selects the active provider and its configuration, per
// tools.web.search.{provider, providers.{brave|tavily|serper}.{apiKey, baseUrl}}.
type WebSearchConfig struct {
	Provider  string
	Brave     SearchProviderConfig
	Tavily    SearchProviderConfig
	Serper    SearchProviderConfig
	CacheTTL  time.Duration
}

var searchEnvKeys = map[string]string{
	"brave":  "BRAVE_API_KEY",
	"tavily": "TAVILY_API_KEY",
	"serper": "SERPER_API_KEY",
}

var searchDefaultBaseURLs = map[string]string{
	"brave":  "https://api.search.brave.com/res/v1/web/search",
	"tavily": "https://api.tavily.com/search",
	"serper": "https://google.serper.dev/search",
}

// WebSearchTool dispatches to a single configured search provider.
type WebSearchTool struct {
	cfg   WebSearchConfig
	cache *webCache
}

func NewWebSearchTool(cfg WebSearchConfig) *WebSearchTool {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &WebSearchTool{cfg: cfg, cache: newWebCache(defaultCacheMaxEntries, ttl)}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets from search results."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query string.",
			},
			"count": map[string]interface{}{
				"type":        "number",
				"description": "Number of results to return (1-10).",
				"minimum":     1.0,
				"maximum":     float64(maxSearchCount),
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}

	count := defaultSearchCount
	if c, ok := args["count"].(float64); ok {
		count = int(c)
	}
	if count < 1 {
		count = 1
	}
	if count > maxSearchCount {
		count = maxSearchCount
	}

	provider := strings.ToLower(strings.TrimSpace(t.cfg.Provider))
	if provider == "" {
		provider = "brave"
	}

	cacheKey := fmt.Sprintf("%s:%s:%d", provider, query, count)
	if cached, ok := t.cache.get(cacheKey); ok {
		slog.Debug("web_search cache hit", "query", query, "provider", provider)
		return NewResult(cached)
	}

	providerCfg, ok := t.providerConfig(provider)
	if !ok {
		return ErrorResult(fmt.Sprintf("Error: unknown search provider: %s", provider))
	}

	apiKey := providerCfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(searchEnvKeys[provider])
	}
	if apiKey == "" {
		return ErrorResult(fmt.Sprintf(
			"Error: %s api key not configured (set tools.web.search.providers.%s.apiKey or %s)",
			provider, provider, searchEnvKeys[provider],
		))
	}

	baseURL := providerCfg.BaseURL
	if baseURL == "" {
		baseURL = searchDefaultBaseURLs[provider]
	}

	var hits []searchHit
	var err error
	switch provider {
	case "brave":
		hits, err = searchBrave(ctx, query, count, apiKey, baseURL)
	case "tavily":
		hits, err = searchTavily(ctx, query, count, apiKey, baseURL)
	case "serper":
		hits, err = searchSerper(ctx, query, count, apiKey, baseURL)
	}
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %s search failed: %v", provider, err))
	}

	formatted := formatSearchResults(query, hits, provider)
	wrapped := wrapExternalContent(formatted, "Web Search", false)
	t.cache.set(cacheKey, wrapped)
	return NewResult(wrapped)
}

func (t *WebSearchTool) providerConfig(provider string) (SearchProviderConfig, bool) {
	switch provider {
	case "brave":
		return t.cfg.Brave, true
	case "tavily":
		return t.cfg.Tavily, true
	case "serper":
		return t.cfg.Serper, true
	default:
		return SearchProviderConfig{}, false
	}
}

func formatSearchResults(query string, hits []searchHit, provider string) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for: %s", query)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search results for: %s (via %s)\n\n", query, provider))
	for i, h := range hits {
		sb.WriteString(fmt.Sprintf("%d. %s\n   %s\n", i+1, h.Title, h.URL))
		if h.Snippet != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", h.Snippet))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func searchHTTPClient() *http.Client {
	return &http.Client{Timeout: searchTimeoutSeconds * time.Second}
}

func searchBrave(ctx context.Context, query string, count int, apiKey, baseURL string) ([]searchHit, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", count))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	resp, err := searchHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	hits := make([]searchHit, 0, len(payload.Web.Results))
	for i, r := range payload.Web.Results {
		if i >= count {
			break
		}
		hits = append(hits, searchHit{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return hits, nil
}

func searchTavily(ctx context.Context, query string, count int, apiKey, baseURL string) ([]searchHit, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"api_key":     apiKey,
		"query":       query,
		"max_results": count,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := searchHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	hits := make([]searchHit, 0, len(payload.Results))
	for i, r := range payload.Results {
		if i >= count {
			break
		}
		snippet := r.Content
		if snippet == "" {
			snippet = r.Snippet
		}
		hits = append(hits, searchHit{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return hits, nil
}

func searchSerper(ctx context.Context, query string, count int, apiKey, baseURL string) ([]searchHit, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"q":   query,
		"num": count,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", apiKey)

	resp, err := searchHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	var payload struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	hits := make([]searchHit, 0, len(payload.Organic))
	for i, r := range payload.Organic {
		if i >= count {
			break
		}
		hits = append(hits, searchHit{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return hits, nil
}
