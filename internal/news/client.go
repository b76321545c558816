package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/newslens/backend/pkg/logger"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

// Headline is one article as returned by NewsAPI.
type Headline struct {
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	Author      string
	Source      string
	PublishedAt time.Time
}

// APIClient talks to NewsAPI.org.
type APIClient struct {
	apiKey     string
	country    string
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(apiKey, country string, timeoutSec int) *APIClient {
	if country == "" {
		country = "us"
	}
	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	return &APIClient{
		apiKey:  apiKey,
		country: country,
		baseURL: newsAPIBaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

func (c *APIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// TopHeadlines fetches current headlines, optionally restricted to one
// category. Articles missing a url or title, and the provider's
// "[Removed]" placeholders, are dropped.
func (c *APIClient) TopHeadlines(ctx context.Context, category string, pageSize int) ([]Headline, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	params := url.Values{
		"country":  {c.country},
		"pageSize": {strconv.Itoa(pageSize)},
		"page":     {"1"},
	}
	if category != "" {
		params.Set("category", category)
	}

	return c.fetch(ctx, "top-headlines", params)
}

// Everything searches all indexed articles for a query.
func (c *APIClient) Everything(ctx context.Context, query string, from time.Time, pageSize int) ([]Headline, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	params := url.Values{
		"q":        {query},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(pageSize)},
		"page":     {"1"},
		"language": {"en"},
	}
	if !from.IsZero() {
		params.Set("from", from.Format(time.RFC3339))
	}

	return c.fetch(ctx, "everything", params)
}

func (c *APIClient) fetch(ctx context.Context, endpoint string, params url.Values) ([]Headline, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("newsapi key not configured")
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned status %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			URL         string `json:"url"`
			URLToImage  string `json:"urlToImage"`
			Author      string `json:"author"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode newsapi response: %w", err)
	}

	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s", result.Message)
	}

	var headlines []Headline
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" {
			continue
		}

		publishedAt := time.Now()
		if a.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
				publishedAt = t
			}
		}

		source := a.Source.Name
		if source == "" {
			source = "Unknown Source"
		}

		headlines = append(headlines, Headline{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			Author:      a.Author,
			Source:      source,
			PublishedAt: publishedAt,
		})
	}

	logger.Debug("NewsAPI fetch complete",
		zap.String("endpoint", endpoint),
		zap.Int("articles", len(headlines)),
	)

	return headlines, nil
}
