package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/metrics"
	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/pkg/logger"
)

// maxStoredContent caps the article body kept from a full-page fetch.
const maxStoredContent = 5000

// maxKeywords caps how many extracted entities are stored per article.
const maxKeywords = 10

// ArticleStore persists ingested articles.
type ArticleStore interface {
	InsertArticle(article *models.Article) (bool, error)
}

// Fetcher pulls headlines from NewsAPI and stores them as articles.
type Fetcher struct {
	client     *APIClient
	store      ArticleStore
	httpClient *http.Client
}

func NewFetcher(client *APIClient, store ArticleStore) *Fetcher {
	return &Fetcher{
		client: client,
		store:  store,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchAndStore ingests up to maxArticles current headlines for a
// category (empty means all). Articles are deduplicated by URL; the
// number of newly stored articles is returned.
func (f *Fetcher) FetchAndStore(ctx context.Context, category string, maxArticles int) (int, error) {
	if category != "" && !models.IsValidCategory(category) {
		return 0, fmt.Errorf("%w: %q is not a valid category", models.ErrValidation, category)
	}

	headlines, err := f.client.TopHeadlines(ctx, category, maxArticles)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch headlines: %w", err)
	}

	created := f.storeHeadlines(ctx, headlines, category)

	logger.Info("Headline fetch complete",
		zap.String("category", category),
		zap.Int("fetched", len(headlines)),
		zap.Int("created", created),
	)

	return created, nil
}

// SearchAndStore ingests up to maxArticles articles matching a free
// text query, looking back over the last week. Stored articles land in
// the general category.
func (f *Fetcher) SearchAndStore(ctx context.Context, query string, maxArticles int) (int, error) {
	if strings.TrimSpace(query) == "" {
		return 0, fmt.Errorf("%w: search query is required", models.ErrValidation)
	}

	headlines, err := f.client.Everything(ctx, query, time.Now().AddDate(0, 0, -7), maxArticles)
	if err != nil {
		return 0, fmt.Errorf("failed to search articles: %w", err)
	}

	created := f.storeHeadlines(ctx, headlines, "general")

	logger.Info("Article search complete",
		zap.String("query", query),
		zap.Int("fetched", len(headlines)),
		zap.Int("created", created),
	)

	return created, nil
}

func (f *Fetcher) storeHeadlines(ctx context.Context, headlines []Headline, category string) int {
	created := 0
	now := time.Now()

	for _, h := range headlines {
		content := h.Content
		if contentTruncated(content) {
			if full, err := f.FetchFullContent(ctx, h.URL); err == nil && full != "" {
				content = full
			}
		}

		article := &models.Article{
			ID:          uuid.New().String(),
			Title:       truncate(h.Title, 500),
			Description: h.Description,
			Content:     content,
			URL:         h.URL,
			ImageURL:    h.ImageURL,
			Author:      h.Author,
			Source:      h.Source,
			Category:    category,
			Keywords:    ExtractKeywords(h.Title + ". " + h.Description),
			Language:    "en",
			PublishedAt: h.PublishedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
			IsActive:    true,
		}

		inserted, err := f.store.InsertArticle(article)
		if err != nil {
			logger.Error("Failed to store article", zap.String("url", h.URL), zap.Error(err))
			continue
		}
		if inserted {
			created++
			metrics.ArticlesIngested.Inc()
		}
	}

	return created
}

// contentTruncated reports whether a NewsAPI body is the cut-down
// teaser form, which ends with a marker like "[+1234 chars]".
func contentTruncated(content string) bool {
	return strings.HasSuffix(content, "chars]")
}

// FetchFullContent retrieves and extracts the readable text of an
// article page. NewsAPI truncates content, so this backfills the body
// before analysis when the caller wants more than the teaser.
func (f *Fetcher) FetchFullContent(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newslens/1.0)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse article page: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("article p, main p, p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > 40 {
			parts = append(parts, text)
		}
	})

	content := strings.Join(parts, "\n\n")
	return truncate(content, maxStoredContent), nil
}

// ExtractKeywords tags text with named entities (people, places,
// organizations) for article search and browsing. Extraction failures
// just mean no keywords.
func ExtractKeywords(text string) []string {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		logger.Debug("Keyword extraction failed", zap.Error(err))
		return nil
	}

	seen := map[string]struct{}{}
	var keywords []string

	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, name)
		if len(keywords) >= maxKeywords {
			break
		}
	}

	return keywords
}

// truncate shortens s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
