package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/newslens/backend/internal/storage/models"
)

type stubArticleStore struct {
	seen     map[string]bool
	articles []*models.Article
	failURL  string
}

func (s *stubArticleStore) InsertArticle(article *models.Article) (bool, error) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if article.URL == s.failURL {
		return false, errors.New("disk full")
	}
	if s.seen[article.URL] {
		return false, nil
	}
	s.seen[article.URL] = true
	s.articles = append(s.articles, article)
	return true, nil
}

const headlinesBody = `{
	"status": "ok",
	"articles": [
		{
			"title": "Senate Passes Budget",
			"description": "A budget summary",
			"url": "https://example.com/budget",
			"publishedAt": "2026-08-14T10:00:00Z",
			"source": {"name": "Example News"}
		},
		{
			"title": "Markets Rally",
			"description": "Stocks are up",
			"url": "https://example.com/markets",
			"publishedAt": "2026-08-14T11:00:00Z",
			"source": {"name": "Example News"}
		}
	]
}`

func TestFetchAndStore(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(headlinesBody))
	})
	store := &stubArticleStore{}
	fetcher := NewFetcher(client, store)

	created, err := fetcher.FetchAndStore(context.Background(), "politics", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}
	if store.articles[0].Category != "politics" {
		t.Errorf("category = %q", store.articles[0].Category)
	}
	if store.articles[0].ID == "" {
		t.Error("expected generated article id")
	}
	if !store.articles[0].IsActive {
		t.Error("expected ingested article active")
	}
}

func TestFetchAndStoreSkipsDuplicates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(headlinesBody))
	})
	store := &stubArticleStore{}
	fetcher := NewFetcher(client, store)

	if _, err := fetcher.FetchAndStore(context.Background(), "", 10); err != nil {
		t.Fatal(err)
	}
	created, err := fetcher.FetchAndStore(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("created = %d on second run, want 0", created)
	}
}

func TestFetchAndStoreInvalidCategory(t *testing.T) {
	fetcher := NewFetcher(NewAPIClient("key", "us", 5), &stubArticleStore{})

	_, err := fetcher.FetchAndStore(context.Background(), "gossip", 10)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestFetchAndStoreStoreFailureIsolation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(headlinesBody))
	})
	store := &stubArticleStore{failURL: "https://example.com/budget"}
	fetcher := NewFetcher(client, store)

	created, err := fetcher.FetchAndStore(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 despite one store failure", created)
	}
}

func TestSearchAndStore(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "climate" {
			t.Errorf("q = %s", r.URL.Query().Get("q"))
		}
		w.Write([]byte(headlinesBody))
	})
	store := &stubArticleStore{}
	fetcher := NewFetcher(client, store)

	created, err := fetcher.SearchAndStore(context.Background(), "climate", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}
	if store.articles[0].Category != "general" {
		t.Errorf("category = %q, want general", store.articles[0].Category)
	}
}

func TestSearchAndStoreEmptyQuery(t *testing.T) {
	fetcher := NewFetcher(NewAPIClient("key", "us", 5), &stubArticleStore{})

	_, err := fetcher.SearchAndStore(context.Background(), "  ", 10)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestFetchAndStoreBackfillsTruncatedContent(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article>
			<p>This is the first full paragraph of the article body with enough length to keep.</p>
			<p>short</p>
			<p>This is the second full paragraph of the article body with enough length to keep.</p>
		</article></body></html>`))
	}))
	defer page.Close()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "ok",
			"articles": [
				{
					"title": "Truncated Story",
					"description": "A teaser",
					"content": "Only the start of the story... [+2718 chars]",
					"url": "` + page.URL + `",
					"publishedAt": "2026-08-14T10:00:00Z",
					"source": {"name": "Example News"}
				}
			]
		}`))
	})
	store := &stubArticleStore{}
	fetcher := NewFetcher(client, store)

	created, err := fetcher.FetchAndStore(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	got := store.articles[0].Content
	if !strings.Contains(got, "first full paragraph") || !strings.Contains(got, "second full paragraph") {
		t.Errorf("content not backfilled from page, got %q", got)
	}
	if strings.Contains(got, "short") {
		t.Errorf("short fragments should be dropped, got %q", got)
	}
}

func TestContentTruncated(t *testing.T) {
	if contentTruncated("a complete body.") {
		t.Error("complete body flagged as truncated")
	}
	if !contentTruncated("teaser text [+1234 chars]") {
		t.Error("marker suffix not detected")
	}
	if contentTruncated("") {
		t.Error("empty body has nothing to backfill from a teaser marker")
	}
}

func TestExtractKeywordsDeduplicates(t *testing.T) {
	keywords := ExtractKeywords("Barack Obama met Angela Merkel in Berlin. Barack Obama spoke first.")

	seen := map[string]int{}
	for _, k := range keywords {
		seen[strings.ToLower(k)]++
	}
	for k, n := range seen {
		if n > 1 {
			t.Errorf("keyword %q appears %d times", k, n)
		}
	}
	if len(keywords) > maxKeywords {
		t.Errorf("keywords = %d, want at most %d", len(keywords), maxKeywords)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789" {
		t.Errorf("truncate = %q", got)
	}

	// Cutting through a multi-byte rune must back off to its start.
	got := truncate("abcdéf", 5)
	if got != "abcd" {
		t.Errorf("truncate = %q, want %q", got, "abcd")
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
}
