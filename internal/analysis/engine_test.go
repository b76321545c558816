package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newslens/backend/internal/storage/models"
)

type stubStore struct {
	articles   map[string]*models.Article
	analyses   map[string]*models.Analysis
	increments int
}

func newStubStore(articleIDs ...string) *stubStore {
	s := &stubStore{
		articles: map[string]*models.Article{},
		analyses: map[string]*models.Analysis{},
	}
	for _, id := range articleIDs {
		s.articles[id] = &models.Article{
			ID:          id,
			Title:       "Article " + id,
			Description: "Description " + id,
			Content:     "Content " + id,
			Category:    "politics",
		}
	}
	return s
}

func (s *stubStore) key(userID, articleID string) string {
	return userID + "/" + articleID
}

func (s *stubStore) GetArticle(id string) (*models.Article, error) {
	article, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", id, models.ErrNotFound)
	}
	return article, nil
}

func (s *stubStore) GetAnalysisByArticle(userID, articleID string) (*models.Analysis, error) {
	a, ok := s.analyses[s.key(userID, articleID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a, nil
}

func (s *stubStore) InsertAnalysis(a *models.Analysis) error {
	key := s.key(a.UserID, a.ArticleID)
	if _, exists := s.analyses[key]; exists {
		return models.ErrAlreadyExists
	}
	s.analyses[key] = a
	return nil
}

func (s *stubStore) IncrementProfileAnalyses(userID string, at time.Time) error {
	s.increments++
	return nil
}

type stubCompleter struct {
	response string
	err      error
	calls    int
	failOn   map[int]error
}

func (c *stubCompleter) AnalyzeContent(ctx context.Context, prompt string) (string, error) {
	c.calls++
	if err, ok := c.failOn[c.calls]; ok {
		return "", err
	}
	if c.err != nil {
		return "", c.err
	}
	if c.response != "" {
		return c.response, nil
	}
	return `{"political_bias": {"classification": "center", "confidence_score": 0.9}}`, nil
}

func newTestEngine(store Store, llm Completer) *Engine {
	e := NewEngine(store, llm)
	e.bulkDelay = 0
	return e
}

func TestAnalyzeCreatesRecord(t *testing.T) {
	store := newStubStore("a1")
	llm := &stubCompleter{}
	engine := newTestEngine(store, llm)

	result, created, err := engine.Analyze(context.Background(), "a1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for first analysis")
	}
	if result.PoliticalBias != models.BiasCenter {
		t.Errorf("bias = %q, want center", result.PoliticalBias)
	}
	if result.AnalysisVersion != Version {
		t.Errorf("version = %q, want %q", result.AnalysisVersion, Version)
	}
	if result.ArticleTitle != "Article a1" {
		t.Errorf("article title = %q", result.ArticleTitle)
	}
	if store.increments != 1 {
		t.Errorf("profile increments = %d, want 1", store.increments)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	store := newStubStore("a1")
	llm := &stubCompleter{}
	engine := newTestEngine(store, llm)

	first, _, err := engine.Analyze(context.Background(), "a1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, created, err := engine.Analyze(context.Background(), "a1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false for repeated analysis")
	}
	if second.ID != first.ID {
		t.Error("expected the existing record returned unchanged")
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", llm.calls)
	}
}

func TestAnalyzeSeparatePerUser(t *testing.T) {
	store := newStubStore("a1")
	llm := &stubCompleter{}
	engine := newTestEngine(store, llm)

	_, created1, _ := engine.Analyze(context.Background(), "a1", "u1")
	_, created2, _ := engine.Analyze(context.Background(), "a1", "u2")

	if !created1 || !created2 {
		t.Error("expected independent records per user")
	}
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
}

type stubCache struct {
	entries map[string]string
}

func (c *stubCache) GetResponse(ctx context.Context, promptHash string) (string, bool) {
	raw, ok := c.entries[promptHash]
	return raw, ok
}

func (c *stubCache) SetResponse(ctx context.Context, promptHash, raw string) {
	c.entries[promptHash] = raw
}

func TestAnalyzeSharedResponseCache(t *testing.T) {
	store := newStubStore("a1")
	llm := &stubCompleter{}
	engine := newTestEngine(store, llm).WithResponseCache(&stubCache{entries: map[string]string{}})

	_, created1, err := engine.Analyze(context.Background(), "a1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	second, created2, err := engine.Analyze(context.Background(), "a1", "u2")
	if err != nil {
		t.Fatal(err)
	}

	if !created1 || !created2 {
		t.Error("expected a record created for each user")
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1 with shared cache", llm.calls)
	}
	if second.PoliticalBias != models.BiasCenter {
		t.Errorf("cached reply parsed to bias %q", second.PoliticalBias)
	}
}

func TestAnalyzeUnknownArticle(t *testing.T) {
	engine := newTestEngine(newStubStore(), &stubCompleter{})

	_, _, err := engine.Analyze(context.Background(), "missing", "u1")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestAnalyzeExternalFailure(t *testing.T) {
	store := newStubStore("a1")
	llm := &stubCompleter{err: errors.New("timeout")}
	engine := newTestEngine(store, llm)

	_, _, err := engine.Analyze(context.Background(), "a1", "u1")
	if !errors.Is(err, models.ErrExternalService) {
		t.Errorf("error = %v, want ErrExternalService", err)
	}
	if len(store.analyses) != 0 {
		t.Error("expected no record persisted on failure")
	}
}

func TestAnalyzeUnparseableResponse(t *testing.T) {
	store := newStubStore("a1")
	llm := &stubCompleter{response: "not valid json"}
	engine := newTestEngine(store, llm)

	_, _, err := engine.Analyze(context.Background(), "a1", "u1")
	if !errors.Is(err, models.ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestBulkAnalyzeSkipsDoNotCountAgainstMax(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("a%d", i)
	}
	store := newStubStore(ids...)
	llm := &stubCompleter{}
	engine := newTestEngine(store, llm)

	// Pre-analyze the first two so they are skipped in the bulk run.
	engine.Analyze(context.Background(), "a0", "u1")
	engine.Analyze(context.Background(), "a1", "u1")
	llm.calls = 0

	results := engine.BulkAnalyze(context.Background(), ids, "u1", 10)

	if len(results) != 12 {
		t.Fatalf("results = %d, want 12", len(results))
	}

	skipped, analyzed := 0, 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		} else if r.Err == nil {
			analyzed++
		}
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if analyzed != 10 {
		t.Errorf("analyzed = %d, want 10", analyzed)
	}
	if llm.calls != 10 {
		t.Errorf("llm calls = %d, want 10", llm.calls)
	}
}

func TestBulkAnalyzeRespectsMax(t *testing.T) {
	ids := []string{"a0", "a1", "a2", "a3", "a4"}
	store := newStubStore(ids...)
	engine := newTestEngine(store, &stubCompleter{})

	results := engine.BulkAnalyze(context.Background(), ids, "u1", 3)

	if len(results) != 3 {
		t.Errorf("results = %d, want 3", len(results))
	}
}

func TestBulkAnalyzeFailureIsolation(t *testing.T) {
	ids := []string{"a0", "a1", "a2"}
	store := newStubStore(ids...)
	llm := &stubCompleter{failOn: map[int]error{2: errors.New("boom")}}
	engine := newTestEngine(store, llm)

	results := engine.BulkAnalyze(context.Background(), ids, "u1", 10)

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("expected first and third items to succeed")
	}
	if results[1].Err == nil {
		t.Error("expected second item to fail")
	}
}

func TestBulkAnalyzeWithProgressCallback(t *testing.T) {
	ids := []string{"a0", "a1"}
	store := newStubStore(ids...)
	engine := newTestEngine(store, &stubCompleter{})

	var seen []string
	engine.BulkAnalyzeWithProgress(context.Background(), ids, "u1", 10, func(item BulkResult) {
		seen = append(seen, item.ArticleID)
	})

	if len(seen) != 2 || seen[0] != "a0" || seen[1] != "a1" {
		t.Errorf("callback order = %v", seen)
	}
}
