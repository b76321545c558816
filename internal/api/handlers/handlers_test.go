package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/newslens/backend/internal/analysis"
	"github.com/newslens/backend/internal/auth"
	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/internal/storage/sqlite"
)

type fixedCompleter struct {
	response string
	calls    int
}

func (c *fixedCompleter) AnalyzeContent(ctx context.Context, prompt string) (string, error) {
	c.calls++
	if c.response != "" {
		return c.response, nil
	}
	return `{
		"political_bias": {"classification": "center_right", "confidence_score": 0.8},
		"sentiment_analysis": {"positive_sentiment": 0.3, "negative_sentiment": 0.2, "neutral_sentiment": 0.5},
		"topic_analysis": {"primary_topics": ["economy"]},
		"key_insights": {"controversy_level": 0.75}
	}`, nil
}

type testEnv struct {
	app   *fiber.App
	store *sqlite.Client
	llm   *fixedCompleter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	llm := &fixedCompleter{}
	engine := analysis.NewEngine(store, llm)
	authService := auth.NewService(store, auth.Config{
		Secret:     "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: 4,
	})

	userHandler := NewUserHandler(authService, store)
	analysisHandler := NewAnalysisHandler(engine, store, nil)
	comparisonHandler := NewComparisonHandler(store)
	preferencesHandler := NewPreferencesHandler(store)
	articleHandler := NewArticleHandler(store, nil, 100)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/auth/register", userHandler.Register)
	api.Post("/auth/login", userHandler.Login)

	protected := api.Group("", authService.Middleware())
	protected.Get("/articles", articleHandler.ListArticles)
	protected.Get("/articles/:id", articleHandler.GetArticle)
	protected.Post("/analyses", analysisHandler.RequestAnalysis)
	protected.Post("/analyses/bulk", analysisHandler.BulkAnalyze)
	protected.Post("/analyses/manual", analysisHandler.CreateManual)
	protected.Get("/analyses", analysisHandler.ListAnalyses)
	protected.Get("/analyses/trending", analysisHandler.Trending)
	protected.Get("/analyses/controversial", analysisHandler.Controversial)
	protected.Get("/analyses/:id", analysisHandler.GetAnalysis)
	protected.Post("/comparisons", comparisonHandler.CreateComparison)
	protected.Get("/comparisons/:id/stats", comparisonHandler.ComparisonStats)
	protected.Get("/users/me", userHandler.GetProfile)
	protected.Get("/users/me/stats", analysisHandler.Stats)
	protected.Get("/users/me/preferences", preferencesHandler.GetPreferences)
	protected.Put("/users/me/preferences", preferencesHandler.UpdatePreferences)

	return &testEnv{app: app, store: store, llm: llm}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var decoded map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(data) > 0 {
		json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	resp, _ := e.request(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "long enough password",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	resp, body := e.request(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "long enough password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("no token in login response")
	}
	return token
}

func (e *testEnv) insertArticle(t *testing.T, id string) {
	t.Helper()
	now := time.Now()
	_, err := e.store.InsertArticle(&models.Article{
		ID:          id,
		Title:       "Title " + id,
		Description: "Description",
		Content:     "Content",
		URL:         "https://example.com/" + id,
		Source:      "Example News",
		Category:    "politics",
		Language:    "en",
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("failed to insert article: %v", err)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, "GET", "/api/v1/analyses", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	resp, _ = env.request(t, "GET", "/api/v1/analyses", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for malformed header", resp.StatusCode)
	}
}

func TestRequestAnalysisLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	env.insertArticle(t, "a1")

	resp, body := env.request(t, "POST", "/api/v1/analyses", token, map[string]string{
		"article_id": "a1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 for fresh analysis", resp.StatusCode)
	}
	if body["political_bias"] != "center_right" {
		t.Errorf("bias = %v", body["political_bias"])
	}
	if body["bias_score"] != 0.33 {
		t.Errorf("bias_score = %v, want 0.33", body["bias_score"])
	}
	analysisID, _ := body["id"].(string)

	// Second request for the same article returns the existing record.
	resp, body = env.request(t, "POST", "/api/v1/analyses", token, map[string]string{
		"article_id": "a1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 for repeat", resp.StatusCode)
	}
	if body["id"] != analysisID {
		t.Error("expected same analysis record on repeat")
	}
	if env.llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", env.llm.calls)
	}

	resp, _ = env.request(t, "GET", "/api/v1/analyses/"+analysisID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}
}

func TestRequestAnalysisUnknownArticle(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	resp, _ := env.request(t, "POST", "/api/v1/analyses", token, map[string]string{
		"article_id": "missing",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAnalysesAreScopedPerUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerAndLogin(t, "alice")
	bob := env.registerAndLogin(t, "bob")
	env.insertArticle(t, "a1")

	resp, body := env.request(t, "POST", "/api/v1/analyses", alice, map[string]string{
		"article_id": "a1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	analysisID := body["id"].(string)

	resp, _ = env.request(t, "GET", "/api/v1/analyses/"+analysisID, bob, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want 404", resp.StatusCode)
	}

	_, listBody := env.request(t, "GET", "/api/v1/analyses", bob, nil)
	if count, _ := listBody["count"].(float64); count != 0 {
		t.Errorf("bob's analyses = %v, want 0", count)
	}
}

func TestBulkAnalyzeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	for i := 0; i < 3; i++ {
		env.insertArticle(t, fmt.Sprintf("a%d", i))
	}

	resp, body := env.request(t, "POST", "/api/v1/analyses/bulk", token, map[string]interface{}{
		"article_ids": []string{"a0", "a1", "a2"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if analyzed, _ := body["analyzed"].(float64); analyzed != 3 {
		t.Errorf("analyzed = %v, want 3", analyzed)
	}

	// A second run skips everything.
	_, body = env.request(t, "POST", "/api/v1/analyses/bulk", token, map[string]interface{}{
		"article_ids": []string{"a0", "a1", "a2"},
	})
	if skipped, _ := body["skipped"].(float64); skipped != 3 {
		t.Errorf("skipped = %v, want 3", skipped)
	}
}

func TestCreateManualAnalysisValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	env.insertArticle(t, "a1")

	resp, _ := env.request(t, "POST", "/api/v1/analyses/manual", token, map[string]interface{}{
		"article_id":         "a1",
		"political_bias":     "left",
		"positive_sentiment": 0.8,
		"negative_sentiment": 0.3,
		"neutral_sentiment":  0.1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad sentiment sum", resp.StatusCode)
	}

	resp, body := env.request(t, "POST", "/api/v1/analyses/manual", token, map[string]interface{}{
		"article_id":         "a1",
		"political_bias":     "left",
		"positive_sentiment": 0.3,
		"negative_sentiment": 0.2,
		"neutral_sentiment":  0.5,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if body["political_bias"] != "left" {
		t.Errorf("bias = %v", body["political_bias"])
	}
}

func TestTrendingAndControversial(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	env.insertArticle(t, "a1")
	env.request(t, "POST", "/api/v1/analyses", token, map[string]string{"article_id": "a1"})

	resp, body := env.request(t, "GET", "/api/v1/analyses/trending?days=7", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trending status = %d", resp.StatusCode)
	}
	topics, _ := body["topics"].([]interface{})
	if len(topics) != 1 {
		t.Errorf("topics = %v, want the one analyzed topic", body["topics"])
	}

	resp, body = env.request(t, "GET", "/api/v1/analyses/controversial", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("controversial status = %d", resp.StatusCode)
	}
	// The stub response carries controversy 0.75, above the threshold.
	analyses, _ := body["analyses"].([]interface{})
	if len(analyses) != 1 {
		t.Errorf("controversial analyses = %d, want 1", len(analyses))
	}
}

func TestUserStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	env.insertArticle(t, "a1")
	env.request(t, "POST", "/api/v1/analyses", token, map[string]string{"article_id": "a1"})

	resp, body := env.request(t, "GET", "/api/v1/users/me/stats", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if total, _ := body["total_analyses"].(float64); total != 1 {
		t.Errorf("total_analyses = %v, want 1", total)
	}
	daily, _ := body["daily_activity"].([]interface{})
	if len(daily) != 30 {
		t.Errorf("daily_activity = %d entries, want 30", len(daily))
	}
}

func TestComparisonFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	env.insertArticle(t, "a1")
	env.insertArticle(t, "a2")

	var ids []string
	for _, article := range []string{"a1", "a2"} {
		_, body := env.request(t, "POST", "/api/v1/analyses", token, map[string]string{"article_id": article})
		ids = append(ids, body["id"].(string))
	}

	resp, body := env.request(t, "POST", "/api/v1/comparisons", token, map[string]interface{}{
		"name":         "Coverage check",
		"analysis_ids": ids,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	comparisonID := body["id"].(string)

	resp, body = env.request(t, "GET", "/api/v1/comparisons/"+comparisonID+"/stats", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	stats, _ := body["stats"].(map[string]interface{})
	if total, _ := stats["total_articles"].(float64); total != 2 {
		t.Errorf("total_articles = %v, want 2", total)
	}
}

func TestComparisonDeduplicatesMembers(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	env.insertArticle(t, "a1")
	env.insertArticle(t, "a2")

	var ids []string
	for _, article := range []string{"a1", "a2"} {
		_, body := env.request(t, "POST", "/api/v1/analyses", token, map[string]string{"article_id": article})
		ids = append(ids, body["id"].(string))
	}

	resp, body := env.request(t, "POST", "/api/v1/comparisons", token, map[string]interface{}{
		"name":         "Repeats",
		"analysis_ids": []string{ids[0], ids[1], ids[0]},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 with duplicate ids collapsed", resp.StatusCode)
	}
	members, _ := body["analysis_ids"].([]interface{})
	if len(members) != 2 {
		t.Errorf("members = %d, want 2 after deduplication", len(members))
	}

	resp, _ = env.request(t, "POST", "/api/v1/comparisons", token, map[string]interface{}{
		"name":         "Same id twice",
		"analysis_ids": []string{ids[0], ids[0]},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when only one distinct id remains", resp.StatusCode)
	}
}

func TestComparisonRequiresOwnAnalyses(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerAndLogin(t, "alice")
	bob := env.registerAndLogin(t, "bob")
	env.insertArticle(t, "a1")
	env.insertArticle(t, "a2")

	var ids []string
	for _, article := range []string{"a1", "a2"} {
		_, body := env.request(t, "POST", "/api/v1/analyses", alice, map[string]string{"article_id": article})
		ids = append(ids, body["id"].(string))
	}

	resp, _ := env.request(t, "POST", "/api/v1/comparisons", bob, map[string]interface{}{
		"name":         "Not mine",
		"analysis_ids": ids,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for another user's analyses", resp.StatusCode)
	}
}

func TestPreferencesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	resp, body := env.request(t, "GET", "/api/v1/users/me/preferences", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if body["default_depth"] != "detailed" {
		t.Errorf("default depth = %v", body["default_depth"])
	}

	resp, _ = env.request(t, "PUT", "/api/v1/users/me/preferences", token, map[string]interface{}{
		"preferred_categories": []string{"gossip"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown category", resp.StatusCode)
	}

	resp, body = env.request(t, "PUT", "/api/v1/users/me/preferences", token, map[string]interface{}{
		"preferred_categories": []string{"politics", "science"},
		"default_depth":        "comprehensive",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	if body["default_depth"] != "comprehensive" {
		t.Errorf("updated depth = %v", body["default_depth"])
	}
}

func TestProfileReflectsAnalyses(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")
	env.insertArticle(t, "a1")
	env.request(t, "POST", "/api/v1/analyses", token, map[string]string{"article_id": "a1"})

	resp, body := env.request(t, "GET", "/api/v1/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["username"] != "alice" {
		t.Errorf("username = %v", body["username"])
	}
	if total, _ := body["total_analyses"].(float64); total != 1 {
		t.Errorf("total_analyses = %v, want 1", total)
	}
}
