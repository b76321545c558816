package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/aggregate"
	"github.com/newslens/backend/internal/analysis"
	"github.com/newslens/backend/internal/auth"
	"github.com/newslens/backend/internal/cache/redis"
	"github.com/newslens/backend/internal/storage/sqlite"
	"github.com/newslens/backend/pkg/logger"

	"github.com/newslens/backend/internal/storage/models"
)

const (
	trendingCacheTTL = 5 * time.Minute
	statsCacheTTL    = 10 * time.Minute
	defaultTrendDays = 7
)

type AnalysisHandler struct {
	engine *analysis.Engine
	store  *sqlite.Client
	cache  *redis.Client
}

func NewAnalysisHandler(engine *analysis.Engine, store *sqlite.Client, cache *redis.Client) *AnalysisHandler {
	return &AnalysisHandler{
		engine: engine,
		store:  store,
		cache:  cache,
	}
}

// RequestAnalysis triggers an AI analysis of one article for the
// authenticated user. Returns 201 on a fresh analysis, 200 when an
// existing record is reused.
func (h *AnalysisHandler) RequestAnalysis(c *fiber.Ctx) error {
	var req struct {
		ArticleID string `json:"article_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ArticleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "article_id is required",
		})
	}

	userID := auth.UserID(c)
	result, created, err := h.engine.Analyze(c.Context(), req.ArticleID, userID)
	if err != nil {
		logger.Error("Analysis request failed",
			zap.String("article_id", req.ArticleID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return errorResponse(c, err, "Failed to analyze article")
	}

	h.invalidateUserCaches(c.Context(), userID)

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(analysisJSON(result))
}

// BulkAnalyze analyzes a batch of articles sequentially, reporting a
// per-article outcome. Already-analyzed articles are skipped.
func (h *AnalysisHandler) BulkAnalyze(c *fiber.Ctx) error {
	var req struct {
		ArticleIDs []string `json:"article_ids"`
		Max        int      `json:"max"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.ArticleIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "article_ids is required",
		})
	}

	userID := auth.UserID(c)
	results := h.engine.BulkAnalyze(c.Context(), req.ArticleIDs, userID, req.Max)
	h.invalidateUserCaches(c.Context(), userID)

	items := make([]fiber.Map, 0, len(results))
	analyzed, skipped, failed := 0, 0, 0
	for _, r := range results {
		item := fiber.Map{
			"article_id": r.ArticleID,
			"skipped":    r.Skipped,
		}
		switch {
		case r.Err != nil:
			item["status"] = "failed"
			item["error"] = "analysis failed"
			failed++
		case r.Skipped:
			item["status"] = "skipped"
			item["analysis_id"] = r.Analysis.ID
			skipped++
		default:
			item["status"] = "analyzed"
			item["analysis"] = analysisJSON(r.Analysis)
			analyzed++
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{
		"results":  items,
		"analyzed": analyzed,
		"skipped":  skipped,
		"failed":   failed,
	})
}

// CreateManual stores an externally produced analysis record after
// validating its bias label and sentiment percentages.
func (h *AnalysisHandler) CreateManual(c *fiber.Ctx) error {
	var req struct {
		ArticleID         string             `json:"article_id"`
		PoliticalBias     string             `json:"political_bias"`
		BiasConfidence    float64            `json:"bias_confidence"`
		BiasReasoning     string             `json:"bias_reasoning"`
		PositiveSentiment float64            `json:"positive_sentiment"`
		NegativeSentiment float64            `json:"negative_sentiment"`
		NeutralSentiment  float64            `json:"neutral_sentiment"`
		OverallSentiment  float64            `json:"overall_sentiment"`
		PrimaryTopics     []string           `json:"primary_topics"`
		TopicDistribution map[string]float64 `json:"topic_distribution"`
		KeyThemes         []string           `json:"key_themes"`
		EmotionalTone     string             `json:"emotional_tone"`
		ControversyLevel  float64            `json:"controversy_level"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ArticleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "article_id is required",
		})
	}

	if _, err := h.store.GetArticle(req.ArticleID); err != nil {
		return errorResponse(c, err, "Failed to load article")
	}

	record := &models.Analysis{
		ID:                uuid.New().String(),
		UserID:            auth.UserID(c),
		ArticleID:         req.ArticleID,
		PoliticalBias:     models.PoliticalBias(req.PoliticalBias),
		BiasConfidence:    req.BiasConfidence,
		BiasReasoning:     req.BiasReasoning,
		PositiveSentiment: req.PositiveSentiment,
		NegativeSentiment: req.NegativeSentiment,
		NeutralSentiment:  req.NeutralSentiment,
		OverallSentiment:  req.OverallSentiment,
		PrimaryTopics:     req.PrimaryTopics,
		TopicDistribution: req.TopicDistribution,
		KeyThemes:         req.KeyThemes,
		EmotionalTone:     req.EmotionalTone,
		ControversyLevel:  req.ControversyLevel,
		AnalysisVersion:   analysis.Version,
		CreatedAt:         time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return errorResponse(c, err, "Invalid analysis record")
	}

	if err := h.store.InsertAnalysis(record); err != nil {
		return errorResponse(c, err, "Failed to store analysis")
	}

	h.invalidateUserCaches(c.Context(), record.UserID)
	return c.Status(fiber.StatusCreated).JSON(analysisJSON(record))
}

// ListAnalyses returns the authenticated user's analyses, newest first,
// with optional bias/category/controversy filters.
func (h *AnalysisHandler) ListAnalyses(c *fiber.Ctx) error {
	filter := sqlite.AnalysisFilter{
		Bias:     c.Query("bias"),
		Category: c.Query("category"),
		Limit:    clampLimit(c.QueryInt("limit", 50)),
		Offset:   c.QueryInt("offset", 0),
	}
	if v := c.Query("min_controversy"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "min_controversy must be a number",
			})
		}
		filter.MinControversy = f
	}

	analyses, err := h.store.ListAnalyses(auth.UserID(c), filter)
	if err != nil {
		logger.Error("Failed to list analyses", zap.Error(err))
		return errorResponse(c, err, "Failed to list analyses")
	}

	return c.JSON(fiber.Map{
		"analyses": analysisListJSON(analyses),
		"count":    len(analyses),
	})
}

func (h *AnalysisHandler) GetAnalysis(c *fiber.Ctx) error {
	result, err := h.store.GetAnalysis(c.Params("id"), auth.UserID(c))
	if err != nil {
		return errorResponse(c, err, "Failed to load analysis")
	}
	return c.JSON(analysisJSON(result))
}

// Trending reports the most analyzed topics across all users over the
// requested window (default 7 days).
func (h *AnalysisHandler) Trending(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultTrendDays)
	if days < 1 {
		days = defaultTrendDays
	}

	cacheKey := redis.TrendingKey(days)
	if h.cache != nil {
		var cached fiber.Map
		if ok, err := h.cache.Get(c.Context(), cacheKey, &cached); err == nil && ok {
			return c.JSON(cached)
		}
	}

	since := time.Now().AddDate(0, 0, -days)
	analyses, err := h.store.ListAnalysesSince("", since)
	if err != nil {
		logger.Error("Failed to load analyses for trending", zap.Error(err))
		return errorResponse(c, err, "Failed to compute trending topics")
	}

	topics := aggregate.TrendingTopics(analyses)
	response := fiber.Map{
		"topics":         topics,
		"days":           days,
		"analyses_count": len(analyses),
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Context(), cacheKey, response, trendingCacheTTL); err != nil {
			logger.Warn("Failed to cache trending topics", zap.Error(err))
		}
	}
	return c.JSON(response)
}

// Controversial lists the user's analyses at or above the controversy
// threshold, most controversial first.
func (h *AnalysisHandler) Controversial(c *fiber.Ctx) error {
	analyses, err := h.store.ListAnalyses(auth.UserID(c), sqlite.AnalysisFilter{
		MinControversy: aggregate.ControversialThreshold,
		Limit:          clampLimit(c.QueryInt("limit", 20)),
	})
	if err != nil {
		return errorResponse(c, err, "Failed to list controversial analyses")
	}
	return c.JSON(fiber.Map{
		"analyses":  analysisListJSON(analyses),
		"threshold": aggregate.ControversialThreshold,
	})
}

// Stats summarizes the user's analysis activity: monthly volume,
// favorite categories, controversial topics, and 30-day daily counts.
func (h *AnalysisHandler) Stats(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	cacheKey := redis.UserStatsKey(userID)
	if h.cache != nil {
		var cached aggregate.UserStats
		if ok, err := h.cache.Get(c.Context(), cacheKey, &cached); err == nil && ok {
			return c.JSON(cached)
		}
	}

	analyses, err := h.store.ListAnalyses(userID, sqlite.AnalysisFilter{})
	if err != nil {
		logger.Error("Failed to load analyses for stats",
			zap.String("user_id", userID), zap.Error(err))
		return errorResponse(c, err, "Failed to compute statistics")
	}

	stats := aggregate.ComputeUserStats(analyses, time.Now())

	if h.cache != nil {
		if err := h.cache.Set(c.Context(), cacheKey, stats, statsCacheTTL); err != nil {
			logger.Warn("Failed to cache user stats", zap.Error(err))
		}
	}
	return c.JSON(stats)
}

func (h *AnalysisHandler) invalidateUserCaches(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, redis.UserStatsKey(userID)); err != nil {
		logger.Warn("Failed to invalidate stats cache",
			zap.String("user_id", userID), zap.Error(err))
	}
	if err := h.cache.Invalidate(ctx, "trending:*"); err != nil {
		logger.Warn("Failed to invalidate trending cache", zap.Error(err))
	}
}

func clampLimit(limit int) int {
	if limit < 1 || limit > 200 {
		return 50
	}
	return limit
}
