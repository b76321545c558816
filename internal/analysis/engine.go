package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/metrics"
	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/pkg/logger"
	"github.com/newslens/backend/pkg/utils"
)

const (
	// Version tags the analysis schema stored with each record.
	Version = "1.0"

	// DefaultBulkMax caps how many articles a bulk run analyzes.
	DefaultBulkMax = 10

	// bulkCallDelay spaces out external calls in bulk runs to stay
	// under the provider's rate limits.
	bulkCallDelay = time.Second
)

// Store is the persistence surface the engine needs.
type Store interface {
	GetArticle(id string) (*models.Article, error)
	GetAnalysisByArticle(userID, articleID string) (*models.Analysis, error)
	InsertAnalysis(analysis *models.Analysis) error
	IncrementProfileAnalyses(userID string, at time.Time) error
}

// Completer runs one external analysis model call.
type Completer interface {
	AnalyzeContent(ctx context.Context, prompt string) (string, error)
}

// ResponseCache holds raw model replies keyed by prompt hash, so two
// users analyzing the same article share one external call.
type ResponseCache interface {
	GetResponse(ctx context.Context, promptHash string) (string, bool)
	SetResponse(ctx context.Context, promptHash, raw string)
}

type Engine struct {
	store     Store
	llm       Completer
	cache     ResponseCache
	bulkDelay time.Duration
}

func NewEngine(store Store, llm Completer) *Engine {
	return &Engine{
		store:     store,
		llm:       llm,
		bulkDelay: bulkCallDelay,
	}
}

// WithResponseCache enables prompt-level reply caching.
func (e *Engine) WithResponseCache(cache ResponseCache) *Engine {
	e.cache = cache
	return e
}

// Analyze runs one AI analysis of an article for a user and persists
// the result. It is idempotent per (user, article): if a record already
// exists it is returned unchanged, with created false, and no external
// call is made.
func (e *Engine) Analyze(ctx context.Context, articleID, userID string) (*models.Analysis, bool, error) {
	existing, err := e.store.GetAnalysisByArticle(userID, articleID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	article, err := e.store.GetArticle(articleID)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()

	prompt := BuildPrompt(article.Title, article.Description, article.BodyText())
	promptHash := utils.HashString(prompt)

	var raw string
	cached := false
	if e.cache != nil {
		raw, cached = e.cache.GetResponse(ctx, promptHash)
	}
	if !cached {
		raw, err = e.llm.AnalyzeContent(ctx, prompt)
		if err != nil {
			logger.Error("Analysis call failed",
				zap.String("article_id", articleID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			metrics.AnalysisTotal.WithLabelValues("external_error").Inc()
			return nil, false, fmt.Errorf("%w: %v", models.ErrExternalService, err)
		}
		if e.cache != nil {
			e.cache.SetResponse(ctx, promptHash, raw)
		}
	}

	result, err := ParseResponse(raw)
	if err != nil {
		logger.Error("Analysis response unparseable",
			zap.String("article_id", articleID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		metrics.AnalysisTotal.WithLabelValues("invalid_response").Inc()
		return nil, false, err
	}

	analysis := &models.Analysis{
		ID:                uuid.New().String(),
		UserID:            userID,
		ArticleID:         articleID,
		PoliticalBias:     result.PoliticalBias,
		BiasConfidence:    result.BiasConfidence,
		BiasReasoning:     result.BiasReasoning,
		PositiveSentiment: result.PositiveSentiment,
		NegativeSentiment: result.NegativeSentiment,
		NeutralSentiment:  result.NeutralSentiment,
		OverallSentiment:  result.OverallSentiment,
		PrimaryTopics:     result.PrimaryTopics,
		TopicDistribution: result.TopicDistribution,
		KeyThemes:         result.KeyThemes,
		EmotionalTone:     result.EmotionalTone,
		ControversyLevel:  result.ControversyLevel,
		AnalysisVersion:   Version,
		ProcessingSeconds: time.Since(start).Seconds(),
		CreatedAt:         time.Now(),
		RawResponse:       result.Raw,
		ArticleTitle:      article.Title,
		ArticleCategory:   article.Category,
	}

	if err := e.store.InsertAnalysis(analysis); err != nil {
		// Two simultaneous requests are not excluded here; the unique
		// (user, article) constraint resolves the race and the record
		// that won is returned.
		if errors.Is(err, models.ErrAlreadyExists) {
			existing, getErr := e.store.GetAnalysisByArticle(userID, articleID)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	// Best effort: a user without a profile row is expected, not an error.
	if err := e.store.IncrementProfileAnalyses(userID, analysis.CreatedAt); err != nil {
		logger.Warn("Failed to update profile analysis counter",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	metrics.AnalysisTotal.WithLabelValues("ok").Inc()
	metrics.AnalysisDuration.WithLabelValues("single").Observe(analysis.ProcessingSeconds)
	metrics.ControversyScore.Observe(analysis.ControversyLevel)

	logger.Info("Analysis created",
		zap.String("analysis_id", analysis.ID),
		zap.String("article_id", articleID),
		zap.String("user_id", userID),
		zap.Float64("processing_seconds", analysis.ProcessingSeconds),
	)

	return analysis, true, nil
}

// BulkResult is the per-item outcome of a bulk run. Exactly one of
// Analysis and Err is set unless the item was skipped as already
// analyzed, in which case Analysis holds the existing record.
type BulkResult struct {
	ArticleID string
	Analysis  *models.Analysis
	Skipped   bool
	Err       error
}

// BulkAnalyze analyzes up to max articles for a user, sequentially,
// with a fixed delay between external calls. Articles already analyzed
// by the user are skipped without counting against max. One item's
// failure never aborts the batch.
func (e *Engine) BulkAnalyze(ctx context.Context, articleIDs []string, userID string, max int) []BulkResult {
	return e.BulkAnalyzeWithProgress(ctx, articleIDs, userID, max, nil)
}

// BulkAnalyzeWithProgress is BulkAnalyze with a per-item callback,
// invoked after each article resolves. Used by the streaming handler.
func (e *Engine) BulkAnalyzeWithProgress(ctx context.Context, articleIDs []string, userID string, max int, onItem func(BulkResult)) []BulkResult {
	if max <= 0 || max > DefaultBulkMax {
		max = DefaultBulkMax
	}

	var results []BulkResult
	processed := 0

	for _, articleID := range articleIDs {
		if processed >= max {
			break
		}

		existing, err := e.store.GetAnalysisByArticle(userID, articleID)
		if err == nil {
			item := BulkResult{ArticleID: articleID, Analysis: existing, Skipped: true}
			results = append(results, item)
			if onItem != nil {
				onItem(item)
			}
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			item := BulkResult{ArticleID: articleID, Err: err}
			results = append(results, item)
			if onItem != nil {
				onItem(item)
			}
			continue
		}

		if processed > 0 {
			time.Sleep(e.bulkDelay)
		}

		analysis, _, err := e.Analyze(ctx, articleID, userID)
		processed++

		item := BulkResult{ArticleID: articleID, Analysis: analysis, Err: err}
		if err != nil {
			logger.Error("Bulk item failed",
				zap.String("article_id", articleID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		results = append(results, item)
		if onItem != nil {
			onItem(item)
		}
	}

	logger.Info("Bulk analysis finished",
		zap.String("user_id", userID),
		zap.Int("requested", len(articleIDs)),
		zap.Int("processed", processed),
	)

	return results
}
