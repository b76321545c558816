package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/pkg/logger"
)

const analysisColumns = `a.id, a.user_id, a.article_id, a.political_bias, a.bias_confidence,
	a.bias_reasoning, a.positive_sentiment, a.negative_sentiment, a.neutral_sentiment,
	a.overall_sentiment, a.primary_topics, a.topic_distribution, a.key_themes,
	a.emotional_tone, a.controversy_level, a.analysis_version, a.processing_seconds,
	a.created_at, a.raw_response, ar.title, ar.category`

// InsertAnalysis stores a completed analysis. The unique (user, article)
// constraint maps to models.ErrAlreadyExists so the engine race of two
// simultaneous requests is resolved at the store.
func (c *Client) InsertAnalysis(analysis *models.Analysis) error {
	topicsJSON, _ := json.Marshal(analysis.PrimaryTopics)
	distributionJSON, _ := json.Marshal(analysis.TopicDistribution)
	themesJSON, _ := json.Marshal(analysis.KeyThemes)

	query := `
		INSERT INTO analyses (id, user_id, article_id, political_bias, bias_confidence,
			bias_reasoning, positive_sentiment, negative_sentiment, neutral_sentiment,
			overall_sentiment, primary_topics, topic_distribution, key_themes,
			emotional_tone, controversy_level, analysis_version, processing_seconds,
			created_at, raw_response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		analysis.ID,
		analysis.UserID,
		analysis.ArticleID,
		string(analysis.PoliticalBias),
		analysis.BiasConfidence,
		analysis.BiasReasoning,
		analysis.PositiveSentiment,
		analysis.NegativeSentiment,
		analysis.NeutralSentiment,
		analysis.OverallSentiment,
		string(topicsJSON),
		string(distributionJSON),
		string(themesJSON),
		analysis.EmotionalTone,
		analysis.ControversyLevel,
		analysis.AnalysisVersion,
		analysis.ProcessingSeconds,
		analysis.CreatedAt.Unix(),
		analysis.RawResponse,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("analysis for user %s article %s: %w",
				analysis.UserID, analysis.ArticleID, models.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	logger.Info("Analysis stored",
		zap.String("analysis_id", analysis.ID),
		zap.String("article_id", analysis.ArticleID),
		zap.String("user_id", analysis.UserID),
		zap.String("bias", string(analysis.PoliticalBias)),
	)

	return nil
}

// GetAnalysis returns one analysis owned by userID.
func (c *Client) GetAnalysis(id, userID string) (*models.Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses a JOIN articles ar ON ar.id = a.article_id
		WHERE a.id = ? AND a.user_id = ?
	`

	analysis, err := scanAnalysis(c.db.QueryRow(query, id, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return analysis, nil
}

// GetAnalysisByArticle returns the existing analysis of an article by a
// user, or models.ErrNotFound.
func (c *Client) GetAnalysisByArticle(userID, articleID string) (*models.Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses a JOIN articles ar ON ar.id = a.article_id
		WHERE a.user_id = ? AND a.article_id = ?
	`

	analysis, err := scanAnalysis(c.db.QueryRow(query, userID, articleID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis of article %s: %w", articleID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis by article: %w", err)
	}

	return analysis, nil
}

type AnalysisFilter struct {
	Bias           string
	Category       string
	MinControversy float64
	Since          time.Time
	Until          time.Time
	Limit          int
	Offset         int
}

// ListAnalyses returns a user's analyses, newest first.
func (c *Client) ListAnalyses(userID string, filter AnalysisFilter) ([]models.Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses a JOIN articles ar ON ar.id = a.article_id
		WHERE a.user_id = ?
	`
	args := []interface{}{userID}

	if filter.Bias != "" {
		query += " AND a.political_bias = ?"
		args = append(args, filter.Bias)
	}
	if filter.Category != "" {
		query += " AND ar.category = ?"
		args = append(args, filter.Category)
	}
	if filter.MinControversy > 0 {
		query += " AND a.controversy_level >= ?"
		args = append(args, filter.MinControversy)
	}
	if !filter.Since.IsZero() {
		query += " AND a.created_at >= ?"
		args = append(args, filter.Since.Unix())
	}
	if !filter.Until.IsZero() {
		query += " AND a.created_at <= ?"
		args = append(args, filter.Until.Unix())
	}

	query += " ORDER BY a.created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return c.queryAnalyses(query, args...)
}

// ListAnalysesSince returns analyses created at or after since, across
// all users when userID is empty. Feeds the trending-topics aggregation.
func (c *Client) ListAnalysesSince(userID string, since time.Time) ([]models.Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses a JOIN articles ar ON ar.id = a.article_id
		WHERE a.created_at >= ?
	`
	args := []interface{}{since.Unix()}

	if userID != "" {
		query += " AND a.user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY a.created_at DESC"

	return c.queryAnalyses(query, args...)
}

// GetAnalysesByIDs resolves a set of analysis ids scoped to one owner.
// Returned records keep the first-seen order of ids. A missing or
// foreign id yields models.ErrNotFound.
func (c *Client) GetAnalysesByIDs(ids []string, userID string) ([]models.Analysis, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := `
		SELECT ` + analysisColumns + `
		FROM analyses a JOIN articles ar ON ar.id = a.article_id
		WHERE a.user_id = ? AND a.id IN (` + placeholders + `)
	`

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	analyses, err := c.queryAnalyses(query, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Analysis, len(analyses))
	for _, a := range analyses {
		byID[a.ID] = a
	}

	ordered := make([]models.Analysis, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("analysis %s: %w", id, models.ErrNotFound)
		}
		ordered = append(ordered, a)
	}

	return ordered, nil
}

func (c *Client) queryAnalyses(query string, args ...interface{}) ([]models.Analysis, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		analyses = append(analyses, *analysis)
	}

	return analyses, rows.Err()
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	var a models.Analysis
	var bias, topicsJSON, distributionJSON, themesJSON string
	var createdAt int64

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ArticleID,
		&bias,
		&a.BiasConfidence,
		&a.BiasReasoning,
		&a.PositiveSentiment,
		&a.NegativeSentiment,
		&a.NeutralSentiment,
		&a.OverallSentiment,
		&topicsJSON,
		&distributionJSON,
		&themesJSON,
		&a.EmotionalTone,
		&a.ControversyLevel,
		&a.AnalysisVersion,
		&a.ProcessingSeconds,
		&createdAt,
		&a.RawResponse,
		&a.ArticleTitle,
		&a.ArticleCategory,
	)
	if err != nil {
		return nil, err
	}

	a.PoliticalBias = models.PoliticalBias(bias)
	json.Unmarshal([]byte(topicsJSON), &a.PrimaryTopics)
	json.Unmarshal([]byte(distributionJSON), &a.TopicDistribution)
	json.Unmarshal([]byte(themesJSON), &a.KeyThemes)
	a.CreatedAt = time.Unix(createdAt, 0)

	return &a, nil
}
