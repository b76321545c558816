package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/newslens/backend/internal/storage/models"
)

func analysisJSON(a *models.Analysis) fiber.Map {
	return fiber.Map{
		"id":                 a.ID,
		"article_id":         a.ArticleID,
		"article_title":      a.ArticleTitle,
		"article_category":   a.ArticleCategory,
		"political_bias":     a.PoliticalBias,
		"bias_score":         a.NormalizedBiasScore(),
		"bias_confidence":    a.BiasConfidence,
		"bias_reasoning":     a.BiasReasoning,
		"positive_sentiment": a.PositiveSentiment,
		"negative_sentiment": a.NegativeSentiment,
		"neutral_sentiment":  a.NeutralSentiment,
		"overall_sentiment":  a.OverallSentiment,
		"primary_topics":     a.PrimaryTopics,
		"topic_distribution": a.TopicDistribution,
		"key_themes":         a.KeyThemes,
		"emotional_tone":     a.EmotionalTone,
		"controversy_level":  a.ControversyLevel,
		"analysis_version":   a.AnalysisVersion,
		"processing_seconds": a.ProcessingSeconds,
		"created_at":         a.CreatedAt.Format(time.RFC3339),
	}
}

func analysisListJSON(analyses []models.Analysis) []fiber.Map {
	out := make([]fiber.Map, 0, len(analyses))
	for i := range analyses {
		out = append(out, analysisJSON(&analyses[i]))
	}
	return out
}

func articleJSON(a *models.Article) fiber.Map {
	return fiber.Map{
		"id":           a.ID,
		"title":        a.Title,
		"description":  a.Description,
		"url":          a.URL,
		"image_url":    a.ImageURL,
		"author":       a.Author,
		"source":       a.Source,
		"category":     a.Category,
		"keywords":     a.Keywords,
		"language":     a.Language,
		"published_at": a.PublishedAt.Format(time.RFC3339),
		"created_at":   a.CreatedAt.Format(time.RFC3339),
	}
}

func comparisonJSON(cmp *models.Comparison) fiber.Map {
	return fiber.Map{
		"id":           cmp.ID,
		"name":         cmp.Name,
		"notes":        cmp.Notes,
		"analysis_ids": cmp.AnalysisIDs,
		"created_at":   cmp.CreatedAt.Format(time.RFC3339),
	}
}

func preferencesJSON(p *models.Preferences) fiber.Map {
	return fiber.Map{
		"preferred_categories":  p.PreferredCategories,
		"notification_settings": p.NotificationSettings,
		"default_depth":         p.DefaultDepth,
		"updated_at":            p.UpdatedAt.Format(time.RFC3339),
	}
}

// errorResponse maps domain errors onto HTTP statuses. Unknown errors
// become a generic 500 so internals never leak to clients.
func errorResponse(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource not found",
		})
	case errors.Is(err, models.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, models.ErrAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Resource already exists",
		})
	case errors.Is(err, models.ErrExternalService), errors.Is(err, models.ErrInvalidResponse):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Analysis service is temporarily unavailable",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fallback,
		})
	}
}
