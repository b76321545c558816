package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/aggregate"
	"github.com/newslens/backend/internal/auth"
	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/internal/storage/sqlite"
	"github.com/newslens/backend/pkg/logger"
)

const maxComparisonMembers = 20

type ComparisonHandler struct {
	store *sqlite.Client
}

func NewComparisonHandler(store *sqlite.Client) *ComparisonHandler {
	return &ComparisonHandler{store: store}
}

// CreateComparison groups at least two of the user's analyses under a
// name. Every referenced analysis must exist and belong to the user.
func (h *ComparisonHandler) CreateComparison(c *fiber.Ctx) error {
	var req struct {
		Name        string   `json:"name"`
		Notes       string   `json:"notes"`
		AnalysisIDs []string `json:"analysis_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}
	req.AnalysisIDs = dedupeIDs(req.AnalysisIDs)
	if len(req.AnalysisIDs) < 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "at least two distinct analysis_ids are required",
		})
	}
	if len(req.AnalysisIDs) > maxComparisonMembers {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "too many analyses for one comparison",
		})
	}

	userID := auth.UserID(c)
	if _, err := h.store.GetAnalysesByIDs(req.AnalysisIDs, userID); err != nil {
		return errorResponse(c, err, "Failed to resolve analyses")
	}

	comparison := &models.Comparison{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        req.Name,
		Notes:       req.Notes,
		AnalysisIDs: req.AnalysisIDs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.InsertComparison(comparison); err != nil {
		logger.Error("Failed to create comparison", zap.Error(err))
		return errorResponse(c, err, "Failed to create comparison")
	}

	return c.Status(fiber.StatusCreated).JSON(comparisonJSON(comparison))
}

func (h *ComparisonHandler) ListComparisons(c *fiber.Ctx) error {
	comparisons, err := h.store.ListComparisons(auth.UserID(c))
	if err != nil {
		logger.Error("Failed to list comparisons", zap.Error(err))
		return errorResponse(c, err, "Failed to list comparisons")
	}

	items := make([]fiber.Map, 0, len(comparisons))
	for i := range comparisons {
		items = append(items, comparisonJSON(&comparisons[i]))
	}
	return c.JSON(fiber.Map{
		"comparisons": items,
		"count":       len(items),
	})
}

func (h *ComparisonHandler) GetComparison(c *fiber.Ctx) error {
	comparison, err := h.store.GetComparison(c.Params("id"), auth.UserID(c))
	if err != nil {
		return errorResponse(c, err, "Failed to load comparison")
	}
	return c.JSON(comparisonJSON(comparison))
}

func (h *ComparisonHandler) DeleteComparison(c *fiber.Ctx) error {
	if err := h.store.DeleteComparison(c.Params("id"), auth.UserID(c)); err != nil {
		return errorResponse(c, err, "Failed to delete comparison")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ComparisonStats computes comparative metrics across the comparison's
// member analyses: average bias, bias spread, sentiment range, and
// common topics.
func (h *ComparisonHandler) ComparisonStats(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	comparison, err := h.store.GetComparison(c.Params("id"), userID)
	if err != nil {
		return errorResponse(c, err, "Failed to load comparison")
	}

	analyses, err := h.store.GetAnalysesByIDs(comparison.AnalysisIDs, userID)
	if err != nil {
		logger.Error("Failed to load comparison members",
			zap.String("comparison_id", comparison.ID), zap.Error(err))
		return errorResponse(c, err, "Failed to compute comparison stats")
	}

	stats := aggregate.CompareAnalyses(analyses)
	return c.JSON(fiber.Map{
		"comparison": comparisonJSON(comparison),
		"stats":      stats,
		"analyses":   analysisListJSON(analyses),
	})
}

// dedupeIDs drops repeated ids, keeping first-seen order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
