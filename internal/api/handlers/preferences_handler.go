package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/auth"
	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/internal/storage/sqlite"
	"github.com/newslens/backend/pkg/logger"
)

type PreferencesHandler struct {
	store *sqlite.Client
}

func NewPreferencesHandler(store *sqlite.Client) *PreferencesHandler {
	return &PreferencesHandler{store: store}
}

// GetPreferences returns the user's preferences, creating defaults on
// first access.
func (h *PreferencesHandler) GetPreferences(c *fiber.Ctx) error {
	prefs, err := h.store.GetPreferences(auth.UserID(c))
	if err != nil {
		logger.Error("Failed to load preferences", zap.Error(err))
		return errorResponse(c, err, "Failed to load preferences")
	}
	return c.JSON(preferencesJSON(prefs))
}

func (h *PreferencesHandler) UpdatePreferences(c *fiber.Ctx) error {
	var req struct {
		PreferredCategories  []string        `json:"preferred_categories"`
		NotificationSettings map[string]bool `json:"notification_settings"`
		DefaultDepth         string          `json:"default_depth"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID := auth.UserID(c)
	prefs, err := h.store.GetPreferences(userID)
	if err != nil {
		return errorResponse(c, err, "Failed to load preferences")
	}

	if req.PreferredCategories != nil {
		prefs.PreferredCategories = req.PreferredCategories
	}
	if req.NotificationSettings != nil {
		prefs.NotificationSettings = req.NotificationSettings
	}
	if req.DefaultDepth != "" {
		prefs.DefaultDepth = models.AnalysisDepth(req.DefaultDepth)
	}

	if err := prefs.Validate(); err != nil {
		return errorResponse(c, err, "Invalid preferences")
	}
	if err := h.store.UpdatePreferences(prefs); err != nil {
		logger.Error("Failed to update preferences",
			zap.String("user_id", userID), zap.Error(err))
		return errorResponse(c, err, "Failed to update preferences")
	}

	return c.JSON(preferencesJSON(prefs))
}
