package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/auth"
	"github.com/newslens/backend/internal/storage/sqlite"
	"github.com/newslens/backend/pkg/logger"
)

type UserHandler struct {
	authService *auth.Service
	store       *sqlite.Client
}

func NewUserHandler(authService *auth.Service, store *sqlite.Client) *UserHandler {
	return &UserHandler{
		authService: authService,
		store:       store,
	}
}

func (h *UserHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.authService.Register(req.Username, req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err, "Failed to register user")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	token, expiresAt, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid username or password",
			})
		}
		logger.Error("Login failed", zap.String("username", req.Username), zap.Error(err))
		return errorResponse(c, err, "Failed to log in")
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	user, err := h.store.GetUser(userID)
	if err != nil {
		return errorResponse(c, err, "Failed to load user")
	}
	profile, err := h.store.GetProfile(userID)
	if err != nil {
		logger.Error("Failed to load profile", zap.String("user_id", userID), zap.Error(err))
		return errorResponse(c, err, "Failed to load profile")
	}

	resp := fiber.Map{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"bio":            profile.Bio,
		"avatar_url":     profile.AvatarURL,
		"total_analyses": profile.TotalAnalyses,
	}
	if profile.LastAnalysisAt != nil {
		resp["last_analysis_at"] = profile.LastAnalysisAt.Format(time.RFC3339)
	}
	return c.JSON(resp)
}

func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		Bio       *string `json:"bio"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID := auth.UserID(c)
	profile, err := h.store.GetProfile(userID)
	if err != nil {
		return errorResponse(c, err, "Failed to load profile")
	}

	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		profile.AvatarURL = *req.AvatarURL
	}

	if err := h.store.UpdateProfile(profile); err != nil {
		logger.Error("Failed to update profile", zap.String("user_id", userID), zap.Error(err))
		return errorResponse(c, err, "Failed to update profile")
	}

	return c.JSON(fiber.Map{
		"bio":        profile.Bio,
		"avatar_url": profile.AvatarURL,
	})
}
