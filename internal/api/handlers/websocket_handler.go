package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/analysis"
	"github.com/newslens/backend/internal/auth"
	"github.com/newslens/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine      *analysis.Engine
	authService *auth.Service
}

func NewWebSocketHandler(engine *analysis.Engine, authService *auth.Service) *WebSocketHandler {
	return &WebSocketHandler{
		engine:      engine,
		authService: authService,
	}
}

// HandleConnection serves the streaming analysis socket. Clients send
// analyze requests carrying their token and article ids, and receive a
// progress event per article followed by a completion summary.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type       string   `json:"type"`
			Token      string   `json:"token"`
			ArticleIDs []string `json:"article_ids"`
			Max        int      `json:"max"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "analyze" {
			h.sendError(c, "Unsupported message type")
			continue
		}

		claims, err := h.authService.VerifyToken(msg.Token)
		if err != nil {
			h.sendError(c, "Invalid token")
			continue
		}
		if len(msg.ArticleIDs) == 0 {
			h.sendError(c, "article_ids is required")
			continue
		}

		h.streamBulkAnalysis(c, claims.UserID, msg.ArticleIDs, msg.Max)
	}
}

func (h *WebSocketHandler) streamBulkAnalysis(c *websocket.Conn, userID string, articleIDs []string, max int) {
	total := len(articleIDs)
	done := 0

	results := h.engine.BulkAnalyzeWithProgress(context.Background(), articleIDs, userID, max,
		func(item analysis.BulkResult) {
			done++
			event := map[string]interface{}{
				"type":       "progress",
				"article_id": item.ArticleID,
				"done":       done,
				"total":      total,
			}
			switch {
			case item.Err != nil:
				event["status"] = "failed"
			case item.Skipped:
				event["status"] = "skipped"
			default:
				event["status"] = "analyzed"
				event["analysis"] = analysisJSON(item.Analysis)
			}
			if err := c.WriteJSON(event); err != nil {
				logger.Debug("Failed to write progress event", zap.Error(err))
			}
		})

	analyzed, skipped, failed := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			analyzed++
		}
	}

	if err := c.WriteJSON(map[string]interface{}{
		"type":     "complete",
		"analyzed": analyzed,
		"skipped":  skipped,
		"failed":   failed,
	}); err != nil {
		logger.Debug("Failed to write completion event", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, message string) {
	if err := c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": message,
	}); err != nil {
		logger.Debug("Failed to write error event", zap.Error(err))
	}
}
