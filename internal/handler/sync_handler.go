package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inboxintel/internal/model"
)

// SyncService runs one inbox sync for an authenticated caller.
type SyncService interface {
	Run(ctx context.Context, userEmail, accessToken string) ([]model.AnalysisResult, error)
}

type SyncHandler struct {
	service  SyncService
	modelKey string
	logger   *zap.Logger
}

func NewSyncHandler(service SyncService, modelKey string, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{service: service, modelKey: modelKey, logger: logger}
}

// Sync handles POST /sync. A missing model key is a configuration failure,
// checked before any upstream work; batch-level upstream failures map to
// 500, while per-message failures were already dropped inside the service.
func (h *SyncHandler) Sync(c *gin.Context) {
	userEmail, ok := getUserEmail(c)
	if !ok {
		return
	}
	accessToken, ok := c.Get("access_token")
	if !ok || accessToken.(string) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if h.modelKey == "" {
		h.logger.Error("Sync: model API key is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gemini API key is not configured"})
		return
	}

	results, err := h.service.Run(c.Request.Context(), userEmail, accessToken.(string))
	if err != nil {
		h.logger.Error("Sync: failed",
			zap.String("user_email", userEmail),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync inbox."})
		return
	}

	h.logger.Info("Sync: success",
		zap.String("user_email", userEmail),
		zap.Int("result_count", len(results)),
	)
	c.JSON(http.StatusOK, gin.H{"results": results})
}
