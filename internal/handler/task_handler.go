package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"inboxintel/internal/model"
	"inboxintel/internal/repository"
)

// TaskStore is the to-do persistence surface the handlers need.
type TaskStore interface {
	ListOpen(ctx context.Context, userEmail string) ([]model.Task, error)
	BulkInsert(ctx context.Context, userEmail string, items []model.TaskItem) (int, error)
	MarkDone(ctx context.Context, userEmail string, id uuid.UUID) error
}

type TaskHandler struct {
	store  TaskStore
	logger *zap.Logger
}

func NewTaskHandler(store TaskStore, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{store: store, logger: logger}
}

// getUserEmail reads the verified identity the auth middleware stored.
func getUserEmail(c *gin.Context) (string, bool) {
	email, ok := c.Get("user_email")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return email.(string), true
}

// ListTasks handles GET /tasks: the caller's open tasks, newest first.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userEmail, ok := getUserEmail(c)
	if !ok {
		return
	}

	tasks, err := h.store.ListOpen(c.Request.Context(), userEmail)
	if err != nil {
		h.logger.Error("ListTasks: failed to fetch tasks",
			zap.String("user_email", userEmail),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch to-do items."})
		return
	}

	h.logger.Info("ListTasks: success",
		zap.String("user_email", userEmail),
		zap.Int("task_count", len(tasks)),
	)
	c.JSON(http.StatusOK, tasks)
}

// CreateTasks handles POST /tasks: bulk-insert the user's selected actions.
func (h *TaskHandler) CreateTasks(c *gin.Context) {
	userEmail, ok := getUserEmail(c)
	if !ok {
		return
	}

	var req struct {
		Items []model.TaskItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No items to add."})
		return
	}

	inserted, err := h.store.BulkInsert(c.Request.Context(), userEmail, req.Items)
	if err != nil {
		h.logger.Error("CreateTasks: failed to insert tasks",
			zap.String("user_email", userEmail),
			zap.Int("requested", len(req.Items)),
			zap.Int("inserted", inserted),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to-do items."})
		return
	}

	h.logger.Info("CreateTasks: success",
		zap.String("user_email", userEmail),
		zap.Int("inserted", inserted),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "insertedCount": inserted})
}

// CompleteTask handles PATCH /tasks: mark one owned task done.
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	userEmail, ok := getUserEmail(c)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "To-do ID is required."})
		return
	}

	taskID, err := uuid.Parse(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to-do ID."})
		return
	}

	if err := h.store.MarkDone(c.Request.Context(), userEmail, taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "To-do item not found or you do not have permission."})
			return
		}
		h.logger.Error("CompleteTask: failed to update task",
			zap.String("user_email", userEmail),
			zap.String("task_id", req.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update to-do item."})
		return
	}

	h.logger.Info("CompleteTask: success",
		zap.String("user_email", userEmail),
		zap.String("task_id", req.ID),
	)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
