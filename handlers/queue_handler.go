package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"reservation-system/config"
	"reservation-system/models"
	"reservation-system/services"
)

type QueueHandler struct {
	app    *pocketbase.PocketBase
	engine *services.QueueEngine
	cfg    *config.Config
	logger services.ActivityLogger
}

func NewQueueHandler(app *pocketbase.PocketBase, engine *services.QueueEngine, cfg *config.Config, logger services.ActivityLogger) *QueueHandler {
	return &QueueHandler{
		app:    app,
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
}

// JoinQueue - Join the waiting queue for a resource
func (h *QueueHandler) JoinQueue(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ResourceID       string `json:"resource_id"`
		Tier             string `json:"tier"`
		RequestedMinutes int    `json:"requested_minutes"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ResourceID == "" {
		return apis.NewBadRequestError("Resource ID required", nil)
	}

	requested := time.Duration(req.RequestedMinutes) * time.Minute
	if req.RequestedMinutes != 0 && (requested < 15*time.Minute || requested > h.cfg.MaxSessionLength) {
		return apis.NewBadRequestError(
			fmt.Sprintf("Requested duration must be between 15m and %s", h.cfg.MaxSessionLength), nil)
	}

	tier := models.ParseTier(req.Tier)
	result, err := h.engine.Join(e.Request.Context(), e.Auth.Id, req.ResourceID, tier, requested)
	if err != nil {
		slog.Warn("join queue failed", "user", e.Auth.Id, "resource", req.ResourceID, "err", err)
		return apiError(err)
	}

	if result.Lease != nil {
		h.logger.LogActivity(e.Auth.Id, req.ResourceID, "lease_started", result.Lease.EndsAt.Format(time.RFC3339))
		return e.JSON(http.StatusOK, map[string]any{
			"status": "leased",
			"lease":  result.Lease,
		})
	}

	h.logger.LogActivity(e.Auth.Id, req.ResourceID, "queue_joined", fmt.Sprintf("position %d", result.Waiter.Position))
	return e.JSON(http.StatusOK, map[string]any{
		"status":              "queued",
		"position":            result.Waiter.Position,
		"estimated_wait":      result.Waiter.EstimatedWait.String(),
		"estimated_wait_secs": int(result.Waiter.EstimatedWait.Seconds()),
		"tier":                result.Waiter.Tier.String(),
	})
}

// LeaveQueue - Abandon a waiting slot
func (h *QueueHandler) LeaveQueue(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ResourceID string `json:"resource_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ResourceID == "" {
		return apis.NewBadRequestError("Resource ID required", nil)
	}

	if err := h.engine.Leave(e.Request.Context(), e.Auth.Id, req.ResourceID); err != nil {
		return apiError(err)
	}

	h.logger.LogActivity(e.Auth.Id, req.ResourceID, "queue_left", "")
	return e.JSON(http.StatusOK, map[string]any{"message": "Left the queue"})
}

// GetPosition - Current queue position and wait estimate
func (h *QueueHandler) GetPosition(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	resourceID := e.Request.URL.Query().Get("resource_id")
	if resourceID == "" {
		return apis.NewBadRequestError("Resource ID required", nil)
	}

	waiter, err := h.engine.Position(resourceID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"position":            waiter.Position,
		"estimated_wait":      waiter.EstimatedWait.String(),
		"estimated_wait_secs": int(waiter.EstimatedWait.Seconds()),
		"tier":                waiter.Tier.String(),
		"joined_at":           waiter.JoinedAt,
	})
}
