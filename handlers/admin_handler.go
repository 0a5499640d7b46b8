package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"reservation-system/services"
)

type AdminHandler struct {
	app    *pocketbase.PocketBase
	engine *services.QueueEngine
	logger services.ActivityLogger
}

func NewAdminHandler(app *pocketbase.PocketBase, engine *services.QueueEngine, logger services.ActivityLogger) *AdminHandler {
	return &AdminHandler{
		app:    app,
		engine: engine,
		logger: logger,
	}
}

// GetDashboard - Full fleet view: every resource with holder and queue
func (h *AdminHandler) GetDashboard(e *core.RequestEvent) error {
	overviews, err := h.engine.Overview(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to load dashboard", err)
	}

	out := make([]map[string]any, 0, len(overviews))
	for _, ov := range overviews {
		entry := map[string]any{
			"resource_id": ov.Resource.ID,
			"name":        ov.Resource.Name,
			"ip_address":  ov.Resource.IPAddress,
			"class":       string(ov.Resource.Class),
			"status":      string(ov.Resource.Status),
			"queue_size":  len(ov.Queue),
		}
		if ov.Lease != nil {
			entry["lease"] = ov.Lease
		}
		waiters := make([]map[string]any, 0, len(ov.Queue))
		for _, w := range ov.Queue {
			waiters = append(waiters, map[string]any{
				"user_id":        w.UserID,
				"position":       w.Position,
				"tier":           w.Tier.String(),
				"joined_at":      w.JoinedAt,
				"estimated_wait": w.EstimatedWait.String(),
			})
		}
		entry["queue"] = waiters
		out = append(out, entry)
	}
	return e.JSON(http.StatusOK, out)
}

// ForceExpire - End the active lease on a resource regardless of holder
func (h *AdminHandler) ForceExpire(e *core.RequestEvent) error {
	var req struct {
		ResourceID string `json:"resource_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ResourceID == "" {
		return apis.NewBadRequestError("Resource ID required", nil)
	}

	holder := h.engine.Holder(req.ResourceID)
	if holder == nil {
		return apis.NewNotFoundError("No active lease on this resource", nil)
	}
	if err := h.engine.Release(e.Request.Context(), holder.UserID, req.ResourceID); err != nil {
		return apiError(err)
	}

	h.logger.LogActivity(holder.UserID, req.ResourceID, "lease_force_expired", "admin")
	return e.JSON(http.StatusOK, map[string]any{"message": "Lease expired", "user_id": holder.UserID})
}

// RemoveWaiter - Drop a user from a resource's queue
func (h *AdminHandler) RemoveWaiter(e *core.RequestEvent) error {
	var req struct {
		ResourceID string `json:"resource_id"`
		UserID     string `json:"user_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ResourceID == "" || req.UserID == "" {
		return apis.NewBadRequestError("Resource ID and user ID required", nil)
	}

	if err := h.engine.RemoveWaiter(e.Request.Context(), req.ResourceID, req.UserID); err != nil {
		return apiError(err)
	}

	h.logger.LogActivity(req.UserID, req.ResourceID, "waiter_removed", "admin")
	return e.JSON(http.StatusOK, map[string]any{"message": "Waiter removed"})
}
