package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"reservation-system/config"
	"reservation-system/services"
)

type LeaseHandler struct {
	app    *pocketbase.PocketBase
	engine *services.QueueEngine
	cfg    *config.Config
	logger services.ActivityLogger
}

func NewLeaseHandler(app *pocketbase.PocketBase, engine *services.QueueEngine, cfg *config.Config, logger services.ActivityLogger) *LeaseHandler {
	return &LeaseHandler{
		app:    app,
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
}

// Extend - Push the active lease's end time out
func (h *LeaseHandler) Extend(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ResourceID        string `json:"resource_id"`
		AdditionalMinutes int    `json:"additional_minutes"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ResourceID == "" {
		return apis.NewBadRequestError("Resource ID required", nil)
	}
	if req.AdditionalMinutes < 0 {
		return apis.NewBadRequestError("Additional minutes must be positive", nil)
	}

	additional := time.Duration(req.AdditionalMinutes) * time.Minute
	newEnd, err := h.engine.Extend(e.Request.Context(), e.Auth.Id, req.ResourceID, additional)
	if err != nil {
		return apiError(err)
	}

	h.logger.LogActivity(e.Auth.Id, req.ResourceID, "lease_extended", newEnd.Format(time.RFC3339))
	return e.JSON(http.StatusOK, map[string]any{
		"message": "Lease extended",
		"ends_at": newEnd,
	})
}

// Release - Give the resource back early
func (h *LeaseHandler) Release(e *core.RequestEvent) error {
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

	if err := h.engine.Release(e.Request.Context(), e.Auth.Id, req.ResourceID); err != nil {
		return apiError(err)
	}

	h.logger.LogActivity(e.Auth.Id, req.ResourceID, "lease_released", "")
	return e.JSON(http.StatusOK, map[string]any{"message": "Resource released"})
}

// GetStatus - Per-resource lease and queue overview
func (h *LeaseHandler) GetStatus(e *core.RequestEvent) error {
	overviews, err := h.engine.Overview(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to load resource status", err)
	}

	out := make([]map[string]any, 0, len(overviews))
	for _, ov := range overviews {
		entry := map[string]any{
			"resource_id": ov.Resource.ID,
			"name":        ov.Resource.Name,
			"class":       string(ov.Resource.Class),
			"status":      string(ov.Resource.Status),
			"queue_size":  len(ov.Queue),
		}
		if ov.Lease != nil {
			entry["holder"] = ov.Lease.UserID
			entry["ends_at"] = ov.Lease.EndsAt
			entry["remaining"] = ov.Lease.Remaining.String()
		}
		if len(ov.Queue) > 0 {
			last := ov.Queue[len(ov.Queue)-1]
			entry["estimated_wait"] = last.EstimatedWait.String()
		}
		out = append(out, entry)
	}
	return e.JSON(http.StatusOK, out)
}
