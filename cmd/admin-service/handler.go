package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ride-sim/internal/ride-service/consumer"
	"ride-sim/pkg/auth"
	"ride-sim/pkg/logger"
	"ride-sim/pkg/rabbitmq"
)

// Publisher sends a message to the broker.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

type AdminHandler struct {
	log       logger.Logger
	store     Store
	publisher Publisher
	clock     func() time.Time
}

type RidesResponse struct {
	Rides      []RideSummary `json:"rides"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

func NewAdminHandler(log logger.Logger, store Store, publisher Publisher, clock func() time.Time) *AdminHandler {
	if clock == nil {
		clock = time.Now
	}
	return &AdminHandler{
		log:       log,
		store:     store,
		publisher: publisher,
		clock:     clock,
	}
}

// Register mounts the admin routes behind JWT + admin role checks.
func (h *AdminHandler) Register(mux *http.ServeMux, jwtManager *auth.JWTManager) {
	protect := func(fn http.HandlerFunc) http.Handler {
		return jwtManager.AuthMiddleware(auth.RequireRole(audit(h.log, fn), auth.RoleAdmin))
	}

	mux.Handle("GET /admin/overview", protect(h.getOverviewMetrics))
	mux.Handle("GET /admin/rides/active", protect(h.getActiveRides))
	mux.Handle("GET /admin/rides/history", protect(h.getRideHistory))
	mux.Handle("POST /admin/rides/{ride_id}/cancel", protect(h.cancelRide))
}

func (h *AdminHandler) getOverviewMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()

	now := h.clock()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	metrics, err := h.store.Overview(ctx, startOfDay)
	if err != nil {
		h.log.Error("get_overview_metrics", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (h *AdminHandler) getActiveRides(w http.ResponseWriter, r *http.Request) {
	h.listRides(w, r, "get_active_rides", h.store.ActiveRides)
}

func (h *AdminHandler) getRideHistory(w http.ResponseWriter, r *http.Request) {
	h.listRides(w, r, "get_ride_history", h.store.History)
}

func (h *AdminHandler) listRides(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	list func(ctx context.Context, limit, offset int) ([]RideSummary, int, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()

	page, pageSize := parsePagination(r)
	rides, total, err := list(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		h.log.Error(action, err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, RidesResponse{
		Rides:      rides,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// cancelRide queues a cancel command for the ride service. The ride service
// validates the ride and reason when it applies the command.
func (h *AdminHandler) cancelRide(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	cmd := consumer.CancelCommandMessage{
		RideID:      r.PathValue("ride_id"),
		ReasonID:    req.Reason,
		RequestedBy: claims.UserID,
		Timestamp:   h.clock(),
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		h.log.Error("encode_cancel_command", err)
		writeError(w, http.StatusInternalServerError, "Error processing request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.publisher.Publish(ctx, rabbitmq.RideExchange, consumer.CancelCommandKey, body); err != nil {
		h.log.Error("publish_cancel_command", fmt.Errorf("ride %s: %w", cmd.RideID, err))
		writeError(w, http.StatusServiceUnavailable, "Broker unavailable")
		return
	}

	h.log.WithFields(logger.LogFields{
		"ride_id":  cmd.RideID,
		"admin_id": claims.UserID,
		"reason":   cmd.ReasonID,
	}).Info("cancel_command_queued", "Cancel command queued")

	writeJSON(w, http.StatusAccepted, cmd)
}
