package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/internal/ride-service/service"
	"ride-sim/pkg/auth"
	"ride-sim/pkg/logger"
)

const maxHistoryLimit = 100

// Limiter throttles requests per key.
type Limiter interface {
	Allow(key string) bool
}

// Handler serves the passenger-facing ride API.
type Handler struct {
	requestRide  *service.RequestRideUseCase
	cancelRide   *service.CancelRideUseCase
	getRide      *service.GetRideUseCase
	estimateFare *service.EstimateFareUseCase
	session      *service.BookingSession
	catalog      domain.CatalogRepository
	jwt          *auth.JWTManager
	limiter      Limiter
	log          logger.Logger
}

// UseCases groups the service layer the handler delegates to.
type UseCases struct {
	RequestRide  *service.RequestRideUseCase
	CancelRide   *service.CancelRideUseCase
	GetRide      *service.GetRideUseCase
	EstimateFare *service.EstimateFareUseCase
	Session      *service.BookingSession
}

// New creates the handler. A nil limiter disables request throttling.
func New(uc UseCases, catalog domain.CatalogRepository, jwt *auth.JWTManager, limiter Limiter, log logger.Logger) *Handler {
	return &Handler{
		requestRide:  uc.RequestRide,
		cancelRide:   uc.CancelRide,
		getRide:      uc.GetRide,
		estimateFare: uc.EstimateFare,
		session:      uc.Session,
		catalog:      catalog,
		jwt:          jwt,
		limiter:      limiter,
		log:          log,
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	passenger := func(fn http.HandlerFunc) http.Handler {
		return h.jwt.AuthMiddleware(auth.RequireRole(fn, auth.RolePassenger))
	}
	anyRider := func(fn http.HandlerFunc) http.Handler {
		return h.jwt.AuthMiddleware(auth.RequireRole(fn, auth.RolePassenger, auth.RoleAdmin, auth.RoleService))
	}

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /catalog", h.Catalog)

	// Public endpoint for testing - generates tokens (remove in production!)
	mux.HandleFunc("POST /auth/token", h.GenerateTestToken)

	mux.Handle("POST /rides", passenger(h.RequestRide))
	mux.Handle("GET /rides/history", passenger(h.History))
	mux.Handle("POST /fares/estimate", anyRider(h.EstimateFare))
	mux.Handle("GET /rides/{ride_id}", anyRider(h.GetRide))
	mux.Handle("POST /rides/{ride_id}/cancel", anyRider(h.CancelRide))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RequestRideRequest is the body of POST /rides
type RequestRideRequest struct {
	Pickup        *service.LocationInput `json:"pickup_location"`
	Destination   *service.LocationInput `json:"destination_location"`
	RideType      string                 `json:"ride_type"`
	PaymentMethod string                 `json:"payment_method"`
}

// RequestRide handles POST /rides
func (h *Handler) RequestRide(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())

	if h.throttled(w, "request_ride_throttled", claims) {
		return
	}

	var req RequestRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.log.WithFields(logger.LogFields{
		"passenger_id": claims.UserID,
		"ride_type":    req.RideType,
	}).Debug("request_ride_received", "Received ride request")

	ride, err := h.requestRide.Execute(r.Context(), service.RequestRideCommand{
		PassengerID:     claims.UserID,
		Pickup:          req.Pickup,
		Destination:     req.Destination,
		RideTypeID:      req.RideType,
		PaymentMethodID: req.PaymentMethod,
	})
	if err != nil {
		h.fail(w, "request_ride_failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, ride)
}

// CancelRideRequest is the body of POST /rides/{ride_id}/cancel
type CancelRideRequest struct {
	Reason string `json:"reason"`
}

// CancelRide handles POST /rides/{ride_id}/cancel
func (h *Handler) CancelRide(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())

	var req CancelRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ride, err := h.cancelRide.Execute(r.Context(), service.CancelRideCommand{
		RideID:      r.PathValue("ride_id"),
		PassengerID: passengerScope(claims),
		ReasonID:    req.Reason,
	})
	if err != nil {
		h.fail(w, "cancel_ride_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ride)
}

// GetRide handles GET /rides/{ride_id}
func (h *Handler) GetRide(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())

	ride, err := h.getRide.Execute(r.Context(), r.PathValue("ride_id"), passengerScope(claims))
	if err != nil {
		h.fail(w, "get_ride_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ride)
}

// History handles GET /rides/history?limit=N
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rides, err := h.session.History(r.Context(), claims.UserID, limit)
	if err != nil {
		h.fail(w, "ride_history_failed", err)
		return
	}
	if rides == nil {
		rides = []domain.RideView{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rides": rides,
		"count": len(rides),
	})
}

// EstimateFareRequest is the body of POST /fares/estimate
type EstimateFareRequest struct {
	Pickup      *service.LocationInput `json:"pickup_location"`
	Destination *service.LocationInput `json:"destination_location"`
	RideType    string                 `json:"ride_type,omitempty"`
}

// EstimateFare handles POST /fares/estimate
func (h *Handler) EstimateFare(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())
	if h.throttled(w, "estimate_fare_throttled", claims) {
		return
	}

	var req EstimateFareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	estimate, err := h.estimateFare.Execute(r.Context(), service.EstimateFareCommand{
		Pickup:      req.Pickup,
		Destination: req.Destination,
		RideTypeID:  req.RideType,
	})
	if err != nil {
		h.fail(w, "estimate_fare_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, estimate)
}

// Catalog handles GET /catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rideTypes, err := h.catalog.RideTypes(ctx)
	if err != nil {
		h.fail(w, "catalog_failed", err)
		return
	}
	payments, err := h.catalog.PaymentMethods(ctx)
	if err != nil {
		h.fail(w, "catalog_failed", err)
		return
	}
	reasons, err := h.catalog.CancellationReasons(ctx)
	if err != nil {
		h.fail(w, "catalog_failed", err)
		return
	}
	factors, err := h.catalog.PriceFactors(ctx)
	if err != nil {
		h.fail(w, "catalog_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ride_types":           rideTypes,
		"payment_methods":      payments,
		"cancellation_reasons": reasons,
		"price_factors":        factors,
	})
}

type TokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // PASSENGER, ADMIN or SERVICE
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

// GenerateTestToken is a helper endpoint for testing authentication
func (h *Handler) GenerateTestToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" {
		req.UserID = "440e8400-e29b-41d4-a716-446655440003"
	}
	if req.Role == "" {
		req.Role = string(auth.RolePassenger)
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid role. Must be PASSENGER, ADMIN or SERVICE")
		return
	}

	token, err := h.jwt.GenerateToken(req.UserID, role)
	if err != nil {
		h.log.Error("generate_token_failed", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwt.TTL()).Format(time.RFC3339),
		UserID:    req.UserID,
		Role:      string(role),
	})
}

// throttled writes 429 and reports true when the caller is over its limit.
// Ride requests and fare estimates share one bucket per user.
func (h *Handler) throttled(w http.ResponseWriter, action string, claims *auth.AppClaims) bool {
	if h.limiter == nil || h.limiter.Allow(claims.UserID) {
		return false
	}
	h.log.WithFields(logger.LogFields{"user_id": claims.UserID}).Warn(action, "Too many requests")
	writeError(w, http.StatusTooManyRequests, "Too many requests, try again later")
	return true
}

// passengerScope returns the id ownership checks run against; admins and
// internal services see every ride.
func passengerScope(claims *auth.AppClaims) string {
	if claims.Role == auth.RolePassenger {
		return claims.UserID
	}
	return ""
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error(action, err)
	} else {
		h.log.WithFields(logger.LogFields{"status": code}).Debug(action, err.Error())
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, code, msg)
}

// statusFor maps domain errors to HTTP status codes. Sentinels are checked
// before validation since not-found and finished rides are reported as
// validation errors too.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRideNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRideFinished):
		return http.StatusConflict
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRouteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{
		"error":   http.StatusText(code),
		"message": msg,
	})
}
