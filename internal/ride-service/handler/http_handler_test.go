package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/internal/ride-service/infrastructure/catalog"
	"ride-sim/internal/ride-service/infrastructure/repository"
	"ride-sim/internal/ride-service/infrastructure/routing"
	"ride-sim/internal/ride-service/service"
	"ride-sim/internal/ride-service/simulator"
	"ride-sim/pkg/auth"
	"ride-sim/pkg/logger"
	"ride-sim/pkg/ratelimit"
)

const testCatalog = `
price_factors: {base_price: 2.5, per_km_rate: 1.25, per_minute_rate: 0.35, minimum_fare: 5}
ride_types:
  - {id: economy, name: Economy, capacity: 4, price_multiplier: 1.0}
payment_methods:
  - {id: cash, label: Cash, kind: cash}
cancellation_reasons:
  - {id: other, label: Other}
drivers:
  - {id: drv-1, name: One, latitude: 43.2400, longitude: 76.8897}
`

const rideBody = `{
	"pickup_location": {"latitude": 43.2389, "longitude": 76.8897},
	"destination_location": {"latitude": 43.2567, "longitude": 76.9286},
	"ride_type": "economy",
	"payment_method": "cash"
}`

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.DomainEvent) error { return nil }

type failingRoutes struct{}

func (failingRoutes) Route(context.Context, domain.Coordinate, domain.Coordinate) (*domain.Route, error) {
	return nil, routing.ErrNoRoute
}

type server struct {
	mux   *http.ServeMux
	jwt   *auth.JWTManager
	sched *simulator.ManualScheduler
}

func newServer(t *testing.T, routes domain.RouteProvider) *server {
	return newLimitedServer(t, routes, nil)
}

func newLimitedServer(t *testing.T, routes domain.RouteProvider, limiter Limiter) *server {
	t.Helper()

	file, err := catalog.Decode(strings.NewReader(testCatalog))
	if err != nil {
		t.Fatal(err)
	}
	log := logger.Nop()
	cat := catalog.NewMemoryCatalog(file)
	rides := repository.NewMemoryRideRepository()
	sched := simulator.NewManualScheduler(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	dispatcher := service.NewDispatcher(repository.NewMemoryDriverRepository(file.Drivers()), 1.5, log)
	session := service.NewBookingSession(rides, cat, dispatcher, nopPublisher{}, log, 10)
	engine := simulator.NewEngine(simulator.DefaultConfig(), sched, sched.Now, session, log)
	engine.Subscribe(service.NewRideRecorder(rides, log))
	t.Cleanup(engine.Stop)

	jwt := auth.NewJWTManager("test-secret", time.Hour)
	h := New(UseCases{
		RequestRide:  service.NewRequestRideUseCase(rides, cat, routes, dispatcher, engine, nopPublisher{}, sched.Now, log),
		CancelRide:   service.NewCancelRideUseCase(rides, cat, engine, session, sched.Now, log),
		GetRide:      service.NewGetRideUseCase(rides, engine, dispatcher),
		EstimateFare: service.NewEstimateFareUseCase(cat, routes, log),
		Session:      session,
	}, cat, jwt, limiter, log)

	mux := http.NewServeMux()
	h.Register(mux)
	return &server{mux: mux, jwt: jwt, sched: sched}
}

func (s *server) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	tok, err := s.jwt.GenerateToken(userID, role)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *server) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestRideFlow(t *testing.T) {
	s := newServer(t, routing.NewStraightLineProvider(30))
	tok := s.token(t, "p-1", auth.RolePassenger)

	rec := s.do(http.MethodPost, "/rides", tok, rideBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created service.RideDTO
	decode(t, rec, &created)
	if created.Status != domain.StatusRequested || created.Fare < 5 {
		t.Fatalf("created = %+v", created)
	}

	rec = s.do(http.MethodGet, "/rides/"+created.ID, tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body)
	}

	other := s.token(t, "p-2", auth.RolePassenger)
	if rec = s.do(http.MethodGet, "/rides/"+created.ID, other, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get by other passenger: %d", rec.Code)
	}

	rec = s.do(http.MethodPost, "/rides/"+created.ID+"/cancel", tok, `{"reason":"other"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body)
	}
	var cancelled domain.RideView
	decode(t, rec, &cancelled)
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("cancelled status = %s", cancelled.Status)
	}

	if rec = s.do(http.MethodPost, "/rides/"+created.ID+"/cancel", tok, `{"reason":"other"}`); rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: %d %s", rec.Code, rec.Body)
	}

	rec = s.do(http.MethodGet, "/rides/history?limit=5", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body)
	}
	var history struct {
		Rides []domain.RideView `json:"rides"`
		Count int               `json:"count"`
	}
	decode(t, rec, &history)
	if history.Count != 1 || history.Rides[0].ID != created.ID {
		t.Fatalf("history = %+v", history)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t, routing.NewStraightLineProvider(30))
	passenger := s.token(t, "p-1", auth.RolePassenger)
	admin := s.token(t, "admin-1", auth.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"no token", http.MethodPost, "/rides", "", rideBody, http.StatusUnauthorized},
		{"estimate without token", http.MethodPost, "/fares/estimate", "", rideBody, http.StatusUnauthorized},
		{"admin cannot book", http.MethodPost, "/rides", admin, rideBody, http.StatusForbidden},
		{"malformed body", http.MethodPost, "/rides", passenger, "{", http.StatusBadRequest},
		{"missing pickup", http.MethodPost, "/rides", passenger, `{"ride_type":"economy","payment_method":"cash"}`, http.StatusBadRequest},
		{"unknown ride type", http.MethodPost, "/rides", passenger, strings.Replace(rideBody, `"economy"`, `"rickshaw"`, 1), http.StatusBadRequest},
		{"unknown ride", http.MethodPost, "/rides/nope/cancel", passenger, `{"reason":"other"}`, http.StatusNotFound},
		{"missing reason", http.MethodPost, "/rides/nope/cancel", passenger, `{}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/rides/history?limit=-1", passenger, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["message"] == "" {
				t.Fatalf("missing error message: %s", rec.Body)
			}
		})
	}
}

func TestRouteFailureIsBadGateway(t *testing.T) {
	s := newServer(t, failingRoutes{})
	tok := s.token(t, "p-1", auth.RolePassenger)

	if rec := s.do(http.MethodPost, "/rides", tok, rideBody); rec.Code != http.StatusBadGateway {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	if rec := s.do(http.MethodPost, "/fares/estimate", tok, rideBody); rec.Code != http.StatusBadGateway {
		t.Fatalf("estimate: %d %s", rec.Code, rec.Body)
	}
}

func TestAdminCanCancelAnyRide(t *testing.T) {
	s := newServer(t, routing.NewStraightLineProvider(30))

	rec := s.do(http.MethodPost, "/rides", s.token(t, "p-1", auth.RolePassenger), rideBody)
	var created service.RideDTO
	decode(t, rec, &created)

	admin := s.token(t, "admin-1", auth.RoleAdmin)
	if rec = s.do(http.MethodPost, "/rides/"+created.ID+"/cancel", admin, `{"reason":"other"}`); rec.Code != http.StatusOK {
		t.Fatalf("admin cancel: %d %s", rec.Code, rec.Body)
	}
}

func TestPublicEndpoints(t *testing.T) {
	s := newServer(t, routing.NewStraightLineProvider(30))

	if rec := s.do(http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}

	rec := s.do(http.MethodGet, "/catalog", "", "")
	var cat struct {
		RideTypes []domain.RideType `json:"ride_types"`
	}
	decode(t, rec, &cat)
	if len(cat.RideTypes) != 1 || cat.RideTypes[0].ID != "economy" {
		t.Fatalf("catalog = %s", rec.Body)
	}

	if rec = s.do(http.MethodPost, "/fares/estimate", "", rideBody); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous estimate: %d", rec.Code)
	}
	rec = s.do(http.MethodPost, "/fares/estimate", s.token(t, "p-1", auth.RolePassenger), rideBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("estimate: %d %s", rec.Code, rec.Body)
	}
	var est service.FareEstimate
	decode(t, rec, &est)
	if len(est.Quotes) != 1 || est.Quotes[0].Fare < 5 {
		t.Fatalf("estimate = %s", rec.Body)
	}

	rec = s.do(http.MethodPost, "/auth/token", "", `{"user_id":"p-9","role":"passenger"}`)
	var tok TokenResponse
	decode(t, rec, &tok)
	claims, err := s.jwt.ParseToken(tok.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "p-9" || claims.Role != auth.RolePassenger {
		t.Fatalf("claims = %+v", claims)
	}

	if rec = s.do(http.MethodPost, "/auth/token", "", `{"role":"DRIVER"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("driver token: %d", rec.Code)
	}
}

func TestRequestRide_Throttled(t *testing.T) {
	s := newLimitedServer(t, routing.NewStraightLineProvider(30), ratelimit.NewMemoryRateLimiter(time.Minute, 1, nil))
	tok := s.token(t, "p-1", auth.RolePassenger)

	if rec := s.do(http.MethodPost, "/rides", tok, rideBody); rec.Code != http.StatusCreated {
		t.Fatalf("first request: %d %s", rec.Code, rec.Body)
	}
	if rec := s.do(http.MethodPost, "/rides", tok, rideBody); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/rides", s.token(t, "p-2", auth.RolePassenger), rideBody); rec.Code != http.StatusCreated {
		t.Fatalf("other passenger: %d %s", rec.Code, rec.Body)
	}
}

func TestEstimateFare_Throttled(t *testing.T) {
	s := newLimitedServer(t, routing.NewStraightLineProvider(30), ratelimit.NewMemoryRateLimiter(time.Minute, 2, nil))
	tok := s.token(t, "p-1", auth.RolePassenger)

	for i := 0; i < 2; i++ {
		if rec := s.do(http.MethodPost, "/fares/estimate", tok, rideBody); rec.Code != http.StatusOK {
			t.Fatalf("estimate %d: %d %s", i, rec.Code, rec.Body)
		}
	}
	if rec := s.do(http.MethodPost, "/fares/estimate", tok, rideBody); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third estimate: %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/rides", tok, rideBody); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("ride request after estimates: %d", rec.Code)
	}
}
