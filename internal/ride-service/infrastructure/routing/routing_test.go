package routing

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

const directionsOK = `{
  "code": "Ok",
  "routes": [{
    "distance": 5000,
    "duration": 900,
    "geometry": {"coordinates": [[76.8897, 43.2389], [76.9000, 43.2450], [76.9286, 43.2567]]},
    "legs": [{"steps": [
      {"distance": 3000, "duration": 500, "name": "Abay Ave", "maneuver": {"instruction": "Head east on Abay Ave", "type": "depart"}},
      {"distance": 2000, "duration": 400, "name": "Dostyk Ave", "maneuver": {"type": "turn"}}
    ]}]
  }]
}`

func coords(t *testing.T) (domain.Coordinate, domain.Coordinate) {
	t.Helper()
	from, err := domain.NewCoordinate(43.2389, 76.8897, "")
	if err != nil {
		t.Fatal(err)
	}
	to, err := domain.NewCoordinate(43.2567, 76.9286, "")
	if err != nil {
		t.Fatal(err)
	}
	return from, to
}

func TestDirectionsClient_Route(t *testing.T) {
	var gotPath, gotToken, gotGeometries string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		gotGeometries = r.URL.Query().Get("geometries")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(directionsOK))
	}))
	defer srv.Close()

	client := NewDirectionsClient(srv.URL+"/", "driving", "tok", time.Second, logger.Nop())
	from, to := coords(t)

	route, err := client.Route(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}

	if want := "/driving/76.889700,43.238900;76.928600,43.256700"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotToken != "tok" || gotGeometries != "geojson" {
		t.Errorf("query token=%q geometries=%q", gotToken, gotGeometries)
	}
	if route.DistanceKm() != 5 || route.DurationMinutes() != 15 {
		t.Errorf("distance=%v duration=%v", route.DistanceKm(), route.DurationMinutes())
	}
	if len(route.Polyline) != 3 || route.Polyline[0].Lat != 43.2389 || route.Polyline[0].Lng != 76.8897 {
		t.Errorf("polyline not converted from [lng, lat]: %+v", route.Polyline)
	}
	if len(route.Steps) != 2 || route.Steps[0].Instruction != "Head east on Abay Ave" || route.Steps[1].Instruction != "turn Dostyk Ave" {
		t.Errorf("steps = %+v", route.Steps)
	}
}

func TestDirectionsClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusUnauthorized, `{"message":"Not Authorized - Invalid Token"}`, ErrRouteRequestFailed},
		{"no routes", http.StatusOK, `{"code":"NoRoute","routes":[]}`, ErrNoRoute},
		{"garbage", http.StatusOK, `not json`, ErrRouteRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewDirectionsClient(srv.URL, "driving", "tok", time.Second, logger.Nop())
			from, to := coords(t)
			_, err := client.Route(context.Background(), from, to)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, domain.ErrRouteUnavailable) {
				t.Fatalf("err %v does not wrap ErrRouteUnavailable", err)
			}
		})
	}
}

func TestDirectionsClient_StatusInMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"Too Many Requests"}`))
	}))
	defer srv.Close()

	from, to := coords(t)
	_, err := NewDirectionsClient(srv.URL, "driving", "tok", time.Second, logger.Nop()).Route(context.Background(), from, to)
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "Too Many Requests") {
		t.Fatalf("err = %v", err)
	}
}

func TestDirectionsClient_NotConfigured(t *testing.T) {
	client := NewDirectionsClient("http://unused", "driving", "", time.Second, logger.Nop())
	from, to := coords(t)
	if _, err := client.Route(context.Background(), from, to); !errors.Is(err, ErrRoutingNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestStraightLineProvider(t *testing.T) {
	p := NewStraightLineProvider(30)
	from, _ := domain.NewCoordinate(0, 0, "")
	to, _ := domain.NewCoordinate(0, 0.1, "")

	route, err := p.Route(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	wantKm := from.DistanceTo(to)
	if math.Abs(route.DistanceKm()-wantKm) > 1e-9 {
		t.Errorf("distance = %v, want %v", route.DistanceKm(), wantKm)
	}
	if math.Abs(route.DurationMinutes()-wantKm/30*60) > 1e-9 {
		t.Errorf("duration = %v", route.DurationMinutes())
	}
	if len(route.Polyline) != 2 || !strings.HasPrefix(route.Steps[0].Instruction, "Head east") {
		t.Errorf("unexpected route: %+v", route)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Route(ctx, from, to); err == nil {
		t.Error("cancelled context should fail")
	}
}

func TestDirectionsClient_MeasuresMissingDistance(t *testing.T) {
	body := strings.Replace(directionsOK, `"distance": 5000,`, `"distance": 0,`, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	client := NewDirectionsClient(srv.URL, "driving", "tok", time.Second, logger.Nop())
	from, to := coords(t)

	route, err := client.Route(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	want := geo.PathLengthKm(route.Polyline) * 1000
	if route.DistanceMeters <= 0 || math.Abs(route.DistanceMeters-want) > 1e-6 {
		t.Fatalf("distance = %v, want %v", route.DistanceMeters, want)
	}
	if route.DurationSeconds != 900 {
		t.Fatalf("duration = %v", route.DurationSeconds)
	}
}
