// Package routing resolves drivable routes for the booking flow.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

var (
	ErrRoutingNotConfigured = fmt.Errorf("%w: routing access token is not configured", domain.ErrRouteUnavailable)
	ErrRouteRequestFailed   = fmt.Errorf("%w: directions request failed", domain.ErrRouteUnavailable)
	ErrNoRoute              = fmt.Errorf("%w: no route between the given points", domain.ErrRouteUnavailable)
)

// directionsResponse is the subset of a Mapbox/OSRM directions payload we use.
// Coordinates are [lng, lat].
type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Legs []struct {
			Steps []struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
				Name     string  `json:"name"`
				Maneuver struct {
					Instruction string `json:"instruction"`
					Type        string `json:"type"`
				} `json:"maneuver"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// DirectionsClient implements domain.RouteProvider against a
// Mapbox-compatible directions endpoint.
type DirectionsClient struct {
	client      *http.Client
	baseURL     string
	profile     string
	accessToken string
	logger      logger.Logger
}

// NewDirectionsClient creates a client. baseURL is the endpoint without the
// profile, e.g. https://api.mapbox.com/directions/v5/mapbox.
func NewDirectionsClient(baseURL, profile, accessToken string, timeout time.Duration, log logger.Logger) *DirectionsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DirectionsClient{
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		profile:     profile,
		accessToken: accessToken,
		logger:      log,
	}
}

// Route fetches the first route from `from` to `to`. Failures are returned
// as-is; the caller decides whether to retry.
func (c *DirectionsClient) Route(ctx context.Context, from, to domain.Coordinate) (*domain.Route, error) {
	if c.accessToken == "" {
		return nil, ErrRoutingNotConfigured
	}

	endpoint := fmt.Sprintf("%s/%s/%s;%s", c.baseURL, c.profile, lngLat(from), lngLat(to))
	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("steps", "true")
	q.Set("overview", "full")
	q.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating directions request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRouteRequestFailed, err)
	}

	log := c.logger.WithFields(logger.LogFields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("directions_request_failed", "Directions provider returned an error status")
		return nil, fmt.Errorf("%w: status %d: %s", ErrRouteRequestFailed, resp.StatusCode, errorMessage(body))
	}

	var payload directionsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrRouteRequestFailed, err)
	}
	if len(payload.Routes) == 0 {
		return nil, ErrNoRoute
	}

	route := toDomainRoute(payload)
	log.Debug("directions_resolved", fmt.Sprintf("Route resolved: %.0f m, %d points", route.DistanceMeters, len(route.Polyline)))
	return route, nil
}

func toDomainRoute(payload directionsResponse) *domain.Route {
	r := payload.Routes[0]
	route := &domain.Route{
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
		Polyline:        make([]geo.Point, 0, len(r.Geometry.Coordinates)),
	}
	for _, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		route.Polyline = append(route.Polyline, geo.Point{Lat: c[1], Lng: c[0]})
	}
	// Some profiles omit the total; measure the geometry instead.
	if route.DistanceMeters <= 0 {
		route.DistanceMeters = geo.PathLengthKm(route.Polyline) * 1000
	}
	for _, leg := range r.Legs {
		for _, s := range leg.Steps {
			instruction := s.Maneuver.Instruction
			if instruction == "" {
				instruction = strings.TrimSpace(s.Maneuver.Type + " " + s.Name)
			}
			route.Steps = append(route.Steps, domain.RouteStep{
				Instruction:     instruction,
				DistanceMeters:  s.Distance,
				DurationSeconds: s.Duration,
			})
		}
	}
	return route
}

func lngLat(c domain.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Longitude(), c.Latitude())
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
