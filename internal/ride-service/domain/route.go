package domain

import "ride-sim/pkg/geo"

// RouteStep is one turn-by-turn instruction.
type RouteStep struct {
	Instruction     string  `json:"instruction"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Route is the path returned by a route provider between pickup and destination.
type Route struct {
	Polyline        []geo.Point `json:"polyline"`
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
	Steps           []RouteStep `json:"steps"`
}

// DistanceKm returns the route length in kilometers.
func (r *Route) DistanceKm() float64 {
	return r.DistanceMeters / 1000
}

// DurationMinutes returns the route duration in minutes.
func (r *Route) DurationMinutes() float64 {
	return r.DurationSeconds / 60
}

func (r *Route) clone() *Route {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Polyline = append([]geo.Point(nil), r.Polyline...)
	cp.Steps = append([]RouteStep(nil), r.Steps...)
	return &cp
}
