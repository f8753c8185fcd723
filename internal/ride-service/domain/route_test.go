package domain

import (
	"testing"

	"ride-sim/pkg/geo"
)

func TestRoute_Units(t *testing.T) {
	route := &Route{
		Polyline:        []geo.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}},
		DistanceMeters:  2500,
		DurationSeconds: 450,
	}

	if got := route.DistanceKm(); got != 2.5 {
		t.Errorf("DistanceKm = %v", got)
	}
	if got := route.DurationMinutes(); got != 7.5 {
		t.Errorf("DurationMinutes = %v", got)
	}
}

func TestRoute_CloneIsIndependent(t *testing.T) {
	route := &Route{Polyline: []geo.Point{{Lat: 1, Lng: 1}}, Steps: []RouteStep{{Instruction: "Head north"}}}
	cp := route.clone()
	cp.Polyline[0].Lat = 9
	cp.Steps[0].Instruction = "Turn left"

	if route.Polyline[0].Lat != 1 || route.Steps[0].Instruction != "Head north" {
		t.Fatalf("clone shares storage: %+v", route)
	}
	if (*Route)(nil).clone() != nil {
		t.Fatal("nil clone should stay nil")
	}
}
