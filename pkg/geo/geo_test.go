package geo

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		eps  float64
	}{
		{"same point", Point{43.238949, 76.889709}, Point{43.238949, 76.889709}, 0, 0},
		{"one degree of longitude at equator", Point{0, 0}, Point{0, 1}, 111.195, 0.01},
		{"one hundredth of a degree", Point{0, 0}, Point{0, 0.01}, 1.11195, 0.0001},
		{"almaty to astana", Point{43.238949, 76.889709}, Point{51.169392, 71.449074}, 972.245, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if !almostEqual(got, tt.want, tt.eps) {
				t.Fatalf("DistanceKm() = %v, want %v ± %v", got, tt.want, tt.eps)
			}
			if back := DistanceKm(tt.b, tt.a); back != got {
				t.Fatalf("distance is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestBearingRadians(t *testing.T) {
	origin := Point{0, 0}
	tests := []struct {
		name   string
		target Point
		want   float64
	}{
		{"north", Point{1, 0}, 0},
		{"east", Point{0, 1}, math.Pi / 2},
		{"south", Point{-1, 0}, math.Pi},
		{"west", Point{0, -1}, 3 * math.Pi / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingRadians(origin, tt.target)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Fatalf("BearingRadians() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStepToward_SnapsInsideThreshold(t *testing.T) {
	target := Point{0, 0}
	current := Point{0, 0.0004} // ~44m

	got := StepToward(current, target, 30, 2)
	if got != target {
		t.Fatalf("expected snap to target, got %+v", got)
	}
}

func TestStepToward_SnapsOnOvershoot(t *testing.T) {
	target := Point{0, 0}
	current := Point{0, 0.001} // ~111m

	got := StepToward(current, target, 300, 2) // ~167m step
	if got != target {
		t.Fatalf("expected snap on overshoot, got %+v", got)
	}
}

func TestStepToward_MovesByStepDistance(t *testing.T) {
	current := Point{0, 0}
	target := Point{0, 0.01}

	got := StepToward(current, target, 30, 2)

	moved := DistanceKm(current, got)
	want := 30.0 * 2 / 3600
	if !almostEqual(moved, want, 1e-6) {
		t.Fatalf("moved %v km, want %v km", moved, want)
	}
	if !almostEqual(DistanceKm(got, target), DistanceKm(current, target)-want, 1e-6) {
		t.Fatalf("step did not head toward target: %+v", got)
	}
}

func TestStepToward_ZeroSpeedStaysPut(t *testing.T) {
	current := Point{10, 10}
	got := StepToward(current, Point{11, 11}, 0, 2)
	if got != current {
		t.Fatalf("expected no movement, got %+v", got)
	}
}

func TestStepToward_TerminatesExactlyAtTarget(t *testing.T) {
	start := Point{43.2389, 76.8897}
	target := Point{43.2500, 76.9200}
	initial := DistanceKm(start, target)

	current := start
	covered := 0.0
	for i := 0; i < 10000; i++ {
		next := StepToward(current, target, 30, 2)
		covered += DistanceKm(current, next)
		current = next
		if current == target {
			break
		}
	}

	if current != target {
		t.Fatalf("never reached target, stopped at %+v", current)
	}
	if covered > initial+1e-6 {
		t.Fatalf("overshoot: covered %v km of %v km", covered, initial)
	}

	if again := StepToward(current, target, 30, 2); again != target {
		t.Fatalf("oscillated away from target: %+v", again)
	}
}

func TestInterpolateAlongPath(t *testing.T) {
	path := []Point{{0, 0}, {0, 1}, {0, 3}}

	tests := []struct {
		name     string
		progress float64
		want     Point
	}{
		{"before start", -0.5, Point{0, 0}},
		{"start", 0, Point{0, 0}},
		{"inside first segment", 1.0 / 6, Point{0, 0.5}},
		{"segment boundary", 1.0 / 3, Point{0, 1}},
		{"inside second segment", 2.0 / 3, Point{0, 2}},
		{"end", 1, Point{0, 3}},
		{"past end", 1.7, Point{0, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpolateAlongPath(path, tt.progress)
			if !almostEqual(got.Lat, tt.want.Lat, 1e-6) || !almostEqual(got.Lng, tt.want.Lng, 1e-6) {
				t.Fatalf("InterpolateAlongPath(%v) = %+v, want %+v", tt.progress, got, tt.want)
			}
		})
	}
}

func TestInterpolateAlongPath_Degenerate(t *testing.T) {
	if got := InterpolateAlongPath(nil, 0.5); got != (Point{}) {
		t.Fatalf("empty path: got %+v", got)
	}
	single := []Point{{5, 5}}
	if got := InterpolateAlongPath(single, 0.5); got != single[0] {
		t.Fatalf("single point: got %+v", got)
	}
	same := []Point{{5, 5}, {5, 5}}
	if got := InterpolateAlongPath(same, 0.5); got != same[0] {
		t.Fatalf("zero-length path: got %+v", got)
	}
}

func TestPathLengthKm(t *testing.T) {
	path := []Point{{0, 0}, {0, 1}, {0, 3}}
	if got, want := PathLengthKm(path), DistanceKm(Point{0, 0}, Point{0, 3}); !almostEqual(got, want, 1e-6) {
		t.Fatalf("PathLengthKm() = %v, want %v", got, want)
	}
}

func TestGeohash(t *testing.T) {
	got := Geohash(Point{57.64911, 10.40744}, 11)
	if got != "u4pruydqqvj" {
		t.Fatalf("Geohash() = %q", got)
	}
}

func TestDestination(t *testing.T) {
	origin := Point{0, 0}
	got := Destination(origin, math.Pi/2, DistanceKm(origin, Point{0, 1}))
	if !almostEqual(got.Lat, 0, 1e-9) || !almostEqual(got.Lng, 1, 1e-9) {
		t.Fatalf("Destination() = %+v, want {0 1}", got)
	}
}
