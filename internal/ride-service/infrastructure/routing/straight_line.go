package routing

import (
	"context"
	"fmt"
	"math"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
)

// StraightLineProvider builds a two-point route along the great circle. It
// needs no network and is used for local runs and tests.
type StraightLineProvider struct {
	speedKmh float64
}

// NewStraightLineProvider estimates durations at speedKmh.
func NewStraightLineProvider(speedKmh float64) *StraightLineProvider {
	if speedKmh <= 0 {
		speedKmh = 30
	}
	return &StraightLineProvider{speedKmh: speedKmh}
}

func (p *StraightLineProvider) Route(ctx context.Context, from, to domain.Coordinate) (*domain.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	distKm := from.DistanceTo(to)
	durationSec := distKm / p.speedKmh * 3600

	return &domain.Route{
		Polyline:        []geo.Point{from.Point(), to.Point()},
		DistanceMeters:  distKm * 1000,
		DurationSeconds: durationSec,
		Steps: []domain.RouteStep{{
			Instruction:     fmt.Sprintf("Head %s for %.1f km", compass(geo.BearingRadians(from.Point(), to.Point())), distKm),
			DistanceMeters:  distKm * 1000,
			DurationSeconds: durationSec,
		}},
	}, nil
}

var compassPoints = []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

func compass(bearingRad float64) string {
	deg := bearingRad * 180 / math.Pi
	idx := int((deg+22.5)/45) % len(compassPoints)
	return compassPoints[idx]
}
