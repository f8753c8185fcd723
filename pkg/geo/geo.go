// Package geo provides great-circle math on WGS-84 coordinates.
//
// All distances use the haversine formula on a spherical Earth.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0

	// ArrivalThresholdKm is the radius inside which a moving point is
	// considered to have reached its target.
	ArrivalThresholdKm = 0.05
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// DistanceKm returns the haversine distance between two points in kilometers.
func DistanceKm(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// BearingRadians returns the initial bearing from a to b.
// 0 is north and the angle grows clockwise, in the range [0, 2π).
func BearingRadians(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	theta := math.Atan2(y, x)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	return theta
}

// StepToward moves current toward target along the great circle by the
// distance covered at speedKmh during intervalSeconds.
//
// The result snaps exactly onto target when the remaining distance is under
// ArrivalThresholdKm or when the step would overshoot it.
func StepToward(current, target Point, speedKmh, intervalSeconds float64) Point {
	remaining := DistanceKm(current, target)
	if remaining < ArrivalThresholdKm {
		return target
	}

	step := speedKmh * intervalSeconds / 3600
	if step <= 0 {
		return current
	}
	if step >= remaining {
		return target
	}

	return Destination(current, BearingRadians(current, target), step)
}

// Destination applies the forward spherical formula: the point reached by
// travelling distKm from origin on the given initial bearing.
func Destination(origin Point, bearing, distKm float64) Point {
	delta := distKm / EarthRadiusKm
	lat1 := toRadians(origin.Lat)
	lng1 := toRadians(origin.Lng)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(bearing))
	lng2 := lng1 + math.Atan2(
		math.Sin(bearing)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Point{
		Lat: toDegrees(lat2),
		Lng: normalizeLng(toDegrees(lng2)),
	}
}

// PathLengthKm returns the summed segment length of an ordered path.
func PathLengthKm(path []Point) float64 {
	total := 0.0
	for i := 0; i < len(path)-1; i++ {
		total += DistanceKm(path[i], path[i+1])
	}
	return total
}

// InterpolateAlongPath returns the point at the given fraction of the path's
// arc length. Progress at or below 0 yields the first point, at or above 1
// the last point. Inside a segment lat/lng are interpolated linearly.
func InterpolateAlongPath(path []Point, progress float64) Point {
	if len(path) == 0 {
		return Point{}
	}
	if progress <= 0 || len(path) == 1 {
		return path[0]
	}
	if progress >= 1 {
		return path[len(path)-1]
	}

	cumulative := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		cumulative[i] = cumulative[i-1] + DistanceKm(path[i-1], path[i])
	}
	total := cumulative[len(path)-1]
	if total == 0 {
		return path[0]
	}

	want := progress * total
	for i := 1; i < len(path); i++ {
		if cumulative[i] < want {
			continue
		}
		segment := cumulative[i] - cumulative[i-1]
		if segment == 0 {
			return path[i]
		}
		frac := (want - cumulative[i-1]) / segment
		from, to := path[i-1], path[i]
		return Point{
			Lat: from.Lat + (to.Lat-from.Lat)*frac,
			Lng: from.Lng + (to.Lng-from.Lng)*frac,
		}
	}

	return path[len(path)-1]
}

// Geohash encodes p into a geohash cell of the given precision (1-12).
func Geohash(p Point, precision uint) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, precision)
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func toDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
