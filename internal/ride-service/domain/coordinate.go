package domain

import (
	"errors"

	"ride-sim/pkg/geo"
)

// Coordinate errors
var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Coordinate is a value object representing a geographic location
// Value objects are immutable
type Coordinate struct {
	latitude  float64
	longitude float64
	address   string
}

// NewCoordinate creates a new coordinate with validation
func NewCoordinate(lat, lng float64, address string) (Coordinate, error) {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return Coordinate{}, err
	}

	return Coordinate{
		latitude:  lat,
		longitude: lng,
		address:   address,
	}, nil
}

// Validate checks if the coordinate is valid
func (c Coordinate) Validate() error {
	return ValidateCoordinates(c.latitude, c.longitude)
}

// DistanceTo calculates the distance to another coordinate in kilometers
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return geo.DistanceKm(c.Point(), other.Point())
}

// Point returns the coordinate as a geo point for the math helpers.
func (c Coordinate) Point() geo.Point {
	return geo.Point{Lat: c.latitude, Lng: c.longitude}
}

// Getters (encapsulation - coordinates are immutable)
func (c Coordinate) Latitude() float64  { return c.latitude }
func (c Coordinate) Longitude() float64 { return c.longitude }
func (c Coordinate) Address() string    { return c.address }

// ValidateCoordinates is a helper function for validation
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return ErrInvalidLatitude
	}
	if lng < -180 || lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}
