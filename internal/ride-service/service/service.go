// Package service holds the booking use cases that sit between the
// transports and the ride simulation.
package service

import (
	"context"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
)

// EventPublisher is the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event domain.DomainEvent) error
}

// Simulation is the part of the simulator the use cases drive.
type Simulation interface {
	Start(ride *domain.Ride, driverID string, driverStart geo.Point)
	Cancel(rideID, reason string, now time.Time) (domain.RideView, error)
	Snapshot(rideID string) (domain.RideView, geo.Point, bool)
}

// LocationInput is a coordinate as supplied by a client.
type LocationInput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// RideDTO is a ride as returned to clients, with live simulation data when
// the ride is still running.
type RideDTO struct {
	domain.RideView
	DriverLocation *geo.Point     `json:"driver_location,omitempty"`
	Driver         *domain.Driver `json:"driver,omitempty"`
}

const publishTimeout = 5 * time.Second

func toCoordinate(field string, in *LocationInput) (domain.Coordinate, error) {
	if in == nil {
		return domain.Coordinate{}, domain.NewValidationError(field, "is required")
	}
	c, err := domain.NewCoordinate(in.Latitude, in.Longitude, in.Address)
	if err != nil {
		return domain.Coordinate{}, domain.WrapValidationError(field, err.Error(), err)
	}
	return c, nil
}
