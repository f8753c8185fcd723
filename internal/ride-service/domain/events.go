package domain

import (
	"time"

	"ride-sim/pkg/geo"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// RideRequestedEvent is raised when a new ride is requested
type RideRequestedEvent struct {
	Ride        RideView
	RequestedAt time.Time
}

func (e RideRequestedEvent) EventType() string {
	return "ride.requested"
}

func (e RideRequestedEvent) OccurredAt() time.Time {
	return e.RequestedAt
}

// RideStatusChangedEvent is raised when ride status changes
type RideStatusChangedEvent struct {
	Ride      RideView
	OldStatus RideStatus
	NewStatus RideStatus
	ChangedAt time.Time
}

func (e RideStatusChangedEvent) EventType() string {
	return "ride.status.changed"
}

func (e RideStatusChangedEvent) OccurredAt() time.Time {
	return e.ChangedAt
}

// RideCancelledEvent is raised when a ride is cancelled
type RideCancelledEvent struct {
	RideID      string
	PassengerID string
	DriverID    *string
	ReasonID    string
	Reason      string
	CancelledAt time.Time
}

func (e RideCancelledEvent) EventType() string {
	return "ride.cancelled"
}

func (e RideCancelledEvent) OccurredAt() time.Time {
	return e.CancelledAt
}

// RideCompletedEvent is raised when a ride is completed
type RideCompletedEvent struct {
	RideID      string
	PassengerID string
	DriverID    *string
	FinalFare   float64
	CompletedAt time.Time
}

func (e RideCompletedEvent) EventType() string {
	return "ride.completed"
}

func (e RideCompletedEvent) OccurredAt() time.Time {
	return e.CompletedAt
}

// DriverLocationUpdatedEvent is raised on every simulated driver move
type DriverLocationUpdatedEvent struct {
	RideID         string
	PassengerID    string
	DriverID       *string
	Location       geo.Point
	Geohash        string
	HeadingDegrees float64
	UpdatedAt      time.Time
}

func (e DriverLocationUpdatedEvent) EventType() string {
	return "driver.location.updated"
}

func (e DriverLocationUpdatedEvent) OccurredAt() time.Time {
	return e.UpdatedAt
}
