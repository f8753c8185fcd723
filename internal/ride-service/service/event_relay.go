package service

import (
	"context"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

// locationGeohashPrecision gives cells of roughly 150 m.
const locationGeohashPrecision = 7

// Notifier pushes a message to a connected user.
type Notifier interface {
	SendToUser(userID string, message interface{}) error
}

// RideStatusMessage is pushed to the passenger on every status change.
type RideStatusMessage struct {
	Type           string            `json:"type"`
	RideID         string            `json:"ride_id"`
	Status         domain.RideStatus `json:"status"`
	PreviousStatus domain.RideStatus `json:"previous_status,omitempty"`
	Ride           domain.RideView   `json:"ride"`
	Timestamp      time.Time         `json:"timestamp"`
}

// DriverLocationMessage is pushed to the passenger on every driver move.
type DriverLocationMessage struct {
	Type      string    `json:"type"`
	RideID    string    `json:"ride_id"`
	DriverID  *string   `json:"driver_id,omitempty"`
	Location  geo.Point `json:"location"`
	Geohash   string    `json:"geohash"`
	Heading   float64   `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// EventRelay forwards simulator notifications to the broker and to the
// passenger's websocket.
type EventRelay struct {
	publisher EventPublisher
	notifier  Notifier
	clock     func() time.Time
	logger    logger.Logger
}

func NewEventRelay(publisher EventPublisher, notifier Notifier, clock func() time.Time, logger logger.Logger) *EventRelay {
	if clock == nil {
		clock = time.Now
	}
	return &EventRelay{publisher: publisher, notifier: notifier, clock: clock, logger: logger}
}

// OnRideChanged implements simulator.Observer.
func (r *EventRelay) OnRideChanged(ride domain.RideView, previous domain.RideStatus) {
	now := r.clock()
	r.notify(ride.PassengerID, RideStatusMessage{
		Type:           "ride_status_update",
		RideID:         ride.ID,
		Status:         ride.Status,
		PreviousStatus: previous,
		Ride:           ride,
		Timestamp:      now,
	})

	// The initial REQUESTED notification is already covered by RideRequestedEvent.
	if previous == "" {
		return
	}
	r.publish(domain.RideStatusChangedEvent{
		Ride:      ride,
		OldStatus: previous,
		NewStatus: ride.Status,
		ChangedAt: ride.UpdatedAt,
	})
}

// OnDriverMoved implements simulator.Observer.
func (r *EventRelay) OnDriverMoved(ride domain.RideView, position geo.Point, headingDegrees float64) {
	now := r.clock()
	cell := geo.Geohash(position, locationGeohashPrecision)

	r.notify(ride.PassengerID, DriverLocationMessage{
		Type:      "driver_location_update",
		RideID:    ride.ID,
		DriverID:  ride.DriverID,
		Location:  position,
		Geohash:   cell,
		Heading:   headingDegrees,
		Timestamp: now,
	})
	r.publish(domain.DriverLocationUpdatedEvent{
		RideID:         ride.ID,
		PassengerID:    ride.PassengerID,
		DriverID:       ride.DriverID,
		Location:       position,
		Geohash:        cell,
		HeadingDegrees: headingDegrees,
		UpdatedAt:      now,
	})
}

func (r *EventRelay) notify(passengerID string, msg interface{}) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.SendToUser(passengerID, msg); err != nil {
		r.logger.WithFields(logger.LogFields{"passenger_id": passengerID}).Debug("relay_push_failed", err.Error())
	}
}

func (r *EventRelay) publish(event domain.DomainEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.WithFields(logger.LogFields{"event_type": event.EventType()}).Error("relay_publish_failed", err)
	}
}
