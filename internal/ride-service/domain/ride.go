package domain

import (
	"fmt"
	"time"
)

// RideStatus represents the state of a ride
type RideStatus string

const (
	StatusRequested  RideStatus = "REQUESTED"
	StatusAccepted   RideStatus = "ACCEPTED"
	StatusArriving   RideStatus = "ARRIVING"
	StatusInProgress RideStatus = "IN_PROGRESS"
	StatusCompleted  RideStatus = "COMPLETED"
	StatusCancelled  RideStatus = "CANCELLED"
)

// String returns string representation of status
func (s RideStatus) String() string {
	return string(s)
}

// IsValid checks if status is valid
func (s RideStatus) IsValid() bool {
	switch s {
	case StatusRequested, StatusAccepted, StatusArriving,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s RideStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Ride is the core domain entity
type Ride struct {
	id               string
	passengerID      string
	driverID         *string
	status           RideStatus
	rideTypeID       string
	paymentMethodID  string
	pickupLocation   Coordinate
	destLocation     Coordinate
	fare             float64
	route            *Route
	createdAt        time.Time
	updatedAt        time.Time
	estimatedArrival *time.Time
	startedAt        *time.Time
	completedAt      *time.Time
	cancelledAt      *time.Time
	cancelReason     string
}

// NewRide creates a new ride in REQUESTED status
func NewRide(
	id string,
	passengerID string,
	pickup Coordinate,
	dest Coordinate,
	rideTypeID string,
	paymentMethodID string,
	fare float64,
	route *Route,
	now time.Time,
) (*Ride, error) {
	if id == "" {
		return nil, NewValidationError("ride_id", "is required")
	}
	if err := pickup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pickup location: %w", err)
	}
	if err := dest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination location: %w", err)
	}

	return &Ride{
		id:              id,
		passengerID:     passengerID,
		status:          StatusRequested,
		rideTypeID:      rideTypeID,
		paymentMethodID: paymentMethodID,
		pickupLocation:  pickup,
		destLocation:    dest,
		fare:            fare,
		route:           route.clone(),
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// RestoreRide rebuilds a ride from a persisted view (used by repositories)
func RestoreRide(v RideView) (*Ride, error) {
	if !v.Status.IsValid() {
		return nil, fmt.Errorf("restore ride %s: unknown status %q", v.ID, v.Status)
	}
	pickup, err := NewCoordinate(v.Pickup.Latitude, v.Pickup.Longitude, v.Pickup.Address)
	if err != nil {
		return nil, fmt.Errorf("restore ride %s pickup: %w", v.ID, err)
	}
	dest, err := NewCoordinate(v.Destination.Latitude, v.Destination.Longitude, v.Destination.Address)
	if err != nil {
		return nil, fmt.Errorf("restore ride %s destination: %w", v.ID, err)
	}

	return &Ride{
		id:               v.ID,
		passengerID:      v.PassengerID,
		driverID:         copyString(v.DriverID),
		status:           v.Status,
		rideTypeID:       v.RideTypeID,
		paymentMethodID:  v.PaymentMethodID,
		pickupLocation:   pickup,
		destLocation:     dest,
		fare:             v.Fare,
		route:            v.Route.clone(),
		createdAt:        v.CreatedAt,
		updatedAt:        v.UpdatedAt,
		estimatedArrival: copyTime(v.EstimatedArrival),
		startedAt:        copyTime(v.StartedAt),
		completedAt:      copyTime(v.CompletedAt),
		cancelledAt:      copyTime(v.CancelledAt),
		cancelReason:     v.CancelReason,
	}, nil
}

// Business methods

// Accept assigns a driver and the estimated pickup time
func (r *Ride) Accept(driverID string, eta time.Time, now time.Time) error {
	if err := r.guard(StatusRequested); err != nil {
		return err
	}

	r.driverID = &driverID
	r.estimatedArrival = &eta
	r.setStatus(StatusAccepted, now)
	return nil
}

// MarkArriving records that the driver reached the pickup point
func (r *Ride) MarkArriving(now time.Time) error {
	if err := r.guard(StatusRequested, StatusAccepted); err != nil {
		return err
	}

	r.setStatus(StatusArriving, now)
	return nil
}

// StartTrip marks the ride as in progress once the passenger boarded
func (r *Ride) StartTrip(now time.Time) error {
	if err := r.guard(StatusArriving); err != nil {
		return err
	}

	r.setStatus(StatusInProgress, now)
	r.startedAt = &now
	return nil
}

// CompleteTrip marks the ride as completed at the destination
func (r *Ride) CompleteTrip(now time.Time) error {
	if err := r.guard(StatusInProgress); err != nil {
		return err
	}

	r.setStatus(StatusCompleted, now)
	r.completedAt = &now
	return nil
}

// Cancel cancels the ride with a reason
func (r *Ride) Cancel(reason string, now time.Time) error {
	if r.status.IsTerminal() {
		return ErrRideFinished
	}

	r.setStatus(StatusCancelled, now)
	r.cancelReason = reason
	r.cancelledAt = &now
	return nil
}

func (r *Ride) guard(allowed ...RideStatus) error {
	if r.status.IsTerminal() {
		return ErrRideFinished
	}
	for _, s := range allowed {
		if r.status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, r.id, r.status)
}

func (r *Ride) setStatus(s RideStatus, now time.Time) {
	r.status = s
	r.updatedAt = now
}

// Query methods

// CanBeCancelled checks if the ride can be cancelled
func (r *Ride) CanBeCancelled() bool {
	return !r.status.IsTerminal()
}

// Clone returns a deep copy that can be mutated independently.
func (r *Ride) Clone() *Ride {
	if r == nil {
		return nil
	}
	cp := *r
	cp.driverID = copyString(r.driverID)
	cp.route = r.route.clone()
	cp.estimatedArrival = copyTime(r.estimatedArrival)
	cp.startedAt = copyTime(r.startedAt)
	cp.completedAt = copyTime(r.completedAt)
	cp.cancelledAt = copyTime(r.cancelledAt)
	return &cp
}

// Getters (encapsulation)

func (r *Ride) ID() string                   { return r.id }
func (r *Ride) PassengerID() string          { return r.passengerID }
func (r *Ride) DriverID() *string            { return r.driverID }
func (r *Ride) Status() RideStatus           { return r.status }
func (r *Ride) RideTypeID() string           { return r.rideTypeID }
func (r *Ride) PaymentMethodID() string      { return r.paymentMethodID }
func (r *Ride) PickupLocation() Coordinate   { return r.pickupLocation }
func (r *Ride) DestLocation() Coordinate     { return r.destLocation }
func (r *Ride) Fare() float64                { return r.fare }
func (r *Ride) Route() *Route                { return r.route }
func (r *Ride) CreatedAt() time.Time         { return r.createdAt }
func (r *Ride) UpdatedAt() time.Time         { return r.updatedAt }
func (r *Ride) EstimatedArrival() *time.Time { return r.estimatedArrival }
func (r *Ride) StartedAt() *time.Time        { return r.startedAt }
func (r *Ride) CompletedAt() *time.Time      { return r.completedAt }
func (r *Ride) CancelledAt() *time.Time      { return r.cancelledAt }
func (r *Ride) CancelReason() string         { return r.cancelReason }

// LocationView is the serialised form of a Coordinate.
type LocationView struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// RideView is an immutable snapshot of a ride handed to observers,
// repositories and transports.
type RideView struct {
	ID               string       `json:"ride_id"`
	PassengerID      string       `json:"passenger_id"`
	DriverID         *string      `json:"driver_id,omitempty"`
	Status           RideStatus   `json:"status"`
	RideTypeID       string       `json:"ride_type_id"`
	PaymentMethodID  string       `json:"payment_method_id"`
	Pickup           LocationView `json:"pickup_location"`
	Destination      LocationView `json:"destination_location"`
	Fare             float64      `json:"fare"`
	Route            *Route       `json:"route,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	EstimatedArrival *time.Time   `json:"estimated_arrival,omitempty"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CancelledAt      *time.Time   `json:"cancelled_at,omitempty"`
	CancelReason     string       `json:"cancel_reason,omitempty"`
}

// View returns a snapshot of the ride.
func (r *Ride) View() RideView {
	return RideView{
		ID:               r.id,
		PassengerID:      r.passengerID,
		DriverID:         copyString(r.driverID),
		Status:           r.status,
		RideTypeID:       r.rideTypeID,
		PaymentMethodID:  r.paymentMethodID,
		Pickup:           locationView(r.pickupLocation),
		Destination:      locationView(r.destLocation),
		Fare:             r.fare,
		Route:            r.route.clone(),
		CreatedAt:        r.createdAt,
		UpdatedAt:        r.updatedAt,
		EstimatedArrival: copyTime(r.estimatedArrival),
		StartedAt:        copyTime(r.startedAt),
		CompletedAt:      copyTime(r.completedAt),
		CancelledAt:      copyTime(r.cancelledAt),
		CancelReason:     r.cancelReason,
	}
}

func locationView(c Coordinate) LocationView {
	return LocationView{Latitude: c.Latitude(), Longitude: c.Longitude(), Address: c.Address()}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
