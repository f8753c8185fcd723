// Package simulator drives rides through their lifecycle from a simulated
// driver position that is sampled on a fixed interval.
package simulator

import (
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
)

// State is everything the simulation knows about one ride.
type State struct {
	Ride                 *domain.Ride
	DriverID             string
	Driver               geo.Point
	ArrivedAtPickup      bool
	ArrivedAtDestination bool
}

// Action is the closed set of inputs accepted by Reduce.
type Action interface {
	isAction()
}

// RideStarted begins a new simulation. It resets the arrival flags.
type RideStarted struct {
	Ride        *domain.Ride
	DriverID    string
	DriverStart geo.Point
}

// DriverAccepted assigns the driver and stamps the estimated pickup time.
type DriverAccepted struct {
	ETA time.Time
	At  time.Time
}

// DriverMoved records a new simulated driver position.
type DriverMoved struct {
	Position geo.Point
}

// ArrivedAtPickup fires when the driver is inside the arrival threshold of pickup.
type ArrivedAtPickup struct {
	At time.Time
}

// BoardingElapsed fires once the boarding delay after arrival has passed.
type BoardingElapsed struct {
	At time.Time
}

// ArrivedAtDestination fires when the driver reaches the destination.
type ArrivedAtDestination struct {
	At time.Time
}

// RideCancelled is an explicit cancellation request.
type RideCancelled struct {
	Reason string
	At     time.Time
}

func (RideStarted) isAction()          {}
func (DriverAccepted) isAction()       {}
func (DriverMoved) isAction()          {}
func (ArrivedAtPickup) isAction()      {}
func (BoardingElapsed) isAction()      {}
func (ArrivedAtDestination) isAction() {}
func (RideCancelled) isAction()        {}

// Reduce returns the state after applying a. The input state is never
// mutated; the ride is cloned before any transition. Actions that are not
// legal in the current state return s unchanged.
func Reduce(s State, a Action) State {
	if started, ok := a.(RideStarted); ok {
		return State{
			Ride:     started.Ride.Clone(),
			DriverID: started.DriverID,
			Driver:   started.DriverStart,
		}
	}

	if s.Ride == nil || s.Ride.Status().IsTerminal() {
		return s
	}

	next := s
	next.Ride = s.Ride.Clone()

	switch act := a.(type) {
	case DriverAccepted:
		if s.DriverID == "" {
			return s
		}
		if err := next.Ride.Accept(s.DriverID, act.ETA, act.At); err != nil {
			return s
		}

	case DriverMoved:
		next.Driver = act.Position

	case ArrivedAtPickup:
		if s.ArrivedAtPickup {
			return s
		}
		if err := next.Ride.MarkArriving(act.At); err != nil {
			return s
		}
		next.ArrivedAtPickup = true
		next.Driver = next.Ride.PickupLocation().Point()

	case BoardingElapsed:
		if err := next.Ride.StartTrip(act.At); err != nil {
			return s
		}

	case ArrivedAtDestination:
		if s.ArrivedAtDestination {
			return s
		}
		if err := next.Ride.CompleteTrip(act.At); err != nil {
			return s
		}
		next.ArrivedAtDestination = true
		next.Driver = next.Ride.DestLocation().Point()

	case RideCancelled:
		if err := next.Ride.Cancel(act.Reason, act.At); err != nil {
			return s
		}

	default:
		return s
	}

	return next
}

// movementTarget returns where the driver heads for the ride's status.
func movementTarget(s State) (geo.Point, bool) {
	if s.Ride == nil {
		return geo.Point{}, false
	}
	switch s.Ride.Status() {
	case domain.StatusRequested, domain.StatusAccepted, domain.StatusArriving:
		return s.Ride.PickupLocation().Point(), true
	case domain.StatusInProgress:
		return s.Ride.DestLocation().Point(), true
	}
	return geo.Point{}, false
}
