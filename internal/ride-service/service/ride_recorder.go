package service

import (
	"context"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

// RideRecorder writes every status change of a running ride to the
// repository, so stored rides follow the simulation. The initial REQUESTED
// row is saved by RequestRideUseCase and terminal rides by BookingSession.
type RideRecorder struct {
	rides  domain.RideRepository
	logger logger.Logger
}

func NewRideRecorder(rides domain.RideRepository, logger logger.Logger) *RideRecorder {
	return &RideRecorder{rides: rides, logger: logger}
}

// OnRideChanged implements simulator.Observer.
func (r *RideRecorder) OnRideChanged(view domain.RideView, previous domain.RideStatus) {
	if previous == "" || view.Status.IsTerminal() {
		return
	}

	log := r.logger.WithFields(logger.LogFields{
		"ride_id": view.ID,
		"status":  view.Status.String(),
	})

	ride, err := domain.RestoreRide(view)
	if err != nil {
		log.Error("ride_persist_failed", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rides.Update(ctx, ride); err != nil {
		log.Error("ride_persist_failed", err)
		return
	}
	log.Debug("ride_persisted", "Ride status stored")
}

// OnDriverMoved implements simulator.Observer. Positions are not stored.
func (r *RideRecorder) OnDriverMoved(domain.RideView, geo.Point, float64) {}
