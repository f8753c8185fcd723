package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

// CancelRideCommand represents the input for cancelling a ride.
// An empty PassengerID skips the ownership check (internal callers).
type CancelRideCommand struct {
	RideID      string
	PassengerID string
	ReasonID    string
}

// CancelRideUseCase handles the business workflow for cancelling a ride
type CancelRideUseCase struct {
	rideRepo   domain.RideRepository
	catalog    domain.CatalogRepository
	simulation Simulation
	session    *BookingSession
	clock      func() time.Time
	logger     logger.Logger
}

// NewCancelRideUseCase creates a new use case instance
func NewCancelRideUseCase(
	rideRepo domain.RideRepository,
	catalog domain.CatalogRepository,
	simulation Simulation,
	session *BookingSession,
	clock func() time.Time,
	logger logger.Logger,
) *CancelRideUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &CancelRideUseCase{
		rideRepo:   rideRepo,
		catalog:    catalog,
		simulation: simulation,
		session:    session,
		clock:      clock,
		logger:     logger,
	}
}

// Execute cancels the ride. Unknown and already finished rides are
// rejected with a ValidationError wrapping ErrRideNotFound or ErrRideFinished.
func (uc *CancelRideUseCase) Execute(ctx context.Context, cmd CancelRideCommand) (domain.RideView, error) {
	log := uc.logger.WithFields(logger.LogFields{
		"ride_id":      cmd.RideID,
		"passenger_id": cmd.PassengerID,
		"reason":       cmd.ReasonID,
	})

	if cmd.RideID == "" {
		return domain.RideView{}, domain.NewValidationError("ride_id", "is required")
	}
	if cmd.ReasonID == "" {
		return domain.RideView{}, domain.NewValidationError("reason", "is required")
	}
	if _, err := uc.catalog.CancellationReason(ctx, cmd.ReasonID); err != nil {
		return domain.RideView{}, catalogError("reason", "unknown cancellation reason", domain.ErrCancelReasonNotFound, err)
	}

	// 1. Running simulation
	if view, _, ok := uc.simulation.Snapshot(cmd.RideID); ok {
		if !owns(cmd.PassengerID, view.PassengerID) {
			return domain.RideView{}, rideNotFound()
		}
		cancelled, err := uc.simulation.Cancel(cmd.RideID, cmd.ReasonID, uc.clock())
		switch {
		case err == nil:
			log.Info("ride_cancelled", "Ride cancelled")
			return cancelled, nil
		case errors.Is(err, domain.ErrRideFinished):
			return domain.RideView{}, rideFinished()
		case !errors.Is(err, domain.ErrRideNotFound):
			return domain.RideView{}, fmt.Errorf("cancel simulation: %w", err)
		}
		// Finished between Snapshot and Cancel; fall through to storage.
	}

	// 2. Stored ride without a session (e.g. created before a restart)
	ride, err := uc.rideRepo.FindByID(ctx, cmd.RideID)
	if errors.Is(err, domain.ErrRideNotFound) {
		return domain.RideView{}, rideNotFound()
	}
	if err != nil {
		return domain.RideView{}, fmt.Errorf("load ride: %w", err)
	}
	if !owns(cmd.PassengerID, ride.PassengerID()) {
		return domain.RideView{}, rideNotFound()
	}
	if !ride.CanBeCancelled() {
		return domain.RideView{}, rideFinished()
	}

	if err := ride.Cancel(cmd.ReasonID, uc.clock()); err != nil {
		return domain.RideView{}, fmt.Errorf("cannot cancel ride: %w", err)
	}
	uc.session.finish(ctx, ride, "", geo.Point{})

	log.Info("ride_cancelled", "Stored ride cancelled")
	return ride.View(), nil
}

func owns(caller, owner string) bool {
	return caller == "" || caller == owner
}

func rideNotFound() error {
	return domain.WrapValidationError("ride_id", "ride not found", domain.ErrRideNotFound)
}

func rideFinished() error {
	return domain.WrapValidationError("ride_id", "ride is already finished", domain.ErrRideFinished)
}
