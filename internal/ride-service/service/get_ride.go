package service

import (
	"context"
	"errors"
	"fmt"

	"ride-sim/internal/ride-service/domain"
)

// GetRideUseCase reads a ride, preferring the live simulation state.
type GetRideUseCase struct {
	rideRepo   domain.RideRepository
	simulation Simulation
	dispatcher *Dispatcher
}

func NewGetRideUseCase(rideRepo domain.RideRepository, simulation Simulation, dispatcher *Dispatcher) *GetRideUseCase {
	return &GetRideUseCase{rideRepo: rideRepo, simulation: simulation, dispatcher: dispatcher}
}

// Execute returns the ride if passengerID owns it (an empty passengerID
// skips the check).
func (uc *GetRideUseCase) Execute(ctx context.Context, rideID, passengerID string) (*RideDTO, error) {
	if view, pos, ok := uc.simulation.Snapshot(rideID); ok {
		if !owns(passengerID, view.PassengerID) {
			return nil, domain.ErrRideNotFound
		}
		dto := &RideDTO{RideView: view, DriverLocation: &pos}
		if view.DriverID != nil {
			if d, err := uc.dispatcher.Driver(ctx, *view.DriverID); err == nil {
				dto.Driver = d
			}
		}
		return dto, nil
	}

	ride, err := uc.rideRepo.FindByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, domain.ErrRideNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load ride: %w", err)
	}
	if !owns(passengerID, ride.PassengerID()) {
		return nil, domain.ErrRideNotFound
	}
	return &RideDTO{RideView: ride.View()}, nil
}
