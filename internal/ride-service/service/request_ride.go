package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"

	"github.com/google/uuid"
)

// RequestRideCommand represents the input for requesting a ride
type RequestRideCommand struct {
	PassengerID     string
	Pickup          *LocationInput
	Destination     *LocationInput
	RideTypeID      string
	PaymentMethodID string
}

// RequestRideUseCase handles the business workflow for requesting a ride
type RequestRideUseCase struct {
	rideRepo       domain.RideRepository
	catalog        domain.CatalogRepository
	routes         domain.RouteProvider
	dispatcher     *Dispatcher
	simulation     Simulation
	eventPublisher EventPublisher
	clock          func() time.Time
	logger         logger.Logger
}

// NewRequestRideUseCase creates a new use case instance
func NewRequestRideUseCase(
	rideRepo domain.RideRepository,
	catalog domain.CatalogRepository,
	routes domain.RouteProvider,
	dispatcher *Dispatcher,
	simulation Simulation,
	eventPublisher EventPublisher,
	clock func() time.Time,
	logger logger.Logger,
) *RequestRideUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &RequestRideUseCase{
		rideRepo:       rideRepo,
		catalog:        catalog,
		routes:         routes,
		dispatcher:     dispatcher,
		simulation:     simulation,
		eventPublisher: eventPublisher,
		clock:          clock,
		logger:         logger,
	}
}

// Execute validates the selection, prices the route and starts the ride.
// Route provider failures are returned unchanged and nothing is persisted.
func (uc *RequestRideUseCase) Execute(ctx context.Context, cmd RequestRideCommand) (*RideDTO, error) {
	log := uc.logger.WithFields(logger.LogFields{"passenger_id": cmd.PassengerID})

	if cmd.PassengerID == "" {
		return nil, domain.NewValidationError("passenger_id", "is required")
	}

	// 1. Required selection
	pickup, err := toCoordinate("pickup_location", cmd.Pickup)
	if err != nil {
		return nil, err
	}
	dest, err := toCoordinate("destination_location", cmd.Destination)
	if err != nil {
		return nil, err
	}
	if cmd.RideTypeID == "" {
		return nil, domain.NewValidationError("ride_type", "is required")
	}
	if cmd.PaymentMethodID == "" {
		return nil, domain.NewValidationError("payment_method", "is required")
	}
	if pickup.DistanceTo(dest) < geo.ArrivalThresholdKm {
		return nil, domain.NewValidationError("destination_location", "must differ from the pickup location")
	}

	// 2. Catalog existence
	rideType, err := uc.catalog.RideType(ctx, cmd.RideTypeID)
	if err != nil {
		return nil, catalogError("ride_type", "unknown ride type", domain.ErrRideTypeNotFound, err)
	}
	if _, err := uc.catalog.PaymentMethod(ctx, cmd.PaymentMethodID); err != nil {
		return nil, catalogError("payment_method", "unknown payment method", domain.ErrPaymentNotFound, err)
	}
	factors, err := uc.catalog.PriceFactors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load price factors: %w", err)
	}

	// 3. Route
	route, err := uc.routes.Route(ctx, pickup, dest)
	if err != nil {
		log.Error("route_lookup_failed", err)
		return nil, fmt.Errorf("resolve route: %w", err)
	}

	// 4. Fare
	fare := domain.NewFareCalculator(factors).Calculate(route, rideType)
	log.WithFields(logger.LogFields{
		"ride_type":   rideType.ID,
		"distance_km": route.DistanceKm(),
		"duration_m":  route.DurationMinutes(),
		"fare":        fare,
	}).Info("fare_calculated", "Estimated fare calculated")

	// 5. Ride entity
	now := uc.clock()
	ride, err := domain.NewRide(uuid.NewString(), cmd.PassengerID, pickup, dest, rideType.ID, cmd.PaymentMethodID, fare, route, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}
	log = log.WithFields(logger.LogFields{"ride_id": ride.ID()})

	// 6. Persist
	if err := uc.rideRepo.Save(ctx, ride); err != nil {
		log.Error("save_ride_failed", err)
		return nil, fmt.Errorf("failed to save ride: %w", err)
	}

	// 7. Publish
	event := domain.RideRequestedEvent{Ride: ride.View(), RequestedAt: now}
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		// The ride is saved; a lost event must not fail the request.
		log.Error("publish_event_failed", err)
	}

	// 8. Dispatch and simulate
	assignment := uc.dispatcher.Assign(ctx, pickup)
	uc.simulation.Start(ride, assignment.DriverID, assignment.Start)

	log.WithFields(logger.LogFields{"driver_id": assignment.DriverID}).Info("ride_requested", "Ride requested and simulation started")

	dto := &RideDTO{RideView: ride.View(), Driver: assignment.Driver}
	dto.DriverLocation = &assignment.Start
	return dto, nil
}

func catalogError(field, message string, sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return domain.WrapValidationError(field, message, err)
	}
	return fmt.Errorf("catalog lookup %s: %w", field, err)
}
