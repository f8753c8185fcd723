package service

import (
	"context"
	"fmt"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/logger"
)

// EstimateFareCommand asks for prices between two points. An empty
// RideTypeID quotes every ride type in the catalog.
type EstimateFareCommand struct {
	Pickup      *LocationInput
	Destination *LocationInput
	RideTypeID  string
}

// FareEstimate is the route together with the quotes computed on it.
type FareEstimate struct {
	Route        *domain.Route       `json:"route"`
	PriceFactors domain.PriceFactors `json:"price_factors"`
	Quotes       []domain.FareQuote  `json:"quotes"`
}

// EstimateFareUseCase prices a trip without creating a ride.
type EstimateFareUseCase struct {
	catalog domain.CatalogRepository
	routes  domain.RouteProvider
	logger  logger.Logger
}

func NewEstimateFareUseCase(catalog domain.CatalogRepository, routes domain.RouteProvider, logger logger.Logger) *EstimateFareUseCase {
	return &EstimateFareUseCase{catalog: catalog, routes: routes, logger: logger}
}

func (uc *EstimateFareUseCase) Execute(ctx context.Context, cmd EstimateFareCommand) (*FareEstimate, error) {
	pickup, err := toCoordinate("pickup_location", cmd.Pickup)
	if err != nil {
		return nil, err
	}
	dest, err := toCoordinate("destination_location", cmd.Destination)
	if err != nil {
		return nil, err
	}

	var rideTypes []domain.RideType
	if cmd.RideTypeID != "" {
		rt, err := uc.catalog.RideType(ctx, cmd.RideTypeID)
		if err != nil {
			return nil, catalogError("ride_type", "unknown ride type", domain.ErrRideTypeNotFound, err)
		}
		rideTypes = []domain.RideType{rt}
	} else if rideTypes, err = uc.catalog.RideTypes(ctx); err != nil {
		return nil, fmt.Errorf("load ride types: %w", err)
	}

	factors, err := uc.catalog.PriceFactors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load price factors: %w", err)
	}

	route, err := uc.routes.Route(ctx, pickup, dest)
	if err != nil {
		uc.logger.Error("route_lookup_failed", err)
		return nil, fmt.Errorf("resolve route: %w", err)
	}

	return &FareEstimate{
		Route:        route,
		PriceFactors: factors,
		Quotes:       domain.NewFareCalculator(factors).Quote(route, rideTypes),
	}, nil
}
