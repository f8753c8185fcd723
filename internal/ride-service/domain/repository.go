package domain

import "context"

// RideRepository is the interface (port) for ride persistence
// This belongs in domain layer - implementation is in infrastructure
type RideRepository interface {
	// Save persists a new ride
	Save(ctx context.Context, ride *Ride) error

	// Update updates an existing ride
	Update(ctx context.Context, ride *Ride) error

	// FindByID retrieves a ride by its ID
	FindByID(ctx context.Context, rideID string) (*Ride, error)

	// ListHistory returns finished rides of a passenger, newest first
	ListHistory(ctx context.Context, passengerID string, limit int) ([]*Ride, error)
}

// DriverRepository is the store of dispatchable drivers
type DriverRepository interface {
	Find(ctx context.Context, driverID string) (*Driver, error)
	Update(ctx context.Context, driver *Driver) error
	List(ctx context.Context) ([]*Driver, error)
}

// CatalogRepository serves the static lists the booking flow picks from
type CatalogRepository interface {
	RideTypes(ctx context.Context) ([]RideType, error)
	RideType(ctx context.Context, id string) (RideType, error)
	PaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	PaymentMethod(ctx context.Context, id string) (PaymentMethod, error)
	CancellationReasons(ctx context.Context) ([]CancellationReason, error)
	CancellationReason(ctx context.Context, id string) (CancellationReason, error)
	PriceFactors(ctx context.Context) (PriceFactors, error)
}

// RouteProvider resolves a drivable route between two coordinates
type RouteProvider interface {
	Route(ctx context.Context, from, to Coordinate) (*Route, error)
}
