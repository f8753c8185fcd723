package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ride-sim/internal/ride-service/domain"
)

// MemoryRideRepository keeps rides in process memory. It is used when no
// database is configured and by tests.
type MemoryRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride
}

// NewMemoryRideRepository creates an empty repository
func NewMemoryRideRepository() *MemoryRideRepository {
	return &MemoryRideRepository{rides: make(map[string]*domain.Ride)}
}

// Save persists a new ride
func (r *MemoryRideRepository) Save(_ context.Context, ride *domain.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rides[ride.ID()]; exists {
		return fmt.Errorf("save ride %s: already exists", ride.ID())
	}
	r.rides[ride.ID()] = ride.Clone()
	return nil
}

// Update replaces a stored ride
func (r *MemoryRideRepository) Update(_ context.Context, ride *domain.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rides[ride.ID()]; !exists {
		return domain.ErrRideNotFound
	}
	r.rides[ride.ID()] = ride.Clone()
	return nil
}

// FindByID retrieves a ride by its ID
func (r *MemoryRideRepository) FindByID(_ context.Context, rideID string) (*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ride, ok := r.rides[rideID]
	if !ok {
		return nil, domain.ErrRideNotFound
	}
	return ride.Clone(), nil
}

// ListHistory returns finished rides of a passenger, newest first
func (r *MemoryRideRepository) ListHistory(_ context.Context, passengerID string, limit int) ([]*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rides []*domain.Ride
	for _, ride := range r.rides {
		if ride.PassengerID() == passengerID && ride.Status().IsTerminal() {
			rides = append(rides, ride.Clone())
		}
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].UpdatedAt().After(rides[j].UpdatedAt())
	})
	if limit > 0 && len(rides) > limit {
		rides = rides[:limit]
	}
	return rides, nil
}
