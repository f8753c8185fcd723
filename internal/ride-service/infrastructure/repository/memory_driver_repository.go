package repository

import (
	"context"
	"sort"
	"sync"

	"ride-sim/internal/ride-service/domain"
)

// MemoryDriverRepository is the simulated driver fleet
type MemoryDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]domain.Driver
}

// NewMemoryDriverRepository seeds the fleet with drivers
func NewMemoryDriverRepository(drivers []domain.Driver) *MemoryDriverRepository {
	r := &MemoryDriverRepository{drivers: make(map[string]domain.Driver, len(drivers))}
	for _, d := range drivers {
		r.drivers[d.ID] = d
	}
	return r
}

func (r *MemoryDriverRepository) Find(_ context.Context, driverID string) (*domain.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[driverID]
	if !ok {
		return nil, domain.ErrDriverNotFound
	}
	return &d, nil
}

func (r *MemoryDriverRepository) Update(_ context.Context, driver *domain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.drivers[driver.ID]; !ok {
		return domain.ErrDriverNotFound
	}
	r.drivers[driver.ID] = *driver
	return nil
}

// List returns every driver ordered by id
func (r *MemoryDriverRepository) List(_ context.Context) ([]*domain.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
