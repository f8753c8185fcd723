package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

// Assignment is the driver chosen for a ride. DriverID is empty when no
// fleet driver was free and an anonymous driver was spawned instead.
type Assignment struct {
	DriverID string
	Driver   *domain.Driver
	Start    geo.Point
}

// Dispatcher reserves the nearest available driver for a pickup.
type Dispatcher struct {
	drivers       domain.DriverRepository
	spawnOffsetKm float64
	logger        logger.Logger

	mu     sync.Mutex
	spawns int
}

// NewDispatcher creates a dispatcher. Spawned drivers start spawnOffsetKm
// from the pickup.
func NewDispatcher(drivers domain.DriverRepository, spawnOffsetKm float64, log logger.Logger) *Dispatcher {
	if spawnOffsetKm <= 0 {
		spawnOffsetKm = 1
	}
	return &Dispatcher{drivers: drivers, spawnOffsetKm: spawnOffsetKm, logger: log}
}

// Assign reserves a driver for pickup, falling back to a spawned driver.
func (d *Dispatcher) Assign(ctx context.Context, pickup domain.Coordinate) Assignment {
	d.mu.Lock()
	defer d.mu.Unlock()

	driver, err := d.nearestAvailable(ctx, pickup.Point())
	if err == nil {
		driver.Available = false
		if err = d.drivers.Update(ctx, driver); err == nil {
			d.logger.WithFields(logger.LogFields{
				"driver_id":   driver.ID,
				"distance_km": geo.DistanceKm(driver.Location, pickup.Point()),
			}).Info("driver_assigned", "Nearest available driver reserved")
			return Assignment{DriverID: driver.ID, Driver: driver, Start: driver.Location}
		}
	}

	d.logger.WithFields(logger.LogFields{"reason": err.Error()}).Warn("driver_spawned", "No fleet driver reserved, spawning a simulated driver")

	// Golden-angle spacing keeps consecutive spawns apart.
	bearing := math.Mod(float64(d.spawns)*137.508, 360) * math.Pi / 180
	d.spawns++
	return Assignment{Start: geo.Destination(pickup.Point(), bearing, d.spawnOffsetKm)}
}

func (d *Dispatcher) nearestAvailable(ctx context.Context, p geo.Point) (*domain.Driver, error) {
	drivers, err := d.drivers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}

	var best *domain.Driver
	bestKm := math.Inf(1)
	for _, drv := range drivers {
		if !drv.Available {
			continue
		}
		if km := geo.DistanceKm(drv.Location, p); km < bestKm {
			best, bestKm = drv, km
		}
	}
	if best == nil {
		return nil, domain.ErrNoDriverAvailable
	}
	return best, nil
}

// Release makes a driver available again at its last simulated position.
func (d *Dispatcher) Release(ctx context.Context, driverID string, position geo.Point) error {
	if driverID == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	driver, err := d.drivers.Find(ctx, driverID)
	if err != nil {
		return fmt.Errorf("release driver %s: %w", driverID, err)
	}
	driver.Available = true
	driver.Location = position
	if err := d.drivers.Update(ctx, driver); err != nil {
		return fmt.Errorf("release driver %s: %w", driverID, err)
	}
	return nil
}

// Driver returns a fleet driver by id.
func (d *Dispatcher) Driver(ctx context.Context, driverID string) (*domain.Driver, error) {
	return d.drivers.Find(ctx, driverID)
}
