// Package catalog serves the static ride-type, payment-method,
// cancellation-reason and pricing lists loaded from a YAML file.
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of the catalog.
type File struct {
	PriceFactors        priceFactors `yaml:"price_factors"`
	RideTypes           []rideType   `yaml:"ride_types"`
	PaymentMethods      []option     `yaml:"payment_methods"`
	CancellationReasons []option     `yaml:"cancellation_reasons"`
	Fleet               []driver     `yaml:"drivers"`
}

type priceFactors struct {
	BasePrice     float64 `yaml:"base_price"`
	PerKmRate     float64 `yaml:"per_km_rate"`
	PerMinuteRate float64 `yaml:"per_minute_rate"`
	MinimumFare   float64 `yaml:"minimum_fare"`
	SurgePricing  float64 `yaml:"surge_pricing"`
}

type rideType struct {
	ID                     string  `yaml:"id"`
	Name                   string  `yaml:"name"`
	Capacity               int     `yaml:"capacity"`
	PriceMultiplier        float64 `yaml:"price_multiplier"`
	Icon                   string  `yaml:"icon"`
	EstimatedPickupMinutes *int    `yaml:"estimated_pickup_minutes"`
}

type option struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Kind  string `yaml:"kind"`
}

type driver struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Vehicle   string  `yaml:"vehicle"`
	Plate     string  `yaml:"plate"`
	Rating    float64 `yaml:"rating"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Decode parses and validates a catalog document.
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads the catalog from path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

func (f *File) validate() error {
	if len(f.RideTypes) == 0 {
		return fmt.Errorf("catalog: at least one ride type is required")
	}
	if len(f.PaymentMethods) == 0 {
		return fmt.Errorf("catalog: at least one payment method is required")
	}

	p := f.PriceFactors
	if p.BasePrice < 0 || p.PerKmRate < 0 || p.PerMinuteRate < 0 || p.MinimumFare < 0 {
		return fmt.Errorf("catalog: price factors must not be negative")
	}
	if p.SurgePricing == 0 {
		f.PriceFactors.SurgePricing = 1
	} else if p.SurgePricing < 1 {
		return fmt.Errorf("catalog: surge_pricing must be at least 1, got %v", p.SurgePricing)
	}

	seen := make(map[string]bool)
	for _, rt := range f.RideTypes {
		if rt.ID == "" || seen["rt:"+rt.ID] {
			return fmt.Errorf("catalog: ride type id %q is empty or duplicated", rt.ID)
		}
		if rt.PriceMultiplier <= 0 {
			return fmt.Errorf("catalog: ride type %s: price_multiplier must be positive", rt.ID)
		}
		seen["rt:"+rt.ID] = true
	}
	for _, pm := range f.PaymentMethods {
		if pm.ID == "" || seen["pm:"+pm.ID] {
			return fmt.Errorf("catalog: payment method id %q is empty or duplicated", pm.ID)
		}
		seen["pm:"+pm.ID] = true
	}
	for _, cr := range f.CancellationReasons {
		if cr.ID == "" || seen["cr:"+cr.ID] {
			return fmt.Errorf("catalog: cancellation reason id %q is empty or duplicated", cr.ID)
		}
		seen["cr:"+cr.ID] = true
	}
	for _, d := range f.Fleet {
		if d.ID == "" || seen["d:"+d.ID] {
			return fmt.Errorf("catalog: driver id %q is empty or duplicated", d.ID)
		}
		if err := domain.ValidateCoordinates(d.Latitude, d.Longitude); err != nil {
			return fmt.Errorf("catalog: driver %s: %w", d.ID, err)
		}
		seen["d:"+d.ID] = true
	}
	return nil
}

// Drivers returns the seed fleet, all available.
func (f *File) Drivers() []domain.Driver {
	out := make([]domain.Driver, 0, len(f.Fleet))
	for _, d := range f.Fleet {
		out = append(out, domain.Driver{
			ID:        d.ID,
			Name:      d.Name,
			Vehicle:   d.Vehicle,
			Plate:     d.Plate,
			Rating:    d.Rating,
			Location:  geo.Point{Lat: d.Latitude, Lng: d.Longitude},
			Available: true,
		})
	}
	return out
}

// MemoryCatalog implements domain.CatalogRepository over a decoded File.
type MemoryCatalog struct {
	mu        sync.RWMutex
	factors   domain.PriceFactors
	rideTypes []domain.RideType
	payments  []domain.PaymentMethod
	reasons   []domain.CancellationReason
}

// NewMemoryCatalog builds the catalog from f.
func NewMemoryCatalog(f *File) *MemoryCatalog {
	c := &MemoryCatalog{
		factors: domain.PriceFactors{
			BasePrice:     f.PriceFactors.BasePrice,
			PerKmRate:     f.PriceFactors.PerKmRate,
			PerMinuteRate: f.PriceFactors.PerMinuteRate,
			MinimumFare:   f.PriceFactors.MinimumFare,
			SurgePricing:  f.PriceFactors.SurgePricing,
		},
	}
	for _, rt := range f.RideTypes {
		c.rideTypes = append(c.rideTypes, domain.RideType{
			ID:                     rt.ID,
			Name:                   rt.Name,
			Capacity:               rt.Capacity,
			PriceMultiplier:        rt.PriceMultiplier,
			Icon:                   rt.Icon,
			EstimatedPickupMinutes: rt.EstimatedPickupMinutes,
		})
	}
	for _, pm := range f.PaymentMethods {
		c.payments = append(c.payments, domain.PaymentMethod{ID: pm.ID, Label: pm.Label, Kind: pm.Kind})
	}
	for _, cr := range f.CancellationReasons {
		c.reasons = append(c.reasons, domain.CancellationReason{ID: cr.ID, Label: cr.Label})
	}
	return c
}

func (c *MemoryCatalog) RideTypes(context.Context) ([]domain.RideType, error) {
	return append([]domain.RideType(nil), c.rideTypes...), nil
}

func (c *MemoryCatalog) RideType(_ context.Context, id string) (domain.RideType, error) {
	for _, rt := range c.rideTypes {
		if rt.ID == id {
			return rt, nil
		}
	}
	return domain.RideType{}, fmt.Errorf("%w: %s", domain.ErrRideTypeNotFound, id)
}

func (c *MemoryCatalog) PaymentMethods(context.Context) ([]domain.PaymentMethod, error) {
	return append([]domain.PaymentMethod(nil), c.payments...), nil
}

func (c *MemoryCatalog) PaymentMethod(_ context.Context, id string) (domain.PaymentMethod, error) {
	for _, pm := range c.payments {
		if pm.ID == id {
			return pm, nil
		}
	}
	return domain.PaymentMethod{}, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
}

func (c *MemoryCatalog) CancellationReasons(context.Context) ([]domain.CancellationReason, error) {
	return append([]domain.CancellationReason(nil), c.reasons...), nil
}

func (c *MemoryCatalog) CancellationReason(_ context.Context, id string) (domain.CancellationReason, error) {
	for _, cr := range c.reasons {
		if cr.ID == id {
			return cr, nil
		}
	}
	return domain.CancellationReason{}, fmt.Errorf("%w: %s", domain.ErrCancelReasonNotFound, id)
}

// PriceFactors returns the current pricing.
func (c *MemoryCatalog) PriceFactors(context.Context) (domain.PriceFactors, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.factors, nil
}

// SetSurge replaces the surge multiplier. Values below 1 are stored as 1.
func (c *MemoryCatalog) SetSurge(multiplier float64) {
	if multiplier < 1 {
		multiplier = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factors.SurgePricing = multiplier
}
