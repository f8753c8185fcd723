package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/internal/ride-service/infrastructure/catalog"
	"ride-sim/internal/ride-service/infrastructure/repository"
	"ride-sim/internal/ride-service/simulator"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const testCatalog = `
price_factors:
  base_price: 2.5
  per_km_rate: 1.25
  per_minute_rate: 0.35
  minimum_fare: 5
  surge_pricing: 1
ride_types:
  - {id: economy, name: Economy, capacity: 4, price_multiplier: 1.0}
  - {id: comfort, name: Comfort, capacity: 4, price_multiplier: 1.3}
payment_methods:
  - {id: cash, label: Cash, kind: cash}
cancellation_reasons:
  - {id: changed_mind, label: I changed my mind}
  - {id: other, label: Other}
drivers:
  - {id: drv-near, name: Near, latitude: 43.2400, longitude: 76.8897}
  - {id: drv-far, name: Far, latitude: 43.3000, longitude: 76.9500}
`

var (
	pickupInput = &LocationInput{Latitude: 43.2389, Longitude: 76.8897, Address: "Abay Ave"}
	destInput   = &LocationInput{Latitude: 43.2567, Longitude: 76.9286, Address: "Dostyk Ave"}
)

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.DomainEvent
	err    error
}

func (r *eventRecorder) Publish(_ context.Context, e domain.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *eventRecorder) byType(eventType string) []domain.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DomainEvent
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type pushRecorder struct {
	mu       sync.Mutex
	messages map[string][]interface{}
}

func (p *pushRecorder) SendToUser(userID string, msg interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][]interface{})
	}
	p.messages[userID] = append(p.messages[userID], msg)
	return nil
}

func (p *pushRecorder) statuses(userID string) []domain.RideStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.RideStatus
	for _, m := range p.messages[userID] {
		if s, ok := m.(RideStatusMessage); ok {
			out = append(out, s.Status)
		}
	}
	return out
}

// fixedRoute always returns the same 5 km / 15 min route.
type fixedRoute struct {
	err   error
	calls int
}

func (f *fixedRoute) Route(_ context.Context, from, to domain.Coordinate) (*domain.Route, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Route{
		Polyline:        []geo.Point{from.Point(), to.Point()},
		DistanceMeters:  5000,
		DurationSeconds: 900,
	}, nil
}

type fixture struct {
	sched    *simulator.ManualScheduler
	engine   *simulator.Engine
	rides    *repository.MemoryRideRepository
	drivers  *repository.MemoryDriverRepository
	catalog  *catalog.MemoryCatalog
	routes   *fixedRoute
	events   *eventRecorder
	pushes   *pushRecorder
	session  *BookingSession
	request  *RequestRideUseCase
	cancel   *CancelRideUseCase
	get      *GetRideUseCase
	estimate *EstimateFareUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	file, err := catalog.Decode(strings.NewReader(testCatalog))
	if err != nil {
		t.Fatal(err)
	}

	log := logger.Nop()
	f := &fixture{
		sched:   simulator.NewManualScheduler(t0),
		rides:   repository.NewMemoryRideRepository(),
		drivers: repository.NewMemoryDriverRepository(file.Drivers()),
		catalog: catalog.NewMemoryCatalog(file),
		routes:  &fixedRoute{},
		events:  &eventRecorder{},
		pushes:  &pushRecorder{},
	}

	dispatcher := NewDispatcher(f.drivers, 1.5, log)
	f.session = NewBookingSession(f.rides, f.catalog, dispatcher, f.events, log, 10)
	f.engine = simulator.NewEngine(simulator.DefaultConfig(), f.sched, f.sched.Now, f.session, log)
	f.engine.Subscribe(NewRideRecorder(f.rides, log))
	f.engine.Subscribe(NewEventRelay(f.events, f.pushes, f.sched.Now, log))
	t.Cleanup(f.engine.Stop)

	f.request = NewRequestRideUseCase(f.rides, f.catalog, f.routes, dispatcher, f.engine, f.events, f.sched.Now, log)
	f.cancel = NewCancelRideUseCase(f.rides, f.catalog, f.engine, f.session, f.sched.Now, log)
	f.get = NewGetRideUseCase(f.rides, f.engine, dispatcher)
	f.estimate = NewEstimateFareUseCase(f.catalog, f.routes, log)
	return f
}

func (f *fixture) requestRide(t *testing.T, passengerID string) *RideDTO {
	t.Helper()
	dto, err := f.request.Execute(context.Background(), RequestRideCommand{
		PassengerID:     passengerID,
		Pickup:          pickupInput,
		Destination:     destInput,
		RideTypeID:      "comfort",
		PaymentMethodID: "cash",
	})
	if err != nil {
		t.Fatal(err)
	}
	return dto
}

func (f *fixture) storedStatus(t *testing.T, rideID string) domain.RideStatus {
	t.Helper()
	ride, err := f.rides.FindByID(context.Background(), rideID)
	if err != nil {
		t.Fatal(err)
	}
	return ride.Status()
}
