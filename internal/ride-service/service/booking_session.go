package service

import (
	"context"
	"sort"
	"sync"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

// BookingSession owns the history of finished rides. It is the simulator's
// HistorySink: every ride that completes or is cancelled is persisted,
// appended to the history, its driver released and an event published.
type BookingSession struct {
	rides      domain.RideRepository
	catalog    domain.CatalogRepository
	dispatcher *Dispatcher
	publisher  EventPublisher
	logger     logger.Logger
	maxPerUser int

	mu      sync.RWMutex
	history map[string][]domain.RideView // passenger_id -> newest last
}

// NewBookingSession creates a session keeping up to maxPerUser finished
// rides per passenger in memory.
func NewBookingSession(
	rides domain.RideRepository,
	catalog domain.CatalogRepository,
	dispatcher *Dispatcher,
	publisher EventPublisher,
	log logger.Logger,
	maxPerUser int,
) *BookingSession {
	if maxPerUser <= 0 {
		maxPerUser = 100
	}
	return &BookingSession{
		rides:      rides,
		catalog:    catalog,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     log,
		maxPerUser: maxPerUser,
		history:    make(map[string][]domain.RideView),
	}
}

// OnRideFinished implements simulator.HistorySink.
func (s *BookingSession) OnRideFinished(ride *domain.Ride, driverID string, lastPosition geo.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	s.finish(ctx, ride, driverID, lastPosition)
}

func (s *BookingSession) finish(ctx context.Context, ride *domain.Ride, driverID string, lastPosition geo.Point) {
	log := s.logger.WithFields(logger.LogFields{
		"ride_id":      ride.ID(),
		"passenger_id": ride.PassengerID(),
		"status":       ride.Status().String(),
	})

	if err := s.rides.Update(ctx, ride); err != nil {
		log.Error("history_persist_failed", err)
	}
	if err := s.dispatcher.Release(ctx, driverID, lastPosition); err != nil {
		log.Error("driver_release_failed", err)
	}

	s.append(ride.View())

	var event domain.DomainEvent
	switch ride.Status() {
	case domain.StatusCompleted:
		event = domain.RideCompletedEvent{
			RideID:      ride.ID(),
			PassengerID: ride.PassengerID(),
			DriverID:    ride.DriverID(),
			FinalFare:   ride.Fare(),
			CompletedAt: *ride.CompletedAt(),
		}
	case domain.StatusCancelled:
		event = domain.RideCancelledEvent{
			RideID:      ride.ID(),
			PassengerID: ride.PassengerID(),
			DriverID:    ride.DriverID(),
			ReasonID:    ride.CancelReason(),
			Reason:      s.reasonLabel(ctx, ride.CancelReason()),
			CancelledAt: *ride.CancelledAt(),
		}
	default:
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error("publish_event_failed", err)
	}
	log.Info("ride_finished", "Ride added to history")
}

func (s *BookingSession) reasonLabel(ctx context.Context, id string) string {
	reason, err := s.catalog.CancellationReason(ctx, id)
	if err != nil {
		return id
	}
	return reason.Label
}

func (s *BookingSession) append(v domain.RideView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.history[v.PassengerID], v)
	if len(list) > s.maxPerUser {
		list = list[len(list)-s.maxPerUser:]
	}
	s.history[v.PassengerID] = list
}

// History returns the passenger's finished rides, newest first. Rides the
// session has not seen (for example from before a restart) are read from
// the repository.
func (s *BookingSession) History(ctx context.Context, passengerID string, limit int) ([]domain.RideView, error) {
	if limit <= 0 || limit > s.maxPerUser {
		limit = s.maxPerUser
	}

	s.mu.RLock()
	local := s.history[passengerID]
	out := make([]domain.RideView, 0, len(local))
	for i := len(local) - 1; i >= 0; i-- {
		out = append(out, local[i])
	}
	s.mu.RUnlock()

	if len(out) >= limit {
		return out[:limit], nil
	}

	stored, err := s.rides.ListHistory(ctx, passengerID, limit)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(out))
	for _, v := range out {
		seen[v.ID] = true
	}
	for _, r := range stored {
		if !seen[r.ID()] {
			out = append(out, r.View())
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
