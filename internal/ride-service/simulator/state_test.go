package simulator

import (
	"testing"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
)

func TestReduce_DoesNotMutateInput(t *testing.T) {
	ride := newRide(t, "ride-1", "p-1")
	start := Reduce(State{}, RideStarted{Ride: ride, DriverStart: geo.Point{Lat: 1, Lng: 1}})

	next := Reduce(start, ArrivedAtPickup{At: t0.Add(time.Second)})

	if start.Ride.Status() != domain.StatusRequested || start.ArrivedAtPickup {
		t.Fatalf("input state mutated: %s %v", start.Ride.Status(), start.ArrivedAtPickup)
	}
	if next.Ride.Status() != domain.StatusArriving || !next.ArrivedAtPickup {
		t.Fatalf("unexpected next state: %s %v", next.Ride.Status(), next.ArrivedAtPickup)
	}
	if next.Driver != (geo.Point{}) {
		t.Fatalf("driver should be pinned to pickup, got %+v", next.Driver)
	}
	if ride.Status() != domain.StatusRequested {
		t.Fatal("ride passed to RideStarted was mutated")
	}
}

func TestReduce_ArrivalFlagsAreOneShot(t *testing.T) {
	st := Reduce(State{}, RideStarted{Ride: newRide(t, "ride-1", "p-1")})
	st = Reduce(st, ArrivedAtPickup{At: t0})

	again := Reduce(st, ArrivedAtPickup{At: t0.Add(time.Second)})
	if !again.Ride.UpdatedAt().Equal(t0) {
		t.Fatal("second arrival re-stamped the ride")
	}

	st = Reduce(st, BoardingElapsed{At: t0.Add(3 * time.Second)})
	st = Reduce(st, ArrivedAtDestination{At: t0.Add(time.Minute)})
	if st.Ride.Status() != domain.StatusCompleted || !st.ArrivedAtDestination {
		t.Fatalf("expected completed ride, got %s", st.Ride.Status())
	}

	after := Reduce(st, RideCancelled{Reason: "late", At: t0.Add(2 * time.Minute)})
	if after.Ride.Status() != domain.StatusCompleted {
		t.Fatal("terminal ride accepted a cancellation")
	}
}

func TestReduce_RideStartedResetsFlags(t *testing.T) {
	st := Reduce(State{}, RideStarted{Ride: newRide(t, "ride-1", "p-1")})
	st = Reduce(st, ArrivedAtPickup{At: t0})

	fresh := Reduce(st, RideStarted{Ride: newRide(t, "ride-2", "p-1"), DriverID: "d-1"})
	if fresh.ArrivedAtPickup || fresh.ArrivedAtDestination {
		t.Fatal("flags survived a new ride")
	}
	if fresh.Ride.ID() != "ride-2" || fresh.DriverID != "d-1" {
		t.Fatalf("unexpected fresh state: %+v", fresh)
	}
}

func TestReduce_AcceptRequiresDriver(t *testing.T) {
	st := Reduce(State{}, RideStarted{Ride: newRide(t, "ride-1", "p-1")})
	if next := Reduce(st, DriverAccepted{ETA: t0, At: t0}); next.Ride.Status() != domain.StatusRequested {
		t.Fatal("ride accepted without a driver")
	}

	st = Reduce(State{}, RideStarted{Ride: newRide(t, "ride-1", "p-1"), DriverID: "d-1"})
	next := Reduce(st, DriverAccepted{ETA: t0.Add(time.Minute), At: t0})
	if next.Ride.Status() != domain.StatusAccepted || *next.Ride.DriverID() != "d-1" {
		t.Fatalf("unexpected accepted state: %s", next.Ride.Status())
	}
}

func TestReduce_NilRideIsNoop(t *testing.T) {
	var st State
	if got := Reduce(st, ArrivedAtPickup{At: t0}); got.Ride != nil {
		t.Fatal("expected no-op on empty state")
	}
}

func TestManualScheduler_OrdersAndStops(t *testing.T) {
	s := NewManualScheduler(t0)
	var order []string

	every := s.Every(2*time.Second, func() { order = append(order, "tick") })
	s.After(3*time.Second, func() { order = append(order, "once") })
	stopped := s.After(time.Second, func() { order = append(order, "never") })
	stopped.Stop()

	s.Advance(4 * time.Second)
	every.Stop()
	s.Advance(10 * time.Second)

	want := []string{"tick", "once", "tick"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if !s.Now().Equal(t0.Add(14 * time.Second)) {
		t.Fatalf("clock = %v", s.Now())
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d", s.Pending())
	}
}
