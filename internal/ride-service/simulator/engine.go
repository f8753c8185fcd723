package simulator

import (
	"math"
	"sync"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/geo"
	"ride-sim/pkg/logger"
)

// Config holds the simulation constants.
type Config struct {
	TickInterval    time.Duration
	SpeedKmh        float64
	BoardingDelay   time.Duration
	AcceptanceDelay time.Duration // zero disables the ACCEPTED step
}

// DefaultConfig matches the timings of the booking flow.
func DefaultConfig() Config {
	return Config{
		TickInterval:    2 * time.Second,
		SpeedKmh:        30,
		BoardingDelay:   3 * time.Second,
		AcceptanceDelay: 2 * time.Second,
	}
}

// Observer receives ride-state changes. Callbacks run outside the engine
// lock but must not call Start or Cancel synchronously.
type Observer interface {
	OnRideChanged(ride domain.RideView, previous domain.RideStatus)
	OnDriverMoved(ride domain.RideView, position geo.Point, headingDegrees float64)
}

// HistorySink receives rides once they reach a terminal status. driverID is
// the dispatched driver, which is set even when the ride was cancelled
// before acceptance.
type HistorySink interface {
	OnRideFinished(ride *domain.Ride, driverID string, lastPosition geo.Point)
}

type session struct {
	// dispatchMu keeps this ride's notifications in mutation order. It is
	// taken before Engine.mu and held while observers run.
	dispatchMu sync.Mutex

	state    State
	tick     Handle
	accept   Handle
	boarding Handle
}

func (s *session) stopTimers() {
	for _, h := range []Handle{s.tick, s.accept, s.boarding} {
		if h != nil {
			h.Stop()
		}
	}
	s.tick, s.accept, s.boarding = nil, nil, nil
}

// notification is collected under the state lock and delivered after it.
type notification struct {
	ride     domain.RideView
	previous domain.RideStatus
	changed  bool
	moved    bool
	position geo.Point
	heading  float64
	finished *domain.Ride
	driverID string
}

// Engine runs one session per active ride. All ride and driver mutations go
// through mu, so writes to the same ride are serialised. Notifications are
// ordered per session, so a slow observer only delays its own ride.
type Engine struct {
	cfg   Config
	sched Scheduler
	clock func() time.Time
	sink  HistorySink
	log   logger.Logger

	mu         sync.Mutex
	sessions   map[string]*session
	passengers map[string]string // passenger_id -> ride_id

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObsID int
}

// NewEngine creates a simulation engine.
func NewEngine(cfg Config, sched Scheduler, clock func() time.Time, sink HistorySink, log logger.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		cfg:        cfg,
		sched:      sched,
		clock:      clock,
		sink:       sink,
		log:        log,
		sessions:   make(map[string]*session),
		passengers: make(map[string]string),
		observers:  make(map[int]Observer),
	}
}

// Subscribe registers an observer and returns a function that removes it.
func (e *Engine) Subscribe(o Observer) func() {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()

	id := e.nextObsID
	e.nextObsID++
	e.observers[id] = o

	return func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		delete(e.observers, id)
	}
}

// SupersededReason is the cancel reason recorded when a passenger's running
// ride is replaced by a new one.
const SupersededReason = "superseded"

// Start begins simulating ride with the driver placed at driverStart.
// A running ride of the same passenger is cancelled first so no boarding
// timer or arrival flag leaks into the new ride.
func (e *Engine) Start(ride *domain.Ride, driverID string, driverStart geo.Point) {
	if ride == nil || ride.Status().IsTerminal() {
		return
	}

	rideID := ride.ID()

	// Returns with e.mu held and, when prev is set, prev.dispatchMu too.
	prevID, prev := e.lockPrevious(ride.PassengerID(), rideID)
	if prev != nil {
		defer prev.dispatchMu.Unlock()
	}

	var replaced *notification
	if prev != nil {
		previous := prev.state.Ride.Status()
		prev.state = Reduce(prev.state, RideCancelled{Reason: SupersededReason, At: e.clock()})
		replaced = &notification{
			ride:     prev.state.Ride.View(),
			previous: previous,
			changed:  true,
			position: prev.state.Driver,
			driverID: prev.state.DriverID,
		}
		replaced.finished = e.finishLocked(prevID, prev)
		e.log.WithFields(logger.LogFields{
			"ride_id":      prevID,
			"next_ride_id": rideID,
		}).Warn("simulation_replaced", "Previous ride superseded by a new request")
	}
	if old, ok := e.sessions[rideID]; ok {
		old.stopTimers()
	}

	sess := &session{
		state: Reduce(State{}, RideStarted{Ride: ride, DriverID: driverID, DriverStart: driverStart}),
	}
	sess.dispatchMu.Lock()
	defer sess.dispatchMu.Unlock()
	e.sessions[rideID] = sess
	e.passengers[ride.PassengerID()] = rideID

	sess.tick = e.sched.Every(e.cfg.TickInterval, func() {
		e.Tick(rideID, e.clock())
	})
	if driverID != "" && e.cfg.AcceptanceDelay > 0 {
		sess.accept = e.sched.After(e.cfg.AcceptanceDelay, func() {
			e.accept(rideID)
		})
	}

	n := notification{ride: sess.state.Ride.View(), previous: "", changed: true}
	e.mu.Unlock()

	e.log.WithFields(logger.LogFields{
		"ride_id":   rideID,
		"driver_id": driverID,
		"driver_km": geo.DistanceKm(driverStart, ride.PickupLocation().Point()),
	}).Info("simulation_started", "Ride simulation started")

	if replaced != nil {
		e.dispatch(*replaced)
	}
	e.dispatch(n)
}

// Tick advances the driver of rideID by one interval and applies any
// arrival transition detected at the new position. It returns the ride
// snapshot and driver position; ok is false when no session exists.
func (e *Engine) Tick(rideID string, now time.Time) (domain.RideView, geo.Point, bool) {
	sess := e.lockSession(rideID)
	if sess == nil {
		return domain.RideView{}, geo.Point{}, false
	}
	defer sess.dispatchMu.Unlock()

	if sess.state.Ride == nil || sess.state.Ride.Status().IsTerminal() {
		e.mu.Unlock()
		return domain.RideView{}, geo.Point{}, false
	}

	st := sess.state
	previous := st.Ride.Status()

	target, moving := movementTarget(st)
	if !moving {
		view, pos := st.Ride.View(), st.Driver
		e.mu.Unlock()
		return view, pos, true
	}

	from := st.Driver
	var next geo.Point
	if previous == domain.StatusArriving {
		next = st.Ride.PickupLocation().Point()
	} else {
		next = geo.StepToward(from, target, e.cfg.SpeedKmh, e.cfg.TickInterval.Seconds())
	}
	st = Reduce(st, DriverMoved{Position: next})

	switch previous {
	case domain.StatusRequested, domain.StatusAccepted:
		if geo.DistanceKm(next, st.Ride.PickupLocation().Point()) <= geo.ArrivalThresholdKm {
			arrived := Reduce(st, ArrivedAtPickup{At: now})
			if arrived.Ride.Status() == domain.StatusArriving {
				st = arrived
				e.scheduleBoarding(rideID, sess)
			}
		}
	case domain.StatusInProgress:
		if geo.DistanceKm(next, st.Ride.DestLocation().Point()) <= geo.ArrivalThresholdKm {
			st = Reduce(st, ArrivedAtDestination{At: now})
		}
	}

	sess.state = st
	n := notification{
		ride:     st.Ride.View(),
		previous: previous,
		changed:  st.Ride.Status() != previous,
		moved:    st.Driver != from,
		position: st.Driver,
		heading:  headingDegrees(from, st.Driver),
	}
	if st.Ride.Status().IsTerminal() {
		n.finished = e.finishLocked(rideID, sess)
		n.driverID = st.DriverID
	}
	e.mu.Unlock()

	e.dispatch(n)
	return n.ride, n.position, true
}

// Cancel cancels an active ride and stops all of its timers.
func (e *Engine) Cancel(rideID, reason string, now time.Time) (domain.RideView, error) {
	sess := e.lockSession(rideID)
	if sess == nil {
		return domain.RideView{}, domain.ErrRideNotFound
	}
	defer sess.dispatchMu.Unlock()

	if sess.state.Ride == nil {
		e.mu.Unlock()
		return domain.RideView{}, domain.ErrRideNotFound
	}

	previous := sess.state.Ride.Status()
	if previous.IsTerminal() {
		e.mu.Unlock()
		return domain.RideView{}, domain.ErrRideFinished
	}

	sess.state = Reduce(sess.state, RideCancelled{Reason: reason, At: now})
	n := notification{
		ride:     sess.state.Ride.View(),
		previous: previous,
		changed:  true,
		position: sess.state.Driver,
		driverID: sess.state.DriverID,
	}
	n.finished = e.finishLocked(rideID, sess)
	e.mu.Unlock()

	e.log.WithFields(logger.LogFields{
		"ride_id": rideID,
		"reason":  reason,
		"status":  previous.String(),
	}).Info("simulation_cancelled", "Ride simulation cancelled")

	e.dispatch(n)
	return n.ride, nil
}

// Snapshot returns the current ride state and driver position.
func (e *Engine) Snapshot(rideID string) (domain.RideView, geo.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[rideID]
	if !ok || sess.state.Ride == nil {
		return domain.RideView{}, geo.Point{}, false
	}
	return sess.state.Ride.View(), sess.state.Driver, true
}

// ActiveRideFor returns the ride id currently simulated for a passenger.
func (e *Engine) ActiveRideFor(passengerID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rideID, ok := e.passengers[passengerID]
	if !ok {
		return "", false
	}
	if _, live := e.sessions[rideID]; !live {
		return "", false
	}
	return rideID, true
}

// ActiveCount returns the number of running sessions.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Stop tears down every session without finishing the rides.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, sess := range e.sessions {
		sess.stopTimers()
		delete(e.sessions, id)
	}
	e.passengers = make(map[string]string)
}

func (e *Engine) accept(rideID string) {
	sess := e.lockSession(rideID)
	if sess == nil {
		return
	}
	defer sess.dispatchMu.Unlock()

	if sess.state.Ride == nil {
		e.mu.Unlock()
		return
	}
	sess.accept = nil

	previous := sess.state.Ride.Status()
	if previous != domain.StatusRequested {
		e.mu.Unlock()
		return
	}

	now := e.clock()
	eta := now.Add(e.travelTime(sess.state.Driver, sess.state.Ride.PickupLocation().Point()))
	sess.state = Reduce(sess.state, DriverAccepted{ETA: eta, At: now})

	n := notification{
		ride:     sess.state.Ride.View(),
		previous: previous,
		changed:  sess.state.Ride.Status() != previous,
	}
	e.mu.Unlock()

	e.dispatch(n)
}

// scheduleBoarding must be called with e.mu held.
func (e *Engine) scheduleBoarding(rideID string, sess *session) {
	if sess.boarding != nil {
		sess.boarding.Stop()
	}
	sess.boarding = e.sched.After(e.cfg.BoardingDelay, func() {
		e.boardingElapsed(rideID, sess)
	})
}

func (e *Engine) boardingElapsed(rideID string, sess *session) {
	sess.dispatchMu.Lock()
	defer sess.dispatchMu.Unlock()

	e.mu.Lock()
	// The session may have been replaced or finished while the timer was pending.
	if current, ok := e.sessions[rideID]; !ok || current != sess {
		e.mu.Unlock()
		return
	}
	sess.boarding = nil

	previous := sess.state.Ride.Status()
	if previous != domain.StatusArriving {
		e.mu.Unlock()
		return
	}

	sess.state = Reduce(sess.state, BoardingElapsed{At: e.clock()})
	n := notification{
		ride:     sess.state.Ride.View(),
		previous: previous,
		changed:  sess.state.Ride.Status() != previous,
	}
	e.mu.Unlock()

	e.dispatch(n)
}

// lockSession takes the dispatch lock of rideID's session and then e.mu.
// It returns nil with neither lock held when the ride has no session.
func (e *Engine) lockSession(rideID string) *session {
	e.mu.Lock()
	sess, ok := e.sessions[rideID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	sess.dispatchMu.Lock()
	e.mu.Lock()
	// The session may have finished or been replaced while we waited.
	if current, ok := e.sessions[rideID]; !ok || current != sess {
		e.mu.Unlock()
		sess.dispatchMu.Unlock()
		return nil
	}
	return sess
}

// lockPrevious returns the running session of passengerID other than
// rideID with its dispatch lock held. e.mu is held on return either way.
func (e *Engine) lockPrevious(passengerID, rideID string) (string, *session) {
	for {
		e.mu.Lock()
		_, prev := e.previousSession(passengerID, rideID)
		if prev == nil {
			return "", nil
		}
		e.mu.Unlock()

		prev.dispatchMu.Lock()
		e.mu.Lock()
		if id, current := e.previousSession(passengerID, rideID); current == prev {
			return id, prev
		}
		e.mu.Unlock()
		prev.dispatchMu.Unlock()
	}
}

// previousSession must be called with e.mu held.
func (e *Engine) previousSession(passengerID, rideID string) (string, *session) {
	prevID, ok := e.passengers[passengerID]
	if !ok || prevID == rideID {
		return "", nil
	}
	prev, ok := e.sessions[prevID]
	if !ok {
		return "", nil
	}
	return prevID, prev
}

// finishLocked must be called with e.mu held.
func (e *Engine) finishLocked(rideID string, sess *session) *domain.Ride {
	sess.stopTimers()
	delete(e.sessions, rideID)
	if e.passengers[sess.state.Ride.PassengerID()] == rideID {
		delete(e.passengers, sess.state.Ride.PassengerID())
	}
	return sess.state.Ride.Clone()
}

func (e *Engine) dispatch(n notification) {
	e.obsMu.RLock()
	observers := make([]Observer, 0, len(e.observers))
	for _, o := range e.observers {
		observers = append(observers, o)
	}
	e.obsMu.RUnlock()

	for _, o := range observers {
		if n.moved {
			o.OnDriverMoved(n.ride, n.position, n.heading)
		}
		if n.changed {
			o.OnRideChanged(n.ride, n.previous)
		}
	}

	if n.changed {
		e.log.WithFields(logger.LogFields{
			"ride_id":    n.ride.ID,
			"old_status": n.previous.String(),
			"new_status": n.ride.Status.String(),
		}).Info("ride_status_changed", "Ride status changed")
	}

	if n.finished != nil && e.sink != nil {
		e.sink.OnRideFinished(n.finished, n.driverID, n.position)
	}
}

func (e *Engine) travelTime(from, to geo.Point) time.Duration {
	if e.cfg.SpeedKmh <= 0 {
		return 0
	}
	hours := geo.DistanceKm(from, to) / e.cfg.SpeedKmh
	return time.Duration(hours * float64(time.Hour))
}

func headingDegrees(from, to geo.Point) float64 {
	if from == to {
		return 0
	}
	return geo.BearingRadians(from, to) * 180 / math.Pi
}
