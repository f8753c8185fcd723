package simulator

import (
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled task. Stop is safe to call more than once.
type Handle interface {
	Stop()
}

// Scheduler runs callbacks later or periodically.
type Scheduler interface {
	After(d time.Duration, fn func()) Handle
	Every(d time.Duration, fn func()) Handle
}

// TimeScheduler schedules on the wall clock.
type TimeScheduler struct{}

// NewTimeScheduler returns a scheduler backed by the runtime timers.
func NewTimeScheduler() *TimeScheduler {
	return &TimeScheduler{}
}

type timerHandle struct {
	timer *time.Timer
}

func (h timerHandle) Stop() {
	h.timer.Stop()
}

// After runs fn once after d.
func (s *TimeScheduler) After(d time.Duration, fn func()) Handle {
	return timerHandle{timer: time.AfterFunc(d, fn)}
}

type tickerHandle struct {
	done chan struct{}
	once sync.Once
}

func (h *tickerHandle) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Every runs fn every d until the handle is stopped.
func (s *TimeScheduler) Every(d time.Duration, fn func()) Handle {
	h := &tickerHandle{done: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				select {
				case <-h.done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return h
}

// ManualScheduler is a virtual clock driven by Advance. Tasks run on the
// goroutine calling Advance, in due-time order.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	s      *ManualScheduler
	due    time.Time
	every  time.Duration
	fn     func()
	seq    int
	active bool
}

func (t *manualTask) Stop() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.active = false
}

// NewManualScheduler creates a virtual clock starting at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the virtual time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// After schedules fn at now+d.
func (s *ManualScheduler) After(d time.Duration, fn func()) Handle {
	return s.add(d, 0, fn)
}

// Every schedules fn at now+d and every d after that.
func (s *ManualScheduler) Every(d time.Duration, fn func()) Handle {
	return s.add(d, d, fn)
}

func (s *ManualScheduler) add(d, every time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTask{s: s, due: s.now.Add(d), every: every, fn: fn, seq: s.seq, active: true}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every task that falls due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)

	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		s.now = t.due
		if t.every > 0 {
			t.due = t.due.Add(t.every)
		} else {
			t.active = false
		}

		s.mu.Unlock()
		t.fn()
		s.mu.Lock()
	}

	s.now = target
	s.mu.Unlock()
}

// Pending returns how many tasks are still scheduled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compact()
	return len(s.tasks)
}

// nextDue must be called with s.mu held.
func (s *ManualScheduler) nextDue(limit time.Time) *manualTask {
	s.compact()
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].due.Equal(s.tasks[j].due) {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].due.Before(s.tasks[j].due)
	})
	if len(s.tasks) == 0 || s.tasks[0].due.After(limit) {
		return nil
	}
	return s.tasks[0]
}

func (s *ManualScheduler) compact() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if t.active {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
}
