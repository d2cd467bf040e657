package vcpu

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Option configures a Simulated substrate.
type Option func(*Simulated)

// WithTickInterval sets the period of each virtual CPU's timer. The
// default is 5ms, fast enough that scenario tests relying on preemption
// do not need to wait long, slow enough that it does not dominate test
// runtime with wakeups nobody asked for.
func WithTickInterval(d time.Duration) Option {
	return func(s *Simulated) { s.tick = d }
}

// WithLogger attaches a structured logger that records substrate-level
// events as they happen: ticks delivered, IPIs sent and received, and a
// CPU entering or leaving suspension. It is nil by default, matching the
// same "tracing costs nothing when nobody asked for it" property
// internal/task.Trace carries at the scheduler layer (see cpu.WithLogger
// for that hook) -- this one covers the layer below, the substrate
// itself, which the scheduler has no visibility into.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulated) { s.logger = logger }
}

// Simulated is the default Substrate: each virtual CPU is backed by a
// ticker goroutine driving its timer, coalescing pending bits for ticks
// and IPIs, a one-slot wake channel, and an atomic interrupt-enabled
// flag. No real OS thread is pinned to a virtual CPU; the substrate only
// ever models the two interrupt sources the scheduler core cares about.
type Simulated struct {
	tick   time.Duration
	logger *slog.Logger

	cpus     []*cpuState
	timerFn  func(cpu int)
	ipiFn    func(cpu int)
	handlers sync.Mutex // guards timerFn/ipiFn swaps separately from cpu state

	closeOnce sync.Once
	stop      chan struct{}
}

type cpuState struct {
	enabled atomic.Bool

	// timerPending and ipiPending record ticks/IPIs that arrived while
	// masked, or while running, waiting to be picked up at the next
	// checkpoint. Each is a coalescing single bit: a burst of ticks while
	// masked is delivered as a single tick on unmask, matching how a real
	// PIC collapses a backlog into "there is at least one interrupt
	// outstanding" rather than queuing every edge.
	timerPending atomic.Bool
	ipiPending   atomic.Bool

	// wake is used only by EnableAndSuspend: a send here means "something
	// arrived, stop sleeping and go look at timerPending/ipiPending."
	wake chan struct{}
}

// NewSimulated returns a Substrate with n virtual CPUs.
func NewSimulated(n int, opts ...Option) *Simulated {
	if n <= 0 {
		n = 1
	}
	s := &Simulated{
		tick: 5 * time.Millisecond,
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cpus = make([]*cpuState, n)
	for i := range s.cpus {
		s.cpus[i] = &cpuState{wake: make(chan struct{}, 1)}
	}
	for i := range s.cpus {
		go s.runTicker(i)
	}
	return s
}

// Close stops every CPU's ticker goroutine. It is not part of Substrate;
// tests that create a Simulated call it during cleanup.
func (s *Simulated) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
}

func (s *Simulated) runTicker(cpu int) {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.log("tick", "cpu", cpu)
			s.markPending(cpu, &s.cpus[cpu].timerPending)
		}
	}
}

func (s *Simulated) markPending(cpu int, flag *atomic.Bool) {
	flag.Store(true)
	c := s.cpus[cpu]
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// log is a no-op when no logger was configured, the same zero-cost-when-
// disabled property internal/task.Trace has at the scheduler layer.
func (s *Simulated) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Simulated) NumCPU() int { return len(s.cpus) }

func (s *Simulated) DisableInterrupts(cpu int) {
	s.cpus[cpu].enabled.Store(false)
}

func (s *Simulated) EnableInterrupts(cpu int) {
	c := s.cpus[cpu]
	c.enabled.Store(true)
	s.deliverPending(cpu)
}

func (s *Simulated) PollTimer(cpu int) {
	c := s.cpus[cpu]
	if !c.enabled.Load() {
		return
	}
	s.deliverPending(cpu)
}

// deliverPending runs at most one handler invocation: a tick takes
// priority over a pending IPI only by convention, matching the order the
// original vector table happens to probe them in.
func (s *Simulated) deliverPending(cpu int) {
	c := s.cpus[cpu]
	if c.timerPending.CompareAndSwap(true, false) {
		s.invokeTimer(cpu)
		return
	}
	if c.ipiPending.CompareAndSwap(true, false) {
		s.invokeIPI(cpu)
	}
}

func (s *Simulated) EnableAndSuspend(cpu int) {
	c := s.cpus[cpu]
	c.enabled.Store(true)
	s.log("cpu suspended", "cpu", cpu)
	for {
		if c.timerPending.Load() || c.ipiPending.Load() {
			s.deliverPending(cpu)
			s.log("cpu woken", "cpu", cpu)
			return
		}
		select {
		case <-c.wake:
			continue
		case <-s.stop:
			return
		}
	}
}

func (s *Simulated) SendIPI(cpu int) {
	s.log("ipi sent", "cpu", cpu)
	s.markPending(cpu, &s.cpus[cpu].ipiPending)
}

func (s *Simulated) SetTimerHandler(handler func(cpu int)) {
	s.handlers.Lock()
	defer s.handlers.Unlock()
	s.timerFn = handler
}

func (s *Simulated) SetIPIHandler(handler func(cpu int)) {
	s.handlers.Lock()
	defer s.handlers.Unlock()
	s.ipiFn = handler
}

func (s *Simulated) invokeTimer(cpu int) {
	s.handlers.Lock()
	fn := s.timerFn
	s.handlers.Unlock()
	if fn != nil {
		fn(cpu)
	}
}

func (s *Simulated) invokeIPI(cpu int) {
	s.handlers.Lock()
	fn := s.ipiFn
	s.handlers.Unlock()
	if fn != nil {
		fn(cpu)
	}
}
