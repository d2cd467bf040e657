// Package cpu is the bring-up sequence that turns a [vcpu.Substrate]
// into a running set of virtual CPUs: it binds the substrate to the
// scheduler core, installs the timer and IPI handlers, gives each CPU
// its idle thread and optional initial seed thread, and dispatches each
// CPU's first thread.
package cpu

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"uthreads/internal/task"
	"uthreads/thread"
	"uthreads/vcpu"
)

// Seed is the initial thread a CPU boots with, or the zero value for a
// CPU that starts with no user thread of its own and waits for work to
// arrive from elsewhere -- an idle CPU is still a fully functional CPU,
// just one with nothing to do until another CPU's thread spawns one or
// wakes it.
type Seed struct {
	Fn  thread.Func
	Arg any
}

// Option configures Boot.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger wires the scheduler's internal trace points -- thread
// creation and exit, dispatch onto a CPU, IPI send, and CPU
// suspend/wake -- to logger, at debug level. Tracing costs nothing
// beyond a nil check when no logger is supplied, matching the teacher's
// own compile-time-gated verbose logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Boot brings up every virtual CPU sub provides. It installs the timer
// and IPI handlers once, then for each CPU concurrently: creates that
// CPU's optional seed thread, creates its idle thread, and dispatches
// the head of the ready queue if anything is in it, otherwise an idle
// thread. The ready queue is consulted before the idle pool and is
// shared by every CPU, so a seed thread runs ahead of any idle thread,
// but not necessarily on the CPU whose bring-up created it.
//
// The original scheduler this package is modeled on binds the real
// timer vector only after each CPU's idle thread exists, to avoid a
// timer interrupt observing a CPU with no idle thread yet to fall back
// on. Boot installs the real handler up front instead. A CPU's
// interrupts start masked and are first unmasked by the guard release
// at the end of creating its seed or idle thread, before its first
// dispatch; a tick delivered then finds no current thread on that CPU
// and OnTimer ignores it.
//
// seeds may be shorter than sub.NumCPU(); CPUs beyond len(seeds), and
// CPUs whose Seed has a nil Fn, boot with no initial thread. Boot
// returns once every CPU has dispatched its first thread, with the
// first error any CPU's bring-up reported; since a nil Seed.Fn is
// treated as no seed, the current bring-up sequence reports none.
func Boot(sub vcpu.Substrate, seeds []Seed, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		task.Trace = func(format string, args ...any) {
			o.logger.Debug(fmt.Sprintf(format, args...))
		}
	}

	task.Configure(sub.NumCPU())
	task.Bind(sub)
	sub.SetTimerHandler(task.OnTimer)
	sub.SetIPIHandler(task.OnIPI)

	var g errgroup.Group
	for i := 0; i < sub.NumCPU(); i++ {
		cpuID := i
		var seed Seed
		if cpuID < len(seeds) {
			seed = seeds[cpuID]
		}
		g.Go(func() error {
			return bootCPU(cpuID, seed)
		})
	}
	return g.Wait()
}

func bootCPU(cpuID int, seed Seed) error {
	if seed.Fn != nil {
		if _, err := thread.Boot(cpuID, seed.Fn, seed.Arg); err != nil {
			return err
		}
	}
	task.NewIdle(cpuID)

	task.Lock(cpuID)
	task.RunNext(cpuID, nil)
	return nil
}
