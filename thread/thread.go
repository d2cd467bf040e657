// Package thread is the public surface for creating and coordinating
// cooperatively scheduled user threads on top of the scheduler in
// internal/task. Its vocabulary mirrors the C-style thread API it is
// modeled on directly: spawn, join, yield. The one deliberate departure
// is Go-idiomatic rather than cosmetic: nothing here reaches for a
// thread-local "current thread." Instead, every thread body receives a
// *T capability handle for itself and passes it explicitly to anything
// that needs to know which thread is asking -- the same discipline Go
// code uses a context.Context for, applied to the one piece of ambient
// state a cooperative scheduler would otherwise need goroutine-local
// storage to recover.
package thread

import "uthreads/internal/task"

// Func is a thread's entry point.
type Func func(self *T, arg any)

// T is the capability handle passed to a running thread's own Func. It
// is only meaningful from inside that thread; do not store a *T and use
// it from a different thread later, or from outside any thread at all.
type T struct {
	impl *task.Thread
}

// Yield gives up the rest of self's turn on its CPU if another thread is
// ready to run, otherwise it returns immediately.
func (s *T) Yield() {
	task.Yield(s.impl)
}

// Checkpoint gives self a chance to be preempted by a pending timer tick.
// Long-running thread bodies that do not otherwise call back into this
// package (no Yield, no blocking on a Mutex or Cond) should call it
// periodically so a CPU with other ready work is not starved.
func (s *T) Checkpoint() {
	task.Checkpoint(s.impl)
}

// CPU returns the index of the virtual CPU self is currently running on.
func (s *T) CPU() int {
	return s.impl.CPU()
}

// Impl returns self's underlying scheduler thread. It exists so that
// other packages in this module (sync, for the Mutex and Cond built
// directly on the scheduler core) can drive scheduler operations on
// self's behalf without this package needing to know about them.
func Impl(self *T) *task.Thread {
	return self.impl
}

// Spawn creates a new thread running fn(arg) and enqueues it as ready to
// run, on whichever CPU becomes free first.
func (s *T) Spawn(fn Func, arg any) (Handle, error) {
	h, err := task.New(s.impl.CPU(), wrap(fn), arg)
	if err != nil {
		return Handle{}, err
	}
	return Handle{h: h}, nil
}

// Handle refers to a thread for its whole lifetime, independent of
// whether it is still running. Joining a Handle whose thread has already
// exited returns immediately.
type Handle struct {
	h *task.Handle
}

// Join blocks self until the thread h refers to exits.
func (h Handle) Join(self *T) {
	task.JoinThread(self.impl, h.h)
}

func wrap(fn Func) func(impl *task.Thread, arg any) {
	if fn == nil {
		return nil
	}
	return func(impl *task.Thread, arg any) {
		fn(&T{impl: impl}, arg)
	}
}

// Boot creates the initial thread a virtual CPU starts running, before
// any thread exists yet to call Spawn from. Only the cpu package's CPU
// bring-up sequence calls this.
func Boot(cpuID int, fn Func, arg any) (Handle, error) {
	h, err := task.New(cpuID, wrap(fn), arg)
	if err != nil {
		return Handle{}, err
	}
	return Handle{h: h}, nil
}
