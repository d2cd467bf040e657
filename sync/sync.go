// Package sync provides Mutex and Cond for code running as a thread
// scheduled by the cpu and thread packages. They are not interchangeable
// with the standard library's sync.Mutex and sync.Cond: locking one
// blocks by parking the calling thread in the scheduler rather than
// blocking a goroutine directly, so these only make sense when called
// from inside a thread body, with that thread's own *thread.T in hand.
package sync

import (
	"uthreads/internal/task"
	"uthreads/thread"
)

// Mutex is a mutual-exclusion lock. The zero value is an unlocked Mutex
// ready to use.
type Mutex struct {
	impl task.Mutex
}

// Lock acquires m on self's behalf, blocking self if another thread
// already holds it.
func (m *Mutex) Lock(self *thread.T) {
	m.impl.Lock(thread.Impl(self))
}

// Unlock releases m. It returns [task.ErrNotOwner] if self does not
// currently hold m; m's state is left unchanged in that case.
func (m *Mutex) Unlock(self *thread.T) error {
	return m.impl.Unlock(thread.Impl(self))
}

// Destroy asserts that no thread is parked waiting on m: a Mutex
// destroyed with waiters still queued panics rather than leaving them
// parked forever.
func (m *Mutex) Destroy(self *thread.T) {
	m.impl.Destroy(self.CPU())
}

// Cond is a condition variable used together with a Mutex: a thread
// calls Wait while holding the Mutex to release it and block until
// signaled, exactly as with the standard library's sync.Cond, except
// Wait takes the calling thread's own *thread.T in place of implicit
// goroutine identity.
type Cond struct {
	impl task.Cond
}

// Wait atomically releases m and blocks self until woken by Signal or
// Broadcast, then reacquires m before returning.
func (c *Cond) Wait(self *thread.T, m *Mutex) {
	c.impl.Wait(thread.Impl(self), &m.impl)
}

// Signal wakes one thread blocked in Wait on c, if any.
func (c *Cond) Signal(self *thread.T) {
	c.impl.Signal(thread.Impl(self))
}

// Broadcast wakes every thread blocked in Wait on c.
func (c *Cond) Broadcast(self *thread.T) {
	c.impl.Broadcast(thread.Impl(self))
}

// Destroy asserts that no thread is parked waiting on c.
func (c *Cond) Destroy(self *thread.T) {
	c.impl.Destroy(self.CPU())
}
