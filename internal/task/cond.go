package task

// Cond is a condition variable: a wait list of threads parked until
// someone else observes the condition they are waiting on has become
// true. It carries no state of its own describing that condition --
// same as the design it is modeled on, a Cond is purely the wait list
// and the mutex hand-off around it; the actual predicate lives in
// caller code, checked in a loop around Wait the same way it would be
// around sync.Cond.Wait.
type Cond struct {
	waiters Queue
}

// Wait atomically releases m and parks self on c's wait list, then
// reacquires m before returning. The release, the enqueue and the
// suspension happen under one guard acquisition so that a Signal or
// Broadcast arriving concurrently on another CPU can never land in the
// gap between unlocking m and actually joining the wait list.
func (c *Cond) Wait(self *Thread, m *Mutex) {
	Lock(self.cpu)
	if err := m.unlock(self); err != nil {
		Unlock(self.cpu)
		invariant("cond wait: " + err.Error())
	}
	c.waiters.Push(self)
	RunNext(self.cpu, self)
	m.lock(self)
	Unlock(self.cpu)
}

// Signal wakes one thread waiting on c, if any. The woken thread does
// not run immediately; it is moved to the ready queue and competes for
// its CPU like any other ready thread, re-acquiring m itself once
// dispatched.
func (c *Cond) Signal(self *Thread) {
	Lock(self.cpu)
	if next := c.waiters.Pop(); next != nil {
		readyQueue.Push(next)
		wakeupOneCPU()
	}
	Unlock(self.cpu)
}

// Broadcast wakes every thread currently waiting on c.
func (c *Cond) Broadcast(self *Thread) {
	Lock(self.cpu)
	for {
		next := c.waiters.Pop()
		if next == nil {
			break
		}
		readyQueue.Push(next)
		wakeupOneCPU()
	}
	Unlock(self.cpu)
}

// Destroy asserts that no thread is parked waiting on c, for the same
// reason Mutex.Destroy does.
func (c *Cond) Destroy(cpu int) {
	Lock(cpu)
	empty := c.waiters.Empty()
	Unlock(cpu)
	if !empty {
		invariant("condition variable destroyed with threads still waiting on it")
	}
}
