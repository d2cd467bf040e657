package task

// Mutex is a mutual-exclusion lock scheduled through the same guard,
// ready queue and wakeup path as everything else: a thread blocked on a
// contended Mutex is parked exactly the way a thread blocked in Yield or
// Join is, and handing the lock to the next waiter on Unlock happens
// synchronously, as a direct ownership transfer, rather than waking every
// waiter to race for it. That direct hand-off is what makes Mutex FIFO
// fair: the waiter that has been queued longest is always the next
// owner, never a newcomer that happened to call Lock first after Unlock.
type Mutex struct {
	owner   *Thread
	waiters Queue
}

// lock and unlock assume the guard is already held; Cond.Wait calls them
// directly so that releasing the mutex, queuing onto the condition
// variable's wait list, and suspending all happen as one atomic step
// under a single guard acquisition, rather than as three separate
// operations with a window between them where a signal could be missed.
func (m *Mutex) lock(self *Thread) {
	if m.owner != nil {
		m.waiters.Push(self)
		RunNext(self.cpu, self)
		return
	}
	m.owner = self
}

func (m *Mutex) unlock(self *Thread) error {
	if m.owner != self {
		return ErrNotOwner
	}
	m.owner = nil
	if next := m.waiters.Pop(); next != nil {
		readyQueue.Push(next)
		m.owner = next
		wakeupOneCPU()
	}
	return nil
}

// Lock acquires m, blocking self if it is already held by another
// thread.
func (m *Mutex) Lock(self *Thread) {
	Lock(self.cpu)
	m.lock(self)
	Unlock(self.cpu)
}

// Unlock releases m, handing it directly to the longest-waiting blocked
// thread if there is one. It reports ErrNotOwner, without changing m's
// state, if self does not currently hold m.
func (m *Mutex) Unlock(self *Thread) error {
	Lock(self.cpu)
	err := m.unlock(self)
	Unlock(self.cpu)
	return err
}

// Destroy asserts that no thread is parked waiting on m. Calling it is
// optional -- a Mutex with no waiters needs no cleanup -- but a Mutex
// destroyed while threads are still queued on it is a bug in the
// caller, and Destroy is how that bug gets caught instead of leaving
// those threads parked forever.
func (m *Mutex) Destroy(cpu int) {
	Lock(cpu)
	empty := m.waiters.Empty()
	Unlock(cpu)
	if !empty {
		invariant("mutex destroyed with threads still waiting on it")
	}
}
