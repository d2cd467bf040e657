package task

import (
	"sync/atomic"

	"uthreads/vcpu"
)

// guardFlag is the single process-wide critical section every scheduler
// operation runs inside of: ready/idle/suspended/lastFree, every thread's
// lifecycle state, and every mutex/condition-variable's wait queue are
// only ever touched while this flag is held. It is a spinlock rather
// than a channel or sync.Mutex because the caller must also hold
// interrupts disabled on its own CPU for the duration, and a goroutine
// spinning briefly with interrupts masked is exactly the situation this
// flag exists to arbitrate.
var guardFlag atomic.Bool

// substrate is bound once, by cpu.Boot, before any CPU starts running
// threads. It is read far more often than written, and only ever written
// during process setup, so a plain variable guarded by the same
// discipline as everything else in this package is enough.
var substrate vcpu.Substrate

// Bind attaches the virtual CPU substrate the guard and scheduler use for
// interrupt masking and IPI delivery. Callers outside this package reach
// it through cpu.Boot; calling it more than once is a programming error.
func Bind(s vcpu.Substrate) {
	substrate = s
}

// Lock acquires the guard on behalf of cpu: interrupts are masked on cpu
// first, then the flag itself is spun on. Every exported operation in
// this package that mutates scheduler state, other than RunNext (which
// must be called with the guard already held), begins by calling Lock
// and ends by calling Unlock on every return path, panic included.
func Lock(cpu int) {
	substrate.DisableInterrupts(cpu)
	for !guardFlag.CompareAndSwap(false, true) {
	}
}

// Unlock releases the guard acquired by the matching Lock(cpu) and
// re-enables interrupts on cpu.
func Unlock(cpu int) {
	guardFlag.Store(false)
	substrate.EnableInterrupts(cpu)
}
