// Package task implements the scheduling core: the big guard lock, the
// ready/idle/suspended containers, thread lifecycle, and the mutex and
// condition-variable primitives that are built directly on top of it.
//
// Everything in this package that touches shared scheduler state runs
// with the big guard held: the exported operations acquire it themselves
// and release it again before returning, while RunNext and the internal
// helpers expect the caller to hold it already. Callers outside this package reach it only through the
// thread and sync packages.
package task

import "errors"

// ErrNullStart is returned by New when the supplied entry function is nil.
// The original scheduler this package is modeled on treats this as a
// thrown exception at construction time; Go code reports it instead.
var ErrNullStart = errors.New("task: thread entry function is nil")

// ErrNotOwner is returned by Mutex.Unlock when the calling thread does not
// hold the mutex.
var ErrNotOwner = errors.New("task: unlock of mutex not held by caller")

// invariant panics with msg. It marks conditions the scheduler's contract
// says should never occur if callers respect the guard protocol -- for
// instance destroying a mutex or condition variable that still has
// waiters queued on it. The original implementation leaves these cases as
// undefined behavior; this package chooses to assert instead.
func invariant(msg string) {
	panic("task: invariant violated: " + msg)
}
