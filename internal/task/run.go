package task

// readyQueue, idleQueue and suspendedCPUs are the three containers the
// whole scheduler is built from: threads waiting for a CPU, idle threads
// waiting for a CPU to have nothing better to do, and CPUs that have
// gone to sleep because neither queue had anything for them.
//
// All three are process-wide singletons rather than fields threaded
// through every call. That mirrors the scheduler this package is modeled
// on directly: there is exactly one guard, one ready queue, one idle
// pool and one suspended set for the whole process, never one per some
// smaller scope, and the guard is what makes sharing them safe.
var (
	readyQueue    Queue
	idleQueue     Queue
	suspendedCPUs cpuQueue
	cpuCurrent    []*Thread
	lastFree      *Thread
)

// cpuQueue is a small FIFO of virtual CPU indices, standing in for the
// original's queue of suspended CPU handles -- CPUs, not threads, so it
// does not reuse Queue's *Thread linkage.
type cpuQueue struct {
	items []int
}

func (q *cpuQueue) push(cpu int) {
	q.items = append(q.items, cpu)
}

func (q *cpuQueue) pop() (int, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	cpu := q.items[0]
	q.items = q.items[1:]
	return cpu, true
}

func (q *cpuQueue) empty() bool {
	return len(q.items) == 0
}

// Configure sizes the per-CPU current-thread table. It must be called
// once, before any CPU boots, by cpu.Boot's setup sequence.
func Configure(numCPU int) {
	cpuCurrent = make([]*Thread, numCPU)
}

// reclaimLastFree drops the reference to whatever thread most recently
// exited. Go is garbage collected, so there is nothing to explicitly
// free; the point of doing this at all -- rather than simply letting
// exit's own lastFree assignment be silently overwritten next time -- is
// that it happens at a well-defined moment (the next time any thread
// resumes from RunNext or starts running for the first time, after this
// one exits) the same way the original
// frees the memory at a well-defined moment rather than leaving it for a
// garbage collector it does not have.
func reclaimLastFree() {
	if lastFree != nil {
		lastFree.reclaimed.Store(true)
		lastFree = nil
	}
}

// pickNext chooses the next thread to run on a CPU: the head of ready if
// anything is waiting there, otherwise the head of idle. Idle threads are
// not pinned to the CPU that created them -- any CPU may end up running
// any idle thread when it has nothing of its own to do, since every idle
// thread's only behavior is to immediately offer itself back to the pool
// and look for real work again (see idleLoop). idleQueue is only ever
// empty here if every CPU that exists is already running something,
// which cannot happen: each CPU owns exactly one idle thread and that
// thread is always in exactly one of {idleQueue, running, being
// dispatched right now}.
func pickNext() *Thread {
	if t := readyQueue.Pop(); t != nil {
		return t
	}
	t := idleQueue.Pop()
	if t == nil {
		invariant("idle queue empty while a CPU needs a thread to run")
	}
	return t
}

// RunNext dispatches the next runnable thread onto cpu. It must be
// called with the guard held.
//
// self is the thread giving up cpu, or nil if the calling goroutine is
// not a thread that will ever resume past this call: the CPU boot
// sequence dispatching its very first thread, or a thread's own exit
// path handing off after it has already finished. When self is non-nil,
// RunNext blocks the calling goroutine until self is redispatched -- by
// this call returning, cpu has moved on to a different thread and self
// is no longer current anywhere until some future RunNext picks it again.
//
// Callers that pass a non-nil self must re-read self.cpu after RunNext
// returns before using it for anything CPU-addressed (including the
// matching Unlock): self may have been redispatched onto a different
// virtual CPU than the one it left.
func RunNext(cpu int, self *Thread) {
	next := pickNext()
	next.cpu = cpu
	cpuCurrent[cpu] = next
	trace("cpu %d dispatching thread %d (idle=%t)", cpu, next.id, next.IsIdle())

	switch {
	case self == nil:
		// Boot sequence or a thread's final dispatch on its way out: the
		// calling goroutine does not go on running as a thread after
		// this hand-off (the boot sequence simply returns, an exiting
		// thread's goroutine ends), so reclamation is left
		// to whichever code path is about to run next (the thread-start
		// wrapper, for a thread running for the first time).
		next.ctx.wake()
	case next == self:
		// Nothing else is runnable; self keeps the CPU. Equivalent to
		// swapcontext with identical source and destination: no handoff
		// actually occurs, but the reclaim still runs, same as it would
		// after a real swap.
		reclaimLastFree()
	default:
		next.ctx.wake()
		self.ctx.park()
		reclaimLastFree()
	}
}

// wakeupOneCPU sends an IPI to one suspended CPU if there is now ready
// work for it to pick up. It must be called with the guard held, right
// after pushing a thread onto readyQueue.
func wakeupOneCPU() {
	if readyQueue.Empty() {
		return
	}
	cpu, ok := suspendedCPUs.pop()
	if !ok {
		return
	}
	trace("sending ipi to cpu %d", cpu)
	substrate.SendIPI(cpu)
}

// Checkpoint gives self a chance to be preempted by a timer tick that
// arrived while it was running ordinary, non-blocking code and so never
// passed through the guard on its own. It costs a few uncontended atomic
// operations when nothing is pending. Every call to Unlock already delivers a
// pending tick as a side effect of re-enabling interrupts, so Yield,
// JoinThread and the Mutex and Cond operations are all themselves
// checkpoints already; Checkpoint exists for thread bodies that run for
// a while without calling any of them.
func Checkpoint(self *Thread) {
	substrate.PollTimer(self.cpu)
}

// Yield gives up the remainder of self's turn on its CPU if there is
// another ready thread to run instead; otherwise it is a no-op. self.cpu
// is re-read for the caller's matching Unlock because self may resume on
// a different CPU than it yielded from.
func Yield(self *Thread) {
	Lock(self.cpu)
	if !readyQueue.Empty() {
		readyQueue.Push(self)
		RunNext(self.cpu, self)
	}
	Unlock(self.cpu)
}

// JoinThread blocks self until the thread referenced by h has exited. If
// h no longer refers to a running thread, it returns immediately.
func JoinThread(self *Thread, h *Handle) {
	Lock(self.cpu)
	if h.Thread != nil {
		h.Thread.joinQ.Push(self)
		RunNext(self.cpu, self)
	}
	Unlock(self.cpu)
}

// OnTimer is installed by cpu.Boot as the substrate's timer handler. It
// implements preemption: if another thread is ready to run, the CPU's
// current thread is pushed to the back of ready and redispatched, same
// as a voluntary Yield forced from the outside. A tick that arrives
// before cpu has dispatched its first thread finds no current thread
// and is ignored.
func OnTimer(cpu int) {
	Lock(cpu)
	cur := cpuCurrent[cpu]
	if cur != nil && !readyQueue.Empty() {
		readyQueue.Push(cur)
		RunNext(cpu, cur)
		Unlock(cur.cpu)
		return
	}
	Unlock(cpu)
}

// OnIPI is installed by cpu.Boot as the substrate's IPI handler. It
// deliberately does nothing: an IPI's only job is to interrupt
// EnableAndSuspend so the idle loop re-checks readyQueue for itself;
// there is no additional bookkeeping to do on delivery.
func OnIPI(cpu int) {}

// idleLoop is the body every idle thread runs. It offers itself back to
// the idle pool, asks to be dispatched again (which may immediately hand
// control to a thread that is actually ready to do something else), and
// once it is this CPU's turn with nothing else runnable, suspends the
// CPU until an interrupt gives it a reason to look again.
func idleLoop(self *Thread, _ any) {
	Lock(self.cpu)
	for {
		idleQueue.Push(self)
		RunNext(self.cpu, self)
		cpu := self.cpu
		suspendedCPUs.push(cpu)
		trace("cpu %d suspending", cpu)
		Unlock(cpu)
		substrate.EnableAndSuspend(cpu)
		trace("cpu %d resumed", cpu)
		Lock(self.cpu)
	}
}
