// Package vcpu models the hardware a thread scheduler normally sits on
// top of: a fixed number of virtual CPUs, each with interrupt masking, a
// periodic timer tick, and the ability to send another CPU an
// inter-processor interrupt (IPI).
//
// Go gives every goroutine its own real stack and lets the runtime
// schedule it preemptively, so there is no literal analogue of a
// hardware core sitting idle with interrupts masked. Substrate is the
// seam that lets the scheduler in internal/task stay written against
// exactly the small set of primitives the original design expects
// (disable/enable interrupts, suspend until woken, send an IPI) without
// caring whether those primitives are backed by real hardware, a
// simulation, or a test double.
package vcpu

// Substrate is the contract the scheduler core needs from whatever is
// standing in for the machine's CPUs. All methods are addressed by a
// virtual CPU index in [0, NumCPU()); Go has no notion of "the current
// core" a running goroutine can query implicitly; the caller always
// already knows which virtual CPU it is acting on behalf of and passes
// the index in explicitly.
type Substrate interface {
	// NumCPU returns the number of virtual CPUs this substrate provides.
	NumCPU() int

	// DisableInterrupts masks timer and IPI delivery on cpu. Calls never
	// nest in this design: the guard ensures a given CPU has at most one
	// disable outstanding before the matching enable.
	DisableInterrupts(cpu int)

	// EnableInterrupts unmasks timer and IPI delivery on cpu. A timer
	// tick or IPI that arrived while masked is delivered synchronously,
	// from within this call, before it returns: at most one handler runs
	// per call, a pending tick ahead of a pending IPI.
	EnableInterrupts(cpu int)

	// EnableAndSuspend unmasks interrupts on cpu and then blocks the
	// calling goroutine until a timer tick or IPI arrives for cpu,
	// atomically with respect to delivery: a tick or IPI sent concurrently
	// with the call is never lost. It returns after running the
	// appropriate registered handler for whichever arrived.
	//
	// Only the idle thread for cpu ever calls this; it is how a CPU with
	// no runnable work actually goes to sleep.
	EnableAndSuspend(cpu int)

	// PollTimer delivers a pending timer tick for cpu if interrupts are
	// currently enabled on cpu and a tick has arrived since the last
	// delivery, running the registered timer handler synchronously before
	// returning. If no tick is pending but an IPI is, it delivers the IPI
	// instead. It is a no-op otherwise.
	//
	// Real hardware delivers a timer interrupt by forcibly suspending
	// whatever instruction stream the core was executing. Go provides no
	// supported way to do that to an arbitrary running goroutine without
	// corrupting the runtime's own scheduler state, so this substrate
	// instead delivers timer preemption cooperatively: a pending tick is
	// delivered whenever the scheduler re-enables interrupts, which every
	// yield, lock and condition-variable operation does, and running
	// thread code calls PollTimer at explicit checkpoints in between. A thread that never calls back into the scheduler
	// is never preempted, same as a thread that spins with nothing else
	// ready is never preempted even with true asynchronous delivery.
	PollTimer(cpu int)

	// SendIPI delivers an inter-processor interrupt to cpu. If cpu is
	// currently blocked in EnableAndSuspend, it wakes and runs the
	// registered IPI handler. If cpu is not suspended the IPI is recorded
	// and delivered on the next EnableInterrupts, EnableAndSuspend or
	// PollTimer call that observes interrupts enabled on cpu.
	SendIPI(cpu int)

	// SetTimerHandler installs the function invoked when a timer tick is
	// delivered to a CPU, during EnableInterrupts, EnableAndSuspend or
	// PollTimer. It is
	// called with the index of the CPU the tick was delivered to.
	SetTimerHandler(handler func(cpu int))

	// SetIPIHandler installs the function invoked when an IPI is
	// delivered to a CPU. It is called with the index of the CPU the IPI
	// was delivered to.
	SetIPIHandler(handler func(cpu int))
}
