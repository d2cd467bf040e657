// Package scenarios holds no production code; it exists only to house
// the end-to-end tests below, one per concrete scenario in spec.md §8
// except scenario 6, which is tested in internal/task.
package scenarios_test

import (
	"sync/atomic"
	"testing"
	"time"

	"uthreads/cpu"
	"uthreads/sync"
	"uthreads/thread"
	"uthreads/vcpu"
)

// TestSingleCPUYieldRound is spec.md §8 scenario 1: one CPU, three
// threads each incrementing a mutex-guarded counter 100 times with a
// Yield between increments. The final count must be exactly 300.
func TestSingleCPUYieldRound(t *testing.T) {
	sub := vcpu.NewSimulated(1, vcpu.WithTickInterval(time.Millisecond))
	defer sub.Close()

	var mu sync.Mutex
	var counter int
	done := make(chan struct{})

	worker := func(self *thread.T, _ any) {
		for i := 0; i < 100; i++ {
			mu.Lock(self)
			counter++
			mu.Unlock(self)
			self.Yield()
		}
	}

	seed := func(self *thread.T, _ any) {
		var handles [3]thread.Handle
		for i := range handles {
			h, err := self.Spawn(worker, nil)
			if err != nil {
				t.Errorf("spawn worker %d: %v", i, err)
			}
			handles[i] = h
		}
		for _, h := range handles {
			h.Join(self)
		}
		close(done)
	}

	if err := cpu.Boot(sub, []cpu.Seed{{Fn: seed}}); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scenario did not complete")
	}
	if counter != 300 {
		t.Errorf("counter = %d, want 300", counter)
	}
}

// TestProducerConsumerCV is spec.md §8 scenario 2: a size-1 bounded
// buffer shared by a producer and a consumer through one mutex and two
// condition variables. The consumer must observe 1..10 in order.
func TestProducerConsumerCV(t *testing.T) {
	sub := vcpu.NewSimulated(1, vcpu.WithTickInterval(time.Millisecond))
	defer sub.Close()

	var mu sync.Mutex
	var notFull, notEmpty sync.Cond
	var buf []int
	var output []int
	const capacity = 1
	done := make(chan struct{})

	producer := func(self *thread.T, _ any) {
		for i := 1; i <= 10; i++ {
			mu.Lock(self)
			for len(buf) == capacity {
				notFull.Wait(self, &mu)
			}
			buf = append(buf, i)
			notEmpty.Signal(self)
			mu.Unlock(self)
		}
	}
	consumer := func(self *thread.T, _ any) {
		for i := 0; i < 10; i++ {
			mu.Lock(self)
			for len(buf) == 0 {
				notEmpty.Wait(self, &mu)
			}
			v := buf[0]
			buf = buf[1:]
			output = append(output, v)
			notFull.Signal(self)
			mu.Unlock(self)
		}
	}

	seed := func(self *thread.T, _ any) {
		hp, err := self.Spawn(producer, nil)
		if err != nil {
			t.Errorf("spawn producer: %v", err)
		}
		hc, err := self.Spawn(consumer, nil)
		if err != nil {
			t.Errorf("spawn consumer: %v", err)
		}
		hp.Join(self)
		hc.Join(self)
		close(done)
	}

	if err := cpu.Boot(sub, []cpu.Seed{{Fn: seed}}); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scenario did not complete")
	}
	if len(output) != 10 {
		t.Fatalf("output = %v, want 10 values", output)
	}
	for i, v := range output {
		if v != i+1 {
			t.Errorf("output[%d] = %d, want %d", i, v, i+1)
		}
	}
}

// TestMultiCPUWakeup is spec.md §8 scenario 3: four virtual CPUs, all
// initially idle. A thread created on CPU 0 spawns 16 children and
// joins every one; all 16 must run, and every CPU must have dispatched
// at least one user thread by the time they finish.
func TestMultiCPUWakeup(t *testing.T) {
	const numCPU = 4
	const numChildren = 16

	sub := vcpu.NewSimulated(numCPU, vcpu.WithTickInterval(time.Millisecond))
	defer sub.Close()

	var mu sync.Mutex
	var ran [numChildren]bool
	seenCPU := map[int]bool{}
	done := make(chan struct{})

	child := func(self *thread.T, arg any) {
		idx := arg.(int)
		mu.Lock(self)
		ran[idx] = true
		seenCPU[self.CPU()] = true
		mu.Unlock(self)
	}

	seed := func(self *thread.T, _ any) {
		mu.Lock(self)
		seenCPU[self.CPU()] = true
		mu.Unlock(self)

		var handles [numChildren]thread.Handle
		for i := 0; i < numChildren; i++ {
			h, err := self.Spawn(child, i)
			if err != nil {
				t.Errorf("spawn child %d: %v", i, err)
			}
			handles[i] = h
		}
		for _, h := range handles {
			h.Join(self)
		}
		close(done)
	}

	if err := cpu.Boot(sub, []cpu.Seed{{Fn: seed}}); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scenario did not complete")
	}
	for i, v := range ran {
		if !v {
			t.Errorf("child %d never ran", i)
		}
	}
	if len(seenCPU) != numCPU {
		t.Errorf("observed dispatch on %d distinct CPUs (%v), want %d", len(seenCPU), seenCPU, numCPU)
	}
}

// countingSubstrate wraps a *vcpu.Simulated to count outgoing IPIs,
// purely so TestIPILossAvoidance can assert on how many were actually
// sent without internal/task needing to expose that as part of its own
// public surface.
type countingSubstrate struct {
	*vcpu.Simulated
	ipis atomic.Int64
}

func (c *countingSubstrate) SendIPI(cpu int) {
	c.ipis.Add(1)
	c.Simulated.SendIPI(cpu)
}

// TestIPILossAvoidance is spec.md §8 scenario 4: three CPUs idle, two of
// them suspended, when CPU 0 creates a thread. Creating it must send
// exactly one IPI (waking exactly one CPU); the other stays suspended,
// and the new thread still runs to completion. The count is taken right
// after the thread is created: the later wakeup of the joining seed
// thread goes through the same IPI path and is not part of it.
func TestIPILossAvoidance(t *testing.T) {
	base := vcpu.NewSimulated(3, vcpu.WithTickInterval(50*time.Millisecond))
	defer base.Close()
	sub := &countingSubstrate{Simulated: base}

	var mu sync.Mutex
	var ranOnCPU []int
	var ipisAtSpawn int64
	done := make(chan struct{})

	seed := func(self *thread.T, _ any) {
		// Give CPU 1 and CPU 2 time to reach EnableAndSuspend before
		// the thread that should wake exactly one of them is created.
		time.Sleep(20 * time.Millisecond)

		h, err := self.Spawn(func(self *thread.T, _ any) {
			mu.Lock(self)
			ranOnCPU = append(ranOnCPU, self.CPU())
			mu.Unlock(self)
		}, nil)
		if err != nil {
			t.Errorf("spawn: %v", err)
		}
		ipisAtSpawn = sub.ipis.Load()
		h.Join(self)
		close(done)
	}

	if err := cpu.Boot(sub, []cpu.Seed{{Fn: seed}}); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("child never ran")
	}
	if ipisAtSpawn != 1 {
		t.Errorf("IPIs sent by creating the thread = %d, want exactly 1", ipisAtSpawn)
	}
	if len(ranOnCPU) != 1 {
		t.Fatalf("child ran %d times, want 1", len(ranOnCPU))
	}
	if ranOnCPU[0] == 0 {
		t.Errorf("child ran on CPU %d (the creator), want a CPU woken by IPI", ranOnCPU[0])
	}
}

// TestMutexFIFO is spec.md §8 scenario 5: thread A holds a mutex while
// B, C and D call Lock in that order; once A releases it, the
// acquisition order must be B, C, D.
func TestMutexFIFO(t *testing.T) {
	sub := vcpu.NewSimulated(1, vcpu.WithTickInterval(time.Millisecond))
	defer sub.Close()

	var mu sync.Mutex
	var released atomic.Bool
	var order []string

	holder := func(self *thread.T, _ any) {
		mu.Lock(self)
		for !released.Load() {
			self.Yield()
		}
		mu.Unlock(self)
	}
	waiter := func(name string) thread.Func {
		return func(self *thread.T, _ any) {
			mu.Lock(self)
			order = append(order, name)
			mu.Unlock(self)
		}
	}

	done := make(chan struct{})
	seed := func(self *thread.T, _ any) {
		hA, err := self.Spawn(holder, nil)
		if err != nil {
			t.Errorf("spawn A: %v", err)
		}
		hB, err := self.Spawn(waiter("B"), nil)
		if err != nil {
			t.Errorf("spawn B: %v", err)
		}
		hC, err := self.Spawn(waiter("C"), nil)
		if err != nil {
			t.Errorf("spawn C: %v", err)
		}
		hD, err := self.Spawn(waiter("D"), nil)
		if err != nil {
			t.Errorf("spawn D: %v", err)
		}

		// Round-robin cooperative dispatch: enough turns for A to take
		// the lock once and for B, C and D to each make their single
		// contending Lock call, in their fixed creation order, before
		// the lock is released.
		for i := 0; i < 20; i++ {
			self.Yield()
		}
		released.Store(true)

		hA.Join(self)
		hB.Join(self)
		hC.Join(self)
		hD.Join(self)
		close(done)
	}

	if err := cpu.Boot(sub, []cpu.Seed{{Fn: seed}}); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scenario did not complete")
	}
	want := []string{"B", "C", "D"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}
