// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build manytoone

package thread

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mayank-02/multithreading-library/pkg/ctxswitch"
	"github.com/mayank-02/multithreading-library/pkg/logger"
	"github.com/mayank-02/multithreading-library/pkg/stackalloc"
	"github.com/mayank-02/multithreading-library/pkg/tasktable"
)

var m1Log = logger.ForSubsystem("thread.manytoone")

// preemptionTick is the virtual-time interval between scheduler
// invocations, per spec.md 4.4a's "~10 ms" default.
const preemptionTick = 10 * time.Millisecond

// m1MinStackSize is the M:1 backend's stack-size floor (spec.md 4.3): a
// size below this is silently raised, never rejected.
const m1MinStackSize = 64 << 10

func minStackSize() uintptr { return m1MinStackSize }

// MaxThreads caps the number of handles the M:1 runtime allocates over
// the process lifetime, spec.md 3's "M:1 capped at a configurable
// maximum, default 128". Handles are never reused and the bootstrap
// holds handle 0, so at most MaxThreads-1 calls to Create succeed. Every
// Create reads it.
var MaxThreads = 128

// m1State mirrors spec.md 3's Running/Ready/Waiting/Finished lattice.
// There is never more than one OS thread executing this package's code
// at a time in the M:1 build (all mutation happens either on the
// currently-Running logical thread or inside the signal-masked scheduler
// handler), so none of these fields need atomics.
type m1State int

const (
	stateRunning m1State = iota
	stateReady
	stateWaiting
	stateFinished
)

// detachState mirrors the Joinable/Detached/Joined lattice of spec.md 3.
// Named identically to the 1:1 backend's type of the same purpose; the
// two files are mutually exclusive under the manytoone build tag so
// there is no redeclaration.
type detachState int

const (
	stateJoinable detachState = iota
	stateDetached
	stateJoined
)

const noHandle int32 = -1

// m1TCB is one M:1 thread control block (spec.md 3). joinedOn names the
// thread that has committed a join against this TCB; waitOn names the
// TCB this one is itself Waiting on, when state is stateWaiting. The two
// are deliberately separate fields: the scheduler's scan (spec.md 4.4a
// step 4) needs to resolve "what is this Waiting thread waiting for",
// which is waitOn, while Join and Exit need "who, if anyone, is waiting
// for me", which is joinedOn.
type m1TCB struct {
	handle int32
	name   string
	state  m1State

	entry  func(arg any) any
	arg    any
	result any

	stack    *stackalloc.Stack
	borrowed bool
	ctx      *ctxswitch.Context

	joinable bool
	detach   detachState
	joinedOn int32
	waitOn   int32

	pending [65]bool // index by signal number, 1..64
}

func (t *m1TCB) Handle() int32 { return t.handle }

// manyToOneRuntime is the single process-wide scheduler instance: the
// "single opaque runtime state value owned at module scope" spec.md 9
// calls for. It is never accessed from more than one OS thread, so
// fields are plain, not atomic.
type manyToOneRuntime struct {
	table   *tasktable.Table[*m1TCB]
	current *m1TCB
	nextID  int32
}

func newRuntime() runtime {
	boot := &m1TCB{
		handle:   0,
		name:     "Bootstrap",
		state:    stateRunning,
		joinable: true,
		joinedOn: noHandle,
		waitOn:   noHandle,
		ctx:      ctxswitch.Empty(),
	}
	r := &manyToOneRuntime{
		table:   tasktable.New[*m1TCB](),
		current: boot,
		nextID:  1,
	}
	if err := ctxswitch.StartPreemptionTimer(preemptionTick, r.onTick); err != nil {
		m1Log.Errorf("failed to arm preemption timer: %v", err)
	}
	return r
}

// onTick is the SIGVTALRM handler's Go-side body (spec.md 4.4a: "called
// from the timer handler or from Yield").
func (r *manyToOneRuntime) onTick() {
	r.schedule()
}

// schedule implements the context switch protocol of spec.md 4.4a
// verbatim, steps 1-7.
func (r *manyToOneRuntime) schedule() {
	// Step 1: block the preemption signal.
	ctxswitch.BlockPreemption()

	prev := r.current

	// Step 3: demote the still-Running current thread and return it to
	// the table. (Step 2's "save register state" and the "if this save
	// returns via a subsequent restore" early-return happen inside the
	// single ctxswitch.Switch call at the bottom of this function: the
	// call is the save, and a later Switch targeting prev.ctx is the
	// matching restore that resumes this goroutine right here.)
	if prev.state == stateRunning {
		prev.state = stateReady
	}
	r.table.Append(prev)

	next := r.selectNext()
	if next == nil {
		// Step 5: nothing left to run.
		r.terminateProcess()
		return
	}

	// Step 6: dispatch next and drain its pending signals.
	next.state = stateRunning
	r.current = next
	r.drainPending(next)

	// Step 7: unblock the preemption signal, then restore next's
	// register state. Switch does not return to this call site; it
	// returns, instead, the next time some other schedule() call
	// targets prev.ctx.
	ctxswitch.UnblockPreemption()
	ctxswitch.Switch(prev.ctx, next.ctx)
}

// selectNext implements spec.md 4.4a step 4: one bounded scan of the
// table, Ready wins immediately, Waiting is promoted if its target has
// finished, Finished and (impossibly) Running are re-queued or abort the
// scan.
func (r *manyToOneRuntime) selectNext() *m1TCB {
	n := r.table.Count()
	for i := 0; i < n; i++ {
		t, ok := r.table.RemoveFront()
		if !ok {
			return nil
		}
		switch t.state {
		case stateReady:
			return t
		case stateWaiting:
			if target, found := r.table.Lookup(t.waitOn); found && target.state == stateFinished {
				t.state = stateReady
				return t
			}
			r.table.Append(t)
		case stateFinished:
			r.table.Append(t)
		case stateRunning:
			m1Log.Errorf("scheduler scan found a second Running TCB (handle=%d)", t.handle)
			return nil
		}
	}
	return nil
}

// drainPending raises and clears every signal queued for t, in
// ascending signal-number order, per spec.md 4.4a step 6.
func (r *manyToOneRuntime) drainPending(t *m1TCB) {
	for sig := 1; sig < len(t.pending); sig++ {
		if !t.pending[sig] {
			continue
		}
		t.pending[sig] = false
		if err := raiseSignal(sig); err != nil {
			m1Log.Warnf("raising pending signal %d for handle=%d failed: %v", sig, t.handle, err)
		}
	}
}

func raiseSignal(sig int) error {
	if err := unix.Kill(os.Getpid(), unix.Signal(sig)); err != nil {
		return &PlatformError{Op: "raise", Err: err}
	}
	return nil
}

// terminateProcess frees every runtime-owned stack and ends the process,
// the M:1 at-exit cleanup path (spec.md 4.2, 4.4a step 5).
func (r *manyToOneRuntime) terminateProcess() {
	for {
		t, ok := r.table.RemoveFront()
		if !ok {
			break
		}
		if t.stack != nil && !t.borrowed {
			if err := t.stack.Free(); err != nil {
				m1Log.Warnf("freeing stack for handle=%d failed: %v", t.handle, err)
			}
		}
		t.ctx.Free()
	}
	os.Exit(0)
}

func (r *manyToOneRuntime) Create(attr *Attr, entry func(arg any) any, arg any) (Handle, error) {
	ctxswitch.BlockPreemption()
	defer ctxswitch.UnblockPreemption()

	if int(r.nextID) >= MaxThreads {
		return 0, ErrResourceExhausted
	}

	stackSize := int(attr.stackSize)
	if stackSize < m1MinStackSize {
		stackSize = m1MinStackSize
	}

	tcb := &m1TCB{
		state:    stateReady,
		entry:    entry,
		arg:      arg,
		joinable: attr.joinable,
		joinedOn: noHandle,
		waitOn:   noHandle,
	}
	if !attr.joinable {
		tcb.detach = stateDetached
	}

	var stackTop uintptr
	if attr.stackAddr != 0 {
		tcb.borrowed = true
		stackTop = attr.stackAddr + attr.stackSize
	} else {
		st, err := stackalloc.Allocate(stackSize)
		if err != nil {
			return 0, ErrResourceExhausted
		}
		tcb.stack = st
		stackTop = st.Top()
	}

	tcb.handle = r.nextID
	r.nextID++

	if attr.name != "Unknown" {
		tcb.name = truncateName(attr.name, 128)
	} else {
		tcb.name = fmt.Sprintf("User%d", tcb.handle)
	}

	// Stack construction at create (spec.md 4.4a): a context whose stack
	// pointer is the top of the new stack and whose program counter is
	// the thread-start trampoline. ctxswitch.New performs the
	// makecontext call that applies the host's pointer-mangling
	// transform to both slots; this package never touches them.
	tcb.ctx = ctxswitch.New(stackTop-uintptr(stackSize), stackSize, func() {
		r.trampoline(tcb)
	})

	r.table.Append(tcb)
	m1Log.Debugf("created handle=%d name=%s", tcb.handle, tcb.name)
	return Handle(tcb.handle), nil
}

// trampoline is spec.md 4.4a's "reads the current TCB, invokes its entry
// with its argument, stores the return value, and calls exit": the
// single fixed entry point every new context starts executing at.
func (r *manyToOneRuntime) trampoline(tcb *m1TCB) {
	result := tcb.entry(tcb.arg)
	r.Exit(result)
}

func (r *manyToOneRuntime) Join(h Handle) (any, error) {
	ctxswitch.BlockPreemption()
	target, ok := r.table.Lookup(int32(h))
	if !ok {
		ctxswitch.UnblockPreemption()
		return nil, ErrNotFound
	}
	if target.detach == stateDetached || target.detach == stateJoined {
		ctxswitch.UnblockPreemption()
		return nil, ErrInvalidArgument
	}

	target.joinedOn = r.current.handle
	target.detach = stateJoined
	r.current.state = stateWaiting
	r.current.waitOn = int32(h)
	ctxswitch.UnblockPreemption()

	// Design notes (spec.md 9): a quality implementation replaces the
	// busy-spin with a call to the library's own yield primitive so the
	// preemption tick isn't the only thing moving this loop forward.
	for target.state != stateFinished {
		r.Yield()
	}

	return target.result, nil
}

func (r *manyToOneRuntime) Detach(h Handle) error {
	ctxswitch.BlockPreemption()
	defer ctxswitch.UnblockPreemption()
	target, ok := r.table.Lookup(int32(h))
	if !ok {
		return ErrNotFound
	}
	if target.detach == stateJoined {
		return ErrInvalidArgument
	}
	target.detach = stateDetached
	target.joinable = false
	return nil
}

func (r *manyToOneRuntime) Kill(h Handle, sig int) error {
	if sig < 0 || sig > 64 {
		return ErrInvalidArgument
	}

	ctxswitch.BlockPreemption()
	defer ctxswitch.UnblockPreemption()

	if int32(h) == r.current.handle {
		if sig == 0 {
			return nil
		}
		return raiseSignal(sig)
	}

	target, ok := r.table.Lookup(int32(h))
	if !ok {
		return ErrInvalidArgument
	}
	if sig == 0 {
		// Liveness probe: existence was already confirmed by Lookup
		// above. No signal is actually queued.
		return nil
	}
	target.pending[sig] = true
	return nil
}

func (r *manyToOneRuntime) Yield() {
	ctxswitch.Raise()
}

// Exit implements spec.md 4.4a's exit protocol, including the bootstrap
// thread's special drain-then-terminate path.
func (r *manyToOneRuntime) Exit(result any) {
	ctxswitch.BlockPreemption()
	cur := r.current
	cur.state = stateFinished
	cur.result = result

	if cur.joinedOn != noHandle {
		if waiter, ok := r.table.Lookup(cur.joinedOn); ok {
			waiter.state = stateReady
		}
	}

	if cur.handle == 0 {
		ctxswitch.UnblockPreemption()
		r.drainRemaining()
		r.terminateProcess()
		return
	}

	ctxswitch.UnblockPreemption()
	r.Yield()
	// The scheduler never selects a Finished thread as Running, so
	// control never returns here.
	panic("thread: scheduler resumed a Finished thread")
}

// drainRemaining repeatedly yields until no thread is still Ready or
// Waiting, the bootstrap-exit path of spec.md 4.4a: "drain any remaining
// threads by repeated join+re-append until no Ready thread exists".
func (r *manyToOneRuntime) drainRemaining() {
	for {
		pending := false
		r.table.Each(func(t *m1TCB) {
			if t.state == stateReady || t.state == stateWaiting {
				pending = true
			}
		})
		if !pending {
			return
		}
		r.Yield()
	}
}

func (r *manyToOneRuntime) Self() Handle {
	return Handle(r.current.handle)
}

func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	return name[:max]
}
