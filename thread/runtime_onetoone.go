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

//go:build !manytoone

package thread

import (
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/mayank-02/multithreading-library/pkg/logger"
	gosync "github.com/mayank-02/multithreading-library/pkg/sync"
	"github.com/mayank-02/multithreading-library/pkg/stackalloc"
	"github.com/mayank-02/multithreading-library/pkg/tasktable"
	"github.com/mayank-02/multithreading-library/pkg/waitword"
)

var o2oLog = logger.ForSubsystem("thread.onetoone")

const defaultStackLimit = 8 << 20 // fallback when RLIMIT_STACK is unbounded

func minStackSize() uintptr {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rlim); err != nil {
		return defaultStackLimit
	}
	if rlim.Cur == 0 || rlim.Cur > (1<<32) {
		return defaultStackLimit
	}
	return uintptr(rlim.Cur)
}

const maxProcesses = 4096

// detachState mirrors the Joinable/Detached/Joined lattice; transitions
// are monotone and enforced under the runtime's spinlock
// (oneToOneRuntime.lock).
type detachState int32

const (
	stateJoinable detachState = iota
	stateDetached
	stateJoined
)

// oneToOneTCB is one live (or just-finished, not yet reaped) user
// thread. Unlike the M:1 TCB, there is no explicit scheduler state: the
// goroutine this TCB describes is always actually running or blocked on
// a real kernel primitive, so "state" is implicit in waitWord and
// detach, per spec.md's data model note for the 1:1 case.
type oneToOneTCB struct {
	handle int32 // the real kernel tid, set once the goroutine starts
	name   string

	detach int32 // atomic detachState
	// waitWord holds handle while the thread runs and is cleared to 0
	// when it exits, mirroring the clone primitive's parent-set-tid /
	// child-clear-tid contract; Join blocks on it with the wait-word
	// primitive exactly as a real clone-based join would.
	waitWord uint32

	result   any
	stack    *stackalloc.Stack
	borrowed bool

	started chan struct{} // closed once handle/waitWord are published
}

func (t *oneToOneTCB) Handle() int32 { return t.handle }

type oneToOneRuntime struct {
	lock  gosync.Spinlock
	table *tasktable.Table[*oneToOneTCB]
	boot  int32
}

func newRuntime() runtime {
	runtime_LockOSThread()
	r := &oneToOneRuntime{
		table: tasktable.New[*oneToOneTCB](),
		boot:  int32(unix.Gettid()),
	}
	r.table.Append(&oneToOneTCB{
		handle: r.boot,
		name:   "Bootstrap",
		detach: int32(stateJoinable),
	})
	// The 1:1 supervisor has no process-wide scheduler loop to fall back
	// into at termination the way the M:1 build's terminateProcess does,
	// so the at-exit hook mthread_init registers with atexit(3) is
	// approximated here by trapping the termination signals: whatever
	// TCBs are still in the table when one arrives get their
	// runtime-owned stacks unmapped before the default disposition runs.
	r.registerAtExitCleanup()
	return r
}

func (r *oneToOneRuntime) registerAtExitCleanup() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		signal.Stop(sigCh)
		r.cleanupAll()
		o2oLog.Infof("terminating on %v after at-exit cleanup", sig)
		os.Exit(128 + int(sig.(syscall.Signal)))
	}()
}

// cleanupAll frees every runtime-owned stack still referenced by the
// table, the 1:1 analogue of cleanup_handler's sweep over task_q.
func (r *oneToOneRuntime) cleanupAll() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.table.Each(func(t *oneToOneTCB) {
		if t.stack != nil && !t.borrowed {
			if err := t.stack.Free(); err != nil {
				o2oLog.Warnf("at-exit stack free for handle=%d failed: %v", t.handle, err)
			}
		}
	})
	r.table.Destroy()
}

// runtime_LockOSThread exists only so the single call site above reads
// the same whether or not the standard library's own "runtime" package
// name would shadow this file's package (it doesn't; this package is
// also named thread, not runtime, but the indirection keeps the intent
// obvious next to Self's Gettid call below).
func runtime_LockOSThread() { runtime.LockOSThread() }

func (r *oneToOneRuntime) Create(attr *Attr, entry func(arg any) any, arg any) (Handle, error) {
	r.lock.Lock()
	if r.table.Count() >= maxProcesses {
		r.lock.Unlock()
		return 0, ErrResourceExhausted
	}
	r.lock.Unlock()

	name := attr.name
	if name == "Unknown" {
		name = ""
	}

	tcb := &oneToOneTCB{
		detach:  int32(stateJoinable),
		started: make(chan struct{}),
	}
	if !attr.joinable {
		tcb.detach = int32(stateDetached)
	}

	if attr.stackAddr != 0 {
		tcb.borrowed = true
	} else {
		st, err := stackalloc.Allocate(int(attr.stackSize))
		if err != nil {
			return 0, ErrResourceExhausted
		}
		tcb.stack = st
	}

	go func() {
		runtime.LockOSThread()
		tcb.handle = int32(unix.Gettid())
		if name == "" {
			tcb.name = o2oAutoName(tcb.handle)
		} else {
			tcb.name = name
		}
		atomic.StoreUint32(&tcb.waitWord, uint32(tcb.handle))

		r.lock.Lock()
		r.table.Append(tcb)
		r.lock.Unlock()
		close(tcb.started)

		// A Detached thread will never be collected by Join, so nothing
		// else ever frees its stack or removes it from the table; this
		// goroutine does it for itself on the way out, the 1:1 analogue
		// of the M:1 build's terminateProcess sweep. It runs as a defer
		// so it still fires when the exit is via Exit's runtime.Goexit,
		// not just a normal return from entry.
		defer func() {
			r.lock.Lock()
			detached := detachState(atomic.LoadInt32(&tcb.detach)) == stateDetached
			if detached {
				r.table.Remove(tcb.handle)
			}
			r.lock.Unlock()
			if detached && tcb.stack != nil {
				if err := tcb.stack.Free(); err != nil {
					o2oLog.Warnf("stack free on detached exit failed: %v", err)
				}
			}
		}()

		// The child-clear-tid/wake pair runs as a defer so that a call to
		// Exit from inside entry (which ends the goroutine via
		// runtime.Goexit) still publishes the wait-word transition a real
		// clone-based child's kernel-driven exit would.
		defer func() {
			atomic.StoreUint32(&tcb.waitWord, 0)
			if _, err := waitword.Wake(&tcb.waitWord, 1); err != nil {
				o2oLog.Warnf("exit wake failed: %v", err)
			}
		}()

		result := entry(arg)

		r.lock.Lock()
		tcb.result = result
		r.lock.Unlock()
	}()

	<-tcb.started
	o2oLog.Debugf("created handle=%d name=%s", tcb.handle, tcb.name)
	return Handle(tcb.handle), nil
}

func (r *oneToOneRuntime) Join(h Handle) (any, error) {
	r.lock.Lock()
	tcb, ok := r.table.Lookup(int32(h))
	if !ok {
		r.lock.Unlock()
		return nil, ErrNotFound
	}
	switch detachState(atomic.LoadInt32(&tcb.detach)) {
	case stateDetached, stateJoined:
		r.lock.Unlock()
		return nil, ErrInvalidArgument
	}
	atomic.StoreInt32(&tcb.detach, int32(stateJoined))
	r.lock.Unlock()

	for atomic.LoadUint32(&tcb.waitWord) == uint32(int32(h)) {
		if err := waitword.Wait(&tcb.waitWord, uint32(int32(h))); err != nil {
			return nil, &PlatformError{Op: "join wait-word", Err: err}
		}
	}

	r.lock.Lock()
	result := tcb.result
	r.table.Remove(int32(h))
	r.lock.Unlock()

	if tcb.stack != nil {
		if err := tcb.stack.Free(); err != nil {
			o2oLog.Warnf("stack free on join failed: %v", err)
		}
	}
	return result, nil
}

func (r *oneToOneRuntime) Detach(h Handle) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	tcb, ok := r.table.Lookup(int32(h))
	if !ok {
		return ErrNotFound
	}
	if detachState(atomic.LoadInt32(&tcb.detach)) == stateJoined {
		return ErrInvalidArgument
	}
	atomic.StoreInt32(&tcb.detach, int32(stateDetached))
	return nil
}

func (r *oneToOneRuntime) Kill(h Handle, sig int) error {
	if sig == 0 {
		r.lock.Lock()
		_, ok := r.table.Lookup(int32(h))
		r.lock.Unlock()
		if !ok {
			return ErrInvalidArgument
		}
		return nil
	}
	if sig < 1 || sig > 64 {
		return ErrInvalidArgument
	}
	if err := unix.Tgkill(os.Getpid(), int(h), unix.Signal(sig)); err != nil {
		return &PlatformError{Op: "tgkill", Err: err}
	}
	return nil
}

func (r *oneToOneRuntime) Yield() {
	unix.RawSyscall(unix.SYS_SCHED_YIELD, 0, 0, 0)
}

func (r *oneToOneRuntime) Exit(result any) {
	self := int32(unix.Gettid())
	r.lock.Lock()
	if tcb, ok := r.table.Lookup(self); ok {
		tcb.result = result
	}
	r.lock.Unlock()
	runtime.Goexit()
}

func (r *oneToOneRuntime) Self() Handle {
	return Handle(unix.Gettid())
}

func o2oAutoName(h int32) string {
	return "User" + strconv.Itoa(int(h))
}
