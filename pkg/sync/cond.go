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

package sync

import (
	"sync/atomic"

	"github.com/mayank-02/multithreading-library/pkg/waitword"
)

// Locker is the minimal interface CV.Wait needs from the lock passed to
// it; *Mutex satisfies it.
type Locker interface {
	Lock()
	Unlock()
}

// CV is a condition variable with a monotonic sequence counter, per
// spec.md 4.7. Its zero value is ready to use. Signal wakes exactly one
// waiter; Broadcast (wake-all) is not required by spec.md and is not
// provided. Callers must wrap Wait in a predicate loop: spurious
// wakeups, including those caused by the M:1 preemption signal
// interrupting the underlying futex wait, are always possible.
type CV struct {
	value uint32
}

// Wait atomically releases mu and blocks until Signal is called (or a
// spurious wakeup occurs), then reacquires mu before returning.
func (c *CV) Wait(mu Locker) {
	previous := atomic.LoadUint32(&c.value)
	mu.Unlock()
	_ = waitword.Wait(&c.value, previous)
	mu.Lock()
}

// Signal advances the sequence counter and wakes one waiter.
func (c *CV) Signal() {
	atomic.AddUint32(&c.value, 1)
	if _, err := waitword.Wake(&c.value, 1); err != nil {
		mutexLog.Warnf("cv wake failed: %v", err)
	}
}
