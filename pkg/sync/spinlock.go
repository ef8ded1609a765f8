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

// Package sync provides the synchronization primitives Spinlock, Mutex,
// CV and Semaphore. Mutex, CV and Semaphore block through the wait-word
// primitive; Spinlock only busy-spins on compare-and-set. It is a
// separate package from the standard library's sync so that both can be
// imported side by side; call sites that need both import this one as
// gosync, the way the teacher imports its own pkg/sync as sync alongside
// the standard library's in files that need neither at the same time.
package sync

import "sync/atomic"

const (
	spinUnlocked uint32 = 0
	spinLocked   uint32 = 1
)

// Spinlock is an atomic compare-and-set busy-wait lock. It is not
// reentrant: a second Lock call by the same holder deadlocks, per
// spec.md 4.5.
type Spinlock struct {
	state uint32
}

// Lock busy-spins until the lock is acquired.
func (s *Spinlock) Lock() {
	for !atomic.CompareAndSwapUint32(&s.state, spinUnlocked, spinLocked) {
	}
}

// TryLock attempts the compare-and-set exactly once.
func (s *Spinlock) TryLock() bool {
	return atomic.CompareAndSwapUint32(&s.state, spinUnlocked, spinLocked)
}

// Unlock releases the lock. Unlocking a lock not held by the caller is
// undefined behavior, per spec.md 4.5.
func (s *Spinlock) Unlock() {
	atomic.CompareAndSwapUint32(&s.state, spinLocked, spinUnlocked)
}
