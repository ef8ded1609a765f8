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

	"github.com/mayank-02/multithreading-library/pkg/logger"
	"github.com/mayank-02/multithreading-library/pkg/waitword"
)

var mutexLog = logger.ForSubsystem("sync.mutex")

const (
	mutexUnlocked  uint32 = 0
	mutexLocked    uint32 = 1
	mutexContested uint32 = 2
)

// Mutex is Ulrich Drepper's three-state wait-word mutex: free,
// locked-uncontended, and locked-contended. The uncontended unlock path
// never makes a wake syscall. Mutex is not reentrant; unlocking a Mutex
// not held by the caller is undefined behavior, per spec.md 4.6.
type Mutex struct {
	state uint32
}

// Lock acquires the mutex, blocking via the wait-word primitive if it is
// already held.
func (m *Mutex) Lock() {
	if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		return
	}
	for {
		old := atomic.LoadUint32(&m.state)
		if old == mutexContested || atomic.CompareAndSwapUint32(&m.state, mutexLocked, mutexContested) {
			if err := waitword.Wait(&m.state, mutexContested); err != nil {
				mutexLog.Debugf("wait interrupted: %v", err)
			}
		}
		if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexContested) {
			return
		}
	}
}

// TryLock attempts to acquire the mutex without blocking. It observes
// the free state without disturbing a held one.
func (m *Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked)
}

// Unlock releases the mutex, waking exactly one waiter if the lock was
// contested.
func (m *Mutex) Unlock() {
	if atomic.AddUint32(&m.state, ^uint32(0)) != mutexUnlocked {
		// Prior state was Contested (now decremented to Locked);
		// restore Unlocked and wake one waiter.
		atomic.StoreUint32(&m.state, mutexUnlocked)
		if _, err := waitword.Wake(&m.state, 1); err != nil {
			mutexLog.Warnf("wake failed: %v", err)
		}
	}
}
