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

// Semaphore is a counting semaphore over a 32-bit non-negative counter,
// per spec.md 4.8. The zero value blocks every Wait until Post is
// called; use NewSemaphore to pick a starting value.
type Semaphore struct {
	value uint32
}

// NewSemaphore returns a Semaphore initialized to initial.
func NewSemaphore(initial uint32) *Semaphore {
	return &Semaphore{value: initial}
}

// Init resets the semaphore's counter to initial. It is not safe to call
// concurrently with Wait/Post on the same Semaphore.
func (s *Semaphore) Init(initial uint32) {
	atomic.StoreUint32(&s.value, initial)
}

// Wait decrements the counter, blocking while it is zero.
func (s *Semaphore) Wait() {
	for {
		v := atomic.LoadUint32(&s.value)
		if v == 0 {
			_ = waitword.Wait(&s.value, 0)
			continue
		}
		if atomic.CompareAndSwapUint32(&s.value, v, v-1) {
			return
		}
	}
}

// Post increments the counter and wakes one waiter.
func (s *Semaphore) Post() {
	atomic.AddUint32(&s.value, 1)
	if _, err := waitword.Wake(&s.value, 1); err != nil {
		mutexLog.Warnf("semaphore wake failed: %v", err)
	}
}
