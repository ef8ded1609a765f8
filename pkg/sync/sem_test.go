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
	"sync"
	"testing"
)

func TestSemaphorePostsThenWaitsRestoresInitial(t *testing.T) {
	s := NewSemaphore(3)
	const n = 50
	for i := 0; i < n; i++ {
		s.Post()
	}
	for i := 0; i < n; i++ {
		s.Wait()
	}
	if s.value != 3 {
		t.Errorf("value = %d, want 3", s.value)
	}
}

// TestSemaphoreProducerConsumer grounds spec.md 8's bounded producer/
// consumer scenario: a buffer of size 5, one producer pushing 10 items,
// one consumer observing exactly 10 items in FIFO order.
func TestSemaphoreProducerConsumer(t *testing.T) {
	const bufSize = 5
	const items = 10

	buf := make([]int, 0, bufSize)
	var mu sync.Mutex
	empty := NewSemaphore(bufSize)
	full := NewSemaphore(0)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() { // producer
		defer wg.Done()
		for i := 0; i < items; i++ {
			empty.Wait()
			mu.Lock()
			buf = append(buf, i)
			mu.Unlock()
			full.Post()
		}
	}()

	consumed := make([]int, 0, items)
	go func() { // consumer
		defer wg.Done()
		for i := 0; i < items; i++ {
			full.Wait()
			mu.Lock()
			v := buf[0]
			buf = buf[1:]
			mu.Unlock()
			consumed = append(consumed, v)
			empty.Post()
		}
	}()

	wg.Wait()

	if len(consumed) != items {
		t.Fatalf("consumed %d items, want %d", len(consumed), items)
	}
	for i, v := range consumed {
		if v != i {
			t.Errorf("consumed[%d] = %d, want %d (FIFO order violated)", i, v, i)
		}
	}
}
