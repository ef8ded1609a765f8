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
	"testing"
	"time"
)

// TestDetachedThreadRemovesItsOwnTCBOnExit is the white-box half of
// spec.md 8 scenario 6's "no leaking the detached thread's stack": a
// Detached thread is never collected by Join, so runtime_onetoone.go's
// goroutine must remove its own TCB and free its own stack on the way
// out instead of waiting for a collector that will never arrive. The
// test observes the TCB leaving the table; the stack is freed by the
// same deferred cleanup.
func TestDetachedThreadRemovesItsOwnTCBOnExit(t *testing.T) {
	Init()
	o2o, ok := rt.(*oneToOneRuntime)
	if !ok {
		t.Skip("not running against the 1:1 backend")
	}

	attr := NewAttr()
	if err := attr.Set(AttrJoinable, false); err != nil {
		t.Fatalf("Set(AttrJoinable, false): %v", err)
	}

	started := make(chan struct{})
	finished := make(chan struct{})
	h, err := Create(attr, func(arg any) any {
		close(started)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-started

	go func() {
		for {
			o2o.lock.Lock()
			_, stillPresent := o2o.table.Lookup(int32(h))
			o2o.lock.Unlock()
			if !stillPresent {
				close(finished)
				return
			}
			Yield()
		}
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("detached thread's TCB was never reclaimed")
	}
}
