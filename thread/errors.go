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

package thread

import "fmt"

// Sentinel errors map the error taxonomy onto idiomatic Go errors,
// checked with errors.Is at call sites, in place of the integer error
// codes a C API would return.
var (
	// ErrInvalidArgument covers an unknown attribute selector or a value
	// of the wrong type for it, an out-of-range signal or an unknown
	// Kill target, and a detached or already-joined join target.
	ErrInvalidArgument = fmt.Errorf("thread: invalid argument")

	// ErrNotFound means the target handle is absent from the task table.
	ErrNotFound = fmt.Errorf("thread: handle not found")

	// ErrDeadlock means a thread attempted to join itself.
	ErrDeadlock = fmt.Errorf("thread: join would deadlock")

	// ErrResourceExhausted covers the thread cap, an allocation failure,
	// or a stack mapping failure.
	ErrResourceExhausted = fmt.Errorf("thread: resource exhausted")

	// ErrFault means a required argument (Create's entry function) was
	// nil.
	ErrFault = fmt.Errorf("thread: required argument is nil")

	// ErrNotInitialized names the not-initialized condition. No entry
	// point in this package returns it: calling an operation before Init
	// is undefined behavior (see Init).
	ErrNotInitialized = fmt.Errorf("thread: runtime not initialized")
)

// PlatformError wraps a failure returned by a host primitive (clone,
// kill, the wait-word primitive), preserving the underlying error number
// for callers that need it.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("thread: %s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
