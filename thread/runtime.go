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

// runtime is the backend the build-tag-free public API dispatches to.
// Exactly one of runtime_manytoone.go (build tag manytoone) or
// runtime_onetoone.go (default) is compiled into any given binary, the
// same single-call-site-over-swappable-backend shape as the Go runtime's
// own lock_sema.go/lock_futex.go pair.
type runtime interface {
	Create(attr *Attr, entry func(arg any) any, arg any) (Handle, error)
	Join(h Handle) (any, error)
	Detach(h Handle) error
	Kill(h Handle, sig int) error
	Yield()
	Exit(result any)
	Self() Handle
}

// minStackSize and newRuntime are implemented once per build tag.
