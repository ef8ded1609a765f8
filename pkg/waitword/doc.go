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

// Package waitword wraps the Linux futex syscall: block while a 32-bit
// word still equals an expected value, and wake waiters blocked on a
// word. Mutex, CV and Semaphore in pkg/sync are built on top of this
// single primitive (Spinlock is a pure compare-and-set busy wait and does
// not use it). The futex is private and not shared across process
// boundaries.
package waitword
