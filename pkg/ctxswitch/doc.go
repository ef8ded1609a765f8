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

// Package ctxswitch wraps the one host mechanism this module has no
// Go-native substitute for: saving and restoring a full register set
// mid-execution. The Go runtime owns goroutine stacks and deliberately
// exposes no such intrinsic, so, in the same spirit as the teacher
// wrapping ptrace's GETREGS/SETREGS behind platform.Context, this
// package wraps POSIX ucontext(3) (getcontext/makecontext/swapcontext)
// behind a narrow Go interface and never leaks libc shapes upward.
//
// Every exported operation here maps directly onto a clause of spec.md
// 4.4a's "Context switch protocol" and "Stack construction at create":
// Switch is the save-then-restore register-state primitive, and
// New is the makecontext-equivalent stack/program-counter setup that
// the spec requires to be transformed by the host's pointer-mangling
// function.
package ctxswitch
