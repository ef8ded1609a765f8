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

//go:build manytoone

package ctxswitch

/*
#include <stdlib.h>
#include <ucontext.h>

// dispatch is the single, fixed-arity entry point every makecontext'd
// context actually starts at. makecontext only accepts a C function of
// int arguments, so the real Go entry point is looked up by id through
// goTrampolineDispatch (exported below) rather than passed directly.
extern void goTrampolineDispatch(int id);

static void dispatch(int id) {
	goTrampolineDispatch(id);
}

static ucontext_t *alloc_ucontext() {
	return (ucontext_t *)calloc(1, sizeof(ucontext_t));
}

static void make_context(ucontext_t *uc, ucontext_t *link, void *stack, size_t stacksize, int id) {
	getcontext(uc);
	uc->uc_stack.ss_sp = stack;
	uc->uc_stack.ss_size = stacksize;
	uc->uc_link = link;
	makecontext(uc, (void (*)())dispatch, 1, id);
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/mayank-02/multithreading-library/pkg/logger"
)

var log = logger.ForSubsystem("ctxswitch")

// Context wraps a single ucontext_t: the save area spec.md 4.4a calls
// "an opaque save area sized for the host register-state primitive",
// plus (when created via New) the stack and entry point makecontext
// bakes into it at construction time.
type Context struct {
	raw *C.ucontext_t
}

var (
	trampolineMu   sync.Mutex
	trampolineNext int
	trampolines    = map[int]func(){}
)

//export goTrampolineDispatch
func goTrampolineDispatch(id C.int) {
	trampolineMu.Lock()
	fn := trampolines[int(id)]
	trampolineMu.Unlock()
	if fn == nil {
		log.Errorf("ctxswitch: dispatch for unknown trampoline id %d", id)
		return
	}
	fn()
}

// Empty allocates a bare save area, suitable as the cur argument of
// Switch but not yet runnable: it has no stack or entry point of its own.
// The bootstrap thread's Context is of this kind, since its stack already
// exists (it is whatever the OS gave the process) and it never needs a
// trampoline; it is only ever the saved side of a Switch and, later, a
// Switch destination.
func Empty() *Context {
	return &Context{raw: C.alloc_ucontext()}
}

// New builds a Context whose stack is the given region and whose entry
// point is start. start must not return; the trampoline protocol (spec.md
// 4.4a) requires the scheduled function to call Exit itself. stackBase is
// the lowest usable address of the stack region (stackalloc.Stack.Base)
// and stackSize its length in bytes; makecontext starts the stack pointer
// at the top of that region.
//
// The host's pointer-mangling transform for the saved stack-pointer and
// program-counter slots (spec.md 4.4a, 9) is applied by glibc's own
// makecontext/swapcontext pair internally; this boundary is exactly the
// "encapsulate behind a capability" the design notes call for; no mangled
// value is ever visible to, or handled by, Go code.
func New(stackBase uintptr, stackSize int, start func()) *Context {
	ctx := &Context{raw: C.alloc_ucontext()}

	trampolineMu.Lock()
	id := trampolineNext
	trampolineNext++
	trampolines[id] = start
	trampolineMu.Unlock()

	C.make_context(ctx.raw, nil, unsafe.Pointer(stackBase), C.size_t(stackSize), C.int(id))
	return ctx
}

// Link sets the context to resume when this context's entry function
// returns (rather than calling Exit itself). It mirrors uc_link.
func (c *Context) Link(next *Context) {
	if next == nil {
		c.raw.uc_link = nil
		return
	}
	c.raw.uc_link = next.raw
}

// Free releases the save area's backing memory. Never call Free on a
// Context still reachable from a running thread's save/restore cycle.
func (c *Context) Free() {
	if c == nil || c.raw == nil {
		return
	}
	C.free(unsafe.Pointer(c.raw))
	c.raw = nil
}

// Switch saves the caller's register state into cur and restores dest,
// resuming execution there. It returns only when some later Switch
// targets cur again — precisely spec.md 4.4a step 2's "if this save
// returns via a subsequent restore, return from the handler" combined
// with step 7's "restore register state ... does not return to this
// call site" in the one host call that can do both atomically.
func Switch(cur, dest *Context) {
	if int(C.swapcontext(cur.raw, dest.raw)) != 0 {
		log.Errorf("ctxswitch: swapcontext failed")
	}
}

// Restore jumps to dest without saving the caller's state anywhere; used
// when there is no "current" thread to preserve (process bring-up).
func Restore(dest *Context) {
	C.setcontext(dest.raw)
}
