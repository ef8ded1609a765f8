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
#include <signal.h>
#include <stddef.h>

extern void goPreemptionTick(void);

static void preemptionTrampoline(int sig) {
	goPreemptionTick();
}

static int installPreemptionHandler() {
	struct sigaction sa;
	sa.sa_handler = preemptionTrampoline;
	sigemptyset(&sa.sa_mask);
	sa.sa_flags = SA_RESTART;
	return sigaction(SIGVTALRM, &sa, NULL);
}

static int maskVtalrm(int how) {
	sigset_t set;
	sigemptyset(&set);
	sigaddset(&set, SIGVTALRM);
	return sigprocmask(how, &set, NULL);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	tickMu   sync.Mutex
	tickFunc func()
)

//export goPreemptionTick
func goPreemptionTick() {
	tickMu.Lock()
	fn := tickFunc
	tickMu.Unlock()
	if fn != nil {
		fn()
	}
}

// StartPreemptionTimer installs fn as the SIGVTALRM handler and arms a
// virtual-time interval timer at the given tick, per spec.md 4.4a's
// "preemption via a periodic virtual-time signal". fn runs synchronously
// on the delivering signal's frame, exactly as the scheduler's context
// switch protocol requires; it must not allocate and must run with the
// discipline spec.md 9 describes for signal-handler reentrancy.
func StartPreemptionTimer(tick time.Duration, fn func()) error {
	tickMu.Lock()
	tickFunc = fn
	tickMu.Unlock()

	if rc := C.installPreemptionHandler(); rc != 0 {
		return fmt.Errorf("ctxswitch: sigaction(SIGVTALRM) failed: rc=%d", rc)
	}
	it := unix.MakeItimerval(tick, tick)
	_, err := unix.Setitimer(unix.ItimerVirtual, it)
	return err
}

// BlockPreemption masks SIGVTALRM on the calling thread, the host
// primitive behind "block the preemption signal" in the context switch
// protocol and every public API critical section.
func BlockPreemption() {
	C.maskVtalrm(C.int(unix.SIG_BLOCK))
}

// UnblockPreemption reverses BlockPreemption.
func UnblockPreemption() {
	C.maskVtalrm(C.int(unix.SIG_UNBLOCK))
}

// Raise delivers SIGVTALRM to the calling thread synchronously, the
// mechanism behind the M:1 scheduler's Yield: spec.md 4.4a's context
// switch protocol is entered identically whether the signal arrived from
// the interval timer or from a thread voluntarily giving up its turn.
func Raise() {
	C.raise(C.int(C.SIGVTALRM))
}
