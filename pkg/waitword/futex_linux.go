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

package waitword

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mayank-02/multithreading-library/pkg/logger"
)

var log = logger.ForSubsystem("waitword")

// Wait blocks the calling OS thread while *addr still equals expected.
// It returns nil on a real wakeup, on a spurious wakeup (the caller is
// expected to recheck its own predicate, per spec), and also when *addr
// had already changed before the syscall ran. An interrupted wait
// (unix.EINTR, e.g. when the M:1 preemption signal lands mid-wait) is not
// returned: Wait returns nil if *addr changed meanwhile and otherwise
// waits again. Any other futex error is returned as is.
func Wait(addr *uint32, expected uint32) error {
	for {
		_, _, errno := unix.RawSyscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			uintptr(unix.FUTEX_WAIT|unix.FUTEX_PRIVATE_FLAG),
			uintptr(expected),
			0, 0, 0,
		)
		switch errno {
		case 0, unix.EAGAIN:
			return nil
		case unix.EINTR:
			log.Debugf("futex wait on %p interrupted, rechecking predicate", addr)
			if atomic.LoadUint32(addr) != expected {
				return nil
			}
			continue
		default:
			return errno
		}
	}
}

// Wake wakes up to n waiters blocked on *addr. It returns the number of
// waiters actually woken.
func Wake(addr *uint32, n int32) (int32, error) {
	r, _, errno := unix.RawSyscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE|unix.FUTEX_PRIVATE_FLAG),
		uintptr(n),
		0, 0, 0,
	)
	if errno != 0 {
		return 0, errno
	}
	return int32(r), nil
}
