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

// Package stackalloc allocates per-thread stacks with a leading guard
// page, the way a pthread-style runtime must: one private anonymous
// mapping of size+pagesize, with the first page's protection dropped to
// PROT_NONE so a stack overflow faults deterministically instead of
// silently corrupting an adjacent mapping.
package stackalloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mayank-02/multithreading-library/pkg/logger"
)

var log = logger.ForSubsystem("stackalloc")

// PageSize is the host page size, resolved once at package init the way
// gvisor's hostarch package resolves it.
var PageSize = unix.Getpagesize()

// Stack describes a runtime-owned, guard-paged stack.
type Stack struct {
	// mapping is the full mapped region, guard page included; it is
	// what must be passed to Munmap.
	mapping []byte

	// Base is the usable stack base: the address immediately past the
	// guard page, and so the low end of the usable region. Stacks grow
	// down on every architecture this library targets, so the initial
	// stack pointer is Top, not Base.
	Base uintptr

	// Size is the usable stack size, not including the guard page.
	Size int
}

// Allocate maps size+PageSize bytes of private, anonymous memory and
// converts the leading page into a guard page. Allocation fails only
// when the underlying mmap fails; callers translate that into
// ResourceExhausted per spec.md 4.1.
func Allocate(size int) (*Stack, error) {
	total := size + PageSize
	mapping, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("stackalloc: mmap %d bytes: %w", total, err)
	}
	if err := unix.Mprotect(mapping[:PageSize], unix.PROT_NONE); err != nil {
		unix.Munmap(mapping)
		return nil, fmt.Errorf("stackalloc: guard page mprotect: %w", err)
	}
	s := &Stack{
		mapping: mapping,
		Base:    uintptr(unsafe.Pointer(&mapping[0])) + uintptr(PageSize),
		Size:    size,
	}
	log.Debugf("allocated stack base=%#x size=%d", s.Base, s.Size)
	return s, nil
}

// Top returns the initial stack pointer value for a stack that grows
// down: the address one past the last usable byte.
func (s *Stack) Top() uintptr {
	return s.Base + uintptr(s.Size)
}

// Free unmaps the combined guard page and usable region. Free must not
// be called on a Stack that was supplied by the caller via an Attr
// (those remain owned by the caller and are never unmapped here), per
// spec.md's shared-resource policy in section 5.
func (s *Stack) Free() error {
	if s == nil || s.mapping == nil {
		return nil
	}
	if err := unix.Munmap(s.mapping); err != nil {
		return fmt.Errorf("stackalloc: munmap: %w", err)
	}
	log.Debugf("freed stack base=%#x size=%d", s.Base, s.Size)
	s.mapping = nil
	return nil
}
