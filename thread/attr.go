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

// Selector names one field of an Attr for Get/Set.
type Selector int

const (
	AttrName Selector = iota
	AttrJoinable
	AttrStackSize
	AttrStackAddr
)

// Attr is the optional configuration bundle passed to Create: name,
// detachment, stack base (or none) and stack size. Its zero value is not
// ready to use; construct one with NewAttr so the documented defaults
// apply.
type Attr struct {
	name      string
	joinable  bool
	stackSize uintptr
	stackAddr uintptr // 0 means "runtime-allocated"
}

// NewAttr returns an Attr with the documented defaults: name "Unknown",
// Joinable, stack size the backend's minimum, no caller-supplied stack.
func NewAttr() *Attr {
	return &Attr{
		name:      "Unknown",
		joinable:  true,
		stackSize: minStackSize(),
		stackAddr: 0,
	}
}

// Get returns the field named by sel: a string for AttrName, a bool for
// AttrJoinable, and a uintptr for AttrStackSize and AttrStackAddr. An
// unknown selector is an invalid-argument error.
func (a *Attr) Get(sel Selector) (any, error) {
	switch sel {
	case AttrName:
		return a.name, nil
	case AttrJoinable:
		return a.joinable, nil
	case AttrStackSize:
		return a.stackSize, nil
	case AttrStackAddr:
		return a.stackAddr, nil
	default:
		return nil, ErrInvalidArgument
	}
}

// Set writes the field named by sel. A stack size below the backend's
// minimum is silently raised to the minimum rather than rejected, per
// the canonical M:1 behavior this spec preserves for both backends.
func (a *Attr) Set(sel Selector, value any) error {
	switch sel {
	case AttrName:
		v, ok := value.(string)
		if !ok {
			return ErrInvalidArgument
		}
		a.name = v
	case AttrJoinable:
		v, ok := value.(bool)
		if !ok {
			return ErrInvalidArgument
		}
		a.joinable = v
	case AttrStackSize:
		v, ok := value.(uintptr)
		if !ok {
			return ErrInvalidArgument
		}
		if v < minStackSize() {
			v = minStackSize()
		}
		a.stackSize = v
	case AttrStackAddr:
		v, ok := value.(uintptr)
		if !ok {
			return ErrInvalidArgument
		}
		a.stackAddr = v
	default:
		return ErrInvalidArgument
	}
	return nil
}

// Destroy releases the Attr. It has no effect on threads already created
// from it: Create copies the attributes into the TCB.
func (a *Attr) Destroy() {}
