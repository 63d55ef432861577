package world

import (
	"errors"
	"sync/atomic"
)

// ID ranges:
//
//	0x00000000:              invalid
//	0x00000001 - 0x0FFFFFFF: fixed ids (scenario files, tests)
//	0x10000000 - 0xFFFFFFFF: allocated by IDAllocator
const DynamicIDBase uint32 = 0x10000000

// ErrReservedID is returned for a fixed id inside the allocated range.
var ErrReservedID = errors.New("actor id is in the allocated range")

// IDAllocator hands out actor ids for spawns that do not carry one.
// Safe for concurrent use.
type IDAllocator struct {
	next atomic.Uint32
}

// NewIDAllocator returns an allocator whose first id is DynamicIDBase.
func NewIDAllocator() *IDAllocator {
	a := &IDAllocator{}
	a.next.Store(DynamicIDBase - 1)
	return a
}

// Next returns the next unused id.
func (a *IDAllocator) Next() uint32 {
	return a.next.Add(1)
}

// CheckFixed validates an id chosen by the caller.
func CheckFixed(id uint32) error {
	if id >= DynamicIDBase {
		return ErrReservedID
	}
	return nil
}
