// Package physmem provides the physical memory of the simulated machine.
// Frame pool bitmaps, page directories and page tables are all stored inside
// this arena and are reached through temporary frame mappings.
package physmem

import (
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
)

var (
	// ErrFrameOutOfRange is returned when mapping a frame that lies beyond
	// the end of physical memory.
	ErrFrameOutOfRange = &kernel.Error{Module: "physmem", Message: "frame is outside of physical memory"}

	errInvalidSize  = &kernel.Error{Module: "physmem", Message: "memory size must be a non-zero multiple of the page size"}
	errAllocArena   = &kernel.Error{Module: "physmem", Message: "unable to reserve host memory for the physical memory arena"}
	errReleaseArena = &kernel.Error{Module: "physmem", Message: "unable to release the physical memory arena"}
)

// FrameMapper grants read/write access to the contents of a physical frame
// regardless of whether the frame is mapped in any virtual address space.
type FrameMapper interface {
	// MapTemporary returns a PageSize-long window over the frame contents.
	MapTemporary(frame pmm.Frame) ([]byte, *kernel.Error)
}

// Memory is the physical memory arena of the machine.
type Memory struct {
	data    []byte
	release func() error
}

// New reserves a physical memory arena of the requested size. The arena
// contents are zeroed.
func New(size mem.Size) (*Memory, *kernel.Error) {
	if size == 0 || size%mem.PageSize != 0 {
		return nil, errInvalidSize
	}

	data, release, err := allocArena(int(size))
	if err != nil {
		return nil, errAllocArena
	}

	return &Memory{data: data, release: release}, nil
}

// Size returns the size of physical memory in bytes.
func (m *Memory) Size() mem.Size {
	return mem.Size(len(m.data))
}

// FrameCount returns the number of frames in physical memory.
func (m *Memory) FrameCount() uint32 {
	return uint32(len(m.data) >> mem.PageShift)
}

// MapTemporary returns a window over the contents of frame. The window
// aliases physical memory so writes to it are visible to every other
// mapping of the same frame.
func (m *Memory) MapTemporary(frame pmm.Frame) ([]byte, *kernel.Error) {
	if !frame.Valid() || uint64(frame) >= uint64(m.FrameCount()) {
		return nil, ErrFrameOutOfRange
	}

	start := frame.Address()
	end := start + uintptr(mem.PageSize)
	return m.data[start:end:end], nil
}

// Close releases the arena. The Memory must not be used afterwards.
func (m *Memory) Close() *kernel.Error {
	if m.release == nil {
		return nil
	}

	err := m.release()
	m.release, m.data = nil, nil
	if err != nil {
		return errReleaseArena
	}
	return nil
}
