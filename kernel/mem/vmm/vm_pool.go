package vmm

import (
	"io"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/sync"
)

const (
	// regionRecordSize is the size of a {base, length} region directory
	// record. Both fields are 32-bit words.
	regionRecordSize = 8

	// maxRegions is the number of records that fit in the directory page,
	// including the record that describes the directory itself.
	maxRegions = uint32(mem.PageSize / regionRecordSize)
)

var (
	errInvalidWindow       = &kernel.Error{Module: "vm_pool", Message: "pool window must be page-aligned, larger than one page and inside the 32-bit address space"}
	errWindowOverlap       = &kernel.Error{Module: "vm_pool", Message: "pool window overlaps a registered pool"}
	errInvalidRegionSize   = &kernel.Error{Module: "vm_pool", Message: "region size must be greater than zero"}
	errPoolExhausted       = &kernel.Error{Module: "vm_pool", Message: "not enough space left in pool"}
	errRegionDirectoryFull = &kernel.Error{Module: "vm_pool", Message: "region directory is full"}
	errRegionOutsideWindow = &kernel.Error{Module: "vm_pool", Message: "region would extend past the end of the pool window"}
	errUnknownRegion       = &kernel.Error{Module: "vm_pool", Message: "address is not the start of an allocated region"}
)

// Memory is the virtual memory view used to access a pool's region
// directory. Accesses go through address translation and may fault.
type Memory interface {
	LoadUint32(virtAddr uintptr) (uint32, *kernel.Error)
	StoreUint32(virtAddr uintptr, val uint32) *kernel.Error
}

// Region is a page-aligned span of virtual memory handed out by a VMPool.
type Region struct {
	Base   uintptr
	Length mem.Size
}

// End returns the first address past the region.
func (r Region) End() uintptr {
	return r.Base + uintptr(r.Length)
}

// VMPool hands out regions from a window of virtual memory. Regions are
// laid out back to back in allocation order and are backed lazily by the
// page fault handler the first time they are accessed.
//
// The region directory is stored in-place in the first page of the window.
// Record 0 describes the directory page itself; allocated regions follow in
// address order.
type VMPool struct {
	base      uintptr
	size      mem.Size
	remaining mem.Size

	// regionCount includes the directory record.
	regionCount uint32

	framePool FrameAllocator
	pageTable *PageTable
	memory    Memory
}

// NewVMPool creates a pool for the window [base, base+size) and registers
// it with the paging state of pageTable. Frames that back the pool come
// from framePool.
//
// The directory record is written through memory so when paging is
// enabled the first page of the window is faulted in immediately.
func NewVMPool(base uintptr, size mem.Size, framePool FrameAllocator, pageTable *PageTable, memory Memory) (*VMPool, *kernel.Error) {
	if base&uintptr(mem.PageSize-1) != 0 || size%mem.PageSize != 0 || size <= mem.PageSize || mem.Size(base)+size > maxAddressSpace {
		return nil, errInvalidWindow
	}

	pool := &VMPool{
		base:      base,
		size:      size,
		remaining: size - mem.PageSize,
		framePool: framePool,
		pageTable: pageTable,
		memory:    memory,
	}

	paging := pageTable.paging
	for _, other := range paging.Pools() {
		if pool.base < other.base+uintptr(other.size) && other.base < pool.base+uintptr(pool.size) {
			return nil, errWindowOverlap
		}
	}

	paging.RegisterPool(pool)
	if err := pool.storeRegion(0, Region{Base: base, Length: mem.PageSize}); err != nil {
		paging.pools.Remove(pool)
		return nil, err
	}
	pool.regionCount = 1

	kfmt.Logger().Info("vm pool created", "base", uint64(base), "size", uint64(size))
	return pool, nil
}

// Base returns the first address of the pool window.
func (p *VMPool) Base() uintptr { return p.base }

// Size returns the size of the pool window.
func (p *VMPool) Size() mem.Size { return p.size }

// RemainingSize returns the number of bytes that can still be allocated.
func (p *VMPool) RemainingSize() mem.Size { return p.remaining }

// FramePool returns the frame pool that backs this pool.
func (p *VMPool) FramePool() FrameAllocator { return p.framePool }

// IsLegitimate returns true if addr falls inside the pool window. It does
// not check whether addr belongs to an allocated region.
func (p *VMPool) IsLegitimate(addr uintptr) bool {
	return addr >= p.base && mem.Size(addr-p.base) < p.size
}

// Allocate reserves a region of at least size bytes, rounded up to whole
// pages, and returns its start address. The region is placed right after
// the last allocated region. No physical memory is reserved.
func (p *VMPool) Allocate(size mem.Size) (uintptr, *kernel.Error) {
	defer sync.Enter().Leave()

	if size == 0 {
		return 0, errInvalidRegionSize
	}

	length := size.PageAligned()
	if length > p.remaining {
		return 0, errPoolExhausted
	}

	if p.regionCount == maxRegions {
		return 0, errRegionDirectoryFull
	}

	last, err := p.loadRegion(p.regionCount - 1)
	if err != nil {
		return 0, err
	}

	region := Region{Base: last.End(), Length: length}
	if mem.Size(region.End()-p.base) > p.size {
		return 0, errRegionOutsideWindow
	}

	if err = p.storeRegion(p.regionCount, region); err != nil {
		return 0, err
	}
	p.regionCount++
	p.remaining -= length

	kfmt.Logger().Debug("vm pool region allocated", "base", uint64(region.Base), "length", uint64(length))
	return region.Base, nil
}

// Release frees the region that starts at start. Every backed page of the
// region is returned to its frame pool and unmapped; pages that were never
// touched are skipped.
func (p *VMPool) Release(start uintptr) *kernel.Error {
	defer sync.Enter().Leave()

	index, region, err := p.findRegion(start)
	if err != nil {
		return err
	}

	for addr := region.Base; addr < region.End(); addr += uintptr(mem.PageSize) {
		if err = p.pageTable.FreePage(addr); err != nil && err != ErrInvalidMapping {
			return err
		}
	}

	for i := index; i+1 < p.regionCount; i++ {
		next, err := p.loadRegion(i + 1)
		if err != nil {
			return err
		}
		if err = p.storeRegion(i, next); err != nil {
			return err
		}
	}
	p.regionCount--
	p.remaining += region.Length

	kfmt.Logger().Debug("vm pool region released", "base", uint64(region.Base), "length", uint64(region.Length))
	return nil
}

// Regions returns the allocated regions in address order.
func (p *VMPool) Regions() ([]Region, *kernel.Error) {
	regions := make([]Region, 0, p.regionCount-1)
	for i := uint32(1); i < p.regionCount; i++ {
		region, err := p.loadRegion(i)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}

	return regions, nil
}

// DumpTo outputs a summary of the pool to w.
func (p *VMPool) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "window: [0x%08x - 0x%08x), remaining: %d bytes\n", p.base, uint64(p.base)+uint64(p.size), p.remaining)

	regions, err := p.Regions()
	if err != nil {
		kfmt.Fprintf(w, "regions: %s\n", err)
		return
	}

	kfmt.Fprintf(w, "regions: %d\n", len(regions))
	for _, region := range regions {
		kfmt.Fprintf(w, "  [0x%08x - 0x%08x)\n", region.Base, region.End())
	}
}

func (p *VMPool) findRegion(start uintptr) (uint32, Region, *kernel.Error) {
	for i := uint32(1); i < p.regionCount; i++ {
		region, err := p.loadRegion(i)
		if err != nil {
			return 0, Region{}, err
		}

		if region.Base == start {
			return i, region, nil
		}
	}

	return 0, Region{}, errUnknownRegion
}

func (p *VMPool) recordAddr(index uint32) uintptr {
	return p.base + uintptr(index)*regionRecordSize
}

func (p *VMPool) loadRegion(index uint32) (Region, *kernel.Error) {
	base, err := p.memory.LoadUint32(p.recordAddr(index))
	if err != nil {
		return Region{}, err
	}

	length, err := p.memory.LoadUint32(p.recordAddr(index) + 4)
	if err != nil {
		return Region{}, err
	}

	return Region{Base: uintptr(base), Length: mem.Size(length)}, nil
}

func (p *VMPool) storeRegion(index uint32, region Region) *kernel.Error {
	if err := p.memory.StoreUint32(p.recordAddr(index), uint32(region.Base)); err != nil {
		return err
	}

	return p.memory.StoreUint32(p.recordAddr(index)+4, uint32(region.Length))
}
