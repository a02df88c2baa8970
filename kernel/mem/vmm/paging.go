// Package vmm implements two-level x86 paging with lazily populated address
// spaces and the virtual memory pools that carve regions out of them.
//
// Page directories and page tables live in frames obtained from the kernel
// frame pool; pages that back virtual memory are taken from the process
// frame pool the first time they are touched. Tables are read and written
// through temporary frame windows so a table never needs to be mapped in
// any address space before it can be initialized.
package vmm

import (
	"unsafe"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/gate"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/physmem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/sync"
)

// maxAddressSpace is the size of the 32-bit virtual address space.
const maxAddressSpace = mem.Size(1 << 32)

var (
	// the following functions are mocked by tests.
	readCR0Fn         = cpu.ReadCR0
	writeCR0Fn        = cpu.WriteCR0
	readCR2Fn         = cpu.ReadCR2
	switchPDTFn       = cpu.SwitchPDT
	flushTLBEntryFn   = cpu.FlushTLBEntry
	handleExceptionFn = gate.HandleException
	panicFn           = kfmt.Panic

	errInvalidSharedSize = &kernel.Error{Module: "vmm", Message: "shared size must be a page-aligned size within the 32-bit address space"}
	errNoActivePageTable = &kernel.Error{Module: "vmm", Message: "no page table has been loaded"}
	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// FrameAllocator hands out runs of contiguous physical frames.
type FrameAllocator interface {
	GetFrames(n uint32) (pmm.Frame, *kernel.Error)
}

// FrameReleaser releases a run of frames given only the number of its first
// frame.
type FrameReleaser interface {
	ReleaseFrames(firstFrame pmm.Frame) *kernel.Error
}

// Paging holds the process-wide paging configuration and state: the frame
// pools that supply table and page frames, the active page table and the
// VM pools consulted by the page fault handler.
type Paging struct {
	ram physmem.FrameMapper

	// kernelPool supplies frames for page directories and page tables.
	kernelPool FrameAllocator

	// processPool supplies frames that back virtual pages.
	processPool FrameAllocator

	releaser FrameReleaser

	// sharedSize bytes at the bottom of the address space are identity
	// mapped by every page table.
	sharedSize mem.Size

	current *PageTable
	enabled bool
	pools   VMPoolList
}

// InitPaging records the paging configuration and installs the page fault
// handler. It must be called once before any page table is constructed.
func InitPaging(ram physmem.FrameMapper, kernelPool, processPool FrameAllocator, releaser FrameReleaser, sharedSize mem.Size) (*Paging, *kernel.Error) {
	if sharedSize%mem.PageSize != 0 || sharedSize > maxAddressSpace {
		return nil, errInvalidSharedSize
	}

	p := &Paging{
		ram:         ram,
		kernelPool:  kernelPool,
		processPool: processPool,
		releaser:    releaser,
		sharedSize:  sharedSize,
	}

	handleExceptionFn(gate.PageFaultException, p.HandleFault)

	kfmt.Logger().Info("paging initialized", "shared_size", uint64(sharedSize))
	return p, nil
}

// SharedSize returns the number of identity-mapped bytes shared by every
// page table.
func (p *Paging) SharedSize() mem.Size { return p.sharedSize }

// ActivePageTable returns the page table installed by the most recent call
// to Load or nil if no table has been loaded.
func (p *Paging) ActivePageTable() *PageTable { return p.current }

// EnablePaging turns on address translation. A page table must have been
// loaded first.
func (p *Paging) EnablePaging() *kernel.Error {
	defer sync.Enter().Leave()

	if p.current == nil {
		return errNoActivePageTable
	}

	writeCR0Fn(readCR0Fn() | cpu.CR0PagingEnabled)
	p.enabled = true

	kfmt.Logger().Info("paging enabled", "pdt", uint64(p.current.dirFrame.Address()))
	return nil
}

// PagingEnabled returns true if EnablePaging has been called.
func (p *Paging) PagingEnabled() bool { return p.enabled }

// RegisterPool adds pool to the list of pools consulted when deciding
// whether a faulting address may be backed.
func (p *Paging) RegisterPool(pool *VMPool) {
	defer sync.Enter().Leave()
	p.pools.Append(pool)
}

// Pools returns the registered VM pools in registration order.
func (p *Paging) Pools() []*VMPool { return p.pools.Pools() }

// table returns the contents of the directory or page table stored in frame.
func (p *Paging) table(frame pmm.Frame) (*[entriesPerTable]pageTableEntry, *kernel.Error) {
	window, err := p.ram.MapTemporary(frame)
	if err != nil {
		return nil, err
	}

	return (*[entriesPerTable]pageTableEntry)(unsafe.Pointer(&window[0])), nil
}

// newTable allocates a frame from the kernel pool and initializes it as a
// table whose entries are all not-present but writable. The writable bit
// records the permissions that a later fault will install.
func (p *Paging) newTable() (pmm.Frame, *kernel.Error) {
	frame, err := p.kernelPool.GetFrames(1)
	if err != nil {
		return pmm.InvalidFrame, err
	}

	table, err := p.table(frame)
	if err != nil {
		_ = p.releaser.ReleaseFrames(frame)
		return pmm.InvalidFrame, err
	}

	for i := range table {
		table[i] = pageTableEntry(FlagRW)
	}

	return frame, nil
}
