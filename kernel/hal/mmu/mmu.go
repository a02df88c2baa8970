// Package mmu translates virtual memory accesses of the simulated processor
// into physical memory accesses.
//
// When paging is enabled the MMU walks the two-level page table whose
// directory is pointed to by CR3. A missing or write-protected entry latches
// the faulting address into CR2 and raises a page fault through the
// exception gate; once the handler returns the access is restarted exactly
// once, mirroring how the processor re-executes the faulting instruction.
package mmu

import (
	"unsafe"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/gate"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/physmem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
)

// Hardware page table entry bits inspected during a walk.
const (
	entryPresent  = uint32(1 << 0)
	entryWritable = uint32(1 << 1)
	entryFrame    = uint32(0xfffff000)

	dirShift   = 22
	tableShift = 12
	indexMask  = uintptr(1<<10 - 1)
)

// Page fault error code bits pushed by the processor.
const (
	faultProtection = uint64(1 << 0)
	faultWrite      = uint64(1 << 1)
)

var (
	// ErrPageFault is returned when an access still faults after the page
	// fault handler has run.
	ErrPageFault = &kernel.Error{Module: "mmu", Message: "page fault could not be resolved"}

	errUnhandledFault = &kernel.Error{Module: "mmu", Message: "no page fault handler installed"}
	errUnaligned      = &kernel.Error{Module: "mmu", Message: "unaligned 32-bit access"}

	// The following functions are mocked by tests.
	dispatchFn = gate.Dispatch
)

// MMU is the memory management unit of the machine.
type MMU struct {
	ram physmem.FrameMapper
}

// New returns an MMU that resolves accesses against ram.
func New(ram physmem.FrameMapper) *MMU {
	return &MMU{ram: ram}
}

// LoadUint32 reads the 32-bit word at virtAddr.
func (m *MMU) LoadUint32(virtAddr uintptr) (uint32, *kernel.Error) {
	if virtAddr&3 != 0 {
		return 0, errUnaligned
	}

	word, err := m.wordAt(virtAddr, false)
	if err != nil {
		return 0, err
	}
	return *word, nil
}

// StoreUint32 writes val to the 32-bit word at virtAddr.
func (m *MMU) StoreUint32(virtAddr uintptr, val uint32) *kernel.Error {
	if virtAddr&3 != 0 {
		return errUnaligned
	}

	word, err := m.wordAt(virtAddr, true)
	if err != nil {
		return err
	}
	*word = val
	return nil
}

// Read copies len(p) bytes starting at virtAddr into p.
func (m *MMU) Read(virtAddr uintptr, p []byte) *kernel.Error {
	return m.copyPages(virtAddr, p, false)
}

// Write copies p to the virtual memory starting at virtAddr.
func (m *MMU) Write(virtAddr uintptr, p []byte) *kernel.Error {
	return m.copyPages(virtAddr, p, true)
}

// Translate returns the physical address for virtAddr, raising a page fault
// if no valid translation exists for the requested access type.
func (m *MMU) Translate(virtAddr uintptr, write bool) (uintptr, *kernel.Error) {
	var (
		physAddr  uintptr
		errorCode uint64
		ok        bool
	)

	for attempt := 0; attempt < 2; attempt++ {
		if physAddr, errorCode, ok = m.resolve(virtAddr, write); ok {
			return physAddr, nil
		}

		if attempt > 0 {
			break
		}

		cpu.WriteCR2(virtAddr)
		if !dispatchFn(gate.PageFaultException, &gate.Registers{Info: errorCode}) {
			return 0, errUnhandledFault
		}
	}

	return 0, ErrPageFault
}

func (m *MMU) wordAt(virtAddr uintptr, write bool) (*uint32, *kernel.Error) {
	physAddr, err := m.Translate(virtAddr, write)
	if err != nil {
		return nil, err
	}

	window, err := m.ram.MapTemporary(pmm.FrameFromAddress(physAddr))
	if err != nil {
		return nil, err
	}
	return (*uint32)(unsafe.Pointer(&window[physAddr&uintptr(mem.PageSize-1)])), nil
}

// copyPages splits an access at page boundaries so that each page is
// translated separately.
func (m *MMU) copyPages(virtAddr uintptr, p []byte, write bool) *kernel.Error {
	for len(p) > 0 {
		physAddr, err := m.Translate(virtAddr, write)
		if err != nil {
			return err
		}

		window, err := m.ram.MapTemporary(pmm.FrameFromAddress(physAddr))
		if err != nil {
			return err
		}

		offset := physAddr & uintptr(mem.PageSize-1)
		var n int
		if write {
			n = copy(window[offset:], p)
		} else {
			n = copy(p, window[offset:])
		}

		p = p[n:]
		virtAddr += uintptr(n)
	}

	return nil
}

// resolve performs the translation without raising a fault. If the access
// cannot be completed it returns the error code that the processor would
// push for the resulting page fault.
func (m *MMU) resolve(virtAddr uintptr, write bool) (uintptr, uint64, bool) {
	offset := virtAddr & uintptr(mem.PageSize-1)

	if !cpu.PagingEnabled() {
		return virtAddr, 0, true
	}

	if frameAddr, writable, ok := cpu.LookupTLB(virtAddr); ok && (writable || !write) {
		return frameAddr | offset, 0, true
	}

	var errorCode uint64
	if write {
		errorCode |= faultWrite
	}

	dirEntry, ok := m.loadEntry(cpu.ActivePDT(), (virtAddr>>dirShift)&indexMask)
	if !ok || dirEntry&entryPresent == 0 {
		return 0, errorCode, false
	}

	tableEntry, ok := m.loadEntry(uintptr(dirEntry&entryFrame), (virtAddr>>tableShift)&indexMask)
	if !ok || tableEntry&entryPresent == 0 {
		return 0, errorCode, false
	}

	writable := dirEntry&tableEntry&entryWritable != 0
	if write && !writable {
		return 0, errorCode | faultProtection, false
	}

	frameAddr := uintptr(tableEntry & entryFrame)
	cpu.FillTLB(virtAddr, frameAddr, writable)
	return frameAddr | offset, 0, true
}

// loadEntry reads entry index of the table stored at physical address
// tableAddr.
func (m *MMU) loadEntry(tableAddr, index uintptr) (uint32, bool) {
	window, err := m.ram.MapTemporary(pmm.FrameFromAddress(tableAddr))
	if err != nil {
		return 0, false
	}

	return *(*uint32)(unsafe.Pointer(&window[index<<mem.PointerShift])), true
}
