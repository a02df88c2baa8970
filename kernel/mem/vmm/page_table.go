package vmm

import (
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/sync"
)

// PageTable is a two-level address space: a page directory whose present
// entries point to page tables.
type PageTable struct {
	paging   *Paging
	dirFrame pmm.Frame
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// NewPageTable allocates a page directory from the kernel pool and identity
// maps the shared part of the address space. All remaining directory
// entries are left not-present.
func NewPageTable(p *Paging) (*PageTable, *kernel.Error) {
	defer sync.Enter().Leave()

	dirFrame, err := p.newTable()
	if err != nil {
		return nil, err
	}

	pt := &PageTable{paging: p, dirFrame: dirFrame}
	for addr := uintptr(0); mem.Size(addr) < p.sharedSize; addr += uintptr(mem.PageSize) {
		if err = pt.Map(PageFromAddress(addr), pmm.FrameFromAddress(addr), FlagRW); err != nil {
			return nil, err
		}
	}

	kfmt.Logger().Debug("page table constructed", "pdt_frame", uint64(dirFrame), "shared_size", uint64(p.sharedSize))
	return pt, nil
}

// DirectoryFrame returns the frame that holds the page directory.
func (pt *PageTable) DirectoryFrame() pmm.Frame { return pt.dirFrame }

// Paging returns the paging state this table belongs to.
func (pt *PageTable) Paging() *Paging { return pt.paging }

// Load installs this table as the active one by pointing CR3 to its
// directory.
func (pt *PageTable) Load() {
	defer sync.Enter().Leave()

	pt.paging.current = pt
	switchPDTFn(pt.dirFrame.Address())

	kfmt.Logger().Debug("page table loaded", "pdt", uint64(pt.dirFrame.Address()))
}

// IsActive returns true if this is the currently loaded page table.
func (pt *PageTable) IsActive() bool { return pt.paging.current == pt }

// walk performs a page table walk for the given virtual address. It calls
// the supplied walkFn with the page table entry that corresponds to each
// page table level. If walkFn returns false then the walk is aborted.
func (pt *PageTable) walk(virtAddr uintptr, walkFn pageTableWalker) *kernel.Error {
	var (
		indices    = tableIndices(virtAddr)
		tableFrame = pt.dirFrame
	)

	for level := uint8(0); level < pageLevels; level++ {
		table, err := pt.paging.table(tableFrame)
		if err != nil {
			return err
		}

		pte := &table[indices[level]]
		if !walkFn(level, pte) {
			return nil
		}

		// A walkFn may install a new table so the entry is read again
		tableFrame = pte.Frame()
	}

	return nil
}

// pteForAddress returns the final page table entry that corresponds to a
// particular virtual address, or ErrInvalidMapping if the page is not
// present.
func (pt *PageTable) pteForAddress(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *pageTableEntry
	)

	if walkErr := pt.walk(virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			entry = nil
			err = ErrInvalidMapping
			return false
		}

		entry = pte
		return true
	}); walkErr != nil {
		return nil, walkErr
	}

	return entry, err
}

// Map establishes a mapping between a virtual page and a physical memory
// frame. Missing page tables are allocated from the kernel pool.
func (pt *PageTable) Map(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	defer sync.Enter().Leave()

	var err *kernel.Error

	walkErr := pt.walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		// If we reached the last level all we need to do is to map the
		// frame in place and flag it as present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(FlagPresent | flags)
			pt.flushTLBEntry(page.Address())
			return true
		}

		if pte.HasFlags(FlagPresent | FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it.
		if !pte.HasFlags(FlagPresent) {
			var tableFrame pmm.Frame
			if tableFrame, err = pt.paging.newTable(); err != nil {
				return false
			}

			*pte = 0
			pte.SetFrame(tableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
		}

		return true
	})

	if walkErr != nil {
		return walkErr
	}
	return err
}

// Unmap removes a mapping previously installed via a call to Map. The
// backing frame is not released.
func (pt *PageTable) Unmap(page Page) *kernel.Error {
	defer sync.Enter().Leave()

	pte, err := pt.pteForAddress(page.Address())
	if err != nil {
		return err
	}

	pte.ClearFlags(FlagPresent)
	pt.flushTLBEntry(page.Address())
	return nil
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func (pt *PageTable) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := pt.pteForAddress(virtAddr)
	if err != nil {
		return 0, err
	}

	return pte.Frame().Address() + PageOffset(virtAddr), nil
}

// FreePage releases the frame backing the page that contains virtAddr and
// marks the page not-present. ErrInvalidMapping is returned if the page is
// not backed.
func (pt *PageTable) FreePage(virtAddr uintptr) *kernel.Error {
	defer sync.Enter().Leave()

	page := PageFromAddress(virtAddr)
	pte, err := pt.pteForAddress(page.Address())
	if err != nil {
		return err
	}

	if err = pt.paging.releaser.ReleaseFrames(pte.Frame()); err != nil {
		return err
	}

	pte.ClearFlags(FlagPresent)
	pt.flushTLBEntry(page.Address())
	return nil
}

func (pt *PageTable) flushTLBEntry(virtAddr uintptr) {
	if pt.IsActive() {
		flushTLBEntryFn(virtAddr)
	}
}
