package vmm

import "github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << mem.PageShift)
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses. in the latter case, the input address will be rounded down to the
// page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(uintptr(mem.PageSize - 1))) >> mem.PageShift)
}

// PageOffset returns the offset of virtAddr within its page.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & uintptr(mem.PageSize-1)
}

// tableIndices splits virtAddr into its directory and page table indices.
func tableIndices(virtAddr uintptr) [pageLevels]uintptr {
	var indices [pageLevels]uintptr
	for level := 0; level < pageLevels; level++ {
		indices[level] = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
	}
	return indices
}
