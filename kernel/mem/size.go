package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Pages returns the number of pages needed to hold a block of this size,
// rounding up to the next page boundary.
func (s Size) Pages() uint32 {
	return uint32((s + PageSize - 1) >> PageShift)
}

// PageAligned returns s rounded up to the nearest multiple of PageSize.
func (s Size) PageAligned() Size {
	return (s + (PageSize - 1)) & ^(PageSize - 1)
}
