package mem

const (
	// PointerShift is equal to log2 of the size of a page table entry on
	// the 32-bit paging model. Entries are 4 bytes wide.
	PointerShift = 2

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes. Frames and pages
	// share the same size.
	PageSize = Size(1 << PageShift)
)
