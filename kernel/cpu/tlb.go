package cpu

// tlbEntry caches a translation for a single virtual page.
type tlbEntry struct {
	frameAddr uintptr
	writable  bool
}

const pageMask = ^uintptr(0xfff)

var tlb = make(map[uintptr]tlbEntry)

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr) {
	delete(tlb, virtAddr&pageMask)
}

// LookupTLB returns the cached physical frame address for the page that
// contains virtAddr.
func LookupTLB(virtAddr uintptr) (frameAddr uintptr, writable, ok bool) {
	entry, ok := tlb[virtAddr&pageMask]
	return entry.frameAddr, entry.writable, ok
}

// FillTLB caches a translation after a successful page table walk.
func FillTLB(virtAddr, frameAddr uintptr, writable bool) {
	tlb[virtAddr&pageMask] = tlbEntry{frameAddr: frameAddr & pageMask, writable: writable}
}

// TLBSize returns the number of cached translations.
func TLBSize() int { return len(tlb) }

func flushTLB() {
	for addr := range tlb {
		delete(tlb, addr)
	}
}
