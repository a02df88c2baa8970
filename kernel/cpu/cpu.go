// Package cpu models the processor state that the memory subsystem depends
// on: the control registers, the interrupt flag, the TLB and the halt line.
// There is exactly one simulated processor per process.
package cpu

import "github.com/sri-1007/CSCE-611-Operating-Systems/kernel"

// CR0PagingEnabled is the PG bit of the CR0 register.
const CR0PagingEnabled = uintptr(1 << 31)

var (
	cr0, cr2, cr3 uintptr

	interruptsEnabled bool
	halted            bool

	// ErrHalted is the value the halting goroutine is unwound with.
	ErrHalted = &kernel.Error{Module: "cpu", Message: "cpu halted"}
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() { interruptsEnabled = true }

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() { interruptsEnabled = false }

// InterruptsEnabled returns true if interrupt handling is enabled.
func InterruptsEnabled() bool { return interruptsEnabled }

// Halt stops instruction execution. The calling goroutine does not resume:
// it is unwound with ErrHalted so that the host can observe the halt.
func Halt() {
	halted = true
	panic(ErrHalted)
}

// Halted returns true if Halt has been invoked since the last Reset.
func Halted() bool { return halted }

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uintptr { return cr0 }

// WriteCR0 stores a value to the CR0 register.
func WriteCR0(val uintptr) { cr0 = val }

// PagingEnabled returns true if the PG bit of CR0 is set.
func PagingEnabled() bool { return cr0&CR0PagingEnabled != 0 }

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint64 { return uint64(cr2) }

// WriteCR2 latches a faulting address into CR2. It is used by the MMU
// right before it raises a page fault.
func WriteCR2(faultAddr uintptr) { cr2 = faultAddr }

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr) {
	cr3 = pdtPhysAddr
	flushTLB()
}

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr { return cr3 }

// Reset returns the processor to its power-on state.
func Reset() {
	cr0, cr2, cr3 = 0, 0, 0
	interruptsEnabled = false
	halted = false
	flushTLB()
}
