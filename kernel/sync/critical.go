// Package sync provides the critical section guard used by the memory
// subsystem. The kernel is single-core; mutual exclusion is obtained by
// disabling interrupts so that no timer or keyboard handler can re-enter a
// frame pool or page table operation while it is in flight.
package sync

import "github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"

var (
	// The following functions are mocked by tests.
	interruptsEnabledFn = cpu.InterruptsEnabled
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// Guard marks an active critical section.
type Guard struct {
	reenable bool
}

// Enter disables interrupts and returns a Guard that restores the previous
// interrupt state when released. Critical sections nest: only the outermost
// Leave re-enables interrupts. Typical usage:
//
//	defer sync.Enter().Leave()
func Enter() Guard {
	g := Guard{reenable: interruptsEnabledFn()}
	if g.reenable {
		disableInterruptsFn()
	}
	return g
}

// Leave ends the critical section.
func (g Guard) Leave() {
	if g.reenable {
		enableInterruptsFn()
	}
}
