package vmm

import (
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/gate"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/sync"
)

var (
	errIllegitimateAccess  = &kernel.Error{Module: "vmm", Message: "protection violation: address is outside every registered VM pool"}
	errProtectionViolation = &kernel.Error{Module: "vmm", Message: "protection violation: page is already present"}
)

// HandleFault is invoked when a directory or page table entry is not present
// or when a RW protection check fails. Faults on addresses that may be
// backed are resolved by mapping a fresh frame from the process pool; any
// other fault halts the machine.
func (p *Paging) HandleFault(regs *gate.Registers) {
	faultAddress := uintptr(readCR2Fn())

	if err := p.resolveFault(faultAddress); err != nil {
		nonRecoverablePageFault(faultAddress, regs, err)
	}
}

func (p *Paging) resolveFault(faultAddress uintptr) *kernel.Error {
	defer sync.Enter().Leave()

	pt := p.current
	if pt == nil {
		return errNoActivePageTable
	}

	if !p.pools.IsLegitimate(faultAddress) {
		return errIllegitimateAccess
	}

	page := PageFromAddress(faultAddress)
	if _, err := pt.pteForAddress(page.Address()); err == nil {
		return errProtectionViolation
	}

	frame, err := p.processPool.GetFrames(1)
	if err != nil {
		return err
	}

	if err = pt.Map(page, frame, FlagRW); err != nil {
		_ = p.releaser.ReleaseFrames(frame)
		return err
	}

	kfmt.Logger().Debug("page fault resolved", "addr", uint64(faultAddress), "frame", uint64(frame))
	return nil
}

func nonRecoverablePageFault(faultAddress uintptr, regs *gate.Registers, err *kernel.Error) {
	kfmt.Printf("\nPage fault while accessing address: 0x%08x\nReason: ", faultAddress)
	switch {
	case regs.Info == 0:
		kfmt.Printf("read from non-present page")
	case regs.Info == 1:
		kfmt.Printf("page protection violation (read)")
	case regs.Info == 2:
		kfmt.Printf("write to non-present page")
	case regs.Info == 3:
		kfmt.Printf("page protection violation (write)")
	case regs.Info == 4:
		kfmt.Printf("page-fault in user-mode")
	case regs.Info == 8:
		kfmt.Printf("page table has reserved bit set")
	case regs.Info == 16:
		kfmt.Printf("instruction fetch")
	default:
		kfmt.Printf("unknown")
	}

	kfmt.Printf("\n\nRegisters:\n")
	regs.DumpTo(kfmt.GetOutputSink())

	panicFn(err)
}
