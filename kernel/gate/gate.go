// Package gate routes processor exceptions to their registered handlers.
package gate

import (
	"io"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
)

// Registers contains a snapshot of the register values when an exception
// occurs.
type Registers struct {
	EAX uint32
	EBX uint32
	ECX uint32
	EDX uint32
	ESI uint32
	EDI uint32
	EBP uint32

	// Info contains the error code pushed by the processor for
	// exceptions that supply one (e.g. page faults).
	Info uint64

	// The return frame used by IRET
	EIP    uint32
	CS     uint32
	EFlags uint32
	ESP    uint32
	SS     uint32
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "EAX = %08x EBX = %08x\n", r.EAX, r.EBX)
	kfmt.Fprintf(w, "ECX = %08x EDX = %08x\n", r.ECX, r.EDX)
	kfmt.Fprintf(w, "ESI = %08x EDI = %08x\n", r.ESI, r.EDI)
	kfmt.Fprintf(w, "EBP = %08x\n", r.EBP)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "EIP = %08x CS  = %08x\n", r.EIP, r.CS)
	kfmt.Fprintf(w, "ESP = %08x SS  = %08x\n", r.ESP, r.SS)
	kfmt.Fprintf(w, "EFL = %08x\n", r.EFlags)
}

// ExceptionNum describes an x86 exception slot.
type ExceptionNum uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = ExceptionNum(0)

	// DoubleFault occurs when an unhandled exception occurs or when an
	// exception occurs within a running exception handler.
	DoubleFault = ExceptionNum(8)

	// GPFException occurs when a general protection fault occurs.
	GPFException = ExceptionNum(13)

	// PageFaultException occurs when a page directory or page table entry
	// is not present or when a privilege and/or RW protection check fails.
	PageFaultException = ExceptionNum(14)
)

// ExceptionHandler handles an exception. Returning from the handler resumes
// the interrupted instruction.
type ExceptionHandler func(regs *Registers)

var handlers [256]ExceptionHandler

// HandleException ensures that the provided handler will be invoked when a
// particular exception occurs. Passing a nil handler uninstalls it.
func HandleException(num ExceptionNum, handler ExceptionHandler) {
	handlers[num] = handler
}

// Dispatch routes an exception to its handler. It returns false if no
// handler is installed for num.
func Dispatch(num ExceptionNum, regs *Registers) bool {
	handler := handlers[num]
	if handler == nil {
		return false
	}

	handler(regs)
	return true
}
