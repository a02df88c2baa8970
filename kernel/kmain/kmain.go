// Package kmain boots the memory subsystem of the machine: it carves the
// physical frame pools, sets up paging and creates the virtual memory pools
// that back the kernel's new/delete layer.
package kmain

import (
	"io"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/gate"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/hal/mmu"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/physmem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm/allocator"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/vmm"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errPoolsExist = &kernel.Error{Module: "kmain", Message: "vm pools have already been created"}
)

// Kernel holds the memory subsystem of a booted machine.
type Kernel struct {
	Config Config

	RAM         *physmem.Memory
	Registry    *allocator.Registry
	KernelPool  *allocator.ContFramePool
	ProcessPool *allocator.ContFramePool
	Paging      *vmm.Paging
	PageTable   *vmm.PageTable
	MMU         *mmu.MMU

	// CodePool and HeapPool are nil until CreateVMPools is called.
	CodePool *vmm.VMPool
	HeapPool *vmm.VMPool
}

// Boot brings up physical memory, the frame pools and paging according to
// cfg. Boot errors are fatal.
func Boot(cfg Config) *Kernel {
	k, err := boot(cfg)
	if err != nil {
		panicFn(err)
		return nil
	}

	return k
}

func boot(cfg Config) (*Kernel, *kernel.Error) {
	var (
		k   = &Kernel{Config: cfg, Registry: allocator.NewRegistry()}
		err *kernel.Error
	)

	if k.RAM, err = physmem.New(mem.Size(cfg.MemorySize)); err != nil {
		return nil, err
	}
	k.MMU = mmu.New(k.RAM)

	cpu.EnableInterrupts()

	if k.KernelPool, err = allocator.NewContFramePool(k.Registry, k.RAM, pmm.Frame(cfg.KernelPool.StartFrame), cfg.KernelPool.Frames, 0, 0); err != nil {
		return nil, k.abort(err)
	}

	infoFrames := allocator.NeededInfoFrames(cfg.ProcessPool.Frames)
	infoFrame, err := k.KernelPool.GetFrames(infoFrames)
	if err != nil {
		return nil, k.abort(err)
	}

	if k.ProcessPool, err = allocator.NewContFramePool(k.Registry, k.RAM, pmm.Frame(cfg.ProcessPool.StartFrame), cfg.ProcessPool.Frames, infoFrame, infoFrames); err != nil {
		return nil, k.abort(err)
	}

	if cfg.MemoryHole.Frames != 0 {
		if err = k.ProcessPool.MarkInaccessible(pmm.Frame(cfg.MemoryHole.StartFrame), cfg.MemoryHole.Frames); err != nil {
			return nil, k.abort(err)
		}
	}

	if k.Paging, err = vmm.InitPaging(k.RAM, k.KernelPool, k.ProcessPool, k.Registry, mem.Size(cfg.SharedSize)); err != nil {
		return nil, k.abort(err)
	}

	if k.PageTable, err = vmm.NewPageTable(k.Paging); err != nil {
		return nil, k.abort(err)
	}

	k.PageTable.Load()
	if err = k.Paging.EnablePaging(); err != nil {
		return nil, k.abort(err)
	}

	kfmt.Logger().Info("memory subsystem ready",
		"memory", cfg.MemorySize,
		"kernel_free_frames", k.KernelPool.FreeFrameCount(),
		"process_free_frames", k.ProcessPool.FreeFrameCount(),
	)
	return k, nil
}

// abort releases the partially booted machine and returns err.
func (k *Kernel) abort(err *kernel.Error) *kernel.Error {
	k.Close()
	return err
}

// CreateVMPools creates the code and heap pools. Once they exist, faults
// outside their windows are fatal.
func (k *Kernel) CreateVMPools() *kernel.Error {
	if k.CodePool != nil || k.HeapPool != nil {
		return errPoolsExist
	}

	var err *kernel.Error
	if k.CodePool, err = k.newVMPool(k.Config.CodePool); err != nil {
		return err
	}

	if k.HeapPool, err = k.newVMPool(k.Config.HeapPool); err != nil {
		return err
	}

	return nil
}

func (k *Kernel) newVMPool(window WindowConfig) (*vmm.VMPool, *kernel.Error) {
	return vmm.NewVMPool(uintptr(window.Base), mem.Size(window.Size), k.ProcessPool, k.PageTable, k.MMU)
}

// New allocates size bytes from pool. Allocation failures are fatal.
func (k *Kernel) New(pool *vmm.VMPool, size mem.Size) uintptr {
	addr, err := pool.Allocate(size)
	if err != nil {
		panicFn(err)
	}

	return addr
}

// Delete releases the allocation that starts at addr. Releasing an address
// that was not returned by New is fatal.
func (k *Kernel) Delete(pool *vmm.VMPool, addr uintptr) {
	if err := pool.Release(addr); err != nil {
		panicFn(err)
	}
}

// DumpTo outputs the memory map of the machine to w.
func (k *Kernel) DumpTo(w io.Writer) {
	indented := &kfmt.PrefixWriter{Sink: w, Prefix: []byte("  ")}

	kfmt.Fprintf(w, "physical memory: %d bytes (%d frames)\n", uint64(k.RAM.Size()), k.RAM.FrameCount())

	kfmt.Fprintf(w, "kernel pool:\n")
	k.KernelPool.DumpTo(indented)

	kfmt.Fprintf(w, "process pool:\n")
	k.ProcessPool.DumpTo(indented)

	if hole := k.Config.MemoryHole; hole.Frames != 0 {
		kfmt.Fprintf(w, "memory hole: frames [0x%05x - 0x%05x)\n", hole.StartFrame, hole.StartFrame+hole.Frames)
	}

	kfmt.Fprintf(w, "shared: [0x%08x - 0x%08x) identity mapped, pdt frame: 0x%05x\n", 0, k.Config.SharedSize, uint64(k.PageTable.DirectoryFrame()))

	for _, pool := range []struct {
		name string
		pool *vmm.VMPool
	}{{"code pool", k.CodePool}, {"heap pool", k.HeapPool}} {
		if pool.pool == nil {
			continue
		}

		kfmt.Fprintf(w, "%s:\n", pool.name)
		pool.pool.DumpTo(indented)
	}
}

// Close releases physical memory and returns the processor to its power-on
// state.
func (k *Kernel) Close() {
	gate.HandleException(gate.PageFaultException, nil)
	cpu.Reset()

	if k.RAM != nil {
		_ = k.RAM.Close()
		k.RAM = nil
	}
}
