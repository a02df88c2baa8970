package kmain

import (
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/vmm"
)

var (
	errVerificationFailed = &kernel.Error{Module: "kmain", Message: "memory contents do not match the values written"}
	errIllegitimateRegion = &kernel.Error{Module: "kmain", Message: "allocated region is outside of its pool"}
)

// TestPageTable writes n consecutive 32-bit words starting at startAddr and
// reads them back. Every page touched is faulted in on first access.
func (k *Kernel) TestPageTable(startAddr uintptr, n int) *kernel.Error {
	for i := 0; i < n; i++ {
		if err := k.MMU.StoreUint32(startAddr+uintptr(i)*4, uint32(i)); err != nil {
			return err
		}
	}

	kfmt.Logger().Info("done writing to memory; verifying", "addr", uint64(startAddr), "words", n)

	for i := 0; i < n; i++ {
		got, err := k.MMU.LoadUint32(startAddr + uintptr(i)*4)
		if err != nil {
			return err
		}
		if got != uint32(i) {
			return errVerificationFailed
		}
	}

	return nil
}

// TestVMPool allocates arrays of size2*i words for i in [1, size1), fills
// each one, verifies it in reverse order and deletes it.
func (k *Kernel) TestVMPool(pool *vmm.VMPool, size1, size2 int) *kernel.Error {
	for i := 1; i < size1; i++ {
		words := size2 * i
		arr := k.New(pool, mem.Size(words)*4)
		if !pool.IsLegitimate(arr) {
			return errIllegitimateRegion
		}

		for j := 0; j < words; j++ {
			if err := k.MMU.StoreUint32(arr+uintptr(j)*4, uint32(j)); err != nil {
				return err
			}
		}

		for j := words - 1; j >= 0; j-- {
			got, err := k.MMU.LoadUint32(arr + uintptr(j)*4)
			if err != nil {
				return err
			}
			if got != uint32(j) {
				return errVerificationFailed
			}
		}

		k.Delete(pool, arr)
	}

	kfmt.Logger().Info("vm pool test complete", "pool", uint64(pool.Base()), "allocations", size1-1)
	return nil
}
