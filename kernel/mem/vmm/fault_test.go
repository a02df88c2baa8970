package vmm

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/gate"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	kfmt.SetLogger(kfmt.NewLogger(io.Discard, "ERROR"))
	t.Cleanup(func() {
		kfmt.SetOutputSink(nil)
		kfmt.SetLogger(nil)
	})

	return &buf
}

func mockPanic(t *testing.T) *[]interface{} {
	t.Helper()

	var calls []interface{}
	panicFn = func(e interface{}) {
		calls = append(calls, e)
	}
	t.Cleanup(func() { panicFn = kfmt.Panic })

	return &calls
}

func TestPageFaultHandlerReasons(t *testing.T) {
	defer func() {
		readCR2Fn = cpu.ReadCR2
	}()

	specs := []struct {
		errCode   uint64
		expReason string
	}{
		{0, "read from non-present page"},
		{1, "page protection violation (read)"},
		{2, "write to non-present page"},
		{3, "page protection violation (write)"},
		{4, "page-fault in user-mode"},
		{8, "page table has reserved bit set"},
		{16, "instruction fetch"},
		{0xf00, "unknown"},
	}

	readCR2Fn = func() uint64 {
		return 0xbadf000
	}

	// No page table is loaded so every fault is unrecoverable
	p := &Paging{}
	for specIndex, spec := range specs {
		buf := captureOutput(t)
		calls := mockPanic(t)

		p.HandleFault(&gate.Registers{Info: spec.errCode})

		got := buf.String()
		assert.True(t, strings.HasPrefix(got, "\nPage fault while accessing address: 0x0badf000\nReason: "+spec.expReason+"\n\nRegisters:\n"), "[spec %d] got output:\n%q", specIndex, got)
		assert.Contains(t, got, "EAX = 00000000")
		assert.Equal(t, []interface{}{errNoActivePageTable}, *calls, "[spec %d]", specIndex)
	}
}

func TestLazyPageTableReferences(t *testing.T) {
	m := newTestMachine(t)
	m.boot(t)

	var (
		faultAddr   = uintptr(4 * mem.Mb)
		words       = 4096
		processFree = m.processPool.FreeFrameCount()
		kernelFree  = m.kernelPool.FreeFrameCount()
	)

	for i := 0; i < words; i++ {
		require.Nil(t, m.mmu.StoreUint32(faultAddr+uintptr(i*4), uint32(i)))
	}

	for i := 0; i < words; i++ {
		got, err := m.mmu.LoadUint32(faultAddr + uintptr(i*4))
		require.Nil(t, err)
		require.Equal(t, uint32(i), got)
	}

	// 16 KB were touched: 4 pages and the table that maps them
	assert.Equal(t, processFree-4, m.processPool.FreeFrameCount())
	assert.Equal(t, kernelFree-1, m.kernelPool.FreeFrameCount())

	physAddr, err := m.paging.ActivePageTable().Translate(faultAddr)
	require.Nil(t, err)
	assert.True(t, m.processPool.Contains(pmm.FrameFromAddress(physAddr)))
}

func TestFaultOutsideEveryPoolHalts(t *testing.T) {
	m := newTestMachine(t)
	pt := m.boot(t)
	buf := captureOutput(t)

	_, err := NewVMPool(0x20000000, 256*mem.PageSize, m.processPool, pt, m.mmu)
	require.Nil(t, err)
	processFree := m.processPool.FreeFrameCount()

	assert.PanicsWithValue(t, cpu.ErrHalted, func() {
		_ = m.mmu.StoreUint32(0x10000000, 1)
	})
	assert.True(t, cpu.Halted())

	got := buf.String()
	assert.Contains(t, got, "Page fault while accessing address: 0x10000000\nReason: write to non-present page")
	assert.Contains(t, got, errIllegitimateAccess.Message)
	assert.Contains(t, got, "*** kernel panic: system halted ***")

	_, err = pt.Translate(0x10000000)
	assert.Equal(t, ErrInvalidMapping, err, "no page may be mapped for an illegal access")
	assert.Equal(t, processFree, m.processPool.FreeFrameCount())
}

func TestFaultOnPresentPage(t *testing.T) {
	m := newTestMachine(t)
	pt := m.boot(t)
	captureOutput(t)
	calls := mockPanic(t)

	defer func() {
		readCR2Fn = cpu.ReadCR2
	}()
	readCR2Fn = func() uint64 { return 0x1000 }

	m.paging.HandleFault(&gate.Registers{Info: 3})
	assert.Equal(t, []interface{}{errProtectionViolation}, *calls)

	physAddr, err := pt.Translate(0x1000)
	require.Nil(t, err)
	assert.Equal(t, uintptr(0x1000), physAddr, "existing mapping is untouched")
}

func TestFaultWithExhaustedProcessPool(t *testing.T) {
	m := newTestMachine(t)
	m.boot(t)
	captureOutput(t)
	calls := mockPanic(t)

	_, err := m.processPool.GetFrames(m.processPool.FreeFrameCount())
	require.Nil(t, err)

	defer func() {
		readCR2Fn = cpu.ReadCR2
	}()
	readCR2Fn = func() uint64 { return 0x40000000 }

	m.paging.HandleFault(&gate.Registers{Info: 2})
	require.Len(t, *calls, 1)
	assert.NotNil(t, (*calls)[0])
}
