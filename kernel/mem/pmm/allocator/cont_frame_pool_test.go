package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/physmem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
)

func newTestMemory(t *testing.T, frames uint32) *physmem.Memory {
	t.Helper()

	ram, err := physmem.New(mem.Size(frames) * mem.PageSize)
	require.Nil(t, err)
	t.Cleanup(func() { ram.Close() })
	return ram
}

// newSelfHostedPool returns a 512-frame pool starting at frame 512 (2 MB).
func newSelfHostedPool(t *testing.T) (*ContFramePool, *Registry) {
	t.Helper()

	reg := NewRegistry()
	pool, err := NewContFramePool(reg, newTestMemory(t, 1024), pmm.Frame(512), 512, 0, 0)
	require.Nil(t, err)
	return pool, reg
}

func TestNeededInfoFrames(t *testing.T) {
	specs := []struct {
		frames uint32
		exp    uint32
	}{
		{0, 0},
		{8, 1},
		{512, 1},
		{FramesPerInfoFrame, 1},
		{FramesPerInfoFrame + 8, 2},
		{7168, 1},
		{1 << 20, 64},
	}

	for _, spec := range specs {
		assert.Equal(t, spec.exp, NeededInfoFrames(spec.frames), "frames: %d", spec.frames)
	}
}

func TestNewContFramePool(t *testing.T) {
	t.Run("self-hosted bitmap", func(t *testing.T) {
		pool, reg := newSelfHostedPool(t)

		assert.Equal(t, pmm.Frame(512), pool.BaseFrame())
		assert.Equal(t, uint32(512), pool.FrameCount())
		assert.Equal(t, uint32(511), pool.FreeFrameCount())

		infoFrame, infoFrames := pool.InfoFrames()
		assert.Equal(t, pmm.Frame(512), infoFrame)
		assert.Equal(t, uint32(1), infoFrames)

		state, err := pool.State(pmm.Frame(512))
		require.Nil(t, err)
		assert.Equal(t, Allocated, state)

		state, err = pool.State(pmm.Frame(1023))
		require.Nil(t, err)
		assert.Equal(t, Free, state)

		assert.Equal(t, []*ContFramePool{pool}, reg.Pools())
	})

	t.Run("caller-supplied bitmap", func(t *testing.T) {
		var (
			ram = newTestMemory(t, 2048)
			reg = NewRegistry()
		)

		kernelPool, err := NewContFramePool(reg, ram, pmm.Frame(512), 512, 0, 0)
		require.Nil(t, err)

		n := NeededInfoFrames(1024)
		infoFrame, err := kernelPool.GetFrames(n)
		require.Nil(t, err)

		processPool, err := NewContFramePool(reg, ram, pmm.Frame(1024), 1024, infoFrame, n)
		require.Nil(t, err)

		assert.Equal(t, uint32(1024), processPool.FreeFrameCount())
		assert.Equal(t, []*ContFramePool{kernelPool, processPool}, reg.Pools())

		_, err = processPool.GetFrames(3)
		require.Nil(t, err)

		// head, allocated, allocated, free => 00 01 01 10
		bitmap, err := ram.MapTemporary(infoFrame)
		require.Nil(t, err)
		assert.Equal(t, byte(0x16), bitmap[0])
	})

	t.Run("errors", func(t *testing.T) {
		var (
			ram = newTestMemory(t, 64)
			reg = NewRegistry()
		)

		specs := []struct {
			baseFrame      pmm.Frame
			frameCount     uint32
			infoFrame      pmm.Frame
			infoFrameCount uint32
			expErr         error
		}{
			{0, 0, 0, 0, errFrameCountAlignment},
			{0, 12, 0, 0, errFrameCountAlignment},
			{0, FramesPerInfoFrame + 8, 0, 0, errSelfHostedTooLarge},
			{0, FramesPerInfoFrame + 8, 1, 1, errNotEnoughInfoFrames},
			{0, 16, 128, 1, physmem.ErrFrameOutOfRange},
		}

		for specIndex, spec := range specs {
			_, err := NewContFramePool(reg, ram, spec.baseFrame, spec.frameCount, spec.infoFrame, spec.infoFrameCount)
			assert.Equal(t, spec.expErr, err, "spec %d", specIndex)
		}
		assert.Empty(t, reg.Pools(), "failed constructions must not register a pool")

		_, err := NewContFramePool(reg, ram, pmm.Frame(16), 16, 0, 0)
		require.Nil(t, err)

		_, err = NewContFramePool(reg, ram, pmm.Frame(24), 16, 0, 0)
		assert.Equal(t, errPoolOverlap, err)

		_, err = NewContFramePool(reg, ram, pmm.Frame(8), 16, 0, 0)
		assert.Equal(t, errPoolOverlap, err)

		_, err = NewContFramePool(reg, ram, pmm.Frame(32), 16, 0, 0)
		assert.Nil(t, err, "adjacent pools do not overlap")
	})
}

func TestGetFrames(t *testing.T) {
	pool, _ := newSelfHostedPool(t)

	// Three runs of 5 frames are handed out back to back after the
	// bookkeeping frame.
	var prev pmm.Frame
	for i, exp := range []pmm.Frame{513, 518, 523} {
		frame, err := pool.GetFrames(5)
		require.Nil(t, err)
		assert.Equal(t, exp, frame)
		if i > 0 {
			assert.True(t, frame >= prev+5, "runs must not overlap")
		}
		prev = frame
	}
	assert.Equal(t, uint32(512-1-15), pool.FreeFrameCount())

	for frame, exp := range map[pmm.Frame]FrameState{
		513: HeadOfSequence,
		514: Allocated,
		517: Allocated,
		518: HeadOfSequence,
		527: Allocated,
		528: Free,
	} {
		state, err := pool.State(frame)
		require.Nil(t, err)
		assert.Equal(t, exp, state, "frame %d", frame)
	}
}

func TestGetFramesErrors(t *testing.T) {
	pool, _ := newSelfHostedPool(t)

	_, err := pool.GetFrames(0)
	assert.Equal(t, errInvalidFrameCount, err)

	frame, err := pool.GetFrames(513)
	assert.Equal(t, errNotEnoughFrames, err)
	assert.False(t, frame.Valid())

	// 511 free frames; asking for all of them still fits
	_, err = pool.GetFrames(512)
	assert.Equal(t, errNotEnoughFrames, err)

	frame, err = pool.GetFrames(511)
	require.Nil(t, err)
	assert.Equal(t, pmm.Frame(513), frame)
	assert.Zero(t, pool.FreeFrameCount())

	_, err = pool.GetFrames(1)
	assert.Equal(t, errNotEnoughFrames, err)
}

func TestGetFramesFragmentation(t *testing.T) {
	pool, _ := newSelfHostedPool(t)

	// Carve the pool into free windows of 9 frames separated by single
	// allocated frames.
	for frame := pmm.Frame(522); frame < 1024; frame += 10 {
		require.Nil(t, pool.MarkInaccessible(frame, 1))
	}
	freeBefore := pool.FreeFrameCount()

	_, err := pool.GetFrames(10)
	assert.Equal(t, errNoContiguousRun, err)
	assert.Equal(t, freeBefore, pool.FreeFrameCount())

	frame, err := pool.GetFrames(9)
	require.Nil(t, err)
	assert.Equal(t, pmm.Frame(513), frame)

	frame, err = pool.GetFrames(9)
	require.Nil(t, err)
	assert.Equal(t, pmm.Frame(523), frame)
}

func TestMarkInaccessible(t *testing.T) {
	pool, _ := newSelfHostedPool(t)
	base := pool.BaseFrame()

	require.Nil(t, pool.MarkInaccessible(base+100, 10))
	assert.Equal(t, uint32(501), pool.FreeFrameCount())

	state, _ := pool.State(base + 100)
	assert.Equal(t, HeadOfSequence, state)
	state, _ = pool.State(base + 109)
	assert.Equal(t, Allocated, state)
	state, _ = pool.State(base + 110)
	assert.Equal(t, Free, state)

	// A run spanning the hole cannot be satisfied
	_, err := pool.GetFrames(500)
	assert.Error(t, err)
	assert.Equal(t, uint32(501), pool.FreeFrameCount())

	frame, err := pool.GetFrames(50)
	require.Nil(t, err)
	assert.True(t, frame+50 <= base+100 || frame >= base+110, "run must avoid the hole")

	specs := []struct {
		frame  pmm.Frame
		n      uint32
		expErr error
	}{
		{base + 105, 1, errFrameNotFree},
		{base + 95, 10, errFrameNotFree},
		{base, 1, errFrameNotFree},
		{base - 1, 2, errFrameOutOfBounds},
		{base + 510, 4, errFrameOutOfBounds},
		{base + 512, 1, errFrameOutOfBounds},
		{base + 200, 0, errInvalidFrameCount},
	}
	for specIndex, spec := range specs {
		freeBefore := pool.FreeFrameCount()
		assert.Equal(t, spec.expErr, pool.MarkInaccessible(spec.frame, spec.n), "spec %d", specIndex)
		assert.Equal(t, freeBefore, pool.FreeFrameCount(), "spec %d", specIndex)
	}
}

func TestReleaseFrame(t *testing.T) {
	pool, _ := newSelfHostedPool(t)
	freeBefore := pool.FreeFrameCount()

	first, err := pool.GetFrames(4)
	require.Nil(t, err)
	second, err := pool.GetFrames(3)
	require.Nil(t, err)
	third, err := pool.GetFrames(2)
	require.Nil(t, err)

	// Releasing the middle run stops at the head of the third run
	require.Nil(t, pool.ReleaseFrame(second))
	assert.Equal(t, freeBefore-6, pool.FreeFrameCount())

	state, _ := pool.State(third)
	assert.Equal(t, HeadOfSequence, state)

	// The freed hole is reused by a request of the same size
	again, err := pool.GetFrames(3)
	require.Nil(t, err)
	assert.Equal(t, second, again)

	for _, frame := range []pmm.Frame{first, again, third} {
		require.Nil(t, pool.ReleaseFrame(frame))
	}
	assert.Equal(t, freeBefore, pool.FreeFrameCount())

	assert.Equal(t, errNotHeadOfSequence, pool.ReleaseFrame(first), "double release")
	assert.Equal(t, errNotHeadOfSequence, pool.ReleaseFrame(pool.BaseFrame()), "bookkeeping frame")
	assert.Equal(t, errFrameOutOfBounds, pool.ReleaseFrame(pmm.Frame(4096)))

	run, err := pool.GetFrames(3)
	require.Nil(t, err)
	assert.Equal(t, errNotHeadOfSequence, pool.ReleaseFrame(run+1))
	assert.Equal(t, freeBefore-3, pool.FreeFrameCount())
}

func TestReleaseRunAtEndOfPool(t *testing.T) {
	pool, _ := newSelfHostedPool(t)

	require.Nil(t, pool.MarkInaccessible(pmm.Frame(1020), 4))
	require.Nil(t, pool.ReleaseFrame(pmm.Frame(1020)))
	assert.Equal(t, uint32(511), pool.FreeFrameCount())
}

func TestPoolOperationsRestoreInterrupts(t *testing.T) {
	defer cpu.Reset()
	pool, _ := newSelfHostedPool(t)

	cpu.EnableInterrupts()
	frame, err := pool.GetFrames(1)
	require.Nil(t, err)
	assert.True(t, cpu.InterruptsEnabled())

	require.Nil(t, pool.ReleaseFrame(frame))
	assert.True(t, cpu.InterruptsEnabled())
}
