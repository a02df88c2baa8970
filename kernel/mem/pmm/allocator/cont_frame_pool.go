// Package allocator implements the physical frame allocators used by the
// kernel: contiguous frame pools that track per-frame state in a packed
// bitmap and a registry that lets frames be released by number alone.
package allocator

import (
	"io"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/physmem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/sync"
)

var (
	errFrameCountAlignment = &kernel.Error{Module: "frame_pool", Message: "number of frames must be a non-zero multiple of 8"}
	errSelfHostedTooLarge  = &kernel.Error{Module: "frame_pool", Message: "bitmap does not fit in a single self-hosted info frame"}
	errNotEnoughInfoFrames = &kernel.Error{Module: "frame_pool", Message: "not enough info frames to hold the frame bitmap"}
	errPoolOverlap         = &kernel.Error{Module: "frame_pool", Message: "frame range overlaps an existing pool"}
	errInvalidFrameCount   = &kernel.Error{Module: "frame_pool", Message: "frame count must be greater than zero"}
	errNotEnoughFrames     = &kernel.Error{Module: "frame_pool", Message: "cannot allocate more frames than available"}
	errNoContiguousRun     = &kernel.Error{Module: "frame_pool", Message: "no contiguous run of free frames available"}
	errFrameOutOfBounds    = &kernel.Error{Module: "frame_pool", Message: "frame is outside of pool bounds"}
	errFrameNotFree        = &kernel.Error{Module: "frame_pool", Message: "frame is already in use"}
	errNotHeadOfSequence   = &kernel.Error{Module: "frame_pool", Message: "frame is not the head of an allocated sequence"}
)

// ContFramePool manages a contiguous range of physical frames and supports
// allocating single frames as well as runs of contiguous frames.
//
// The state of every frame is tracked in a bitmap that is stored in physical
// memory: either in the first frame of the pool itself (self-hosted) or in a
// set of info frames supplied by the caller. The pool that is constructed
// first has nothing to borrow info frames from and is therefore
// self-hosted; subsequent pools typically obtain their info frames from it.
type ContFramePool struct {
	// baseFrame is the frame number for the first frame in this pool.
	// Bitmap entry i corresponds to frame (baseFrame + i).
	baseFrame pmm.Frame

	frameCount uint32

	// freeCount tracks the number of free frames. It is updated
	// incrementally by every state transition.
	freeCount uint32

	infoFrame      pmm.Frame
	infoFrameCount uint32

	bitmap frameBitmap
}

// NeededInfoFrames returns the number of info frames required to hold the
// frame bitmap for a pool of frameCount frames.
func NeededInfoFrames(frameCount uint32) uint32 {
	return (frameCount + FramesPerInfoFrame - 1) / FramesPerInfoFrame
}

// NewContFramePool sets up a frame pool for the frames in
// [baseFrame, baseFrame+frameCount) and registers it with reg.
//
// If infoFrame is 0, the bitmap is stored in baseFrame which is then marked
// as allocated. Otherwise the bitmap is stored in the infoFrameCount frames
// starting at infoFrame; these must be reserved by the caller.
func NewContFramePool(reg *Registry, mapper physmem.FrameMapper, baseFrame pmm.Frame, frameCount uint32, infoFrame pmm.Frame, infoFrameCount uint32) (*ContFramePool, *kernel.Error) {
	if frameCount == 0 || frameCount%8 != 0 {
		return nil, errFrameCountAlignment
	}

	needed := NeededInfoFrames(frameCount)
	selfHosted := infoFrame == 0
	if selfHosted {
		if needed > 1 {
			return nil, errSelfHostedTooLarge
		}
		infoFrame, infoFrameCount = baseFrame, 1
	} else if infoFrameCount < needed {
		return nil, errNotEnoughInfoFrames
	}

	if reg.overlaps(baseFrame, frameCount) {
		return nil, errPoolOverlap
	}

	bitmap, err := newFrameBitmap(mapper, infoFrame, infoFrameCount)
	if err != nil {
		return nil, err
	}

	pool := &ContFramePool{
		baseFrame:      baseFrame,
		frameCount:     frameCount,
		freeCount:      frameCount,
		infoFrame:      infoFrame,
		infoFrameCount: infoFrameCount,
		bitmap:         bitmap,
	}

	for index := uint32(0); index < frameCount; index++ {
		bitmap.set(index, Free)
	}

	// The bitmap consumes the leading frame of a self-hosted pool
	if selfHosted {
		bitmap.set(0, Allocated)
		pool.freeCount--
	}

	reg.register(pool)

	kfmt.Logger().Debug("frame pool initialized",
		"base_frame", uint64(baseFrame),
		"frames", frameCount,
		"info_frame", uint64(infoFrame),
		"info_frames", infoFrameCount,
		"self_hosted", selfHosted,
	)

	return pool, nil
}

// BaseFrame returns the first frame managed by the pool.
func (p *ContFramePool) BaseFrame() pmm.Frame { return p.baseFrame }

// FrameCount returns the number of frames managed by the pool.
func (p *ContFramePool) FrameCount() uint32 { return p.frameCount }

// FreeFrameCount returns the number of free frames in the pool.
func (p *ContFramePool) FreeFrameCount() uint32 { return p.freeCount }

// InfoFrames returns the location of the pool's bitmap.
func (p *ContFramePool) InfoFrames() (pmm.Frame, uint32) { return p.infoFrame, p.infoFrameCount }

// Contains returns true if frame belongs to this pool.
func (p *ContFramePool) Contains(frame pmm.Frame) bool {
	return frame >= p.baseFrame && uint64(frame-p.baseFrame) < uint64(p.frameCount)
}

// State returns the allocation state of frame.
func (p *ContFramePool) State(frame pmm.Frame) (FrameState, *kernel.Error) {
	if !p.Contains(frame) {
		return Free, errFrameOutOfBounds
	}

	return p.bitmap.get(uint32(frame - p.baseFrame)), nil
}

// GetFrames allocates a run of n contiguous frames and returns the number of
// its first frame. The first free run found by a linear scan of the pool is
// used.
func (p *ContFramePool) GetFrames(n uint32) (pmm.Frame, *kernel.Error) {
	defer sync.Enter().Leave()

	switch {
	case n == 0:
		return pmm.InvalidFrame, errInvalidFrameCount
	case n > p.frameCount || n > p.freeCount:
		return pmm.InvalidFrame, errNotEnoughFrames
	}

	index, found := p.findRun(n)
	if !found {
		return pmm.InvalidFrame, errNoContiguousRun
	}

	p.markRun(index, n)
	return p.baseFrame + pmm.Frame(index), nil
}

// findRun returns the pool index of the first run of n free frames. When a
// candidate window hits an allocated frame, the scan resumes right after it.
func (p *ContFramePool) findRun(n uint32) (uint32, bool) {
	for start := uint32(0); start+n <= p.frameCount; {
		var run uint32
		for run < n && p.bitmap.get(start+run) == Free {
			run++
		}

		if run == n {
			return start, true
		}

		start += run + 1
	}

	return 0, false
}

// markRun flags the run of n frames at index as allocated, with the first
// frame marked as the head of the sequence.
func (p *ContFramePool) markRun(index, n uint32) {
	p.bitmap.set(index, HeadOfSequence)
	for i := index + 1; i < index+n; i++ {
		p.bitmap.set(i, Allocated)
	}
	p.freeCount -= n
}

// MarkInaccessible flags the n frames starting at baseFrame as allocated
// without searching. It is used to carve known-unusable regions (e.g.
// memory holes) out of the pool. All frames must be in range and free.
func (p *ContFramePool) MarkInaccessible(baseFrame pmm.Frame, n uint32) *kernel.Error {
	defer sync.Enter().Leave()

	if n == 0 {
		return errInvalidFrameCount
	}

	if !p.Contains(baseFrame) || uint64(baseFrame-p.baseFrame)+uint64(n) > uint64(p.frameCount) {
		return errFrameOutOfBounds
	}

	index := uint32(baseFrame - p.baseFrame)
	for i := index; i < index+n; i++ {
		if p.bitmap.get(i) != Free {
			return errFrameNotFree
		}
	}

	p.markRun(index, n)
	kfmt.Logger().Debug("frames marked inaccessible", "base_frame", uint64(baseFrame), "frames", n)
	return nil
}

// ReleaseFrame releases the run of frames whose head is firstFrame. The run
// ends at the first frame that is free or is the head of another run.
func (p *ContFramePool) ReleaseFrame(firstFrame pmm.Frame) *kernel.Error {
	defer sync.Enter().Leave()

	if !p.Contains(firstFrame) {
		return errFrameOutOfBounds
	}

	index := uint32(firstFrame - p.baseFrame)
	if p.bitmap.get(index) != HeadOfSequence {
		return errNotHeadOfSequence
	}

	p.bitmap.set(index, Free)
	p.freeCount++
	for index++; index < p.frameCount && p.bitmap.get(index) == Allocated; index++ {
		p.bitmap.set(index, Free)
		p.freeCount++
	}

	return nil
}

// DumpTo outputs a summary of the pool to w.
func (p *ContFramePool) DumpTo(w io.Writer) {
	var heads uint32
	for index := uint32(0); index < p.frameCount; index++ {
		if p.bitmap.get(index) == HeadOfSequence {
			heads++
		}
	}

	kfmt.Fprintf(w, "frames: [0x%05x - 0x%05x), count: %d\n", uint64(p.baseFrame), uint64(p.baseFrame)+uint64(p.frameCount), p.frameCount)
	kfmt.Fprintf(w, "free: %d, allocated runs: %d\n", p.freeCount, heads)
	kfmt.Fprintf(w, "bitmap: frame 0x%05x, info frames: %d\n", uint64(p.infoFrame), p.infoFrameCount)
}
