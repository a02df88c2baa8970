package allocator

import (
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/physmem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
)

// FrameState describes the allocation state of a frame inside a pool.
type FrameState uint8

const (
	// Free frames can be handed out by GetFrames.
	Free FrameState = iota

	// Allocated frames belong to a run but are not its first frame.
	Allocated

	// HeadOfSequence marks the first frame of an allocated run. It is
	// the only state accepted by ReleaseFrame.
	HeadOfSequence
)

// String implements fmt.Stringer.
func (s FrameState) String() string {
	switch s {
	case Free:
		return "free"
	case Allocated:
		return "allocated"
	case HeadOfSequence:
		return "head-of-sequence"
	default:
		return "invalid"
	}
}

const (
	bitsPerFrame  = 2
	framesPerByte = 8 / bitsPerFrame
	stateMask     = byte(1<<bitsPerFrame - 1)

	// FramesPerInfoFrame is the number of frames whose state fits in a
	// single bookkeeping frame.
	FramesPerInfoFrame = uint32(mem.PageSize) * framesPerByte
)

// packState returns b with the state slot (0-3) replaced by s.
func packState(b byte, slot uint32, s FrameState) byte {
	shift := slot * bitsPerFrame
	return b&^(stateMask<<shift) | byte(s)<<shift
}

// unpackState extracts the state stored in slot (0-3) of b.
func unpackState(b byte, slot uint32) FrameState {
	return FrameState((b >> (slot * bitsPerFrame)) & stateMask)
}

// frameBitmap stores the state of every frame in a pool, packed at two bits
// per frame. The state of the frame with pool index i lives in bitmap byte
// i/4 at bit offset 2*(i%4); the encoding is 00 free, 01 allocated and 10
// head-of-sequence. Bitmap byte b lives in info frame b/PageSize at offset
// b%PageSize.
type frameBitmap struct {
	frames [][]byte
}

// newFrameBitmap maps count consecutive info frames starting at first.
func newFrameBitmap(mapper physmem.FrameMapper, first pmm.Frame, count uint32) (frameBitmap, *kernel.Error) {
	bm := frameBitmap{frames: make([][]byte, count)}
	for i := uint32(0); i < count; i++ {
		win, err := mapper.MapTemporary(first + pmm.Frame(i))
		if err != nil {
			return frameBitmap{}, err
		}
		bm.frames[i] = win
	}

	return bm, nil
}

func (bm frameBitmap) byteFor(index uint32) *byte {
	byteIndex := index / framesPerByte
	return &bm.frames[byteIndex>>mem.PageShift][byteIndex&uint32(mem.PageSize-1)]
}

// get returns the state of the frame at the given pool index.
func (bm frameBitmap) get(index uint32) FrameState {
	return unpackState(*bm.byteFor(index), index%framesPerByte)
}

// set updates the state of the frame at the given pool index.
func (bm frameBitmap) set(index uint32, s FrameState) {
	b := bm.byteFor(index)
	*b = packState(*b, index%framesPerByte, s)
}
