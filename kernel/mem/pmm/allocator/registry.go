package allocator

import (
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/sync"
)

var errUnknownFrame = &kernel.Error{Module: "frame_pool", Message: "frame does not belong to any registered pool"}

// Registry keeps track of every constructed frame pool in creation order so
// that frames can be released given only their frame number. The frame
// ranges of registered pools never overlap.
type Registry struct {
	pools []*ContFramePool
}

// NewRegistry returns an empty pool registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) register(pool *ContFramePool) {
	r.pools = append(r.pools, pool)
}

func (r *Registry) overlaps(baseFrame pmm.Frame, frameCount uint32) bool {
	start, end := uint64(baseFrame), uint64(baseFrame)+uint64(frameCount)
	for _, pool := range r.pools {
		poolStart := uint64(pool.baseFrame)
		poolEnd := poolStart + uint64(pool.frameCount)
		if start < poolEnd && poolStart < end {
			return true
		}
	}

	return false
}

// Pools returns the registered pools in creation order.
func (r *Registry) Pools() []*ContFramePool {
	return append([]*ContFramePool(nil), r.pools...)
}

// PoolFor returns the pool that owns frame or nil if no pool does.
func (r *Registry) PoolFor(frame pmm.Frame) *ContFramePool {
	for _, pool := range r.pools {
		if pool.Contains(frame) {
			return pool
		}
	}

	return nil
}

// ReleaseFrames looks up the pool that owns firstFrame and releases the run
// of frames that starts there.
func (r *Registry) ReleaseFrames(firstFrame pmm.Frame) *kernel.Error {
	defer sync.Enter().Leave()

	pool := r.PoolFor(firstFrame)
	if pool == nil {
		return errUnknownFrame
	}

	return pool.ReleaseFrame(firstFrame)
}

// Reset forgets every registered pool.
func (r *Registry) Reset() {
	r.pools = nil
}
