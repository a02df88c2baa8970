package vmm

// VMPoolList is the ordered set of VM pools registered with a Paging
// instance.
type VMPoolList struct {
	pools []*VMPool
}

// Append adds pool to the end of the list.
func (l *VMPoolList) Append(pool *VMPool) {
	l.pools = append(l.pools, pool)
}

// Remove drops pool from the list if it is present.
func (l *VMPoolList) Remove(pool *VMPool) {
	for i, p := range l.pools {
		if p == pool {
			l.pools = append(l.pools[:i], l.pools[i+1:]...)
			return
		}
	}
}

// Len returns the number of pools in the list.
func (l *VMPoolList) Len() int { return len(l.pools) }

// Pools returns a copy of the list contents.
func (l *VMPoolList) Pools() []*VMPool {
	return append([]*VMPool(nil), l.pools...)
}

// PoolFor returns the pool whose window contains addr or nil.
func (l *VMPoolList) PoolFor(addr uintptr) *VMPool {
	for _, pool := range l.pools {
		if pool.IsLegitimate(addr) {
			return pool
		}
	}

	return nil
}

// IsLegitimate returns true if addr may be backed on demand: either no pool
// has been registered yet or addr falls inside the window of some pool.
func (l *VMPoolList) IsLegitimate(addr uintptr) bool {
	return len(l.pools) == 0 || l.PoolFor(addr) != nil
}
