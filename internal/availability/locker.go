// Package availability owns the committed-interval calendar of every
// equipment item and the per-equipment critical section that keeps it free of
// overlaps.
package availability

import "sync"

// Locker serializes calendar writes per equipment item. Booking requests and
// maintenance scheduling for the same equipment run their
// check-then-insert under the same mutex, so neither can win a slot off a
// stale overlap check. Different equipment items never contend.
//
// Locks are process-local: a deployment running several engine instances
// against one database must route each equipment item's writes to a single
// instance.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the equipment item, creating it on first use.
// Mutexes are never removed; the map grows with the number of distinct
// equipment items, which is small and bounded per deployment.
func (l *Locker) Lock(equipmentID string) {
	l.mutexFor(equipmentID).Lock()
}

func (l *Locker) Unlock(equipmentID string) {
	l.mutexFor(equipmentID).Unlock()
}

func (l *Locker) mutexFor(equipmentID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[equipmentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[equipmentID] = m
	}
	return m
}
