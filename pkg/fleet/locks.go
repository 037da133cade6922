package fleet

import "sync"

// recordLocks serializes mutating operations per record id. A lock is
// created on first use and kept for the record's lifetime; the set is small
// (one mutex per live record) so no eviction is needed.
type recordLocks struct {
	mu sync.Map
}

func (l *recordLocks) lock(id string) {
	v, _ := l.mu.LoadOrStore(id, &sync.Mutex{})
	v.(*sync.Mutex).Lock()
}

func (l *recordLocks) unlock(id string) {
	v, ok := l.mu.Load(id)
	if !ok {
		return
	}
	v.(*sync.Mutex).Unlock()
}

// forget drops the lock entry after a record is deleted.
func (l *recordLocks) forget(id string) {
	l.mu.Delete(id)
}
