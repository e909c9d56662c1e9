package registry

import "github.com/wuyuepku/ssfscg/internal/domain"

type retainedCheckpoint[T any] struct {
	value T
	seq   uint64
}

// retention keeps checkpoints of clients that are gone, bounded by limit.
// It is not synchronized; the owning shard's lock must be held.
type retention[T any] struct {
	entries map[domain.ClientID]retainedCheckpoint[T]
	limit   int
}

func newRetention[T any](limit int) *retention[T] {
	return &retention[T]{
		entries: make(map[domain.ClientID]retainedCheckpoint[T]),
		limit:   limit,
	}
}

// put stores value and returns the change in size and how many older
// entries were evicted to stay within limit.
func (r *retention[T]) put(id domain.ClientID, value T, seq uint64) (delta int, evicted int) {
	if r.limit <= 0 {
		return 0, 0
	}
	before := len(r.entries)
	r.entries[id] = retainedCheckpoint[T]{value: value, seq: seq}
	for len(r.entries) > r.limit {
		if !r.evictOldest() {
			break
		}
		evicted++
	}
	return len(r.entries) - before, evicted
}

func (r *retention[T]) get(id domain.ClientID) (T, bool) {
	entry, ok := r.entries[id]
	return entry.value, ok
}

func (r *retention[T]) take(id domain.ClientID) (T, bool) {
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return entry.value, ok
}

func (r *retention[T]) remove(id domain.ClientID) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *retention[T]) size() int {
	return len(r.entries)
}

// evictOldest removes the entry stored first.
func (r *retention[T]) evictOldest() bool {
	var oldestID domain.ClientID
	var oldestSeq uint64
	found := false

	for id, entry := range r.entries {
		if !found || entry.seq < oldestSeq {
			oldestID = id
			oldestSeq = entry.seq
			found = true
		}
	}

	if found {
		delete(r.entries, oldestID)
	}
	return found
}
