package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wuyuepku/ssfscg/internal/domain"
	"github.com/wuyuepku/ssfscg/internal/infra/handle"
	"github.com/wuyuepku/ssfscg/internal/infra/telemetry"
)

type entry[T any] struct {
	handle        handle.Handle[T]
	checkpoint    T
	hasCheckpoint bool
}

type shard[T any] struct {
	mu       sync.Mutex
	entries  map[domain.ClientID]*entry[T]
	retained *retention[T]
}

// Registry tracks clients by identity. It is safe for concurrent use.
type Registry[T any] struct {
	name    string
	shards  []*shard[T]
	clone   func(T) T
	logger  *zap.Logger
	metrics domain.Metrics

	seq           atomic.Uint64
	entryCount    atomic.Int64
	retainedCount atomic.Int64

	mu             sync.Mutex
	sweeperStarted bool
}

// New constructs an empty registry.
func New[T any](opts ...Option[T]) *Registry[T] {
	o := buildOptions(opts)
	perShard := 0
	if o.retainLimit > 0 {
		perShard = (o.retainLimit + o.shards - 1) / o.shards
	}
	shards := make([]*shard[T], o.shards)
	for i := range shards {
		shards[i] = &shard[T]{
			entries:  make(map[domain.ClientID]*entry[T]),
			retained: newRetention[T](perShard),
		}
	}
	return &Registry[T]{
		name:    o.name,
		shards:  shards,
		clone:   o.clone,
		logger:  o.logger.Named("registry").With(telemetry.RegistryField(o.name)),
		metrics: o.metrics,
	}
}

// Name returns the registry label.
func (r *Registry[T]) Name() string {
	return r.name
}

func (r *Registry[T]) shardFor(id domain.ClientID) *shard[T] {
	return r.shards[uint64(id)%uint64(len(r.shards))]
}

// HasClient reports whether a live entry exists for id. A dead entry found
// here is pruned.
func (r *Registry[T]) HasClient(id domain.ClientID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Lookup returns the handle of the live entry for id.
func (r *Registry[T]) Lookup(id domain.ClientID) (handle.Handle[T], bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return handle.Handle[T]{}, false
	}
	if e.handle.IsAlive() {
		h := e.handle
		s.mu.Unlock()
		return h, true
	}
	evicted := r.pruneLocked(s, id, e)
	s.mu.Unlock()

	r.observePrune(domain.PruneLazy, 1, evicted)
	r.logger.Debug("pruned dead client", telemetry.ClientIDField(id), telemetry.EventField(telemetry.EventLazyPrune))
	return handle.Handle[T]{}, false
}

// Register adds h. It fails with domain.ErrAlreadyRegistered when a live
// entry for the same client exists. A dead entry for the same client is
// replaced.
func (r *Registry[T]) Register(h handle.Handle[T]) error {
	if h.IsZero() {
		r.metrics.ObserveRegistration(r.name, domain.RegistrationInvalid)
		return fmt.Errorf("register: %w", domain.ErrInvalidHandle)
	}
	id := h.ID()
	s := r.shardFor(id)
	result := domain.RegistrationAccepted
	evicted := 0

	s.mu.Lock()
	if existing, ok := s.entries[id]; ok {
		if existing.handle.IsAlive() {
			s.mu.Unlock()
			r.metrics.ObserveRegistration(r.name, domain.RegistrationRejected)
			return fmt.Errorf("register client %d: %w", id, domain.ErrAlreadyRegistered)
		}
		evicted = r.pruneLocked(s, id, existing)
		result = domain.RegistrationReplaced
	}
	s.entries[id] = &entry[T]{handle: h}
	r.entryCount.Add(1)
	s.mu.Unlock()

	r.metrics.ObserveRegistration(r.name, result)
	if result == domain.RegistrationReplaced {
		r.observePrune(domain.PruneLazy, 1, evicted)
	} else {
		r.publishGauges()
	}
	r.logger.Debug("client registered", telemetry.ClientIDField(id), zap.String("result", string(result)))
	return nil
}

// Deregister removes the entry for id together with any checkpoint of it.
func (r *Registry[T]) Deregister(id domain.ClientID) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	_, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		r.entryCount.Add(-1)
	}
	if s.retained.remove(id) {
		r.retainedCount.Add(-1)
	}
	s.mu.Unlock()

	if ok {
		r.publishGauges()
		r.logger.Debug("client deregistered", telemetry.ClientIDField(id))
	}
	return ok
}

// Checkpoint caches a copy of value for the live entry of id. It does nothing
// when the entry is absent or dead.
func (r *Registry[T]) Checkpoint(id domain.ClientID, value T) {
	r.storeCheckpoint(id, r.clone(value))
}

func (r *Registry[T]) storeCheckpoint(id domain.ClientID, value T) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	stored := ok && e.handle.IsAlive()
	if stored {
		e.checkpoint = value
		e.hasCheckpoint = true
	}
	s.mu.Unlock()

	r.metrics.ObserveCheckpoint(r.name, domain.CheckpointStore, outcome(stored))
	return stored
}

// ReadCheckpoint returns the cached value for id whether or not the client is
// still alive. The checkpoint is left in place.
func (r *Registry[T]) ReadCheckpoint(id domain.ClientID) (T, bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	var value T
	found := false
	if e, ok := s.entries[id]; ok && e.hasCheckpoint {
		value, found = e.checkpoint, true
	} else {
		value, found = s.retained.get(id)
	}
	s.mu.Unlock()

	r.metrics.ObserveCheckpoint(r.name, domain.CheckpointRead, outcome(found))
	if !found {
		return value, false
	}
	return r.clone(value), true
}

// TakeCheckpoint returns the cached value for id and forgets it.
func (r *Registry[T]) TakeCheckpoint(id domain.ClientID) (T, bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	var value T
	found := false
	if e, ok := s.entries[id]; ok && e.hasCheckpoint {
		value, found = e.checkpoint, true
		var zero T
		e.checkpoint = zero
		e.hasCheckpoint = false
	} else if value, found = s.retained.take(id); found {
		r.retainedCount.Add(-1)
	}
	s.mu.Unlock()

	r.metrics.ObserveCheckpoint(r.name, domain.CheckpointTake, outcome(found))
	if found {
		r.publishGauges()
	}
	return value, found
}

// DropCheckpoint discards any checkpoint held for id.
func (r *Registry[T]) DropCheckpoint(id domain.ClientID) {
	s := r.shardFor(id)
	s.mu.Lock()
	if e, ok := s.entries[id]; ok && e.hasCheckpoint {
		var zero T
		e.checkpoint = zero
		e.hasCheckpoint = false
	}
	dropped := s.retained.remove(id)
	if dropped {
		r.retainedCount.Add(-1)
	}
	s.mu.Unlock()

	if dropped {
		r.publishGauges()
	}
}

// Access runs fn with the payload of id locked. It returns
// domain.ErrNotRegistered when no live entry exists and domain.ErrDead when
// the client disappeared before its lock was taken. Errors from fn are
// returned unchanged.
func (r *Registry[T]) Access(id domain.ClientID, fn func(*T) error) error {
	h, ok := r.Lookup(id)
	if !ok {
		r.metrics.ObserveAccess(r.name, domain.AccessUnknown)
		return fmt.Errorf("access client %d: %w", id, domain.ErrNotRegistered)
	}
	guard, err := h.TryAccess()
	if err != nil {
		r.metrics.ObserveAccess(r.name, domain.AccessDead)
		r.HasClient(id)
		return fmt.Errorf("access client %d: %w", id, err)
	}
	defer guard.Release()
	r.metrics.ObserveAccess(r.name, domain.AccessOK)
	return fn(guard.Value())
}

// Capture copies the current payload of id into its checkpoint. It returns
// false when the client is not registered or already gone.
func (r *Registry[T]) Capture(id domain.ClientID) bool {
	h, ok := r.Lookup(id)
	if !ok {
		return false
	}
	guard, err := h.TryAccess()
	if err != nil {
		r.HasClient(id)
		return false
	}
	value := r.clone(*guard.Value())
	guard.Release()
	return r.storeCheckpoint(id, value)
}

// Sweep removes every entry whose client is gone and returns how many were
// removed. Their checkpoints move to retention.
func (r *Registry[T]) Sweep() int {
	start := time.Now()
	removed := 0
	evicted := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for id, e := range s.entries {
			if e.handle.IsAlive() {
				continue
			}
			evicted += r.pruneLocked(s, id, e)
			removed++
		}
		s.mu.Unlock()
	}
	duration := time.Since(start)

	r.metrics.ObserveSweep(r.name, duration)
	r.observePrune(domain.PruneSweep, removed, evicted)
	if removed > 0 {
		r.logger.Debug("sweep removed dead clients",
			telemetry.EventField(telemetry.EventSweep),
			zap.Int("removed", removed),
			telemetry.DurationField(duration),
		)
	}
	return removed
}

// StartSweeper sweeps every interval until ctx is done. Only the first call
// starts a loop.
func (r *Registry[T]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	r.mu.Lock()
	if r.sweeperStarted {
		r.mu.Unlock()
		return
	}
	r.sweeperStarted = true
	r.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.mu.Lock()
				r.sweeperStarted = false
				r.mu.Unlock()
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Len returns the number of entries held, including dead ones not yet swept.
func (r *Registry[T]) Len() int {
	return int(r.entryCount.Load())
}

// Stats counts entries, live entries and retained checkpoints.
func (r *Registry[T]) Stats() domain.RegistryStats {
	var stats domain.RegistryStats
	for _, s := range r.shards {
		s.mu.Lock()
		stats.Entries += len(s.entries)
		for _, e := range s.entries {
			if e.handle.IsAlive() {
				stats.Live++
			}
		}
		stats.Retained += s.retained.size()
		s.mu.Unlock()
	}
	return stats
}

// Snapshot lists entries ordered by client ID.
func (r *Registry[T]) Snapshot() []domain.EntryInfo {
	infos := make([]domain.EntryInfo, 0, r.Len())
	for _, s := range r.shards {
		s.mu.Lock()
		for id, e := range s.entries {
			infos = append(infos, domain.EntryInfo{
				ID:            id,
				Alive:         e.handle.IsAlive(),
				HasCheckpoint: e.hasCheckpoint,
			})
		}
		s.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// pruneLocked removes a dead entry and retains its checkpoint. It returns the
// number of retained checkpoints evicted to make room. s.mu must be held.
func (r *Registry[T]) pruneLocked(s *shard[T], id domain.ClientID, e *entry[T]) int {
	delete(s.entries, id)
	r.entryCount.Add(-1)
	if !e.hasCheckpoint {
		return 0
	}
	delta, evicted := s.retained.put(id, e.checkpoint, r.seq.Add(1))
	r.retainedCount.Add(int64(delta))
	return evicted
}

func (r *Registry[T]) observePrune(reason domain.PruneReason, removed int, evicted int) {
	if removed > 0 {
		r.metrics.ObservePrune(r.name, reason, removed)
	}
	for i := 0; i < evicted; i++ {
		r.metrics.ObserveCheckpoint(r.name, domain.CheckpointEvict, domain.CheckpointHit)
	}
	r.publishGauges()
}

func (r *Registry[T]) publishGauges() {
	r.metrics.SetEntries(r.name, int(r.entryCount.Load()))
	r.metrics.SetRetainedCheckpoints(r.name, int(r.retainedCount.Load()))
}

func outcome(hit bool) domain.CheckpointOutcome {
	if hit {
		return domain.CheckpointHit
	}
	return domain.CheckpointMiss
}
