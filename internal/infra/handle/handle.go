package handle

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

var lastClientID atomic.Uint64

func nextClientID() domain.ClientID {
	return domain.ClientID(lastClientID.Add(1))
}

type cell[T any] struct {
	id     domain.ClientID
	mu     sync.Mutex
	value  T
	owners atomic.Int64
	dead   atomic.Bool
}

// drop releases one owning reference and destroys the payload on the last one.
func (c *cell[T]) drop() {
	if c.owners.Add(-1) != 0 {
		return
	}
	c.mu.Lock()
	c.dead.Store(true)
	var zero T
	c.value = zero
	c.mu.Unlock()
}

// ownerRef is the cleanup argument of an Owner. It must not point at the Owner.
type ownerRef[T any] struct {
	cell     *cell[T]
	released *atomic.Bool
}

func (r ownerRef[T]) release() bool {
	if !r.released.CompareAndSwap(false, true) {
		return false
	}
	r.cell.drop()
	return true
}

// Owner is an owning reference held by the client. The payload stays alive
// while at least one Owner is unreleased and reachable.
type Owner[T any] struct {
	ref ownerRef[T]
}

// New wraps value in a shared payload and returns its first owning reference.
func New[T any](value T) *Owner[T] {
	c := &cell[T]{id: nextClientID(), value: value}
	c.owners.Store(1)
	return newOwner(c)
}

func newOwner[T any](c *cell[T]) *Owner[T] {
	o := &Owner[T]{ref: ownerRef[T]{cell: c, released: new(atomic.Bool)}}
	runtime.AddCleanup(o, func(ref ownerRef[T]) { ref.release() }, o.ref)
	return o
}

// ID returns the payload identity.
func (o *Owner[T]) ID() domain.ClientID {
	return o.ref.cell.id
}

// Handle returns an observing reference to the payload.
func (o *Owner[T]) Handle() Handle[T] {
	return Handle[T]{id: o.ref.cell.id, ref: weak.Make(o.ref.cell)}
}

// Clone returns another owning reference. It returns nil if o was released.
func (o *Owner[T]) Clone() *Owner[T] {
	if o.ref.released.Load() {
		return nil
	}
	o.ref.cell.owners.Add(1)
	return newOwner(o.ref.cell)
}

// Release drops this owning reference. Calling it more than once is a no-op.
func (o *Owner[T]) Release() {
	o.ref.release()
}

// With runs fn with the payload locked.
func (o *Owner[T]) With(fn func(*T) error) error {
	if o.ref.released.Load() {
		return domain.ErrDead
	}
	return withCell(o.ref.cell, fn)
}

// Handle is an observing reference to a client payload. It never keeps the
// payload alive and is safe to copy, compare and use as a map key.
type Handle[T any] struct {
	id  domain.ClientID
	ref weak.Pointer[cell[T]]
}

// ID returns the identity of the referenced payload.
func (h Handle[T]) ID() domain.ClientID {
	return h.id
}

// IsZero reports whether h was never bound to a payload.
func (h Handle[T]) IsZero() bool {
	return h.id == 0
}

// IsAlive reports whether the client currently holds an owning reference.
// The answer can be stale by the time it is used; only a successful TryAccess
// is authoritative.
func (h Handle[T]) IsAlive() bool {
	return h.upgrade() != nil
}

// TryAccess locks the payload and returns an exclusive view of it. It fails
// with domain.ErrDead once the client has released its last owning reference.
func (h Handle[T]) TryAccess() (*Guard[T], error) {
	c := h.upgrade()
	if c == nil {
		return nil, domain.ErrDead
	}
	c.mu.Lock()
	if c.dead.Load() {
		c.mu.Unlock()
		return nil, domain.ErrDead
	}
	return &Guard[T]{cell: c}, nil
}

// With runs fn with the payload locked. The lock is released however fn exits.
func (h Handle[T]) With(fn func(*T) error) error {
	c := h.upgrade()
	if c == nil {
		return domain.ErrDead
	}
	return withCell(c, fn)
}

func (h Handle[T]) upgrade() *cell[T] {
	if h.id == 0 {
		return nil
	}
	c := h.ref.Value()
	if c == nil || c.dead.Load() || c.owners.Load() <= 0 {
		return nil
	}
	return c
}

func withCell[T any](c *cell[T], fn func(*T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead.Load() {
		return domain.ErrDead
	}
	return fn(&c.value)
}

// Guard is an exclusive view of a live payload returned by TryAccess.
type Guard[T any] struct {
	cell *cell[T]
	once sync.Once
}

// Value returns the locked payload. It must not be used after Release.
func (g *Guard[T]) Value() *T {
	return &g.cell.value
}

// Release unlocks the payload. Calling it more than once is a no-op.
func (g *Guard[T]) Release() {
	g.once.Do(g.cell.mu.Unlock)
}
