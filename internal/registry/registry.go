// Package registry provides append-only keyed arenas for the game entities.
//
// Entries live in a dense backing slice and are addressed by key or by Handle.
// Slot 0 of the slice is reserved and never handed out, so the zero Handle is
// always invalid.
// Handles carry the generation they were issued in; Reset bumps the generation so
// handles obtained before a reset or restore are rejected instead of silently
// pointing at a different entry.
package registry

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("registry: not found")
	ErrAlreadyExists = errors.New("registry: already exists")
	ErrStaleHandle   = errors.New("registry: stale handle")
)

// Handle is a validated reference to an entry.
type Handle struct {
	index      int
	generation uint64
}

func (h Handle) Index() int { return h.index }

func (h Handle) IsZero() bool { return h.index == 0 }

// Registry is not safe for concurrent use; callers serialize access.
type Registry[K comparable, V any] struct {
	entries    []V
	index      map[K]int
	generation uint64
}

func New[K comparable, V any]() *Registry[K, V] {
	r := &Registry[K, V]{}
	r.Reset()
	return r
}

// Reset drops all entries and invalidates every handle issued so far.
func (r *Registry[K, V]) Reset() {
	var zero V
	r.entries = []V{zero}
	r.index = make(map[K]int)
	r.generation++
}

func (r *Registry[K, V]) Exists(key K) bool {
	_, ok := r.index[key]
	return ok
}

func (r *Registry[K, V]) Lookup(key K) (Handle, bool) {
	i, ok := r.index[key]
	if !ok {
		return Handle{}, false
	}
	return Handle{index: i, generation: r.generation}, true
}

func (r *Registry[K, V]) Get(key K) (V, error) {
	i, ok := r.index[key]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return r.entries[i], nil
}

func (r *Registry[K, V]) At(h Handle) (V, error) {
	var zero V
	if h.IsZero() || h.index >= len(r.entries) {
		return zero, ErrNotFound
	}
	if h.generation != r.generation {
		return zero, ErrStaleHandle
	}
	return r.entries[h.index], nil
}

// All returns the entries in insertion order, without the reserved slot.
func (r *Registry[K, V]) All() []V {
	out := make([]V, len(r.entries)-1)
	copy(out, r.entries[1:])
	return out
}

func (r *Registry[K, V]) Len() int { return len(r.entries) - 1 }

func (r *Registry[K, V]) Insert(key K, v V) (Handle, error) {
	if _, ok := r.index[key]; ok {
		return Handle{}, fmt.Errorf("%w: %v", ErrAlreadyExists, key)
	}
	i := len(r.entries)
	r.entries = append(r.entries, v)
	r.index[key] = i
	return Handle{index: i, generation: r.generation}, nil
}

// Update replaces the entry stored under key in place.
func (r *Registry[K, V]) Update(key K, v V) error {
	i, ok := r.index[key]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	r.entries[i] = v
	return nil
}
