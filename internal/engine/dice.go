package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Source draws uniform integers in [0, n). Implementations backed by a shared
// generator must be safe for concurrent use; LockedSource does that for math/rand.
type Source interface {
	Intn(n int) int
}

// LockedSource serializes draws on a math/rand generator.
type LockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *LockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// NewSeededSource returns a deterministic source. Used by tests and replays.
func NewSeededSource(seed int64) *LockedSource {
	return &LockedSource{rng: rand.New(rand.NewSource(seed))}
}

// NewSource returns a source seeded from crypto/rand.
func NewSource() (*LockedSource, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededSource(seed), nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// RollSplit splits max into an (attack, defense) pair. A raw draw of 0 becomes
// max/2 so a token never ends up with a 0/max split.
func RollSplit(src Source, max uint) (attack, defense uint) {
	if max == 0 {
		return 0, 0
	}
	draw := uint(src.Intn(int(max)))
	if draw == 0 {
		draw = max / 2
	}
	return draw, max - draw
}

// RollKind draws uniformly from the inclusive range [lo, hi].
func RollKind(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// FixedSource replays a scripted list of draws, wrapping around. Each value is
// reduced modulo n. Handy for pinning token stats in tests.
type FixedSource struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewFixedSource(values ...int) *FixedSource {
	return &FixedSource{values: values}
}

func (s *FixedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 || n <= 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	if v < 0 {
		v = -v
	}
	return v % n
}
