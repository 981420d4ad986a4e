// Package random draws fixed-width random integers. The values only need to be
// unique, not unpredictable, so a math/rand source is used.
package random

import (
	"math/big"
	"math/rand"
	"sync"
	"time"
)

// DefaultBits is the width of generated values when none is configured.
const DefaultBits = 128

// Source yields candidate values.
type Source interface {
	Next() *big.Int
}

// Generator produces values uniformly distributed over [0, 2^bits).
type Generator struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	limit *big.Int
	bits  int
}

var _ Source = (*Generator)(nil)

// New returns a time-seeded generator. bits <= 0 selects DefaultBits.
func New(bits int) *Generator {
	return NewSeeded(bits, time.Now().UnixNano())
}

// NewSeeded returns a generator with a fixed seed, for reproducible sequences.
func NewSeeded(bits int, seed int64) *Generator {
	if bits <= 0 {
		bits = DefaultBits
	}
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		limit: new(big.Int).Lsh(big.NewInt(1), uint(bits)),
		bits:  bits,
	}
}

// Next returns a fresh value. *rand.Rand is not goroutine safe, hence the lock.
func (g *Generator) Next() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Rand(g.rnd, g.limit)
}

// Bits reports the configured width.
func (g *Generator) Bits() int {
	return g.bits
}
