package registry

import (
	"math/big"
	"sync"

	"uniqnum/internal/core/random"
)

// IssuedRegistry remembers every value returned by ReserveUnique. It only grows.
type IssuedRegistry struct {
	mu     sync.Mutex
	issued map[string]struct{}
}

func NewIssuedRegistry() *IssuedRegistry {
	return &IssuedRegistry{issued: make(map[string]struct{})}
}

// ReserveUnique draws candidates from src until one has never been issued,
// records it and returns it.
//
// There is no retry cap. With a 128-bit source the space cannot be exhausted
// in practice; with a tiny source this loops forever once every value is taken.
func (r *IssuedRegistry) ReserveUnique(src random.Source) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		candidate := src.Next()
		key := candidate.String()
		if _, taken := r.issued[key]; taken {
			continue
		}
		r.issued[key] = struct{}{}
		return candidate
	}
}

// Contains reports whether v has been issued.
func (r *IssuedRegistry) Contains(v *big.Int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.issued[v.String()]
	return ok
}

func (r *IssuedRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}
