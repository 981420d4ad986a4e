// Package registry holds the two process-wide sets the number server relies on:
// the addresses of clients currently being served and every value handed out so far.
package registry

import (
	"sort"
	"sync"
)

// ClientRegistry tracks client addresses with an active connection.
// At most one entry exists per address.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]struct{}
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]struct{})}
}

// TryAcquire inserts addr and returns true if it was absent.
// If addr is already present the registry is left untouched and false is returned.
func (r *ClientRegistry) TryAcquire(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[addr]; exists {
		return false
	}
	r.clients[addr] = struct{}{}
	return true
}

// Release removes addr. Releasing an absent address is a no-op.
func (r *ClientRegistry) Release(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, addr)
}

func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Snapshot returns the connected addresses in sorted order.
func (r *ClientRegistry) Snapshot() []string {
	r.mu.Lock()
	addrs := make([]string, 0, len(r.clients))
	for addr := range r.clients {
		addrs = append(addrs, addr)
	}
	r.mu.Unlock()

	sort.Strings(addrs)
	return addrs
}
