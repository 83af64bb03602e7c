package shmem

import "sync"

// Registry tracks live references to Arenas by path so a consumer holding
// a Descriptor handed across a worker boundary can look the Arena back up
// without re-opening the backing file, and so the arena is only unlinked
// once every outstanding reference has been released (spec §4.D: workers
// and the consumer both hold references to the same arena for the
// lifetime of in-flight elements).
type Registry struct {
	mu    sync.Mutex
	count map[string]int
	arena map[string]*Arena
}

// NewRegistry returns an empty shared-arena registry.
func NewRegistry() *Registry {
	return &Registry{count: make(map[string]int), arena: make(map[string]*Arena)}
}

// Track registers a. Each Track call must be balanced by a Release call;
// the arena is closed (unmapped and unlinked) when the last reference is
// released.
func (reg *Registry) Track(a *Arena) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	path := a.file.Name()
	reg.arena[path] = a
	reg.count[path]++
}

// Lookup returns the Arena previously registered for path, if any.
func (reg *Registry) Lookup(path string) (*Arena, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	a, ok := reg.arena[path]

	return a, ok
}

// Release drops one reference to the arena at path, closing (and
// unlinking) it once the count reaches zero.
func (reg *Registry) Release(path string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.count[path]--

	if reg.count[path] > 0 {
		return nil
	}

	a := reg.arena[path]
	delete(reg.count, path)
	delete(reg.arena, path)

	if a == nil {
		return nil
	}

	return a.Close()
}

// Len reports how many distinct arenas are currently tracked, live.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.arena)
}
