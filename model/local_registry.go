package model

import (
	"sync"
)

// LocalRegistry maps process-lifetime numeric slots to local file paths.
// Slots are allocated on first reference and are never serialized; after a
// restart previously handed-out local ids are gone.
type LocalRegistry struct {
	mu    sync.RWMutex
	paths []string
	index map[string]uint64
}

// NewLocalRegistry creates an empty registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{
		index: make(map[string]uint64),
	}
}

// Register returns the slot for path, allocating one on first reference.
// The same path always yields the same slot within a process.
func (r *LocalRegistry) Register(path string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot, ok := r.index[path]; ok {
		return slot
	}
	slot := uint64(len(r.paths))
	r.paths = append(r.paths, path)
	r.index[path] = slot
	return slot
}

// Resolve looks up the path for a slot.
func (r *LocalRegistry) Resolve(slot uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if slot >= uint64(len(r.paths)) {
		return "", ErrUnknownLocalId
	}
	return r.paths[slot], nil
}

// Len returns the number of registered paths.
func (r *LocalRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}

// 进程级单例：本地文件 id 只在当前进程内有意义
var localRegistry = NewLocalRegistry()

// FromLocal allocates (or looks up) a registry slot for a local file path and
// returns an ItemId tagged Local wrapping the slot number.
func FromLocal(path string) ItemId {
	return ItemId{Lo: localRegistry.Register(path), Type: ItemIdTypeLocal}
}

// ResolveLocal resolves a Local-tagged id back to its path. Ids from a
// previous process, or ids not tagged Local, fail with ErrUnknownLocalId.
func ResolveLocal(id ItemId) (string, error) {
	if id.Type != ItemIdTypeLocal || id.Hi != 0 {
		return "", ErrUnknownLocalId
	}
	return localRegistry.Resolve(id.Lo)
}
