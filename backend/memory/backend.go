// Package memory implements a non-persistent backend holding all objects in
// process memory. An ordered B-tree index over the object keys keeps
// directory listings cheap.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/nwerse/virtfs/backend"
)

type MemoryBackend struct {
	mu sync.RWMutex

	// Ordered key index: canonical path text -> object id.
	keys    *btree.Map[string, string]
	objects map[string]*object
}

// object is one stored entry. Directories carry no content.
type object struct {
	id      string
	dir     bool
	content []byte
	etag    string
	modTime time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		keys:    btree.NewMap[string, string](0), // degree 0 = auto-optimize
		objects: make(map[string]*object),
	}
}

// Name returns the identifier name defined for this backend.
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when the backend is mounted.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	// No initialization needed - backend is ready to use.
	return nil
}

// Close is part of the lifecycle behaviour and gets called when the backend is unmounted.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.keys.Clear()
	mb.objects = make(map[string]*object)

	return nil
}

// Capabilities returns the capabilities supported by this backend.
func (mb *MemoryBackend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
		},
	}
}
