package transport

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Constructor builds a transport from its configuration
type Constructor func(*Config) (Transport, error)

// Factory creates transport instances
type Factory struct {
	mu           sync.RWMutex
	constructors map[types.BackendID]Constructor
}

// NewFactory creates a factory with the built-in transports registered
func NewFactory() *Factory {
	f := &Factory{
		constructors: make(map[types.BackendID]Constructor),
	}

	f.Register(types.BackendDirect, NewDirectTransport)
	f.Register(types.BackendRelay, NewRelayTransport)

	return f
}

// Register registers a transport constructor
func (f *Factory) Register(id types.BackendID, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[id] = constructor
}

// Create creates a transport for the backend
func (f *Factory) Create(id types.BackendID, config *Config) (Transport, error) {
	f.mu.RLock()
	constructor, exists := f.constructors[id]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("transport not found: %s", id)
	}

	return constructor(config)
}

// ListBackends returns the registered backend IDs in stable order
func (f *Factory) ListBackends() []types.BackendID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]types.BackendID, 0, len(f.constructors))
	for id := range f.constructors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
