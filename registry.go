package msgfolder

import (
	"sort"
	"sync"

	"github.com/infodancer/msgfolder/errors"
)

// BackendFactory creates a Backend from configuration.
type BackendFactory func(config Config) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]BackendFactory)
)

// Register adds a backend factory to the registry.
// It panics if called with an empty name or nil factory,
// or if the name is already registered.
func Register(name string, factory BackendFactory) {
	if name == "" {
		panic("msgfolder: Register called with empty name")
	}
	if factory == nil {
		panic("msgfolder: Register called with nil factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic("msgfolder: Register called twice for " + name)
	}
	registry[name] = factory
}

// newBackend creates a Backend using the registered factory for the config type.
func newBackend(config Config) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[config.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.ErrStoreNotRegistered
	}
	if config.Path == "" {
		return nil, errors.ErrStoreConfigInvalid
	}
	return factory(config)
}

// RegisteredTypes returns a sorted list of registered backend type names.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
