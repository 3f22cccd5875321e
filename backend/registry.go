package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// registry holds registered substrates.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first that opens wins).
	backendPriority = []string{BackendNative, BackendSoftware}
)

// Register registers a substrate factory with the given name.
// This is typically called from init() functions in substrate packages.
// If a substrate with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a substrate from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered substrate names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a substrate with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get opens the substrate registered under name.
func Get(name string, cfg Config) (Substrate, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return factory(cfg)
}

// Default opens the best available substrate.
// Substrates are tried in priority order (native, then software), then any
// other registered substrate. Factory errors are skipped and joined into the
// returned error if nothing opens.
func Default(cfg Config) (Substrate, error) {
	registryMu.RLock()
	order := make([]string, 0, len(factories))
	for _, name := range backendPriority {
		if _, ok := factories[name]; ok {
			order = append(order, name)
		}
	}
	var rest []string
	for name := range factories {
		if !contains(backendPriority, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)
	snapshot := make([]Factory, len(order))
	for i, name := range order {
		snapshot[i] = factories[name]
	}
	registryMu.RUnlock()

	var errs []error
	for i, factory := range snapshot {
		s, err := factory(cfg)
		if err == nil && s != nil {
			return s, nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", order[i], err))
		}
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
