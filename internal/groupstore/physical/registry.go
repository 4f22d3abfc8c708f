package physical

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/internal/storage"
)

// Factory opens a backend from its merged configuration.
type Factory func(ctx context.Context, config map[string]string) (Backend, error)

// DefaultsFunc returns a backend's default configuration.
type DefaultsFunc func() map[string]string

type registration struct {
	factory  Factory
	defaults DefaultsFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register makes a backend available by name. It panics on a duplicate
// name.
func Register(name string, factory Factory, defaults DefaultsFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("groupstore backend %q already registered", name))
	}
	registry[name] = registration{factory: factory, defaults: defaults}
}

// Defaults returns the default configuration of a registered backend.
func Defaults(name string) map[string]string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	if !ok || r.defaults == nil {
		return nil
	}
	return r.defaults()
}

// Backends lists registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether name is a registered backend.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// New opens the named backend with config layered over its defaults.
func New(ctx context.Context, name string, config map[string]string, metrics *observability.Metrics) (_ Backend, err error) {
	op, ctx := observability.StartOperation(ctx, metrics, "groupstore.open")
	defer op.End(&err)

	registryMu.RLock()
	r, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &storage.ConfigError{
			Backend: name,
			Message: fmt.Sprintf("unknown groupstore backend (available: %v)", Backends()),
		}
	}

	var defaults map[string]string
	if r.defaults != nil {
		defaults = r.defaults()
	}
	b, err := r.factory(ctx, storage.Merge(defaults, config))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "groupstore backend opened", "backend", name)
	return b, nil
}
