// Package memory provides an in-memory group store backend for tests and
// the simulator.
package memory

import (
	"context"

	"github.com/gezibash/arc-fleet/internal/groupstore/physical"
	"github.com/gezibash/arc-fleet/internal/groupstore/physical/badger"
	"github.com/gezibash/arc-fleet/internal/storage"
)

func init() {
	physical.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() map[string]string {
	return map[string]string{badger.KeyInMemory: "true"}
}

// NewFactory opens BadgerDB in in-memory mode.
func NewFactory(ctx context.Context, config map[string]string) (physical.Backend, error) {
	return badger.NewFactory(ctx, storage.Merge(config, Defaults()))
}

// New returns a fresh in-memory backend.
func New() (physical.Backend, error) {
	return NewFactory(context.Background(), nil)
}
