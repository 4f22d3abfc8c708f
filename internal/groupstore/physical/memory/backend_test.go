package memory

import (
	"context"
	"testing"

	"github.com/gezibash/arc-fleet/internal/groupstore/physical"
	"github.com/gezibash/arc-fleet/internal/groupstore/physical/backendtest"
)

func TestBackend(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) physical.Backend {
		b, err := New()
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestRegistered(t *testing.T) {
	if !physical.IsRegistered("memory") {
		t.Fatal("memory backend not registered")
	}
	b, err := physical.New(context.Background(), "memory", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
}
