//go:build integration

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gezibash/arc-fleet/internal/groupstore/physical"
	"github.com/gezibash/arc-fleet/internal/groupstore/physical/backendtest"
)

func TestBackend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	backendtest.Run(t, func(t *testing.T) physical.Backend {
		b, err := NewFactory(context.Background(), map[string]string{
			KeyAddr:      addr,
			KeyDB:        "15",
			KeyKeyPrefix: fmt.Sprintf("test-%d-", time.Now().UnixNano()),
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { b.Close() })
		return b
	})
}
