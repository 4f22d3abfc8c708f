// Package backendtest holds behaviour tests shared by every groupstore
// backend.
package backendtest

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gezibash/arc-fleet/internal/groupstore/physical"
)

// Run exercises a backend produced by newBackend. Each subtest gets a fresh
// backend.
func Run(t *testing.T, newBackend func(t *testing.T) physical.Backend) {
	t.Run("GetMissing", func(t *testing.T) {
		b := newBackend(t)
		if _, err := b.Get(context.Background(), "groups/none"); !errors.Is(err, physical.ErrNotFound) {
			t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		if err := b.Put(ctx, "groups/g1", []byte("one")); err != nil {
			t.Fatal(err)
		}
		if err := b.Put(ctx, "groups/g1", []byte("two")); err != nil {
			t.Fatal(err)
		}
		got, err := b.Get(ctx, "groups/g1")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, []byte("two")) {
			t.Fatalf("Get = %q, want two", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		if err := b.Put(ctx, "settings/p1", []byte("x")); err != nil {
			t.Fatal(err)
		}
		if err := b.Delete(ctx, "settings/p1"); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Get(ctx, "settings/p1"); !errors.Is(err, physical.ErrNotFound) {
			t.Fatalf("Get after delete: err = %v", err)
		}
		if err := b.Delete(ctx, "settings/p1"); err != nil {
			t.Fatalf("delete missing: %v", err)
		}
	})

	t.Run("ListPrefix", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		for _, k := range []string{"groups/b", "settings/p1", "groups/a", "groups/c_d", "groupsx/e"} {
			if err := b.Put(ctx, k, []byte(k)); err != nil {
				t.Fatal(err)
			}
		}
		got, err := b.List(ctx, "groups/")
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"groups/a", "groups/b", "groups/c_d"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("List = %v, want %v", got, want)
		}
		got, err = b.List(ctx, "nothing/")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Fatalf("List empty prefix = %v", got)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		b := newBackend(t)
		if err := b.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Get(context.Background(), "k"); !errors.Is(err, physical.ErrClosed) {
			t.Fatalf("Get after close: err = %v, want ErrClosed", err)
		}
		if err := b.Put(context.Background(), "k", nil); !errors.Is(err, physical.ErrClosed) {
			t.Fatalf("Put after close: err = %v, want ErrClosed", err)
		}
		if err := b.Close(); err != nil {
			t.Fatalf("second Close: %v", err)
		}
	})
}
