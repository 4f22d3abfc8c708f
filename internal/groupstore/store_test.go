package groupstore

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gezibash/arc-fleet/internal/groupstore/physical/memory"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/pkg/group"
)

func newTestStore(t *testing.T) (*Store, *observability.Metrics) {
	t.Helper()
	b, err := memory.New()
	if err != nil {
		t.Fatal(err)
	}
	m := observability.NewMetrics()
	s := New(b, m)
	t.Cleanup(func() { s.Close() })
	return s, m
}

func TestGroupRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)

	g, err := group.Create("Belt Crew", group.KindMining, "p1", "p2")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadGroupDefinition(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Belt Crew" || got.Kind != group.KindMining || len(got.Members) != 2 || got.Members[1] != "p2" {
		t.Fatalf("got %+v", got)
	}

	if n := testutil.ToFloat64(m.OperationTotal.WithLabelValues("groupstore.load_group", "ok")); n != 1 {
		t.Errorf("load_group ok count = %v, want 1", n)
	}
}

func TestLoadMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.LoadGroupDefinition(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.LoadGroupDefinition(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty id: err = %v, want ErrNotFound", err)
	}
	if _, err := s.LoadAgentSettings(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("settings: err = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.SaveGroup(context.Background(), &group.Group{ID: "g", Name: "", Kind: group.KindMining})
	if !errors.Is(err, group.ErrInvalidGroup) {
		t.Fatalf("err = %v, want ErrInvalidGroup", err)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, name := range []string{"Alpha Wing", "Bravo Wing"} {
		g, _ := group.Create(name, group.KindAnomalyCombat)
		if err := s.SaveGroup(ctx, g); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SaveAgentSettings(ctx, "p1", group.Settings{CurrentGroupID: "x", Role: group.RoleBooster}); err != nil {
		t.Fatal(err)
	}

	groups, err := s.ListGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("ListGroups returned %d groups, want 2", len(groups))
	}

	if err := s.DeleteGroup(ctx, groups[0].ID); err != nil {
		t.Fatal(err)
	}
	groups, _ = s.ListGroups(ctx)
	if len(groups) != 1 {
		t.Fatalf("after delete: %d groups, want 1", len(groups))
	}
}

func TestListSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	g, _ := group.Create("Good", group.KindMining)
	_ = s.SaveGroup(ctx, g)
	if err := s.backend.Put(ctx, groupKey("bad"), []byte{0xff, 0x00}); err != nil {
		t.Fatal(err)
	}

	groups, err := s.ListGroups(ctx)
	if err == nil {
		t.Fatal("expected error describing the corrupt record")
	}
	if len(groups) != 1 || groups[0].ID != g.ID {
		t.Fatalf("groups = %+v, want the good one", groups)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	want := group.Settings{CurrentGroupID: "g-1", Role: group.RoleMiner}
	if err := s.SaveAgentSettings(ctx, "pilot/with slash", want); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadAgentSettings(ctx, "pilot/with slash")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if err := s.SaveAgentSettings(ctx, "", want); err == nil {
		t.Fatal("expected error for empty profile")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), "floppy", nil, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
