// Package hierarchytest holds behaviour tests every hierarchy.System
// implementation must pass.
package hierarchytest

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gezibash/arc-fleet/internal/hierarchy"
)

// Factory returns a constructor of sessions that share one fresh world.
type Factory func(t *testing.T) func(identity string) hierarchy.System

// Run executes the full suite.
func Run(t *testing.T, factory Factory) {
	t.Run("Create", func(t *testing.T) { testCreate(t, factory(t)) })
	t.Run("InviteAccept", func(t *testing.T) { testInviteAccept(t, factory(t)) })
	t.Run("RootOnly", func(t *testing.T) { testRootOnly(t, factory(t)) })
	t.Run("AcceptUnknown", func(t *testing.T) { testAcceptUnknown(t, factory(t)) })
	t.Run("HandOff", func(t *testing.T) { testHandOff(t, factory(t)) })
	t.Run("Leave", func(t *testing.T) { testLeave(t, factory(t)) })
	t.Run("Outside", func(t *testing.T) { testOutside(t, factory(t)) })
}

func mustNil(t *testing.T, what string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}

func wantErr(t *testing.T, what string, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("%s: err = %v, want %v", what, err, want)
	}
}

func testCreate(t *testing.T, session func(string) hierarchy.System) {
	ctx := context.Background()
	a := session("Alpha")

	in, err := a.InHierarchy(ctx)
	mustNil(t, "InHierarchy", err)
	if in {
		t.Fatal("new session already in hierarchy")
	}

	mustNil(t, "CreateHierarchy", a.CreateHierarchy(ctx))

	in, err = a.InHierarchy(ctx)
	mustNil(t, "InHierarchy", err)
	if !in {
		t.Fatal("not in hierarchy after create")
	}
	size, err := a.Size(ctx)
	mustNil(t, "Size", err)
	if size != 1 {
		t.Fatalf("Size() = %d, want 1", size)
	}
	members, err := a.Members(ctx)
	mustNil(t, "Members", err)
	root, ok := hierarchy.RootOf(members)
	if !ok || root.Identity != "Alpha" {
		t.Fatalf("root = %+v, want Alpha", root)
	}

	wantErr(t, "second create", a.CreateHierarchy(ctx), hierarchy.ErrAlreadyInHierarchy)
}

func testInviteAccept(t *testing.T, session func(string) hierarchy.System) {
	ctx := context.Background()
	a, b := session("Alpha"), session("Bravo")

	_, err := b.InHierarchy(ctx)
	mustNil(t, "InHierarchy", err)
	mustNil(t, "CreateHierarchy", a.CreateHierarchy(ctx))

	visible, err := a.Observable(ctx)
	mustNil(t, "Observable", err)
	if !slices.Contains(visible, "Bravo") {
		t.Fatalf("Observable() = %v, want Bravo present", visible)
	}

	mustNil(t, "Invite", a.Invite(ctx, "Bravo", hierarchy.DefaultSlot))

	invites, err := b.PendingInvites(ctx)
	mustNil(t, "PendingInvites", err)
	if len(invites) != 1 || invites[0].From != "Alpha" {
		t.Fatalf("PendingInvites() = %+v, want one from Alpha", invites)
	}

	mustNil(t, "AcceptInvite", b.AcceptInvite(ctx, invites[0]))

	for _, s := range []hierarchy.System{a, b} {
		size, err := s.Size(ctx)
		mustNil(t, "Size", err)
		if size != 2 {
			t.Fatalf("%s: Size() = %d, want 2", s.Identity(), size)
		}
	}
	members, err := b.Members(ctx)
	mustNil(t, "Members", err)
	m, ok := hierarchy.Find(members, "Bravo")
	if !ok || m.IsRoot || m.Slot != hierarchy.DefaultSlot {
		t.Fatalf("Bravo = %+v, %v", m, ok)
	}
	invites, err = b.PendingInvites(ctx)
	mustNil(t, "PendingInvites", err)
	if len(invites) != 0 {
		t.Fatalf("invites left after accept: %+v", invites)
	}

	wantErr(t, "invite member", a.Invite(ctx, "Bravo", hierarchy.DefaultSlot), hierarchy.ErrAlreadyInHierarchy)
}

func testRootOnly(t *testing.T, session func(string) hierarchy.System) {
	ctx := context.Background()
	a, b, c := session("Alpha"), session("Bravo"), session("Charlie")
	for _, s := range []hierarchy.System{b, c} {
		_, err := s.InHierarchy(ctx)
		mustNil(t, "InHierarchy", err)
	}

	wantErr(t, "invite outside", a.Invite(ctx, "Bravo", hierarchy.DefaultSlot), hierarchy.ErrNotInHierarchy)

	mustNil(t, "CreateHierarchy", a.CreateHierarchy(ctx))
	mustNil(t, "Invite", a.Invite(ctx, "Bravo", hierarchy.DefaultSlot))
	invites, err := b.PendingInvites(ctx)
	mustNil(t, "PendingInvites", err)
	mustNil(t, "AcceptInvite", b.AcceptInvite(ctx, invites[0]))

	wantErr(t, "non-root invite", b.Invite(ctx, "Charlie", hierarchy.DefaultSlot), hierarchy.ErrNotRoot)
	wantErr(t, "non-root move", b.Move(ctx, "Bravo", hierarchy.SubLeaderSlot), hierarchy.ErrNotRoot)
	wantErr(t, "non-root make root", b.MakeRoot(ctx, "Bravo"), hierarchy.ErrNotRoot)
	wantErr(t, "move stranger", a.Move(ctx, "Charlie", hierarchy.SubLeaderSlot), hierarchy.ErrUnknownIdentity)
	wantErr(t, "make stranger root", a.MakeRoot(ctx, "Charlie"), hierarchy.ErrUnknownIdentity)
}

func testAcceptUnknown(t *testing.T, session func(string) hierarchy.System) {
	ctx := context.Background()
	b := session("Bravo")
	err := b.AcceptInvite(ctx, hierarchy.Invite{From: "Nobody", HierarchyID: "missing", Slot: hierarchy.DefaultSlot})
	wantErr(t, "accept unknown", err, hierarchy.ErrNoInvite)
}

func testHandOff(t *testing.T, session func(string) hierarchy.System) {
	ctx := context.Background()
	a, b := session("Alpha"), session("Bravo")
	_, err := b.InHierarchy(ctx)
	mustNil(t, "InHierarchy", err)

	mustNil(t, "CreateHierarchy", a.CreateHierarchy(ctx))
	mustNil(t, "Invite", a.Invite(ctx, "Bravo", hierarchy.DefaultSlot))
	invites, err := b.PendingInvites(ctx)
	mustNil(t, "PendingInvites", err)
	mustNil(t, "AcceptInvite", b.AcceptInvite(ctx, invites[0]))

	mustNil(t, "MakeRoot", a.MakeRoot(ctx, "Bravo"))

	members, err := a.Members(ctx)
	mustNil(t, "Members", err)
	root, _ := hierarchy.RootOf(members)
	if root.Identity != "Bravo" {
		t.Fatalf("root = %q, want Bravo", root.Identity)
	}

	wantErr(t, "old root move", a.Move(ctx, "Alpha", hierarchy.SubLeaderSlot), hierarchy.ErrNotRoot)

	mustNil(t, "Move", b.Move(ctx, "Bravo", hierarchy.SubLeaderSlot))
	wantErr(t, "occupied", b.Move(ctx, "Alpha", hierarchy.SubLeaderSlot), hierarchy.ErrSlotOccupied)
	mustNil(t, "demote", b.Move(ctx, "Bravo", hierarchy.DefaultSlot))
	mustNil(t, "promote", b.Move(ctx, "Alpha", hierarchy.SubLeaderSlot))

	members, err = b.Members(ctx)
	mustNil(t, "Members", err)
	sub, ok := hierarchy.SubLeaderOf(members)
	if !ok || sub.Identity != "Alpha" {
		t.Fatalf("sub-leader = %+v, want Alpha", sub)
	}
}

func testLeave(t *testing.T, session func(string) hierarchy.System) {
	ctx := context.Background()
	a, b := session("Alpha"), session("Bravo")
	_, err := b.InHierarchy(ctx)
	mustNil(t, "InHierarchy", err)

	mustNil(t, "CreateHierarchy", a.CreateHierarchy(ctx))
	mustNil(t, "Invite", a.Invite(ctx, "Bravo", hierarchy.DefaultSlot))
	invites, err := b.PendingInvites(ctx)
	mustNil(t, "PendingInvites", err)
	mustNil(t, "AcceptInvite", b.AcceptInvite(ctx, invites[0]))

	mustNil(t, "root Leave", a.Leave(ctx))
	in, err := a.InHierarchy(ctx)
	mustNil(t, "InHierarchy", err)
	if in {
		t.Fatal("Alpha still in hierarchy after leaving")
	}
	members, err := b.Members(ctx)
	mustNil(t, "Members", err)
	if len(members) != 1 || !members[0].IsRoot || members[0].Identity != "Bravo" {
		t.Fatalf("members after root left = %+v, want Bravo as sole root", members)
	}

	mustNil(t, "Invite back", b.Invite(ctx, "Alpha", hierarchy.DefaultSlot))
	invites, err = a.PendingInvites(ctx)
	mustNil(t, "PendingInvites", err)
	mustNil(t, "AcceptInvite", a.AcceptInvite(ctx, invites[0]))
	size, err := b.Size(ctx)
	mustNil(t, "Size", err)
	if size != 2 {
		t.Fatalf("Size() = %d after rejoin, want 2", size)
	}

	mustNil(t, "Leave", b.Leave(ctx))
	mustNil(t, "Leave", a.Leave(ctx))
	wantErr(t, "Leave outside", a.Leave(ctx), hierarchy.ErrNotInHierarchy)
	mustNil(t, "CreateHierarchy after leaving", b.CreateHierarchy(ctx))
}

func testOutside(t *testing.T, session func(string) hierarchy.System) {
	ctx := context.Background()
	a := session("Alpha")

	_, err := a.Members(ctx)
	wantErr(t, "Members outside", err, hierarchy.ErrNotInHierarchy)

	size, err := a.Size(ctx)
	mustNil(t, "Size", err)
	if size != 0 {
		t.Fatalf("Size() = %d outside a hierarchy, want 0", size)
	}
	wantErr(t, "MakeRoot outside", a.MakeRoot(ctx, "Alpha"), hierarchy.ErrNotInHierarchy)
}
