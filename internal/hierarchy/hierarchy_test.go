package hierarchy

import "testing"

func TestHelpers(t *testing.T) {
	members := []Member{
		{Identity: "Alpha", Slot: DefaultSlot},
		{Identity: "Bravo", IsRoot: true, Slot: DefaultSlot},
		{Identity: "Charlie", Slot: SubLeaderSlot},
	}

	if r, ok := RootOf(members); !ok || r.Identity != "Bravo" {
		t.Errorf("RootOf() = %+v, %v", r, ok)
	}
	if s, ok := SubLeaderOf(members); !ok || s.Identity != "Charlie" {
		t.Errorf("SubLeaderOf() = %+v, %v", s, ok)
	}
	if m, ok := Find(members, "Alpha"); !ok || m.IsRoot {
		t.Errorf("Find(Alpha) = %+v, %v", m, ok)
	}
	if _, ok := Find(members, "Delta"); ok {
		t.Error("Find(Delta) found a member")
	}
	if _, ok := RootOf(nil); ok {
		t.Error("RootOf(nil) found a root")
	}
	if _, ok := SubLeaderOf(members[:2]); ok {
		t.Error("SubLeaderOf found a sub-leader where none exists")
	}
}

func TestSlotString(t *testing.T) {
	if got := SubLeaderSlot.String(); got != "0/sub_leader" {
		t.Errorf("String() = %q", got)
	}
	if got := (Slot{Unit: 2, Role: SlotMember}).String(); got != "2/member" {
		t.Errorf("String() = %q", got)
	}
}
