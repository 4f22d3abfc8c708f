package election

import (
	"math/rand/v2"
	"testing"

	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/pkg/group"
)

func candidate(id string, score int) roster.Member {
	return roster.Member{
		ProfileID:   id,
		DisplayName: "Pilot " + id,
		Score:       score,
		Role:        group.RoleCombat,
		Active:      true,
		Available:   true,
		InHierarchy: true,
	}
}

func TestElectHighestScore(t *testing.T) {
	members := []roster.Member{candidate("a", 50), candidate("b", 80), candidate("c", 30)}
	got, ok := Elect(members)
	if !ok || got.ProfileID != "b" {
		t.Fatalf("Elect() = %q, %v; want b", got.ProfileID, ok)
	}
}

func TestElectTieBreak(t *testing.T) {
	members := []roster.Member{candidate("zed", 40), candidate("amy", 40), candidate("kim", 40)}
	got, ok := Elect(members)
	if !ok || got.ProfileID != "amy" {
		t.Fatalf("Elect() = %q, want amy", got.ProfileID)
	}
}

func TestElectSkipsIneligible(t *testing.T) {
	inactive := candidate("a", 100)
	inactive.Active = false
	unavailable := candidate("b", 90)
	unavailable.Available = false
	outside := candidate("c", 80)
	outside.InHierarchy = false

	if _, ok := Elect([]roster.Member{inactive, unavailable, outside}); ok {
		t.Fatal("expected no leader")
	}

	got, ok := Elect([]roster.Member{inactive, unavailable, outside, candidate("d", 1)})
	if !ok || got.ProfileID != "d" {
		t.Fatalf("Elect() = %q, want d", got.ProfileID)
	}
}

func TestElectEmpty(t *testing.T) {
	if _, ok := Elect(nil); ok {
		t.Fatal("expected no leader for empty roster")
	}
}

func TestElectOrderIndependent(t *testing.T) {
	members := []roster.Member{
		candidate("a", 10), candidate("b", 70), candidate("c", 70),
		candidate("d", 5), candidate("e", 69),
	}
	want, _ := Elect(members)
	r := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		shuffled := append([]roster.Member(nil), members...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, _ := Elect(shuffled)
		if got.ProfileID != want.ProfileID {
			t.Fatalf("order %v elected %q, want %q", profileIDs(shuffled), got.ProfileID, want.ProfileID)
		}
	}
}

func profileIDs(ms []roster.Member) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ProfileID
	}
	return out
}

func TestPolicy(t *testing.T) {
	e, err := New(`role != "hauler"`)
	if err != nil {
		t.Fatal(err)
	}
	hauler := candidate("a", 100)
	hauler.Role = group.RoleHauler

	got, ok := e.Elect([]roster.Member{hauler, candidate("b", 10)})
	if !ok || got.ProfileID != "b" {
		t.Fatalf("Elect() = %q, want b", got.ProfileID)
	}
	if e.Policy() != `role != "hauler"` {
		t.Errorf("Policy() = %q", e.Policy())
	}
}

func TestPolicyScoreFloor(t *testing.T) {
	e, err := New(`score >= 20`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Elect([]roster.Member{candidate("a", 19)}); ok {
		t.Fatal("expected score floor to exclude a")
	}
}

func TestNewRejectsBadPolicy(t *testing.T) {
	if _, err := New(`rank > 3`); err == nil {
		t.Fatal("expected error for undeclared variable")
	}
}

func TestEmptyPolicy(t *testing.T) {
	e, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if e.Policy() != "" {
		t.Errorf("Policy() = %q, want empty", e.Policy())
	}
	if !e.Eligible(candidate("a", 0)) {
		t.Error("empty policy should admit an eligible member")
	}
}
