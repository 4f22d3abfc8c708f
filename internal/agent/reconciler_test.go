package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/gezibash/arc-fleet/internal/hierarchy"
	hiermemory "github.com/gezibash/arc-fleet/internal/hierarchy/memory"
)

var (
	ann = pilot{profile: "pa", identity: "Ann", leadership: 50}
	bea = pilot{profile: "pb", identity: "Bea", leadership: 80}
	cid = pilot{profile: "pc", identity: "Cid", leadership: 30}
)

func TestConvergesFromScratch(t *testing.T) {
	f := newFleet(t, ann, bea, cid)
	f.start()
	f.rounds(8)

	for _, p := range []string{"pa", "pb", "pc"} {
		if got := f.leaderOf(p); got != "pb" {
			t.Errorf("%s sees leader %q, want pb", p, got)
		}
	}
	if !f.byID["pb"].Converged() {
		t.Errorf("leader not converged, last result %v", f.byID["pb"].Status().LastResult)
	}
	if f.byID["pa"].Converged() {
		t.Error("non-leader reports converged")
	}

	members := f.world.Members("Bea")
	if len(members) != 3 {
		t.Fatalf("hierarchy has %d members, want 3", len(members))
	}
	root, _ := hierarchy.RootOf(members)
	sub, _ := hierarchy.SubLeaderOf(members)
	if root.Identity != "Bea" || sub.Identity != "Bea" {
		t.Errorf("root=%q sub=%q, want Bea for both", root.Identity, sub.Identity)
	}
}

func TestConvergedFleetIsQuiet(t *testing.T) {
	f := newFleet(t, ann, bea, cid)
	f.start()
	f.rounds(8)

	f.world.ResetCalls()
	f.rounds(5)
	if calls := f.world.Calls(); len(calls) != 0 {
		t.Errorf("converged fleet made calls: %+v", calls)
	}
}

func TestElectsHighestScoreInExistingHierarchy(t *testing.T) {
	f := newFleet(t, ann, bea, cid)
	f.seedHierarchy("Ann", "Bea", "Cid")
	f.start()

	f.round() // initialize and advertise
	f.round() // notice the existing hierarchy
	for _, a := range f.agents {
		if r := a.Status().LastResult; r.Reason != ReasonJoinedExternally {
			t.Errorf("%s: result %v, want %s", a.ProfileID(), r, ReasonJoinedExternally)
		}
	}
	if calls := f.world.Calls(); len(calls) != 0 {
		t.Fatalf("joining externally made calls: %+v", calls)
	}

	f.round()
	for _, p := range []string{"pa", "pb", "pc"} {
		if got := f.leaderOf(p); got != "pb" {
			t.Errorf("%s sees leader %q, want pb", p, got)
		}
	}
}

func TestHandOffToHigherScore(t *testing.T) {
	f := newFleet(t, ann, bea)
	f.seedHierarchy("Ann", "Bea")
	f.start()

	f.round()
	f.byID["pb"].SetUnavailable()
	f.rounds(4)

	a := f.byID["pa"]
	if got := f.leaderOf("pa"); got != "pa" {
		t.Fatalf("leader = %q, want pa while Bea is unavailable", got)
	}
	if !a.Converged() {
		t.Fatalf("Ann not converged: %v", a.Status().LastResult)
	}

	f.byID["pb"].SetAvailable()
	f.world.ResetCalls()
	a.Tick(context.Background())

	if got := f.leaderOf("pa"); got != "pb" {
		t.Errorf("leader after hand-off = %q, want pb", got)
	}
	calls := f.world.Calls()
	if len(calls) != 1 || calls[0].Op != hiermemory.OpMakeRoot || calls[0].Target != "Bea" {
		t.Fatalf("calls = %+v, want one make_root to Bea", calls)
	}
	if r := a.Status().LastResult; r.Outcome != OutcomeAction || r.Action != ActionHandOffRoot {
		t.Errorf("result = %v, want hand-off-root", r)
	}
	root, _ := hierarchy.RootOf(f.world.Members("Ann"))
	if root.Identity != "Bea" {
		t.Errorf("root = %q, want Bea", root.Identity)
	}
}

func TestLeaderDemotesOtherSubLeader(t *testing.T) {
	f := newFleet(t, ann, bea)
	f.seedHierarchy("Bea", "Ann")
	if err := f.world.Session("Bea").Move(context.Background(), "Ann", hierarchy.SubLeaderSlot); err != nil {
		t.Fatal(err)
	}
	f.world.ResetCalls()
	f.start()
	f.rounds(3)

	var demoted bool
	for _, c := range f.world.Calls() {
		if c.Op == hiermemory.OpMove && c.Target == "Ann" {
			demoted = true
		}
	}
	if !demoted {
		t.Fatalf("Ann was never moved out of the sub-leader slot: %+v", f.world.Calls())
	}
	f.rounds(2)
	sub, _ := hierarchy.SubLeaderOf(f.world.Members("Bea"))
	if sub.Identity != "Bea" {
		t.Errorf("sub-leader = %q, want Bea", sub.Identity)
	}
}

func TestFailureIsContained(t *testing.T) {
	f := newFleet(t, ann)
	f.start()
	f.round()

	f.world.FailNext(hiermemory.OpCreate, errors.New("hierarchy unavailable"))
	f.round()
	a := f.byID["pa"]
	r := a.Status().LastResult
	if r.Outcome != OutcomeFailed || r.Reason != string(ActionCreate) {
		t.Fatalf("result = %v, want failed create", r)
	}
	if a.Status().State != StateOrganizing {
		t.Fatalf("state = %s, want organizing", a.Status().State)
	}

	f.round()
	if r := a.Status().LastResult; r.Outcome != OutcomeAction || r.Action != ActionCreate {
		t.Errorf("retry result = %v, want create", r)
	}
}

type panicking struct {
	hierarchy.System
}

func (panicking) InHierarchy(context.Context) (bool, error) { panic("lost session") }

func TestPanicBecomesFailure(t *testing.T) {
	f := newFleet(t, ann)
	a := f.byID["pa"]
	a.hierarchy = panicking{a.hierarchy}
	f.start()
	f.rounds(2)

	r := a.Status().LastResult
	if r.Outcome != OutcomeFailed || r.Reason != "panic" {
		t.Fatalf("result = %v, want failed panic", r)
	}
	if a.Status().State != StateOrganizing {
		t.Errorf("state = %s, want organizing", a.Status().State)
	}
}

func TestWaitsForInviteFromKnownPeer(t *testing.T) {
	f := newFleet(t, ann, bea)
	f.start()
	f.rounds(2) // Ann creates, Bea waits

	if r := f.byID["pb"].Status().LastResult; r.Reason != ReasonAwaitingInvite {
		t.Fatalf("Bea result = %v, want awaiting-invite", r)
	}

	// An invite from a stranger is ignored.
	stranger := f.world.Session("Zed")
	if err := stranger.CreateHierarchy(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := stranger.Invite(context.Background(), "Bea", hierarchy.DefaultSlot); err != nil {
		t.Fatal(err)
	}
	f.byID["pb"].Tick(context.Background())
	if in, _ := f.world.Session("Bea").InHierarchy(context.Background()); in {
		t.Fatal("Bea accepted an invite from a stranger")
	}

	f.rounds(2)
	members := f.world.Members("Ann")
	if _, ok := hierarchy.Find(members, "Bea"); !ok {
		t.Errorf("Bea not in Ann's hierarchy: %+v", members)
	}
}

func TestSkipsUnobservableInvitee(t *testing.T) {
	f := newFleet(t, ann, bea)
	f.start()
	f.world.SetPresent("Bea", false)
	f.rounds(4)

	for _, c := range f.world.Calls() {
		if c.Op == hiermemory.OpInvite {
			t.Fatalf("invited an absent pilot: %+v", c)
		}
	}
	if r := f.byID["pa"].Status().LastResult; r.Reason != ReasonAlone {
		t.Errorf("Ann result = %v, want alone", r)
	}
}

func countCalls(calls []hiermemory.Call, identity, op string) int {
	n := 0
	for _, c := range calls {
		if c.Identity == identity && c.Op == op {
			n++
		}
	}
	return n
}

func TestSimultaneousCreationMerges(t *testing.T) {
	f := newFleet(t, ann, bea)
	f.start()
	f.round() // initialize and advertise

	// Bea misses Ann's JoinedHierarchy and creates a hierarchy of her own.
	f.links["pb"].SetDetached(true)
	f.round()
	f.links["pb"].SetDetached(false)

	if got := len(f.world.Members("Ann")); got != 1 {
		t.Fatalf("Ann's hierarchy has %d members, want 1", got)
	}
	if got := len(f.world.Members("Bea")); got != 1 {
		t.Fatalf("Bea's hierarchy has %d members, want 1", got)
	}

	f.rounds(12)

	members := f.world.Members("Bea")
	if len(members) != 2 {
		t.Fatalf("hierarchy has %d members after merging, want 2: %+v", len(members), members)
	}
	if root, _ := hierarchy.RootOf(members); root.Identity != "Bea" {
		t.Errorf("root = %q, want Bea", root.Identity)
	}
	for _, p := range []string{"pa", "pb"} {
		if got := f.leaderOf(p); got != "pb" {
			t.Errorf("%s sees leader %q, want pb", p, got)
		}
	}
	if !f.byID["pb"].Converged() {
		t.Errorf("Bea not converged: %v", f.byID["pb"].Status().LastResult)
	}

	calls := f.world.Calls()
	if got := countCalls(calls, "Ann", hiermemory.OpLeave); got != 1 {
		t.Errorf("Ann left %d times, want 1", got)
	}
	if got := countCalls(calls, "Bea", hiermemory.OpLeave); got != 0 {
		t.Errorf("Bea left %d times, want 0", got)
	}
}

func TestSmallerSplitHierarchyLeaves(t *testing.T) {
	f := newFleet(t, ann, bea, cid)
	f.seedHierarchy("Ann", "Cid")
	if err := f.world.Session("Bea").CreateHierarchy(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.world.ResetCalls()
	f.start()
	f.rounds(3)

	if r := f.byID["pa"].Status().LastResult; r.Reason != ReasonSplit {
		t.Errorf("Ann result = %v, want %s while the leader is elsewhere", r, ReasonSplit)
	}

	f.rounds(12)

	members := f.world.Members("Bea")
	if len(members) != 3 {
		t.Fatalf("hierarchy has %d members, want 3: %+v", len(members), members)
	}
	root, _ := hierarchy.RootOf(members)
	sub, _ := hierarchy.SubLeaderOf(members)
	if root.Identity != "Bea" || sub.Identity != "Bea" {
		t.Errorf("root=%q sub=%q, want Bea for both", root.Identity, sub.Identity)
	}
	for _, p := range []string{"pa", "pb", "pc"} {
		if got := f.leaderOf(p); got != "pb" {
			t.Errorf("%s sees leader %q, want pb", p, got)
		}
	}

	calls := f.world.Calls()
	for _, id := range []string{"Ann", "Cid"} {
		if got := countCalls(calls, id, hiermemory.OpLeave); got != 0 {
			t.Errorf("%s left the larger hierarchy %d times", id, got)
		}
	}
	if got := countCalls(calls, "Bea", hiermemory.OpLeave); got != 1 {
		t.Errorf("Bea left %d times, want 1", got)
	}
}

func TestDroppedOutMemberIsWithdrawn(t *testing.T) {
	f := newFleet(t, ann, bea)
	f.seedHierarchy("Bea", "Ann")
	f.start()
	f.rounds(4)

	f.world.Remove("Ann")
	f.byID["pa"].Tick(context.Background())
	f.byID["pb"].Tick(context.Background())
	for _, m := range f.byID["pb"].Status().Members {
		if m.ProfileID == "pa" && m.InHierarchy {
			t.Fatal("Bea still counts Ann as in the hierarchy")
		}
	}

	f.rounds(4)
	if _, ok := hierarchy.Find(f.world.Members("Bea"), "Ann"); !ok {
		t.Errorf("Ann not invited back: %+v", f.world.Members("Bea"))
	}
}
