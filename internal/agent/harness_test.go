package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gezibash/arc-fleet/internal/gossip"
	"github.com/gezibash/arc-fleet/internal/groupstore"
	kvmemory "github.com/gezibash/arc-fleet/internal/groupstore/physical/memory"
	"github.com/gezibash/arc-fleet/internal/hierarchy"
	hiermemory "github.com/gezibash/arc-fleet/internal/hierarchy/memory"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/internal/scheduler"
	"github.com/gezibash/arc-fleet/internal/score"
	"github.com/gezibash/arc-fleet/pkg/group"
)

type pilot struct {
	profile    string
	identity   string
	leadership int
}

// steppingClock moves a minute forward on every reading, so a delayed state
// is always due by the next tick.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type fleet struct {
	t       *testing.T
	ctx     context.Context
	world   *hiermemory.World
	bus     *gossip.Bus
	store   *groupstore.Store
	group   *group.Group
	metrics *observability.Metrics
	agents  []*Agent
	byID    map[string]*Agent
	clock   scheduler.Clock
	links   map[string]*gossip.Loopback
}

// newFleet stores a mining group listing every pilot and builds one agent
// per pilot. Agents are not started.
func newFleet(t *testing.T, pilots ...pilot) *fleet {
	t.Helper()
	backend, err := kvmemory.New()
	if err != nil {
		t.Fatal(err)
	}
	store := groupstore.New(backend, nil)
	t.Cleanup(func() { store.Close() })

	ids := make([]string, len(pilots))
	for i, p := range pilots {
		ids[i] = p.profile
	}
	g, err := group.Create("Belt Crew", group.KindMining, ids...)
	if err != nil {
		t.Fatal(err)
	}

	f := &fleet{
		t:       t,
		ctx:     context.Background(),
		world:   hiermemory.NewWorld(),
		bus:     gossip.NewBus(),
		store:   store,
		group:   g,
		metrics: observability.NewMetrics(),
		byID:    make(map[string]*Agent),
		clock:   &steppingClock{},
		links:   make(map[string]*gossip.Loopback),
	}
	if err := store.SaveGroup(f.ctx, g); err != nil {
		t.Fatal(err)
	}
	for _, p := range pilots {
		f.add(p, g.ID)
	}
	return f
}

func (f *fleet) add(p pilot, groupID string) *Agent {
	f.t.Helper()
	settings := group.Settings{CurrentGroupID: groupID, Role: group.RoleCombat}
	if err := f.store.SaveAgentSettings(f.ctx, p.profile, settings); err != nil {
		f.t.Fatal(err)
	}
	link := f.bus.Endpoint(p.profile)
	a, err := New(Options{
		ProfileID: p.profile,
		Store:     f.store,
		Hierarchy: f.world.Session(p.identity),
		Transport: link,
		Skills:    score.Levels{"Leadership": p.leadership},
		Scheduler: scheduler.New(scheduler.WithClock(f.clock)),
		Metrics:   f.metrics,
	})
	if err != nil {
		f.t.Fatal(err)
	}
	f.agents = append(f.agents, a)
	f.byID[p.profile] = a
	f.links[p.profile] = link
	return a
}

func (f *fleet) start() {
	for _, a := range f.agents {
		a.Start(f.ctx)
	}
}

// round ticks every agent once, in order, and checks that no tick issued
// more than one mutating hierarchy call.
func (f *fleet) round() {
	f.t.Helper()
	for _, a := range f.agents {
		before := len(f.world.Calls())
		a.Tick(f.ctx)
		if n := len(f.world.Calls()) - before; n > 1 {
			f.t.Fatalf("%s issued %d hierarchy calls in one tick", a.ProfileID(), n)
		}
	}
}

func (f *fleet) rounds(n int) {
	f.t.Helper()
	for range n {
		f.round()
	}
}

func (f *fleet) leaderOf(profile string) string {
	id, _ := f.byID[profile].Leader()
	return id
}

// seedHierarchy builds a hierarchy outside the agents: root first, then the
// others invited and accepted.
func (f *fleet) seedHierarchy(root string, others ...string) {
	f.t.Helper()
	r := f.world.Session(root)
	if err := r.CreateHierarchy(f.ctx); err != nil {
		f.t.Fatal(err)
	}
	for _, o := range others {
		s := f.world.Session(o)
		if err := r.Invite(f.ctx, o, hierarchy.DefaultSlot); err != nil {
			f.t.Fatal(err)
		}
		invs, err := s.PendingInvites(f.ctx)
		if err != nil || len(invs) != 1 {
			f.t.Fatalf("pending invites for %s: %v %v", o, invs, err)
		}
		if err := s.AcceptInvite(f.ctx, invs[0]); err != nil {
			f.t.Fatal(err)
		}
	}
	f.world.ResetCalls()
}
