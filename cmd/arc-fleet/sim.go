package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gezibash/arc-fleet/internal/agent"
	"github.com/gezibash/arc-fleet/internal/election"
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

type simOptions struct {
	Agents       int
	Rounds       int
	Kind         group.Kind
	Role         group.Role
	Policy       string
	LeaderLeaves bool
}

type simResult struct {
	Agents    []agent.Status
	Hierarchy []hierarchy.Member
	Departed  string
	Actions   int
}

// simClock is simulated time. Each round advances it by one interval.
type simClock struct{ now time.Time }

func (c *simClock) Now() time.Time { return c.now }

type simAgent struct {
	agent    *agent.Agent
	identity string
	endpoint *gossip.Loopback
	down     bool
}

// simulate runs opts.Agents agents over an in-memory hierarchy and a
// loopback bus, ticking each live agent once per round in order.
func simulate(ctx context.Context, opts simOptions, logger *slog.Logger) (*simResult, error) {
	if opts.Agents < 1 {
		return nil, fmt.Errorf("need at least one agent, got %d", opts.Agents)
	}
	engine, err := election.New(opts.Policy)
	if err != nil {
		return nil, err
	}

	backend, err := kvmemory.New()
	if err != nil {
		return nil, err
	}
	store := groupstore.New(backend, nil)
	defer func() { _ = store.Close() }()

	profiles := make([]string, opts.Agents)
	for i := range profiles {
		profiles[i] = fmt.Sprintf("pilot-%d", i+1)
	}
	g, err := group.Create("Simulated Fleet", opts.Kind, profiles...)
	if err != nil {
		return nil, err
	}
	if err := store.SaveGroup(ctx, g); err != nil {
		return nil, err
	}

	world := hiermemory.NewWorld()
	bus := gossip.NewBus()
	clock := &simClock{now: time.Unix(0, 0)}
	metrics := observability.NewMetrics()
	agents := make([]*simAgent, 0, opts.Agents)
	for i, p := range profiles {
		if err := store.SaveAgentSettings(ctx, p, group.Settings{CurrentGroupID: g.ID, Role: opts.Role}); err != nil {
			return nil, err
		}
		identity := fmt.Sprintf("Pilot %d", i+1)
		ep := bus.Endpoint(p)
		a, err := agent.New(agent.Options{
			ProfileID: p,
			Store:     store,
			Hierarchy: world.Session(identity),
			Transport: ep,
			Election:  engine,
			Skills:    simSkills(i),
			Scheduler: scheduler.New(scheduler.WithClock(clock)),
			Metrics:   metrics,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		agents = append(agents, &simAgent{agent: a, identity: identity, endpoint: ep})
	}

	for _, s := range agents {
		s.agent.Start(ctx)
	}

	res := &simResult{}
	for r := range opts.Rounds {
		clock.now = clock.now.Add(scheduler.DefaultInterval)
		if opts.LeaderLeaves && r == opts.Rounds/2 {
			res.Departed = departLeader(agents, world)
		}
		for _, s := range agents {
			if s.down {
				continue
			}
			s.agent.Tick(ctx)
		}
	}

	for _, s := range agents {
		if s.down {
			continue
		}
		res.Agents = append(res.Agents, s.agent.Status())
		if res.Hierarchy == nil {
			res.Hierarchy = world.Members(s.identity)
		}
	}
	res.Actions = len(world.Calls())
	return res, nil
}

// departLeader takes the recognized leader offline. It announces itself
// unavailable first; a silent crash would leave it eligible in every
// roster.
func departLeader(agents []*simAgent, world *hiermemory.World) string {
	for _, s := range agents {
		if s.down || !s.agent.IsLeader() {
			continue
		}
		if _, ok := s.agent.Leader(); !ok {
			continue
		}
		s.agent.SetUnavailable()
		s.down = true
		s.agent.Stop()
		s.endpoint.SetDetached(true)
		world.SetPresent(s.identity, false)
		world.Remove(s.identity)
		return s.agent.ProfileID()
	}
	return ""
}

// simSkills spreads leadership levels over 0..5 so scores differ between
// neighbours.
func simSkills(i int) score.Skills {
	return score.Levels{
		"Leadership":   (i*7 + 1) % 6,
		"Wing Command": i % 3,
	}
}
