// Package agent runs one participant of a fleet: it keeps the roster fresh
// from broadcasts, elects a leader every tick, and drives the external
// hierarchy toward that decision one corrective action at a time.
//
// An Agent is driven either by Run, which owns a ticker, or by calling Tick
// directly. All state is guarded by one mutex; transport callbacks only
// enqueue messages into a bounded inbox.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-fleet/internal/election"
	"github.com/gezibash/arc-fleet/internal/gossip"
	"github.com/gezibash/arc-fleet/internal/hierarchy"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/internal/protocol"
	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/internal/scheduler"
	"github.com/gezibash/arc-fleet/internal/score"
	"github.com/gezibash/arc-fleet/pkg/group"
	"github.com/gezibash/arc-fleet/pkg/logging"
)

// State names as queued on the scheduler.
const (
	StateUninitialized    = "uninitialized"
	StateInitializingSelf = "initializing-self"
	StateOrganizing       = "organizing"
)

// DefaultInboxSize bounds the inbound message queue.
const DefaultInboxSize = 256

// Options configures an Agent. ProfileID, Store, Hierarchy and Transport are
// required.
type Options struct {
	ProfileID string
	Store     ConfigStore
	Hierarchy hierarchy.System
	Transport gossip.Transport

	// Election defaults to an engine without a policy.
	Election *election.Engine
	Skills   score.Skills
	// Scheduler defaults to one with the default interval.
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	InboxSize int
}

// Agent is one fleet participant.
type Agent struct {
	profileID string
	store     ConfigStore
	hierarchy hierarchy.System
	transport gossip.Transport
	election  *election.Engine
	skills    score.Skills
	sched     *scheduler.Scheduler
	metrics   *observability.Metrics
	logger    *slog.Logger
	inbox     chan protocol.Message

	mu          sync.Mutex
	group       *group.Group
	role        group.Role
	roster      *roster.Store
	initialized bool
	converged   bool
	last        StepResult
}

// New builds an agent and subscribes it to the transport. The agent is
// idle until Start.
func New(opts Options) (*Agent, error) {
	var errs []error
	if opts.ProfileID == "" {
		errs = append(errs, errors.New("agent: profile id is required"))
	}
	if opts.Store == nil {
		errs = append(errs, errors.New("agent: config store is required"))
	}
	if opts.Hierarchy == nil {
		errs = append(errs, errors.New("agent: hierarchy is required"))
	}
	if opts.Transport == nil {
		errs = append(errs, errors.New("agent: transport is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if opts.Election == nil {
		opts.Election, _ = election.New("")
	}
	if opts.Skills == nil {
		opts.Skills = score.Levels{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New()
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}

	a := &Agent{
		profileID: opts.ProfileID,
		store:     opts.Store,
		hierarchy: opts.Hierarchy,
		transport: opts.Transport,
		election:  opts.Election,
		skills:    opts.Skills,
		sched:     opts.Scheduler,
		metrics:   opts.Metrics,
		logger:    logging.WithProfile(logging.Component(opts.Logger, "agent"), opts.ProfileID, ""),
		inbox:     make(chan protocol.Message, opts.InboxSize),
		roster:    roster.New(opts.ProfileID, nil),
	}
	a.transport.OnMessage(a.Deliver)
	return a, nil
}

// ProfileID returns the agent's profile.
func (a *Agent) ProfileID() string { return a.profileID }

// Start resolves the group and queues self initialization.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadConfig(ctx)
	a.restart()
	a.logger.Info("agent started", "identity", a.hierarchy.Identity(), "interval", a.sched.Interval())
}

// Stop clears the queue, returning the agent to the uninitialized state.
// Actions already issued are not rolled back.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sched.Clear()
	a.initialized = false
	a.converged = false
	a.logger.Info("agent stopped")
}

// restart queues self initialization from scratch.
func (a *Agent) restart() {
	a.sched.Clear()
	a.initialized = false
	a.converged = false
	a.sched.QueueState(StateInitializingSelf, a.initializingSelf)
}

// Deliver enqueues an inbound message. It never blocks: when the inbox is
// full the message is dropped, and the sender's next advertisement heals
// the gap.
func (a *Agent) Deliver(m protocol.Message) {
	select {
	case a.inbox <- m:
	default:
		a.metrics.Dropped()
		a.logger.Debug("inbox full, message dropped", "kind", m.Kind.String(), logging.Peer(m.ProfileID))
	}
}

// Tick applies every queued message, then runs one scheduler step. It
// reports the name of the state that ran.
func (a *Agent) Tick(ctx context.Context) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "agent.tick", attribute.String("profile", a.profileID))
	defer span.End()

	a.drain(ctx)
	state, ran := a.sched.Step(ctx)
	if ran {
		span.SetAttributes(attribute.String("state", state))
	}

	sn := a.roster.Snapshot()
	active, available, inHierarchy := sn.Counts()
	a.metrics.Roster(len(sn.Members), active, available, inHierarchy)
	return state, ran
}

func (a *Agent) drain(ctx context.Context) {
	for {
		select {
		case m := <-a.inbox:
			a.handle(ctx, m)
		default:
			return
		}
	}
}

// Run ticks at the scheduler interval and applies inbound messages as they
// arrive, until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.sched.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-a.inbox:
			a.mu.Lock()
			a.handle(ctx, m)
			a.mu.Unlock()
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Status is a point-in-time view of an agent.
type Status struct {
	ProfileID   string
	Identity    string
	GroupID     string
	GroupName   string
	Role        group.Role
	State       string
	Pending     []string
	LeaderID    string
	IsLeader    bool
	Converged   bool
	Initialized bool
	LastResult  StepResult
	Members     []roster.Member
}

// Status returns the agent's current view.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{
		ProfileID:   a.profileID,
		Identity:    a.hierarchy.Identity(),
		Role:        a.role,
		State:       a.state(),
		Pending:     a.sched.Pending(),
		LeaderID:    a.roster.LeaderID(),
		IsLeader:    a.isLeader(),
		Converged:   a.converged,
		Initialized: a.initialized,
		LastResult:  a.last,
		Members:     a.roster.AllMembers(),
	}
	if a.group != nil {
		st.GroupID = a.group.ID
		st.GroupName = a.group.Name
	}
	return st
}

func (a *Agent) state() string {
	if a.sched.Idle() {
		return StateUninitialized
	}
	name, _ := a.sched.Current()
	return name
}

// Leader returns the recognized leader's profile ID.
func (a *Agent) Leader() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.roster.LeaderID()
	return id, id != ""
}

// IsLeader reports whether this agent is the recognized leader, or no
// leader is recognized yet.
func (a *Agent) IsLeader() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isLeader()
}

func (a *Agent) isLeader() bool {
	id := a.roster.LeaderID()
	return id == "" || id == a.profileID
}

// Converged reports whether the last tick found the hierarchy in its
// desired shape with this agent leading it.
func (a *Agent) Converged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.converged
}

// Ready returns nil once the agent is organizing.
func (a *Agent) Ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return errNotReady
	}
	return nil
}

var errNotReady = errors.New("agent: not organizing")
