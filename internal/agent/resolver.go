package agent

import (
	"context"
	"errors"

	"github.com/gezibash/arc-fleet/internal/groupstore"
	"github.com/gezibash/arc-fleet/internal/protocol"
	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/pkg/group"
	"github.com/gezibash/arc-fleet/pkg/logging"
)

// ConfigStore is the read side of the configuration store.
// *groupstore.Store implements it.
type ConfigStore interface {
	LoadAgentSettings(ctx context.Context, profileID string) (group.Settings, error)
	LoadGroupDefinition(ctx context.Context, id string) (*group.Group, error)
}

// groupAnnouncer is implemented by transports that advertise the group.
type groupAnnouncer interface {
	SetGroup(groupID string)
}

// LoadConfig re-reads settings and the group definition and reseeds the
// roster. It does not touch the scheduler queue.
func (a *Agent) LoadConfig(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadConfig(ctx)
}

// Reconfigure tells peers to reload their configuration, then reloads and
// reinitializes this agent.
func (a *Agent) Reconfigure(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.groupID()
	a.send(protocol.ReloadConfig(a.profileID, before))
	a.reload(ctx)
	if after := a.groupID(); after != "" && after != before {
		a.send(protocol.ReloadConfig(a.profileID, after))
	}
}

// reload reseeds the roster and restarts from self initialization.
func (a *Agent) reload(ctx context.Context) {
	a.loadConfig(ctx)
	a.restart()
}

func (a *Agent) groupID() string {
	if a.group == nil {
		return ""
	}
	return a.group.ID
}

// loadConfig resolves the agent's group. A missing or unreadable group, or
// one that does not list this agent, leaves the agent unresolved with a
// roster holding only itself.
func (a *Agent) loadConfig(ctx context.Context) {
	g, settings, err := a.resolve(ctx)
	if err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			a.logger.Warn("no group resolved", logging.Err(err))
		} else {
			a.logger.Error("load configuration failed", logging.Err(err))
		}
		a.group = nil
		a.role = settings.Role
		a.roster = roster.New(a.profileID, nil)
		a.announceGroup("")
		return
	}

	a.group = g
	a.role = settings.Role
	a.roster = roster.New(a.profileID, g.Members)
	a.announceGroup(g.ID)
	a.logger.Info("group resolved",
		logging.KeyGroup, logging.ShortID(g.ID),
		"name", g.Name,
		"kind", g.Kind.String(),
		"role", settings.Role.String(),
		"members", len(g.Members),
	)
}

var errNotListed = errors.New("agent: profile is not a member of its group")

func (a *Agent) resolve(ctx context.Context) (*group.Group, group.Settings, error) {
	settings, err := a.store.LoadAgentSettings(ctx, a.profileID)
	if err != nil {
		return nil, settings, err
	}
	g, err := a.store.LoadGroupDefinition(ctx, settings.CurrentGroupID)
	if err != nil {
		return nil, settings, err
	}
	if !g.HasMember(a.profileID) {
		return nil, settings, errNotListed
	}
	return g, settings, nil
}

func (a *Agent) announceGroup(groupID string) {
	if ga, ok := a.transport.(groupAnnouncer); ok {
		ga.SetGroup(groupID)
	}
}
