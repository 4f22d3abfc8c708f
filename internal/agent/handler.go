package agent

import (
	"context"

	"github.com/gezibash/arc-fleet/internal/protocol"
	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/pkg/logging"
)

// handle applies one inbound message. Callers hold a.mu.
func (a *Agent) handle(ctx context.Context, m protocol.Message) {
	if m.ProfileID == a.profileID {
		return
	}
	a.metrics.Message(m.Kind.String(), "in")

	switch m.Kind {
	case protocol.KindReloadConfig:
		if a.group == nil || m.GroupID == "" || m.GroupID == a.group.ID {
			a.logger.Info("reload requested", logging.Peer(m.ProfileID))
			a.reload(ctx)
		}
		return
	case protocol.KindForceUpdate:
		if a.initialized && a.sameGroup(m) {
			a.advertise()
		}
		return
	}

	if a.group == nil || !a.sameGroup(m) || !a.roster.Contains(m.ProfileID) {
		return
	}

	var u roster.Update
	switch m.Kind {
	case protocol.KindActive:
		u = u.WithDisplayName(m.DisplayName).WithScore(int(m.Score)).WithRole(m.Role).WithActive(true)
	case protocol.KindAvailable:
		u = u.WithAvailable(m.Available)
	case protocol.KindJoinedHierarchy:
		u = u.WithInHierarchy(true)
	case protocol.KindLeftHierarchy:
		u = u.WithInHierarchy(false)
	default:
		return
	}
	if err := a.roster.Upsert(m.ProfileID, u); err != nil {
		a.logger.Debug("rejected fields in update", "kind", m.Kind.String(), logging.Peer(m.ProfileID), logging.Err(err))
	}
}

// sameGroup reports whether m is addressed to this agent's group. Messages
// without a group match any.
func (a *Agent) sameGroup(m protocol.Message) bool {
	return m.GroupID == "" || (a.group != nil && m.GroupID == a.group.ID)
}
