package agent

import (
	"github.com/gezibash/arc-fleet/internal/protocol"
	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/internal/score"
	"github.com/gezibash/arc-fleet/pkg/logging"
)

// initSelf computes this agent's score and marks it active and available.
func (a *Agent) initSelf() {
	points := score.Compute(a.role, a.group.Kind, a.skills)
	identity := a.hierarchy.Identity()
	a.roster.UpdateSelf(func(m *roster.Member) {
		m.DisplayName = identity
		m.Score = points
		m.Role = a.role
		m.Active = true
		m.Available = true
	})
	a.logger.Info("self initialized", "identity", identity, "role", a.role.String(), "score", points)
}

// advertise broadcasts this agent's full state.
func (a *Agent) advertise() {
	self := a.roster.Self()
	gid := a.groupID()
	a.send(protocol.Active(self.ProfileID, gid, int64(self.Score), self.Role.String(), self.DisplayName))
	a.send(protocol.Available(self.ProfileID, gid, self.Available))
	if self.InHierarchy {
		a.send(protocol.JoinedHierarchy(self.ProfileID, gid))
	}
}

// markJoined records that this agent joined the hierarchy and tells peers.
func (a *Agent) markJoined() {
	a.roster.UpdateSelf(func(m *roster.Member) { m.InHierarchy = true })
	a.send(protocol.JoinedHierarchy(a.profileID, a.groupID()))
}

// markLeft records that this agent is outside any hierarchy and tells peers.
func (a *Agent) markLeft() {
	a.roster.UpdateSelf(func(m *roster.Member) { m.InHierarchy = false })
	a.send(protocol.LeftHierarchy(a.profileID, a.groupID()))
}

func (a *Agent) send(m protocol.Message) {
	if err := a.transport.SendToAll(m); err != nil {
		a.logger.Warn("broadcast failed", "kind", m.Kind.String(), logging.Err(err))
		return
	}
	a.metrics.Message(m.Kind.String(), "out")
}

// SetAvailable marks this agent available for leadership and tells peers.
func (a *Agent) SetAvailable() { a.setAvailable(true) }

// SetUnavailable withdraws this agent from leadership and tells peers.
func (a *Agent) SetUnavailable() { a.setAvailable(false) }

func (a *Agent) setAvailable(available bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roster.UpdateSelf(func(m *roster.Member) { m.Available = available })
	if a.group != nil {
		a.send(protocol.Available(a.profileID, a.group.ID, available))
	}
	a.logger.Info("availability changed", "available", available)
}
