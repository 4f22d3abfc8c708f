package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/gezibash/arc-fleet/internal/agent"
	"github.com/gezibash/arc-fleet/internal/gossip"
	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/pkg/group"
)

// RosterTable lists roster members. The leader is marked with '*'.
func (o *Output) RosterTable(members []roster.Member, leaderID string) *Table {
	t := o.Table("roster", "Profile", "Name", "Score", "Role", "Active", "Available", "In Hierarchy")
	for _, m := range members {
		profile := m.ProfileID
		if m.ProfileID == leaderID {
			profile += " *"
		}
		t.AddRow(profile, m.DisplayName, strconv.Itoa(m.Score), m.Role.String(),
			yesNo(m.Active), yesNo(m.Available), yesNo(m.InHierarchy))
	}
	return t
}

// GroupsTable lists group definitions.
func (o *Output) GroupsTable(groups []*group.Group) *Table {
	t := o.Table("groups", "ID", "Name", "Kind", "Members")
	for _, g := range groups {
		t.AddRow(g.ID, g.Name, g.Kind.String(), strconv.Itoa(len(g.Members)))
	}
	return t
}

// GroupKV describes a single group.
func (o *Output) GroupKV(g *group.Group) *KV {
	return o.KV("group").
		Set("ID", g.ID).
		Set("Name", g.Name).
		Set("Kind", g.Kind.String()).
		Set("Members", strings.Join(g.Members, ", "))
}

// GossipTable lists gossip cluster members.
func (o *Output) GossipTable(members []gossip.MemberInfo) *Table {
	t := o.Table("gossip-members", "Node", "Addr", "Status", "Profile", "Group", "Version", "Uptime", "RTT")
	for _, m := range members {
		name := m.Name
		if m.IsLocal {
			name += " (self)"
		}
		rtt := "-"
		if m.RTT > 0 {
			rtt = m.RTT.Round(time.Microsecond).String()
		}
		t.AddRow(name, m.Addr, m.Status, m.ProfileID, m.GroupID, m.Version,
			m.Uptime.Round(time.Second).String(), rtt)
	}
	return t
}

// StatusKV summarizes an agent's view.
func (o *Output) StatusKV(s agent.Status) *KV {
	return o.KV("agent-status").
		Set("Profile", s.ProfileID).
		Set("Identity", s.Identity).
		Set("Group", s.GroupName).
		Set("Group ID", s.GroupID).
		Set("Role", s.Role.String()).
		Set("State", s.State).
		Set("Leader", s.LeaderID).
		Set("Is Leader", s.IsLeader).
		Set("Converged", s.Converged).
		Set("Last Result", s.LastResult.String())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
