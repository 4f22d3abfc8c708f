package agent

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-fleet/internal/hierarchy"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/internal/protocol"
	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/pkg/logging"
)

// initializingSelf advertises this agent and hands over to organizing. It
// stays queued while no group is resolved.
func (a *Agent) initializingSelf(ctx context.Context) bool {
	if a.group == nil {
		a.metrics.Tick(StateInitializingSelf, OutcomeFailed.String())
		a.logger.Debug("waiting for a group")
		return false
	}
	a.initSelf()
	a.advertise()
	a.send(protocol.ForceUpdate(a.profileID, a.group.ID))
	a.initialized = true
	a.metrics.Tick(StateInitializingSelf, OutcomeContinue.String())
	a.sched.QueueStateDelay(StateOrganizing, a.organizing, a.organizeDelay())
	return true
}

// organizeDelay staggers the first organizing step of agents that start
// together. It is derived from the profile ID and stays below two
// intervals.
func (a *Agent) organizeDelay() time.Duration {
	span := 2 * a.sched.Interval()
	return time.Duration(xxhash.Sum64String(a.profileID) % uint64(span))
}

// organizing runs one reconciliation step per tick and never finishes on
// its own. Losing the group sends the agent back to initialization.
func (a *Agent) organizing(ctx context.Context) bool {
	if a.group == nil {
		a.initialized = false
		a.sched.QueueState(StateInitializingSelf, a.initializingSelf)
		return true
	}
	res := a.reconcile(ctx)
	a.record(res)
	return false
}

func (a *Agent) record(res StepResult) {
	a.last = res
	a.converged = res.Outcome == OutcomeContinue && res.Reason == ReasonConverged
	a.metrics.Tick(StateOrganizing, res.Outcome.String())

	switch res.Outcome {
	case OutcomeAction:
		a.metrics.Action(string(res.Action))
		a.logger.Info("hierarchy action", "action", string(res.Action), "target", res.Target)
	case OutcomeFailed:
		a.logger.Warn("reconciliation failed", "reason", res.Reason, logging.Err(res.Err))
	default:
		a.logger.Debug("reconciled", "reason", res.Reason)
	}
}

// reconcile performs at most one corrective action against the external
// hierarchy. Errors and panics end the step as Failed.
func (a *Agent) reconcile(ctx context.Context) (res StepResult) {
	ctx, span := observability.StartSpan(ctx, "agent.reconcile")
	defer func() {
		if r := recover(); r != nil {
			res = Failed("panic", fmt.Errorf("%v", r))
		}
		span.SetAttributes(attribute.String("result", res.String()))
		observability.EndSpan(span, res.Err)
	}()

	a.advertise()
	h := a.hierarchy
	me := h.Identity()

	in, err := h.InHierarchy(ctx)
	if err != nil {
		return Failed("in-hierarchy", err)
	}
	sn := a.roster.Snapshot()

	if !in {
		if sn.Self.InHierarchy {
			a.markLeft()
		}
		return a.join(ctx, sn)
	}
	if !sn.Self.InHierarchy {
		a.markJoined()
		return Continue(ReasonJoinedExternally)
	}

	size, err := h.Size(ctx)
	if err != nil {
		return Failed("size", err)
	}
	if size == 1 {
		if r, ok := a.inviteNext(ctx, sn); ok {
			return r
		}
		if !sn.AnyOtherInHierarchy() {
			return Continue(ReasonAlone)
		}
	}
	members, err := h.Members(ctx)
	if err != nil {
		return Failed("members", err)
	}

	desired, ok := a.election.Elect(sn.Members)
	if !ok {
		if sn.LeaderID != "" {
			a.roster.ClearLeader()
			a.logger.Info("leader cleared")
		}
		return Continue(ReasonNoLeader)
	}

	outside := outsiders(sn, members)
	desiredHere := desired.ProfileID == a.profileID || hierarchy.Contains(members, desired.DisplayName)
	if n := len(outside); n > len(members) || (n > 0 && n == len(members) && !desiredHere) {
		return a.leave(ctx, len(members), outside)
	}

	if desired.ProfileID != sn.LeaderID {
		a.metrics.LeaderChanged()
		a.logger.Info("leader changed", logging.Peer(desired.ProfileID), "identity", desired.DisplayName, "score", desired.Score)
		if desired.ProfileID != a.profileID && desiredHere {
			if root, ok := hierarchy.RootOf(members); ok && root.Identity == me {
				if err := h.MakeRoot(ctx, desired.DisplayName); err != nil {
					return Failed(string(ActionHandOffRoot), err)
				}
				a.roster.SetLeader(desired.ProfileID)
				a.logger.Info("root handed off", "to", desired.DisplayName)
				return ActionTaken(ActionHandOffRoot, desired.DisplayName)
			}
		}
		a.roster.SetLeader(desired.ProfileID)
	}

	if !desiredHere {
		a.logger.Warn("leader is in another hierarchy", logging.Peer(desired.ProfileID), "identity", desired.DisplayName)
		return Continue(ReasonSplit)
	}
	if desired.ProfileID != a.profileID {
		return Continue(ReasonNotLeader)
	}

	if root, ok := hierarchy.RootOf(members); !ok || root.Identity != me {
		return Continue(ReasonAwaitingRoot)
	}

	sub, ok := hierarchy.SubLeaderOf(members)
	if !ok {
		if err := h.Move(ctx, me, hierarchy.SubLeaderSlot); err != nil {
			return Failed(string(ActionClaimSubLeader), err)
		}
		return ActionTaken(ActionClaimSubLeader, me)
	}
	if sub.Identity != me {
		if err := h.Move(ctx, sub.Identity, hierarchy.DefaultSlot); err != nil {
			return Failed(string(ActionDemoteSubLeader), err)
		}
		return ActionTaken(ActionDemoteSubLeader, sub.Identity)
	}

	if r, ok := a.inviteNext(ctx, sn); ok {
		return r
	}
	if len(outside) > 0 {
		a.logger.Warn("peers are in another hierarchy", "peers", displayNames(outside))
		return Continue(ReasonSplit)
	}
	return Continue(ReasonConverged)
}

// outsiders lists eligible peers that report being in a hierarchy but are
// not among members.
func outsiders(sn roster.Snapshot, members []hierarchy.Member) []roster.Member {
	var out []roster.Member
	for _, m := range sn.Members {
		if m.ProfileID == sn.Self.ProfileID || !m.Eligible() || m.DisplayName == "" {
			continue
		}
		if !hierarchy.Contains(members, m.DisplayName) {
			out = append(out, m)
		}
	}
	return out
}

func displayNames(members []roster.Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.DisplayName
	}
	return names
}

// leave takes this agent out of a hierarchy that lost the split against
// the peers in outside, so the surviving leader can invite it.
func (a *Agent) leave(ctx context.Context, size int, outside []roster.Member) StepResult {
	if err := a.hierarchy.Leave(ctx); err != nil {
		return Failed(string(ActionLeave), err)
	}
	a.markLeft()
	a.logger.Warn("left split hierarchy", "size", size, "peers", displayNames(outside))
	return ActionTaken(ActionLeave, "")
}

// join handles an agent outside the hierarchy: create one when no peer has
// joined, accept an invite from a known peer, or wait.
func (a *Agent) join(ctx context.Context, sn roster.Snapshot) StepResult {
	h := a.hierarchy
	if !sn.AnyOtherInHierarchy() {
		if err := h.CreateHierarchy(ctx); err != nil {
			return Failed(string(ActionCreate), err)
		}
		a.markJoined()
		a.logger.Info("hierarchy created")
		return ActionTaken(ActionCreate, "")
	}

	invites, err := h.PendingInvites(ctx)
	if err != nil {
		return Failed("pending-invites", err)
	}
	for _, inv := range invites {
		if _, ok := sn.ByDisplayName(inv.From); !ok {
			continue
		}
		if err := h.AcceptInvite(ctx, inv); err != nil {
			return Failed(string(ActionAcceptInvite), err)
		}
		a.markJoined()
		a.logger.Info("invite accepted", "from", inv.From)
		return ActionTaken(ActionAcceptInvite, inv.From)
	}
	return Continue(ReasonAwaitingInvite)
}

// inviteNext invites the first roster member, in scan order, that is
// outside the hierarchy and observable. It reports false when there is
// nobody to invite.
func (a *Agent) inviteNext(ctx context.Context, sn roster.Snapshot) (StepResult, bool) {
	observable, err := a.hierarchy.Observable(ctx)
	if err != nil {
		return Failed("observable", err), true
	}
	for _, m := range sn.Members {
		if m.ProfileID == a.profileID || m.InHierarchy || m.DisplayName == "" {
			continue
		}
		if !slices.Contains(observable, m.DisplayName) {
			continue
		}
		if err := a.hierarchy.Invite(ctx, m.DisplayName, hierarchy.DefaultSlot); err != nil {
			return Failed(string(ActionInvite), err), true
		}
		a.logger.Info("invitation sent", logging.Peer(m.ProfileID), "identity", m.DisplayName)
		return ActionTaken(ActionInvite, m.DisplayName), true
	}
	return StepResult{}, false
}
