// Package hierarchy defines the external command hierarchy agents organize
// themselves into.
//
// A hierarchy has exactly one root. Every other participant sits in a slot
// made of a unit number and a role within that unit. Only the root may
// invite, move members or hand the root over. Each agent talks to the
// hierarchy through its own System session.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
)

// SlotRole is the role a participant holds within a unit.
type SlotRole int

const (
	SlotMember SlotRole = iota
	SlotSubLeader
)

func (r SlotRole) String() string {
	switch r {
	case SlotMember:
		return "member"
	case SlotSubLeader:
		return "sub_leader"
	default:
		return fmt.Sprintf("slot_role(%d)", int(r))
	}
}

// Slot is a position within the hierarchy.
type Slot struct {
	Unit int
	Role SlotRole
}

// DefaultSlot is where new members are placed.
var DefaultSlot = Slot{Unit: 0, Role: SlotMember}

// SubLeaderSlot is the sub-leader position of the default unit.
var SubLeaderSlot = Slot{Unit: 0, Role: SlotSubLeader}

func (s Slot) String() string { return fmt.Sprintf("%d/%s", s.Unit, s.Role) }

// Member is one participant of a hierarchy.
type Member struct {
	Identity string
	IsRoot   bool
	Slot     Slot
}

// Invite is a pending invitation addressed to a session's identity.
type Invite struct {
	From        string
	HierarchyID string
	Slot        Slot
}

var (
	ErrNotInHierarchy     = errors.New("hierarchy: not in a hierarchy")
	ErrAlreadyInHierarchy = errors.New("hierarchy: already in a hierarchy")
	ErrUnknownIdentity    = errors.New("hierarchy: unknown identity")
	ErrNotRoot            = errors.New("hierarchy: caller is not root")
	ErrNoInvite           = errors.New("hierarchy: no such invite")
	ErrSlotOccupied       = errors.New("hierarchy: slot occupied")
)

// System is one agent's session with the external hierarchy.
type System interface {
	// Identity is the external name of the session's owner.
	Identity() string
	InHierarchy(ctx context.Context) (bool, error)
	CreateHierarchy(ctx context.Context) error
	Invite(ctx context.Context, identity string, slot Slot) error
	PendingInvites(ctx context.Context) ([]Invite, error)
	AcceptInvite(ctx context.Context, inv Invite) error
	// Members lists the caller's hierarchy. It fails with ErrNotInHierarchy
	// when the caller is outside one.
	Members(ctx context.Context) ([]Member, error)
	MakeRoot(ctx context.Context, identity string) error
	Move(ctx context.Context, identity string, slot Slot) error
	// Leave takes the caller out of its hierarchy. A departing root passes
	// the role to the next member in join order; an emptied hierarchy is
	// dissolved.
	Leave(ctx context.Context) error
	// Size is the member count of the caller's hierarchy, or zero.
	Size(ctx context.Context) (int, error)
	// Observable lists identities the caller can currently reach with an
	// invite.
	Observable(ctx context.Context) ([]string, error)
}

// Contains reports whether identity is one of members.
func Contains(members []Member, identity string) bool {
	for _, m := range members {
		if m.Identity == identity {
			return true
		}
	}
	return false
}

// RootOf returns the root of members.
func RootOf(members []Member) (Member, bool) {
	for _, m := range members {
		if m.IsRoot {
			return m, true
		}
	}
	return Member{}, false
}

// SubLeaderOf returns the first member holding a sub-leader slot.
func SubLeaderOf(members []Member) (Member, bool) {
	for _, m := range members {
		if m.Slot.Role == SlotSubLeader {
			return m, true
		}
	}
	return Member{}, false
}

// Find returns the member with the given identity.
func Find(members []Member, identity string) (Member, bool) {
	for _, m := range members {
		if m.Identity == identity {
			return m, true
		}
	}
	return Member{}, false
}
