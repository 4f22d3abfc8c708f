// Package group defines fleet group definitions and the per-agent settings
// that select one of them. Both are owned by configuration and read-only to
// the coordination loop.
package group

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Role is the part a participant plays inside its group.
type Role int

const (
	RoleCombat Role = iota
	RoleMiner
	RoleHauler
	RoleBooster
)

var roleNames = [...]string{
	RoleCombat:  "combat",
	RoleMiner:   "miner",
	RoleHauler:  "hauler",
	RoleBooster: "booster",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole parses a role name (case-insensitive).
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(roleNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(roleNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Kind is the activity a group is organized for. It selects which
// role-specific score tables apply.
type Kind int

const (
	KindMining Kind = iota
	KindAnomalyCombat
)

var kindNames = [...]string{
	KindMining:        "mining",
	KindAnomalyCombat: "anomaly_combat",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses a group kind name (case-insensitive, "-" and "_" are equivalent).
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Group is a named, persisted collection of participant profiles.
// Members is ordered; the order is the scan order used when choosing whom
// to invite next.
type Group struct {
	ID      string   `cbor:"id" json:"id"`
	Name    string   `cbor:"name" json:"name"`
	Kind    Kind     `cbor:"kind" json:"kind"`
	Members []string `cbor:"members" json:"members"`
}

// Settings is the per-agent configuration record: which group the agent
// belongs to and the role it declares.
type Settings struct {
	CurrentGroupID string `cbor:"current_group_id" json:"current_group_id"`
	Role           Role   `cbor:"role" json:"role"`
}

var (
	ErrInvalidGroup   = errors.New("invalid group")
	ErrMemberExists   = errors.New("member already exists in group")
	ErrMemberNotFound = errors.New("member not found in group")
	ErrUnknownRole    = errors.New("unknown role")
	ErrUnknownKind    = errors.New("unknown group kind")
)

// Validate checks that the group has an ID, a name, and no duplicate or
// empty member profiles.
func (g *Group) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil", ErrInvalidGroup)
	}
	if g.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidGroup)
	}
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidGroup)
	}
	if g.Kind < 0 || int(g.Kind) >= len(kindNames) {
		return fmt.Errorf("%w: %w", ErrInvalidGroup, ErrUnknownKind)
	}
	seen := make(map[string]struct{}, len(g.Members))
	for _, p := range g.Members {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty member profile", ErrInvalidGroup)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: duplicate member %q", ErrInvalidGroup, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// HasMember reports whether profileID is listed in the group.
func (g *Group) HasMember(profileID string) bool {
	return g != nil && slices.Contains(g.Members, profileID)
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Members = slices.Clone(g.Members)
	return &c
}
