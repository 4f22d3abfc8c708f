// Package roster holds an agent's local, eventually consistent view of every
// participant in its group.
//
// A Store is owned by a single agent goroutine and is not safe for
// concurrent use. Cross-agent consistency comes only from broadcast
// messages applied through Upsert.
package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gezibash/arc-fleet/pkg/group"
)

// Member is one participant as known to this agent.
type Member struct {
	ProfileID   string
	DisplayName string
	Score       int
	Role        group.Role
	Active      bool
	Available   bool
	InHierarchy bool
}

// Eligible reports whether the member may be considered for leadership.
func (m Member) Eligible() bool {
	return m.Active && m.Available && m.InHierarchy
}

// Update is a partial update. Nil fields are left unchanged. Role is carried
// as its wire string so an unknown value can be rejected on its own.
type Update struct {
	DisplayName *string
	Score       *int
	Role        *string
	Active      *bool
	Available   *bool
	InHierarchy *bool
}

func (u Update) WithDisplayName(s string) Update { u.DisplayName = &s; return u }
func (u Update) WithScore(n int) Update          { u.Score = &n; return u }
func (u Update) WithRole(r string) Update        { u.Role = &r; return u }
func (u Update) WithActive(b bool) Update        { u.Active = &b; return u }
func (u Update) WithAvailable(b bool) Update     { u.Available = &b; return u }
func (u Update) WithInHierarchy(b bool) Update   { u.InHierarchy = &b; return u }

// ErrEmptyProfile is returned by Upsert when no profile ID is given.
var ErrEmptyProfile = errors.New("empty profile id")

// FieldError describes one rejected field of an update.
type FieldError struct {
	ProfileID string
	Field     string
	Value     string
	Reason    string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("roster: %s: %s=%q: %s", e.ProfileID, e.Field, e.Value, e.Reason)
}

// Store maps profile IDs to members. It keeps a stable scan order: the order
// the store was seeded with, followed by first-sighting order.
type Store struct {
	self    string
	members map[string]*Member
	order   []string
	leader  string
}

// New returns a store seeded with one inactive member per profile ID, in
// the given order. The self profile is always present and starts active and
// available.
func New(self string, seed []string) *Store {
	s := &Store{
		self:    self,
		members: make(map[string]*Member, len(seed)+1),
	}
	for _, id := range seed {
		s.ensure(id)
	}
	me := s.ensure(self)
	me.Active = true
	me.Available = true
	return s
}

func (s *Store) ensure(id string) *Member {
	if m, ok := s.members[id]; ok {
		return m
	}
	m := &Member{ProfileID: id}
	s.members[id] = m
	s.order = append(s.order, id)
	return m
}

// Upsert applies u to the member with the given profile ID, creating it if
// absent. The last update received for a field always wins. Malformed
// fields are rejected individually; every other field still applies and the
// returned error joins one *FieldError per rejected field.
func (s *Store) Upsert(profileID string, u Update) error {
	if profileID == "" {
		return ErrEmptyProfile
	}
	m := s.ensure(profileID)

	var errs []error
	reject := func(field, value, reason string) {
		errs = append(errs, &FieldError{ProfileID: profileID, Field: field, Value: value, Reason: reason})
	}

	if u.DisplayName != nil {
		if name := strings.TrimSpace(*u.DisplayName); name == "" {
			reject("display_name", *u.DisplayName, "must not be empty")
		} else {
			m.DisplayName = name
		}
	}
	if u.Score != nil {
		if *u.Score < 0 {
			reject("score", fmt.Sprint(*u.Score), "must not be negative")
		} else {
			m.Score = *u.Score
		}
	}
	if u.Role != nil {
		if r, err := group.ParseRole(*u.Role); err != nil {
			reject("role", *u.Role, "unknown role")
		} else {
			m.Role = r
		}
	}
	if u.Active != nil {
		m.Active = *u.Active
	}
	if u.Available != nil {
		m.Available = *u.Available
	}
	if u.InHierarchy != nil {
		m.InHierarchy = *u.InHierarchy
	}
	return errors.Join(errs...)
}

// Get returns a copy of the member with the given profile ID.
func (s *Store) Get(profileID string) (Member, bool) {
	m, ok := s.members[profileID]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Contains reports whether the profile ID is known.
func (s *Store) Contains(profileID string) bool {
	_, ok := s.members[profileID]
	return ok
}

// Len returns the number of known members, self included.
func (s *Store) Len() int { return len(s.members) }

// AllMembers returns a copy of every member in scan order.
func (s *Store) AllMembers() []Member {
	out := make([]Member, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.members[id])
	}
	return out
}

// SelfID returns this agent's profile ID.
func (s *Store) SelfID() string { return s.self }

// Self returns a copy of this agent's own member entry.
func (s *Store) Self() Member { return *s.members[s.self] }

// UpdateSelf mutates this agent's own entry. The profile ID cannot change.
func (s *Store) UpdateSelf(fn func(*Member)) {
	m := s.members[s.self]
	fn(m)
	m.ProfileID = s.self
}

// LeaderID returns the profile ID of the recognized leader, or "".
func (s *Store) LeaderID() string { return s.leader }

// Leader returns the recognized leader, if any.
func (s *Store) Leader() (Member, bool) {
	if s.leader == "" {
		return Member{}, false
	}
	return s.Get(s.leader)
}

// SetLeader records profileID as the recognized leader.
func (s *Store) SetLeader(profileID string) { s.leader = profileID }

// ClearLeader forgets the recognized leader.
func (s *Store) ClearLeader() { s.leader = "" }

// Snapshot copies the store's contents for one reconciliation tick.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Members:  s.AllMembers(),
		Self:     s.Self(),
		LeaderID: s.leader,
	}
}

// Snapshot is an immutable view of a Store at one instant.
type Snapshot struct {
	Members  []Member
	Self     Member
	LeaderID string
}

// Get looks up a member by profile ID.
func (sn Snapshot) Get(profileID string) (Member, bool) {
	for _, m := range sn.Members {
		if m.ProfileID == profileID {
			return m, true
		}
	}
	return Member{}, false
}

// ByDisplayName looks up a member other than self by external identity.
func (sn Snapshot) ByDisplayName(name string) (Member, bool) {
	if name == "" {
		return Member{}, false
	}
	for _, m := range sn.Members {
		if m.ProfileID != sn.Self.ProfileID && m.DisplayName == name {
			return m, true
		}
	}
	return Member{}, false
}

// AnyOtherInHierarchy reports whether a member other than self is known to
// have joined the external hierarchy.
func (sn Snapshot) AnyOtherInHierarchy() bool {
	for _, m := range sn.Members {
		if m.ProfileID != sn.Self.ProfileID && m.InHierarchy {
			return true
		}
	}
	return false
}

// Counts tallies members by state, for metrics and status output.
func (sn Snapshot) Counts() (active, available, inHierarchy int) {
	for _, m := range sn.Members {
		if m.Active {
			active++
		}
		if m.Available {
			available++
		}
		if m.InHierarchy {
			inHierarchy++
		}
	}
	return active, available, inHierarchy
}
