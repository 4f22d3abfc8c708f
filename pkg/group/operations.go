package group

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Create returns a new group with a random ID and the given initial members.
func Create(name string, kind Kind, members ...string) (*Group, error) {
	g := &Group{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(name),
		Kind:    kind,
		Members: slices.Clone(members),
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// AddMember returns a copy of current with profileID appended to the member
// list. The original is left untouched.
func AddMember(current *Group, profileID string) (*Group, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, fmt.Errorf("%w: empty member profile", ErrInvalidGroup)
	}
	if current.HasMember(profileID) {
		return nil, ErrMemberExists
	}
	next := current.Clone()
	next.Members = append(next.Members, profileID)
	return next, nil
}

// RemoveMember returns a copy of current without profileID. Member order is
// otherwise preserved.
func RemoveMember(current *Group, profileID string) (*Group, error) {
	idx := slices.Index(current.Members, profileID)
	if idx < 0 {
		return nil, ErrMemberNotFound
	}
	next := current.Clone()
	next.Members = slices.Delete(next.Members, idx, idx+1)
	return next, nil
}

// MoveMember returns a copy of current with profileID placed at position pos
// in the scan order. pos is clamped to the valid range.
func MoveMember(current *Group, profileID string, pos int) (*Group, error) {
	idx := slices.Index(current.Members, profileID)
	if idx < 0 {
		return nil, ErrMemberNotFound
	}
	next := current.Clone()
	next.Members = slices.Delete(next.Members, idx, idx+1)
	pos = max(0, min(pos, len(next.Members)))
	next.Members = slices.Insert(next.Members, pos, profileID)
	return next, nil
}
