// Package protocol encodes and decodes the state messages agents broadcast
// to each other.
//
// Wire format: [version:1][kind:1] followed by protobuf-wire fields.
// Field numbers:
//
//	1 profile_id   bytes
//	2 group_id     bytes
//	3 score        zigzag varint
//	4 role         bytes
//	5 display_name bytes
//	6 available    varint (bool)
//
// Unknown field numbers are skipped, and a known field carrying the wrong
// wire type is dropped without failing the rest of the message.
package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Version is the current wire version.
const Version byte = 1

// Kind identifies a message type.
type Kind uint8

const (
	KindActive Kind = iota + 1
	KindAvailable
	KindJoinedHierarchy
	KindReloadConfig
	KindForceUpdate
	KindLeftHierarchy
)

func (k Kind) String() string {
	switch k {
	case KindActive:
		return "active"
	case KindAvailable:
		return "available"
	case KindJoinedHierarchy:
		return "joined_hierarchy"
	case KindReloadConfig:
		return "reload_config"
	case KindForceUpdate:
		return "force_update"
	case KindLeftHierarchy:
		return "left_hierarchy"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k >= KindActive && k <= KindLeftHierarchy }

// CarriesState reports whether messages of this kind describe the sender's
// state and therefore require a profile ID.
func (k Kind) CarriesState() bool {
	switch k {
	case KindActive, KindAvailable, KindJoinedHierarchy, KindLeftHierarchy:
		return true
	}
	return false
}

const (
	fieldProfileID   protowire.Number = 1
	fieldGroupID     protowire.Number = 2
	fieldScore       protowire.Number = 3
	fieldRole        protowire.Number = 4
	fieldDisplayName protowire.Number = 5
	fieldAvailable   protowire.Number = 6
)

var (
	ErrTruncated      = errors.New("protocol: truncated message")
	ErrVersion        = errors.New("protocol: unsupported version")
	ErrUnknownKind    = errors.New("protocol: unknown message kind")
	ErrMissingProfile = errors.New("protocol: missing profile id")
)

// Message is one decoded broadcast. Only the fields relevant to Kind are
// meaningful.
type Message struct {
	Kind        Kind
	ProfileID   string
	GroupID     string
	Score       int64
	Role        string
	DisplayName string
	Available   bool
}

// Active announces that the sender is live, with its computed attributes.
func Active(profileID, groupID string, score int64, role, displayName string) Message {
	return Message{Kind: KindActive, ProfileID: profileID, GroupID: groupID, Score: score, Role: role, DisplayName: displayName}
}

// Available toggles the sender's willingness to lead.
func Available(profileID, groupID string, available bool) Message {
	return Message{Kind: KindAvailable, ProfileID: profileID, GroupID: groupID, Available: available}
}

// JoinedHierarchy confirms the sender joined the external hierarchy.
func JoinedHierarchy(profileID, groupID string) Message {
	return Message{Kind: KindJoinedHierarchy, ProfileID: profileID, GroupID: groupID}
}

// LeftHierarchy withdraws an earlier JoinedHierarchy.
func LeftHierarchy(profileID, groupID string) Message {
	return Message{Kind: KindLeftHierarchy, ProfileID: profileID, GroupID: groupID}
}

// ReloadConfig asks receivers to reload their group configuration.
func ReloadConfig(profileID, groupID string) Message {
	return Message{Kind: KindReloadConfig, ProfileID: profileID, GroupID: groupID}
}

// ForceUpdate asks receivers to re-broadcast their own state.
func ForceUpdate(profileID, groupID string) Message {
	return Message{Kind: KindForceUpdate, ProfileID: profileID, GroupID: groupID}
}

// Key identifies the state slot a message overwrites. A newer queued
// message with the same key supersedes an older one. Joined and left share
// a slot.
func (m Message) Key() string {
	k := m.Kind
	if k == KindLeftHierarchy {
		k = KindJoinedHierarchy
	}
	return fmt.Sprintf("%d/%s", k, m.ProfileID)
}

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(m.Kind))
	}
	if m.Kind.CarriesState() && m.ProfileID == "" {
		return nil, ErrMissingProfile
	}

	b := make([]byte, 0, 32+len(m.ProfileID)+len(m.GroupID)+len(m.DisplayName))
	b = append(b, Version, byte(m.Kind))
	b = appendString(b, fieldProfileID, m.ProfileID)
	b = appendString(b, fieldGroupID, m.GroupID)

	switch m.Kind {
	case KindActive:
		b = protowire.AppendTag(b, fieldScore, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Score))
		b = appendString(b, fieldRole, m.Role)
		b = appendString(b, fieldDisplayName, m.DisplayName)
	case KindAvailable:
		b = protowire.AppendTag(b, fieldAvailable, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(m.Available))
	}
	return b, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (Message, error) {
	if len(data) < 2 {
		return Message{}, ErrTruncated
	}
	if data[0] != Version {
		return Message{}, fmt.Errorf("%w: %d", ErrVersion, data[0])
	}
	m := Message{Kind: Kind(data[1])}
	if !m.Kind.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownKind, data[1])
	}

	b := data[2:]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && isStringField(num):
			var v string
			v, n = protowire.ConsumeString(b)
			if n >= 0 {
				m.setString(num, v)
			}
		case typ == protowire.VarintType && (num == fieldScore || num == fieldAvailable):
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				if num == fieldScore {
					m.Score = protowire.DecodeZigZag(v)
				} else {
					m.Available = protowire.DecodeBool(v)
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Message{}, fmt.Errorf("%w: field %d: %w", ErrTruncated, num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if m.Kind.CarriesState() && m.ProfileID == "" {
		return Message{}, ErrMissingProfile
	}
	return m, nil
}

func isStringField(num protowire.Number) bool {
	switch num {
	case fieldProfileID, fieldGroupID, fieldRole, fieldDisplayName:
		return true
	}
	return false
}

func (m *Message) setString(num protowire.Number, v string) {
	switch num {
	case fieldProfileID:
		m.ProfileID = v
	case fieldGroupID:
		m.GroupID = v
	case fieldRole:
		m.Role = v
	case fieldDisplayName:
		m.DisplayName = v
	}
}
