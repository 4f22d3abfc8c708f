// Package logging holds the attribute conventions shared by fleet components.
package logging

import (
	"log/slog"
)

// Attribute keys used across components.
const (
	KeyComponent = "component"
	KeyProfile   = "profile"
	KeyGroup     = "group"
	KeyPeer      = "peer"
	KeyState     = "state"
	KeyError     = "error"
)

// Or returns l, or slog.Default() when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Component tags l with a component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	return Or(l).With(KeyComponent, name)
}

// WithProfile tags l with the agent's shortened profile ID and, if set, its
// group.
func WithProfile(l *slog.Logger, profileID, groupID string) *slog.Logger {
	l = Or(l).With(KeyProfile, ShortID(profileID))
	if groupID != "" {
		l = l.With(KeyGroup, ShortID(groupID))
	}
	return l
}

// Peer is the attribute for another agent's profile.
func Peer(profileID string) slog.Attr {
	return slog.String(KeyPeer, ShortID(profileID))
}

// Err is the attribute for an error. A nil error yields an empty attribute,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ShortID trims long identifiers such as UUIDs to their first eight
// characters for log lines.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8]
}
