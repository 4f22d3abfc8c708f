// Package groupstore persists group definitions and per-agent settings on a
// physical key-value backend.
//
// Layout:
//
//	groups/<group id>     CBOR group record
//	settings/<profile id> CBOR settings record
package groupstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-fleet/internal/groupstore/physical"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/pkg/group"
)

const (
	groupsPrefix   = "groups/"
	settingsPrefix = "settings/"
)

// ErrNotFound is returned when no group or settings record exists.
var ErrNotFound = errors.New("groupstore: not found")

// Store reads and writes group records.
type Store struct {
	backend physical.Backend
	metrics *observability.Metrics
}

// New wraps an open backend. metrics may be nil.
func New(backend physical.Backend, metrics *observability.Metrics) *Store {
	return &Store{backend: backend, metrics: metrics}
}

// Open opens the named backend and wraps it.
func Open(ctx context.Context, backend string, config map[string]string, metrics *observability.Metrics) (*Store, error) {
	b, err := physical.New(ctx, backend, config, metrics)
	if err != nil {
		return nil, err
	}
	return New(b, metrics), nil
}

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

func groupKey(id string) string    { return groupsPrefix + url.PathEscape(id) }
func settingsKey(id string) string { return settingsPrefix + url.PathEscape(id) }

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, physical.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// LoadGroupDefinition returns the group with the given ID.
func (s *Store) LoadGroupDefinition(ctx context.Context, id string) (_ *group.Group, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "groupstore.load_group", attribute.String("group", id))
	defer op.End(&err)

	if id == "" {
		return nil, fmt.Errorf("%w: empty group id", ErrNotFound)
	}
	data, err := s.get(ctx, groupKey(id))
	if err != nil {
		return nil, err
	}
	return group.UnmarshalGroup(data)
}

// SaveGroup validates and stores g, replacing any previous definition.
func (s *Store) SaveGroup(ctx context.Context, g *group.Group) (err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "groupstore.save_group", attribute.String("group", g.ID))
	defer op.End(&err)

	data, err := group.MarshalGroup(g)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, groupKey(g.ID), data)
}

// DeleteGroup removes a group definition. Deleting a missing group is not
// an error.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return s.backend.Delete(ctx, groupKey(id))
}

// ListGroups returns every stored group, ordered by ID. Records that fail to
// decode are skipped and reported in the joined error alongside the
// readable groups.
func (s *Store) ListGroups(ctx context.Context) ([]*group.Group, error) {
	keys, err := s.backend.List(ctx, groupsPrefix)
	if err != nil {
		return nil, err
	}
	var (
		out  []*group.Group
		errs []error
	)
	for _, k := range keys {
		data, err := s.backend.Get(ctx, k)
		if errors.Is(err, physical.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		g, err := group.UnmarshalGroup(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.TrimPrefix(k, groupsPrefix), err))
			continue
		}
		out = append(out, g)
	}
	return out, errors.Join(errs...)
}

// LoadAgentSettings returns the settings for a profile. A profile with no
// stored settings gets the zero Settings and ErrNotFound.
func (s *Store) LoadAgentSettings(ctx context.Context, profileID string) (_ group.Settings, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "groupstore.load_settings")
	defer op.End(&err)

	data, err := s.get(ctx, settingsKey(profileID))
	if err != nil {
		return group.Settings{}, err
	}
	return group.UnmarshalSettings(data)
}

// SaveAgentSettings stores the settings for a profile.
func (s *Store) SaveAgentSettings(ctx context.Context, profileID string, settings group.Settings) error {
	if profileID == "" {
		return errors.New("groupstore: empty profile id")
	}
	data, err := group.MarshalSettings(settings)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, settingsKey(profileID), data)
}
