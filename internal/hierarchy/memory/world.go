// Package memory provides an in-process hierarchy shared by many sessions.
// It backs the simulator and the agent tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gezibash/arc-fleet/internal/hierarchy"
)

// Operation names accepted by FailNext and reported by Calls.
const (
	OpInHierarchy    = "in_hierarchy"
	OpCreate         = "create"
	OpInvite         = "invite"
	OpPendingInvites = "pending_invites"
	OpAccept         = "accept"
	OpMembers        = "members"
	OpMakeRoot       = "make_root"
	OpMove           = "move"
	OpSize           = "size"
	OpObservable     = "observable"
	OpLeave          = "leave"
)

var mutating = map[string]bool{
	OpCreate:   true,
	OpInvite:   true,
	OpAccept:   true,
	OpMakeRoot: true,
	OpMove:     true,
	OpLeave:    true,
}

// Call records one successful mutating operation.
type Call struct {
	Identity string
	Op       string
	Target   string
}

type tree struct {
	root  string
	order []string
	slots map[string]hierarchy.Slot
}

// World is the shared hierarchy state. It is safe for concurrent use.
type World struct {
	mu         sync.Mutex
	trees      map[string]*tree
	membership map[string]string
	invites    map[string][]hierarchy.Invite
	present    map[string]bool
	failures   map[string]error
	calls      []Call
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{
		trees:      make(map[string]*tree),
		membership: make(map[string]string),
		invites:    make(map[string][]hierarchy.Invite),
		present:    make(map[string]bool),
		failures:   make(map[string]error),
	}
}

// Session returns a System for identity and marks it present.
func (w *World) Session(identity string) *Session {
	w.mu.Lock()
	w.present[identity] = true
	w.mu.Unlock()
	return &Session{world: w, identity: identity}
}

// SetPresent changes whether identity can be invited.
func (w *World) SetPresent(identity string, present bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if present {
		w.present[identity] = true
	} else {
		delete(w.present, identity)
	}
}

// FailNext makes the next call of op, from any session, return err.
func (w *World) FailNext(op string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[op] = err
}

// Calls returns every successful mutating call since the last ResetCalls.
func (w *World) Calls() []Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.calls)
}

// ResetCalls forgets recorded calls.
func (w *World) ResetCalls() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = nil
}

// Remove takes identity out of its hierarchy. When it was root, the next
// member in join order becomes root. An emptied hierarchy is discarded.
func (w *World) Remove(identity string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remove(identity)
}

func (w *World) remove(identity string) bool {
	id, ok := w.membership[identity]
	if !ok {
		return false
	}
	delete(w.membership, identity)
	t := w.trees[id]
	delete(t.slots, identity)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == identity })
	if len(t.order) == 0 {
		delete(w.trees, id)
		return true
	}
	if t.root == identity {
		t.root = t.order[0]
	}
	return true
}

// Members returns the hierarchy identity belongs to, or nil.
func (w *World) Members(identity string) []hierarchy.Member {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.treeOf(identity)
	if !ok {
		return nil
	}
	return t.members()
}

func (w *World) treeOf(identity string) (*tree, bool) {
	id, ok := w.membership[identity]
	if !ok {
		return nil, false
	}
	return w.trees[id], true
}

func (t *tree) members() []hierarchy.Member {
	out := make([]hierarchy.Member, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, hierarchy.Member{Identity: id, IsRoot: id == t.root, Slot: t.slots[id]})
	}
	return out
}

// begin locks the world and consumes an injected failure for op.
func (w *World) begin(op string) error {
	w.mu.Lock()
	if err, ok := w.failures[op]; ok {
		delete(w.failures, op)
		return err
	}
	return nil
}

func (w *World) record(identity, op, target string) {
	if mutating[op] {
		w.calls = append(w.calls, Call{Identity: identity, Op: op, Target: target})
	}
}

// Session is one identity's view of a World.
type Session struct {
	world    *World
	identity string
}

var _ hierarchy.System = (*Session)(nil)

func (s *Session) Identity() string { return s.identity }

func (s *Session) InHierarchy(ctx context.Context) (bool, error) {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpInHierarchy); err != nil {
		return false, err
	}
	_, ok := w.membership[s.identity]
	return ok, nil
}

func (s *Session) CreateHierarchy(ctx context.Context) error {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpCreate); err != nil {
		return err
	}
	if _, ok := w.membership[s.identity]; ok {
		return hierarchy.ErrAlreadyInHierarchy
	}
	id := uuid.NewString()
	w.trees[id] = &tree{
		root:  s.identity,
		order: []string{s.identity},
		slots: map[string]hierarchy.Slot{s.identity: hierarchy.DefaultSlot},
	}
	w.membership[s.identity] = id
	delete(w.invites, s.identity)
	w.record(s.identity, OpCreate, "")
	return nil
}

// rootTree returns the caller's tree, requiring the caller to be its root.
func (s *Session) rootTree() (string, *tree, error) {
	w := s.world
	id, ok := w.membership[s.identity]
	if !ok {
		return "", nil, hierarchy.ErrNotInHierarchy
	}
	t := w.trees[id]
	if t.root != s.identity {
		return "", nil, hierarchy.ErrNotRoot
	}
	return id, t, nil
}

func (s *Session) Invite(ctx context.Context, identity string, slot hierarchy.Slot) error {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpInvite); err != nil {
		return err
	}
	id, _, err := s.rootTree()
	if err != nil {
		return err
	}
	if !w.present[identity] {
		return hierarchy.ErrUnknownIdentity
	}
	if _, ok := w.membership[identity]; ok {
		return hierarchy.ErrAlreadyInHierarchy
	}
	inv := hierarchy.Invite{From: s.identity, HierarchyID: id, Slot: slot}
	pending := slices.DeleteFunc(w.invites[identity], func(i hierarchy.Invite) bool { return i.HierarchyID == id })
	w.invites[identity] = append(pending, inv)
	w.record(s.identity, OpInvite, identity)
	return nil
}

func (s *Session) PendingInvites(ctx context.Context) ([]hierarchy.Invite, error) {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpPendingInvites); err != nil {
		return nil, err
	}
	return slices.Clone(w.invites[s.identity]), nil
}

func (s *Session) AcceptInvite(ctx context.Context, inv hierarchy.Invite) error {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpAccept); err != nil {
		return err
	}
	if _, ok := w.membership[s.identity]; ok {
		return hierarchy.ErrAlreadyInHierarchy
	}
	if !slices.Contains(w.invites[s.identity], inv) {
		return hierarchy.ErrNoInvite
	}
	t, ok := w.trees[inv.HierarchyID]
	if !ok {
		w.invites[s.identity] = slices.DeleteFunc(w.invites[s.identity], func(i hierarchy.Invite) bool { return i == inv })
		return hierarchy.ErrNoInvite
	}
	t.order = append(t.order, s.identity)
	t.slots[s.identity] = inv.Slot
	w.membership[s.identity] = inv.HierarchyID
	delete(w.invites, s.identity)
	w.record(s.identity, OpAccept, inv.From)
	return nil
}

func (s *Session) Members(ctx context.Context) ([]hierarchy.Member, error) {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpMembers); err != nil {
		return nil, err
	}
	t, ok := w.treeOf(s.identity)
	if !ok {
		return nil, hierarchy.ErrNotInHierarchy
	}
	return t.members(), nil
}

func (s *Session) MakeRoot(ctx context.Context, identity string) error {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpMakeRoot); err != nil {
		return err
	}
	_, t, err := s.rootTree()
	if err != nil {
		return err
	}
	if _, ok := t.slots[identity]; !ok {
		return hierarchy.ErrUnknownIdentity
	}
	t.root = identity
	w.record(s.identity, OpMakeRoot, identity)
	return nil
}

func (s *Session) Move(ctx context.Context, identity string, slot hierarchy.Slot) error {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpMove); err != nil {
		return err
	}
	_, t, err := s.rootTree()
	if err != nil {
		return err
	}
	if _, ok := t.slots[identity]; !ok {
		return hierarchy.ErrUnknownIdentity
	}
	if slot.Role == hierarchy.SlotSubLeader {
		for id, other := range t.slots {
			if id != identity && other == slot {
				return hierarchy.ErrSlotOccupied
			}
		}
	}
	t.slots[identity] = slot
	w.record(s.identity, OpMove, identity)
	return nil
}

func (s *Session) Leave(ctx context.Context) error {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpLeave); err != nil {
		return err
	}
	if !w.remove(s.identity) {
		return hierarchy.ErrNotInHierarchy
	}
	w.record(s.identity, OpLeave, "")
	return nil
}

func (s *Session) Size(ctx context.Context) (int, error) {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpSize); err != nil {
		return 0, err
	}
	t, ok := w.treeOf(s.identity)
	if !ok {
		return 0, nil
	}
	return len(t.order), nil
}

func (s *Session) Observable(ctx context.Context) ([]string, error) {
	w := s.world
	defer w.mu.Unlock()
	if err := w.begin(OpObservable); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(w.present))
	for id := range w.present {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}
