// Package redis provides a hierarchy shared between agent processes through
// a Redis server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gezibash/arc-fleet/internal/hierarchy"
	"github.com/gezibash/arc-fleet/internal/storage"
)

const (
	KeyAddr        = "addr"
	KeyPassword    = "password"
	KeyDB          = "db"
	KeyDialTimeout = "dial_timeout"
	KeyKeyPrefix   = "key_prefix"
	KeyPresenceTTL = "presence_ttl"

	maxTxRetries = 8
)

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:        "localhost:6379",
		KeyPassword:    "",
		KeyDB:          "0",
		KeyDialTimeout: "5s",
		KeyKeyPrefix:   "arc-fleet:hierarchy:",
		KeyPresenceTTL: "30s",
	}
}

// World is a hierarchy stored in Redis.
type World struct {
	client      *redis.Client
	prefix      string
	presenceTTL time.Duration
	now         func() time.Time
}

// New connects to Redis using config layered over Defaults.
func New(ctx context.Context, config map[string]string) (*World, error) {
	r := storage.NewReader("redis", Defaults(), config)
	addr := r.Require(KeyAddr)
	db := r.NonNegativeInt(KeyDB)
	dialTimeout := r.PositiveDuration(KeyDialTimeout)
	ttl := r.PositiveDuration(KeyPresenceTTL)
	prefix := r.String(KeyKeyPrefix)
	if err := r.Err(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    r.String(KeyPassword),
		DB:          db,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.ConnectError("redis", KeyAddr, err)
	}

	slog.Info("redis hierarchy initialized", "addr", addr, "db", db, "key_prefix", prefix)
	return NewWithClient(client, prefix, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, presenceTTL time.Duration) *World {
	if presenceTTL <= 0 {
		presenceTTL = 30 * time.Second
	}
	return &World{client: client, prefix: prefix, presenceTTL: presenceTTL, now: time.Now}
}

// Close releases the client.
func (w *World) Close() error { return w.client.Close() }

// Session returns a System for identity. Opening a session marks the
// identity present.
func (w *World) Session(ctx context.Context, identity string) (*Session, error) {
	s := &Session{world: w, identity: identity}
	if err := s.touch(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (w *World) memberKey(identity string) string { return w.prefix + "member:" + identity }
func (w *World) rootKey(id string) string         { return w.prefix + "h:" + id + ":root" }
func (w *World) orderKey(id string) string        { return w.prefix + "h:" + id + ":order" }
func (w *World) slotsKey(id string) string        { return w.prefix + "h:" + id + ":slots" }
func (w *World) invitesKey(identity string) string {
	return w.prefix + "invites:" + identity
}
func (w *World) presenceKey() string { return w.prefix + "presence" }

// watch runs fn under WATCH on keys, retrying when a watched key changes
// before the transaction commits.
func (w *World) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := w.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redis hierarchy: too much contention on %s", strings.Join(keys, ","))
}

func encodeSlot(s hierarchy.Slot) string {
	return strconv.Itoa(s.Unit) + ":" + strconv.Itoa(int(s.Role))
}

func decodeSlot(v string) hierarchy.Slot {
	unit, role, _ := strings.Cut(v, ":")
	u, _ := strconv.Atoi(unit)
	r, _ := strconv.Atoi(role)
	return hierarchy.Slot{Unit: u, Role: hierarchy.SlotRole(r)}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type inviteRecord struct {
	From string `json:"from"`
	Unit int    `json:"unit"`
	Role int    `json:"role"`
}

// Session is one identity's connection to a World.
type Session struct {
	world    *World
	identity string
}

var _ hierarchy.System = (*Session)(nil)

func (s *Session) Identity() string { return s.identity }

func (s *Session) touch(ctx context.Context) error {
	w := s.world
	expires := w.now().Add(w.presenceTTL).UnixMilli()
	if err := w.client.ZAdd(ctx, w.presenceKey(), redis.Z{Score: float64(expires), Member: s.identity}).Err(); err != nil {
		return fmt.Errorf("redis hierarchy presence: %w", err)
	}
	return nil
}

func (s *Session) hierarchyID(ctx context.Context, c getter) (string, error) {
	id, err := c.Get(ctx, s.world.memberKey(s.identity)).Result()
	if errors.Is(err, redis.Nil) {
		return "", hierarchy.ErrNotInHierarchy
	}
	if err != nil {
		return "", fmt.Errorf("redis hierarchy lookup: %w", err)
	}
	return id, nil
}

// rootID returns the caller's hierarchy ID, requiring the caller be root.
func (s *Session) rootID(ctx context.Context, c getter) (string, error) {
	id, err := s.hierarchyID(ctx, c)
	if err != nil {
		return "", err
	}
	root, err := c.Get(ctx, s.world.rootKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis hierarchy root: %w", err)
	}
	if root != s.identity {
		return "", hierarchy.ErrNotRoot
	}
	return id, nil
}

// InHierarchy also refreshes the caller's presence.
func (s *Session) InHierarchy(ctx context.Context) (bool, error) {
	if err := s.touch(ctx); err != nil {
		return false, err
	}
	_, err := s.hierarchyID(ctx, s.world.client)
	if errors.Is(err, hierarchy.ErrNotInHierarchy) {
		return false, nil
	}
	return err == nil, err
}

func (s *Session) CreateHierarchy(ctx context.Context) error {
	w := s.world
	memberKey := w.memberKey(s.identity)
	return w.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, memberKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return hierarchy.ErrAlreadyInHierarchy
		}
		id := uuid.NewString()
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, memberKey, id, 0)
			p.Set(ctx, w.rootKey(id), s.identity, 0)
			p.RPush(ctx, w.orderKey(id), s.identity)
			p.HSet(ctx, w.slotsKey(id), s.identity, encodeSlot(hierarchy.DefaultSlot))
			p.Del(ctx, w.invitesKey(s.identity))
			return nil
		})
		return err
	}, memberKey)
}

func (s *Session) Invite(ctx context.Context, identity string, slot hierarchy.Slot) error {
	w := s.world
	id, err := s.hierarchyID(ctx, w.client)
	if err != nil {
		return err
	}
	data, err := json.Marshal(inviteRecord{From: s.identity, Unit: slot.Unit, Role: int(slot.Role)})
	if err != nil {
		return fmt.Errorf("encode invite: %w", err)
	}

	targetKey := w.memberKey(identity)
	invitesKey := w.invitesKey(identity)
	return w.watch(ctx, func(tx *redis.Tx) error {
		if _, err := s.rootID(ctx, tx); err != nil {
			return err
		}
		score, err := tx.ZScore(ctx, w.presenceKey(), identity).Result()
		if errors.Is(err, redis.Nil) || (err == nil && int64(score) < w.now().UnixMilli()) {
			return hierarchy.ErrUnknownIdentity
		}
		if err != nil {
			return fmt.Errorf("redis hierarchy presence: %w", err)
		}
		n, err := tx.Exists(ctx, targetKey).Result()
		if err != nil {
			return fmt.Errorf("redis hierarchy lookup: %w", err)
		}
		if n > 0 {
			return hierarchy.ErrAlreadyInHierarchy
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, invitesKey, id, data)
			return nil
		})
		return err
	}, w.memberKey(s.identity), w.rootKey(id), targetKey, invitesKey)
}

func (s *Session) PendingInvites(ctx context.Context) ([]hierarchy.Invite, error) {
	raw, err := s.world.client.HGetAll(ctx, s.world.invitesKey(s.identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hierarchy invites: %w", err)
	}
	out := make([]hierarchy.Invite, 0, len(raw))
	for id, v := range raw {
		var rec inviteRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			slog.Warn("dropping malformed invite", "identity", s.identity, "hierarchy", id, "error", err)
			continue
		}
		out = append(out, hierarchy.Invite{
			From:        rec.From,
			HierarchyID: id,
			Slot:        hierarchy.Slot{Unit: rec.Unit, Role: hierarchy.SlotRole(rec.Role)},
		})
	}
	return out, nil
}

func (s *Session) AcceptInvite(ctx context.Context, inv hierarchy.Invite) error {
	w := s.world
	memberKey := w.memberKey(s.identity)
	invitesKey := w.invitesKey(s.identity)
	return w.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, memberKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return hierarchy.ErrAlreadyInHierarchy
		}

		v, err := tx.HGet(ctx, invitesKey, inv.HierarchyID).Result()
		if errors.Is(err, redis.Nil) {
			return hierarchy.ErrNoInvite
		}
		if err != nil {
			return err
		}
		var rec inviteRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil || rec.From != inv.From {
			return hierarchy.ErrNoInvite
		}
		if n, err := tx.Exists(ctx, w.rootKey(inv.HierarchyID)).Result(); err != nil {
			return err
		} else if n == 0 {
			return hierarchy.ErrNoInvite
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, memberKey, inv.HierarchyID, 0)
			p.RPush(ctx, w.orderKey(inv.HierarchyID), s.identity)
			p.HSet(ctx, w.slotsKey(inv.HierarchyID), s.identity, encodeSlot(inv.Slot))
			p.Del(ctx, invitesKey)
			return nil
		})
		return err
	}, memberKey, invitesKey)
}

func (s *Session) Members(ctx context.Context) ([]hierarchy.Member, error) {
	w := s.world
	id, err := s.hierarchyID(ctx, w.client)
	if err != nil {
		return nil, err
	}

	pipe := w.client.Pipeline()
	orderCmd := pipe.LRange(ctx, w.orderKey(id), 0, -1)
	slotsCmd := pipe.HGetAll(ctx, w.slotsKey(id))
	rootCmd := pipe.Get(ctx, w.rootKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis hierarchy members: %w", err)
	}

	root := rootCmd.Val()
	slots := slotsCmd.Val()
	out := make([]hierarchy.Member, 0, len(orderCmd.Val()))
	for _, ident := range orderCmd.Val() {
		out = append(out, hierarchy.Member{Identity: ident, IsRoot: ident == root, Slot: decodeSlot(slots[ident])})
	}
	return out, nil
}

func (s *Session) MakeRoot(ctx context.Context, identity string) error {
	w := s.world
	id, err := s.hierarchyID(ctx, w.client)
	if err != nil {
		return err
	}
	rootKey := w.rootKey(id)
	return w.watch(ctx, func(tx *redis.Tx) error {
		if _, err := s.rootID(ctx, tx); err != nil {
			return err
		}
		ok, err := tx.HExists(ctx, w.slotsKey(id), identity).Result()
		if err != nil {
			return err
		}
		if !ok {
			return hierarchy.ErrUnknownIdentity
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, rootKey, identity, 0)
			return nil
		})
		return err
	}, rootKey)
}

func (s *Session) Move(ctx context.Context, identity string, slot hierarchy.Slot) error {
	w := s.world
	id, err := s.hierarchyID(ctx, w.client)
	if err != nil {
		return err
	}
	slotsKey := w.slotsKey(id)
	return w.watch(ctx, func(tx *redis.Tx) error {
		if _, err := s.rootID(ctx, tx); err != nil {
			return err
		}
		slots, err := tx.HGetAll(ctx, slotsKey).Result()
		if err != nil {
			return err
		}
		if _, ok := slots[identity]; !ok {
			return hierarchy.ErrUnknownIdentity
		}
		if slot.Role == hierarchy.SlotSubLeader {
			want := encodeSlot(slot)
			for other, v := range slots {
				if other != identity && v == want {
					return hierarchy.ErrSlotOccupied
				}
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, slotsKey, identity, encodeSlot(slot))
			return nil
		})
		return err
	}, slotsKey, w.rootKey(id))
}

func (s *Session) Leave(ctx context.Context) error {
	w := s.world
	id, err := s.hierarchyID(ctx, w.client)
	if err != nil {
		return err
	}
	memberKey := w.memberKey(s.identity)
	rootKey, orderKey, slotsKey := w.rootKey(id), w.orderKey(id), w.slotsKey(id)
	return w.watch(ctx, func(tx *redis.Tx) error {
		cur, err := s.hierarchyID(ctx, tx)
		if err != nil {
			return err
		}
		if cur != id {
			return hierarchy.ErrNotInHierarchy
		}
		order, err := tx.LRange(ctx, orderKey, 0, -1).Result()
		if err != nil {
			return err
		}
		root, err := tx.Get(ctx, rootKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		rest := slices.DeleteFunc(order, func(ident string) bool { return ident == s.identity })

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, memberKey)
			if len(rest) == 0 {
				p.Del(ctx, rootKey, orderKey, slotsKey)
				return nil
			}
			p.LRem(ctx, orderKey, 0, s.identity)
			p.HDel(ctx, slotsKey, s.identity)
			if root == s.identity {
				p.Set(ctx, rootKey, rest[0], 0)
			}
			return nil
		})
		return err
	}, memberKey, rootKey, orderKey)
}

func (s *Session) Size(ctx context.Context) (int, error) {
	id, err := s.hierarchyID(ctx, s.world.client)
	if errors.Is(err, hierarchy.ErrNotInHierarchy) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := s.world.client.LLen(ctx, s.world.orderKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hierarchy size: %w", err)
	}
	return int(n), nil
}

func (s *Session) Observable(ctx context.Context) ([]string, error) {
	w := s.world
	now := w.now().UnixMilli()
	if err := w.client.ZRemRangeByScore(ctx, w.presenceKey(), "-inf", "("+strconv.FormatInt(now, 10)).Err(); err != nil {
		slog.Debug("expired presence cleanup failed", "error", err)
	}
	ids, err := w.client.ZRangeByScore(ctx, w.presenceKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(now, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hierarchy presence: %w", err)
	}
	return ids, nil
}
