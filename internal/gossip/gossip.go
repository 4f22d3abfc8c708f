// Package gossip carries broadcast protocol frames between agents.
//
// Memberlist runs a hashicorp/memberlist cluster: frames are queued as
// broadcasts, and each node's latest self-advertisements travel with
// push/pull sync. Loopback connects agents inside one process.
package gossip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/gezibash/arc-fleet/internal/protocol"
	"github.com/gezibash/arc-fleet/pkg/logging"
)

// ErrClosed is returned when sending on a closed transport.
var ErrClosed = errors.New("gossip: transport closed")

// Memberlist is a Transport backed by a memberlist cluster.
type Memberlist struct {
	list       *memberlist.Memberlist
	broadcasts *memberlist.TransmitLimitedQueue
	state      *frameState
	handler    *handlerSlot
	pings      *pingDelegate
	config     Config
	logger     *slog.Logger
	started    time.Time

	metaMu sync.Mutex
	meta   NodeMeta

	closed     atomic.Bool
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

var _ Transport = (*Memberlist)(nil)

// MemberInfo describes a cluster member.
type MemberInfo struct {
	Name      string
	Addr      string
	Status    string
	ProfileID string
	GroupID   string
	Version   string
	Uptime    time.Duration
	RTT       time.Duration
	IsLocal   bool
}

// New creates the memberlist node. Call Start to join the cluster.
func New(cfg Config, logger *slog.Logger) (*Memberlist, error) {
	if cfg.NodeName == "" {
		cfg.NodeName = cfg.ProfileID
	}
	if cfg.NodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("get hostname: %w", err)
		}
		cfg.NodeName = hostname
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0"
	}
	logger = logging.Component(logger, "gossip")

	g := &Memberlist{
		broadcasts: &memberlist.TransmitLimitedQueue{RetransmitMult: 3},
		state:      newFrameState(),
		handler:    &handlerSlot{},
		pings:      newPingDelegate(),
		config:     cfg,
		logger:     logger,
		started:    time.Now(),
		meta: NodeMeta{
			ProfileID: cfg.ProfileID,
			GroupID:   cfg.GroupID,
			Version:   cfg.Version,
		},
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeName
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	}
	if cfg.AdvertisePort != 0 {
		mlConfig.AdvertisePort = cfg.AdvertisePort
	}
	mlConfig.Delegate = &delegate{
		meta:       g.encodeMeta,
		state:      g.state,
		broadcasts: g.broadcasts,
		handler:    g.handler,
		logger:     logger,
	}
	mlConfig.Events = &eventDelegate{pings: g.pings, logger: logger}
	mlConfig.Ping = g.pings
	mlConfig.LogOutput = &slogWriter{log: logging.Component(logger, "memberlist")}

	list, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	g.list = list
	g.broadcasts.NumNodes = list.NumMembers
	return g, nil
}

// Start joins the seeds, if any, and starts the metadata refresher. A
// failed join is logged, not returned; later advertisements still reach
// any peer that joins this node.
func (g *Memberlist) Start(ctx context.Context) error {
	ctx, g.cancelFunc = context.WithCancel(ctx)

	if len(g.config.Seeds) > 0 {
		n, err := g.list.Join(g.config.Seeds)
		if err != nil {
			g.logger.Warn("partial join", "joined", n, "seeds", g.config.Seeds, "error", err)
		} else {
			g.logger.Info("joined cluster", "joined", n, "seeds", g.config.Seeds)
		}
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.metaUpdater(ctx)
	}()

	g.logger.Info("gossip started",
		"name", g.config.NodeName,
		"addr", g.Addr(),
		"members", g.list.NumMembers(),
	)
	return nil
}

func (g *Memberlist) metaUpdater(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.list.UpdateNode(5 * time.Second); err != nil {
				g.logger.Debug("update node meta failed", "error", err)
			}
		}
	}
}

func (g *Memberlist) encodeMeta() []byte {
	g.metaMu.Lock()
	defer g.metaMu.Unlock()
	g.meta.Uptime = uint64(time.Since(g.started).Nanoseconds())
	return g.meta.Encode()
}

// SetGroup changes the group advertised in node metadata.
func (g *Memberlist) SetGroup(groupID string) {
	g.metaMu.Lock()
	g.meta.GroupID = groupID
	g.metaMu.Unlock()
}

// OnMessage implements Transport.
func (g *Memberlist) OnMessage(h Handler) { g.handler.set(h) }

// SendToAll implements Transport. The frame is queued for gossip; an older
// queued frame for the same kind and profile is replaced.
func (g *Memberlist) SendToAll(m protocol.Message) error {
	if g.closed.Load() {
		return ErrClosed
	}
	frame, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	if m.ProfileID == g.config.ProfileID {
		g.state.Record(m, frame)
	}
	g.broadcasts.QueueBroadcast(&broadcast{key: m.Key(), data: frame})
	return nil
}

// Join adds peers to the cluster at runtime.
func (g *Memberlist) Join(peers []string) (int, error) {
	return g.list.Join(peers)
}

// Addr returns the host:port this node is reachable at.
func (g *Memberlist) Addr() string {
	return g.list.LocalNode().Address()
}

// LocalName returns this node's name.
func (g *Memberlist) LocalName() string { return g.config.NodeName }

// NumMembers returns the number of live cluster members, self included.
func (g *Memberlist) NumMembers() int { return g.list.NumMembers() }

// Members returns information about all cluster members.
func (g *Memberlist) Members() []MemberInfo {
	members := g.list.Members()
	infos := make([]MemberInfo, 0, len(members))
	for _, m := range members {
		info := MemberInfo{
			Name:    m.Name,
			Addr:    m.Address(),
			Status:  memberStatusString(m.State),
			IsLocal: m.Name == g.config.NodeName,
		}
		if !info.IsLocal {
			info.RTT = g.pings.RTT(m.Name)
		}
		if meta, err := DecodeNodeMeta(m.Meta); err == nil {
			info.ProfileID = meta.ProfileID
			info.GroupID = meta.GroupID
			info.Version = meta.Version
			info.Uptime = time.Duration(meta.Uptime)
		}
		infos = append(infos, info)
	}
	return infos
}

// Close leaves the cluster and shuts the node down.
func (g *Memberlist) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	if g.cancelFunc != nil {
		g.cancelFunc()
	}
	if err := g.list.Leave(5 * time.Second); err != nil {
		g.logger.Warn("leave failed during close", "error", err)
	}
	err := g.list.Shutdown()
	g.wg.Wait()
	return err
}

func memberStatusString(state memberlist.NodeStateType) string {
	switch state {
	case memberlist.StateAlive:
		return "alive"
	case memberlist.StateSuspect:
		return "suspect"
	case memberlist.StateDead:
		return "dead"
	case memberlist.StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// slogWriter adapts memberlist's log output to slog, mapping its level
// prefixes onto slog levels.
type slogWriter struct {
	log *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")
	switch {
	case strings.Contains(msg, "[ERR]"):
		w.log.Warn(stripMemberlistPrefix(msg, "[ERR]"))
	case strings.Contains(msg, "[WARN]"):
		w.log.Warn(stripMemberlistPrefix(msg, "[WARN]"))
	case strings.Contains(msg, "[INFO]"):
		w.log.Info(stripMemberlistPrefix(msg, "[INFO]"))
	default:
		w.log.Debug(stripMemberlistPrefix(msg, "[DEBUG]"))
	}
	return len(p), nil
}

// stripMemberlistPrefix turns
// "2026/02/04 14:13:51 [ERR] memberlist: Failed to send..." into
// "memberlist: Failed to send...".
func stripMemberlistPrefix(msg, level string) string {
	if idx := strings.Index(msg, level); idx != -1 {
		msg = strings.TrimSpace(msg[idx+len(level):])
	}
	return msg
}
