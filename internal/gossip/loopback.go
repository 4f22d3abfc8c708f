package gossip

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gezibash/arc-fleet/internal/protocol"
)

// Bus is an in-process broadcast medium connecting Loopback endpoints.
type Bus struct {
	mu        sync.RWMutex
	endpoints []*Loopback
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{} }

// Endpoint attaches a new endpoint to the bus.
func (b *Bus) Endpoint(name string) *Loopback {
	l := &Loopback{bus: b, name: name}
	b.mu.Lock()
	b.endpoints = append(b.endpoints, l)
	b.mu.Unlock()
	return l
}

// Loopback is a Transport over a Bus. Frames pass through the wire codec so
// delivery matches a networked transport.
type Loopback struct {
	bus     *Bus
	name    string
	handler handlerSlot

	mu       sync.Mutex
	detached bool
}

var _ Transport = (*Loopback)(nil)

// Name returns the endpoint name.
func (l *Loopback) Name() string { return l.name }

// OnMessage implements Transport.
func (l *Loopback) OnMessage(h Handler) { l.handler.set(h) }

// SetDetached cuts the endpoint off the bus, or reconnects it. A detached
// endpoint neither sends nor receives.
func (l *Loopback) SetDetached(detached bool) {
	l.mu.Lock()
	l.detached = detached
	l.mu.Unlock()
}

func (l *Loopback) isDetached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.detached
}

// SendToAll implements Transport. Delivery is synchronous and skips the
// sender.
func (l *Loopback) SendToAll(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	if l.isDetached() {
		return nil
	}

	l.bus.mu.RLock()
	peers := append([]*Loopback(nil), l.bus.endpoints...)
	l.bus.mu.RUnlock()

	for _, p := range peers {
		if p == l || p.isDetached() {
			continue
		}
		decoded, err := protocol.Decode(frame)
		if err != nil {
			slog.Debug("drop undecodable frame", "component", "gossip", "error", err)
			continue
		}
		p.handler.dispatch(decoded)
	}
	return nil
}
