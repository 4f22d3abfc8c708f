package gossip

import (
	"sync"

	"github.com/gezibash/arc-fleet/internal/protocol"
)

// Handler receives decoded inbound messages. It is called from transport
// goroutines and must not block.
type Handler func(protocol.Message)

// Transport delivers broadcast messages to every other agent.
type Transport interface {
	SendToAll(m protocol.Message) error
	OnMessage(h Handler)
}

// handlerSlot holds the registered Handler for a transport.
type handlerSlot struct {
	mu sync.RWMutex
	h  Handler
}

func (s *handlerSlot) set(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

func (s *handlerSlot) dispatch(m protocol.Message) {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	if h != nil {
		h(m)
	}
}
