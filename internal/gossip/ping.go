package gossip

import (
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
)

// pingDelegate records the round-trip time of memberlist probes per node.
type pingDelegate struct {
	mu        sync.RWMutex
	latencies map[string]time.Duration
}

var _ memberlist.PingDelegate = (*pingDelegate)(nil)

func newPingDelegate() *pingDelegate {
	return &pingDelegate{latencies: make(map[string]time.Duration)}
}

func (p *pingDelegate) AckPayload() []byte { return nil }

func (p *pingDelegate) NotifyPingComplete(node *memberlist.Node, rtt time.Duration, _ []byte) {
	p.mu.Lock()
	p.latencies[node.Name] = rtt
	p.mu.Unlock()
}

// RTT returns the last measured RTT to a node, or 0.
func (p *pingDelegate) RTT(nodeName string) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latencies[nodeName]
}

func (p *pingDelegate) forget(nodeName string) {
	p.mu.Lock()
	delete(p.latencies, nodeName)
	p.mu.Unlock()
}
