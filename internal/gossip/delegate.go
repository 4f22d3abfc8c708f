package gossip

import (
	"log/slog"

	"github.com/hashicorp/memberlist"

	"github.com/gezibash/arc-fleet/internal/protocol"
)

// delegate implements memberlist.Delegate to carry protocol frames.
type delegate struct {
	meta       func() []byte
	state      *frameState
	broadcasts *memberlist.TransmitLimitedQueue
	handler    *handlerSlot
	logger     *slog.Logger
}

var _ memberlist.Delegate = (*delegate)(nil)

// NodeMeta returns metadata about this node (must fit in limit bytes).
func (d *delegate) NodeMeta(limit int) []byte {
	data := d.meta()
	if len(data) > limit {
		d.logger.Warn("node meta exceeds limit", "size", len(data), "limit", limit)
		return data[:limit]
	}
	return data
}

// NotifyMsg is called when a broadcast frame is received. Must not block.
func (d *delegate) NotifyMsg(frame []byte) {
	d.deliver(frame)
}

func (d *delegate) deliver(frame []byte) {
	if len(frame) == 0 {
		return
	}
	m, err := protocol.Decode(frame)
	if err != nil {
		d.logger.Debug("drop undecodable frame", "size", len(frame), "error", err)
		return
	}
	d.handler.dispatch(m)
}

// GetBroadcasts returns queued broadcasts (called by memberlist protocol).
func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte {
	return d.broadcasts.GetBroadcasts(overhead, limit)
}

// LocalState returns this node's latest frames for push/pull sync.
func (d *delegate) LocalState(join bool) []byte {
	return d.state.Encode()
}

// MergeRemoteState replays a remote node's latest frames.
func (d *delegate) MergeRemoteState(buf []byte, join bool) {
	frames, err := decodeState(buf)
	if err != nil {
		d.logger.Warn("merge remote state failed", "error", err)
	}
	for _, f := range frames {
		d.deliver(f)
	}
}

// broadcast implements memberlist.Broadcast. A newer broadcast invalidates
// a queued one with the same key.
type broadcast struct {
	key  string
	data []byte
}

func (b *broadcast) Invalidates(other memberlist.Broadcast) bool {
	ob, ok := other.(*broadcast)
	if !ok {
		return false
	}
	return b.key == ob.key
}

func (b *broadcast) Message() []byte { return b.data }

func (b *broadcast) Finished() {}
