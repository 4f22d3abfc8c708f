package gossip

import (
	"log/slog"

	"github.com/hashicorp/memberlist"
)

// eventDelegate logs cluster membership changes.
type eventDelegate struct {
	pings  *pingDelegate
	logger *slog.Logger
}

var _ memberlist.EventDelegate = (*eventDelegate)(nil)

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	meta, err := DecodeNodeMeta(node.Meta)
	if err != nil {
		e.logger.Warn("decode join meta failed", "node", node.Name, "error", err)
	}
	e.logger.Info("node joined",
		"node", node.Name,
		"addr", node.Address(),
		"profile", meta.ProfileID,
		"group", meta.GroupID,
	)
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.pings.forget(node.Name)
	e.logger.Info("node left", "node", node.Name, "addr", node.Address())
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	meta, err := DecodeNodeMeta(node.Meta)
	if err != nil {
		e.logger.Debug("decode update meta failed", "node", node.Name, "error", err)
		return
	}
	e.logger.Debug("node updated", "node", node.Name, "group", meta.GroupID, "version", meta.Version)
}
