package gossip

import (
	"encoding/binary"
	"errors"
)

// NodeMeta is encoded into memberlist node metadata (must fit in 512 bytes).
type NodeMeta struct {
	ProfileID string
	GroupID   string
	Version   string
	Uptime    uint64 // nanoseconds since the agent started
}

// maxMetaString keeps an encoded NodeMeta under memberlist's 512 byte limit.
const maxMetaString = 160

var errTruncatedMeta = errors.New("gossip: truncated node meta")

// Encode serializes NodeMeta.
// Format: [profileLen:1][profile][groupLen:1][group][versionLen:1][version][uptime:8]
// Strings longer than maxMetaString bytes are cut.
func (m *NodeMeta) Encode() []byte {
	buf := make([]byte, 0, 3+len(m.ProfileID)+len(m.GroupID)+len(m.Version)+8)
	buf = appendShort(buf, m.ProfileID)
	buf = appendShort(buf, m.GroupID)
	buf = appendShort(buf, m.Version)
	return binary.BigEndian.AppendUint64(buf, m.Uptime)
}

func appendShort(buf []byte, s string) []byte {
	if len(s) > maxMetaString {
		s = s[:maxMetaString]
	}
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// DecodeNodeMeta deserializes NodeMeta.
func DecodeNodeMeta(data []byte) (NodeMeta, error) {
	var (
		m   NodeMeta
		err error
	)
	if m.ProfileID, data, err = readShort(data); err != nil {
		return m, err
	}
	if m.GroupID, data, err = readShort(data); err != nil {
		return m, err
	}
	if m.Version, data, err = readShort(data); err != nil {
		return m, err
	}
	if len(data) < 8 {
		return m, errTruncatedMeta
	}
	m.Uptime = binary.BigEndian.Uint64(data)
	return m, nil
}

func readShort(data []byte) (string, []byte, error) {
	if len(data) < 1 {
		return "", nil, errTruncatedMeta
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", nil, errTruncatedMeta
	}
	return string(data[1 : 1+n]), data[1+n:], nil
}
