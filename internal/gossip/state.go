package gossip

import (
	"encoding/binary"
	"errors"
	"slices"
	"sync"

	"github.com/gezibash/arc-fleet/internal/protocol"
)

// stateVersion prefixes push/pull state payloads.
const stateVersion uint8 = 1

var errBadState = errors.New("gossip: malformed state payload")

// frameState keeps this node's latest self-advertisement frame per message
// key. It is exchanged during push/pull sync so joining or partitioned
// nodes catch up without waiting for the next advertisement.
type frameState struct {
	mu     sync.RWMutex
	frames map[string][]byte
}

func newFrameState() *frameState {
	return &frameState{frames: make(map[string][]byte)}
}

// Record stores frame as the latest for m's key when m describes sender
// state. Other kinds are transient and not kept.
func (s *frameState) Record(m protocol.Message, frame []byte) {
	if !m.Kind.CarriesState() {
		return
	}
	s.mu.Lock()
	s.frames[m.Key()] = frame
	s.mu.Unlock()
}

// Len returns the number of stored frames.
func (s *frameState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Encode serializes every stored frame, ordered by key.
// Wire format: [version:1]([frameLen:4][frame])...
func (s *frameState) Encode() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.frames))
	for k := range s.frames {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buf := []byte{stateVersion}
	for _, k := range keys {
		f := s.frames[k]
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}
	return buf
}

// decodeState splits a state payload into frames.
func decodeState(data []byte) ([][]byte, error) {
	if len(data) < 1 || data[0] != stateVersion {
		return nil, errBadState
	}
	data = data[1:]
	var frames [][]byte
	for len(data) > 0 {
		if len(data) < 4 {
			return frames, errBadState
		}
		n := binary.BigEndian.Uint32(data)
		data = data[4:]
		if uint64(len(data)) < uint64(n) {
			return frames, errBadState
		}
		frames = append(frames, data[:n])
		data = data[n:]
	}
	return frames, nil
}
