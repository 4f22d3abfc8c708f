package group

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const recordVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	opts := cbor.CoreDetEncOptions()
	// Role and Kind travel as their text names.
	opts.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = opts.EncMode()
	if err != nil {
		panic("group: cbor encoder: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("group: cbor decoder: " + err.Error())
	}
}

type groupRecord struct {
	Version int    `cbor:"v"`
	Group   *Group `cbor:"group"`
}

type settingsRecord struct {
	Version  int      `cbor:"v"`
	Settings Settings `cbor:"settings"`
}

// MarshalGroup produces the deterministic CBOR encoding of a group.
func MarshalGroup(g *Group) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(groupRecord{Version: recordVersion, Group: g})
}

// UnmarshalGroup decodes a group record and validates it.
func UnmarshalGroup(data []byte) (*Group, error) {
	var rec groupRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode group: %w", err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("decode group: unsupported record version %d", rec.Version)
	}
	if err := rec.Group.Validate(); err != nil {
		return nil, err
	}
	return rec.Group, nil
}

// MarshalSettings produces the deterministic CBOR encoding of agent settings.
func MarshalSettings(s Settings) ([]byte, error) {
	return encMode.Marshal(settingsRecord{Version: recordVersion, Settings: s})
}

// UnmarshalSettings decodes an agent settings record.
func UnmarshalSettings(data []byte) (Settings, error) {
	var rec settingsRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if rec.Version != recordVersion {
		return Settings{}, fmt.Errorf("decode settings: unsupported record version %d", rec.Version)
	}
	return rec.Settings, nil
}
