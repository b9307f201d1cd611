package history

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes record slices.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier, "json" or "msgpack".
	Name() string
}

// Codec names.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// JSONCodec encodes records as a JSON array.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return CodecNameJSON }

// MsgpackCodec encodes records as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgpackCodec) Name() string                       { return CodecNameMsgpack }

// CodecByName returns the codec for name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case CodecNameJSON, "":
		return JSONCodec{}, nil
	case CodecNameMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Encode serializes records with c.
func Encode[T any](c Codec, records []Record[T]) ([]byte, error) {
	data, err := c.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Name(), err)
	}
	return data, nil
}

// Decode parses records produced by Encode with the same codec.
func Decode[T any](c Codec, data []byte) ([]Record[T], error) {
	var records []Record[T]
	if err := c.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	return records, nil
}
