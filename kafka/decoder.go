package kafka

import (
	// Go Internal Packages
	"errors"
	"fmt"

	// External Packages
	"github.com/linkedin/goavro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

const wireMagicByte = 0x0

var ErrNotFramed = errors.New("payload is not in schema registry wire format")

// Decoder turns record bytes into a structured payload. A nil result with a
// nil error means the bytes are kept as they are.
type Decoder interface {
	DecodeKey(topic string, data []byte) (any, error)
	DecodeValue(topic string, data []byte) (any, error)
}

// RawDecoder keeps payloads as raw bytes.
type RawDecoder struct{}

func (RawDecoder) DecodeKey(string, []byte) (any, error)   { return nil, nil }
func (RawDecoder) DecodeValue(string, []byte) (any, error) { return nil, nil }

// CodecSource resolves schema ids to codecs.
type CodecSource interface {
	Codec(id int) (*goavro.Codec, error)
}

// AvroDecoder decodes Confluent framed Avro payloads: a zero magic byte, a
// big endian schema id, then the Avro binary body.
type AvroDecoder struct {
	Codecs CodecSource

	header sr.ConfluentHeader
}

func NewAvroDecoder(codecs CodecSource) *AvroDecoder {
	return &AvroDecoder{Codecs: codecs}
}

// DecodeKey decodes framed keys and leaves plain ones raw.
func (d *AvroDecoder) DecodeKey(topic string, data []byte) (any, error) {
	if len(data) == 0 || data[0] != wireMagicByte {
		return nil, nil
	}
	return d.decode(data)
}

// DecodeValue requires a framed value. Tombstones decode to nil.
func (d *AvroDecoder) DecodeValue(topic string, data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	return d.decode(data)
}

func (d *AvroDecoder) decode(data []byte) (any, error) {
	id, body, err := d.header.DecodeID(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFramed, err)
	}

	codec, err := d.Codecs.Codec(id)
	if err != nil {
		return nil, err
	}
	native, rest, err := codec.NativeFromBinary(body)
	if err != nil {
		return nil, fmt.Errorf("schema %d: %w", id, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("schema %d: %d trailing bytes", id, len(rest))
	}
	return native, nil
}
