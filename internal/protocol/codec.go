package protocol

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec marshals message bodies. Implementations must be deterministic so
// two nodes agree on the bytes for the same message.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// envelope is what actually goes inside a frame: the type tag plus the
// codec-encoded body of the concrete message.
type envelope struct {
	Type MessageType `cbor:"1,keyasint"`
	Body []byte      `cbor:"2,keyasint"`
}

// Marshal encodes msg into an enveloped payload ready for framing.
func Marshal(c Codec, msg Message) ([]byte, error) {
	body, err := c.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s body: %w", msg.Type(), err)
	}
	return c.Marshal(&envelope{Type: msg.Type(), Body: body})
}

// Unmarshal decodes an enveloped payload back into a typed message.
func Unmarshal(c Codec, data []byte) (Message, error) {
	var env envelope
	if err := c.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	msg, err := newMessage(env.Type)
	if err != nil {
		return nil, err
	}
	if err := c.Unmarshal(env.Body, msg); err != nil {
		return nil, fmt.Errorf("decoding %s body: %w", env.Type, err)
	}
	return msg, nil
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec returns the canonical CBOR codec used on the wire.
func NewCBORCodec() (Codec, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &cborCodec{enc: enc, dec: dec}, nil
}

func (c *cborCodec) ContentType() string                { return "application/cbor" }
func (c *cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c *cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

type gobCodec struct{}

// NewGobCodec returns a gob-based codec. Only suitable when both ends are
// this implementation; kept for local tooling and tests.
func NewGobCodec() Codec {
	return gobCodec{}
}

func (gobCodec) ContentType() string { return "application/x-gob" }

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Registry maps content types to codecs.
type Registry struct {
	byType map[string]Codec
}

func NewRegistry() (*Registry, error) {
	r := &Registry{byType: make(map[string]Codec)}
	cborC, err := NewCBORCodec()
	if err != nil {
		return nil, err
	}
	r.Register(cborC)
	r.Register(NewGobCodec())
	return r, nil
}

func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// WireCodec returns the codec every conforming node uses on the wire.
func WireCodec() Codec {
	c, err := NewCBORCodec()
	if err != nil {
		// Encoder options are compile-time constants; this cannot fail
		// at runtime unless the cbor library changes underneath us.
		panic(err)
	}
	return c
}
