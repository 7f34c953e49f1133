// Package wire frames protocol messages as length-prefixed records over a
// byte stream. A frame is a 4-byte unsigned big-endian length followed by
// exactly that many payload bytes; payloads at or above
// protocol.MaxMessageSize are a protocol violation on both the write and
// the read path.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rudransh-shrivastava/gossip-it/internal/protocol"
)

var (
	// ErrFrameTooLarge is returned when a frame's payload meets or exceeds
	// protocol.MaxMessageSize, whether we are about to write it or a peer
	// declared it in a prefix.
	ErrFrameTooLarge = errors.New("frame exceeds maximum message size")

	// ErrDecode wraps a payload that framed correctly but failed to parse
	// as a protocol message. The connection is not recoverable past it.
	ErrDecode = errors.New("message decode failed")
)

// WriteMessage encodes msg and writes it as one length-prefixed frame.
// The scratch buffer is reset and reused so steady-state writes do not
// allocate; the caller owns it and must not share it across goroutines.
// Nothing is written if the encoded size breaks the protocol ceiling.
func WriteMessage(w io.Writer, scratch *bytes.Buffer, c protocol.Codec, msg protocol.Message) error {
	payload, err := protocol.Marshal(c, msg)
	if err != nil {
		return err
	}
	if len(payload) >= protocol.MaxMessageSize {
		return fmt.Errorf("writing %s (%d bytes): %w", msg.Type(), len(payload), ErrFrameTooLarge)
	}

	scratch.Reset()
	var prefix [protocol.LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	scratch.Write(prefix[:])
	scratch.Write(payload)

	if _, err := w.Write(scratch.Bytes()); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ReadLP reads one length-prefixed frame and returns its payload.
//
// A stream that ends cleanly before the first prefix byte yields io.EOF;
// that is an orderly close, not a failure. A stream that ends mid-prefix
// or mid-payload yields an error. The declared length is validated against
// protocol.MaxMessageSize before any payload bytes are read.
//
// Payload bytes accumulate in buf across as many reads of r as the stream
// needs; the returned slice is split off the front of buf and is only
// valid until the next call.
func ReadLP(r io.Reader, buf *bytes.Buffer) ([]byte, error) {
	var prefix [protocol.LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading length prefix: %w", err)
	}

	size := int(binary.BigEndian.Uint32(prefix[:]))
	if size >= protocol.MaxMessageSize {
		return nil, fmt.Errorf("peer declared %d bytes: %w", size, ErrFrameTooLarge)
	}

	buf.Grow(size)
	for buf.Len() < size {
		if _, err := io.CopyN(buf, r, int64(size-buf.Len())); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("reading %d byte payload: %w", size, err)
		}
	}
	return buf.Next(size), nil
}

// ReadMessage reads one frame and decodes it as a protocol message.
// io.EOF means the peer closed the stream cleanly at a frame boundary.
func ReadMessage(r io.Reader, buf *bytes.Buffer, c protocol.Codec) (protocol.Message, error) {
	payload, err := ReadLP(r, buf)
	if err != nil {
		return nil, err
	}
	msg, err := protocol.Unmarshal(c, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return msg, nil
}
