package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ugorji/go/codec"
)

// MaxFrameSize bounds the size of a single encoded message. Table mementos
// are the largest messages on the wire.
const MaxFrameSize = 4 << 20

// frameHeaderSize is the length prefix followed by the kind byte.
const frameHeaderSize = 5

var errFrameTooLarge = errors.New("frame exceeds maximum size")

var msgpackHandle = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	return h
}

// Marshal encodes msg into a self-contained frame: a big-endian uint32
// length, the message kind, and the msgpack encoded body. The length covers
// the kind byte and the body.
func Marshal(msg Message) ([]byte, error) {
	var body []byte
	if err := codec.NewEncoderBytes(&body, msgpackHandle).Encode(msg); err != nil {
		return nil, err
	}
	if len(body)+1 > MaxFrameSize {
		return nil, errFrameTooLarge
	}

	frame := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)+1))
	frame[4] = byte(msg.Kind())
	copy(frame[frameHeaderSize:], body)

	return frame, nil
}

// Unmarshal decodes a frame produced by Marshal.
func Unmarshal(frame []byte) (Message, error) {
	if len(frame) < frameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	size := binary.BigEndian.Uint32(frame)
	if int(size) != len(frame)-4 {
		return nil, fmt.Errorf("frame length %d does not match header %d", len(frame)-4, size)
	}
	return decodeBody(MessageKind(frame[4]), frame[frameHeaderSize:])
}

// Encode writes msg to w as a single frame.
func Encode(w io.Writer, msg Message) error {
	frame, err := Marshal(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Decode reads a single frame from r. It returns io.EOF if r is exhausted
// on a frame boundary.
func Decode(r io.Reader) (Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size == 0 {
		return nil, errors.New("empty frame")
	}
	if size > MaxFrameSize {
		return nil, errFrameTooLarge
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return decodeBody(MessageKind(buf[0]), buf[1:])
}

func decodeBody(kind MessageKind, body []byte) (Message, error) {
	msg, err := NewMessage(kind)
	if err != nil {
		return nil, err
	}
	if err := codec.NewDecoderBytes(body, msgpackHandle).Decode(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
