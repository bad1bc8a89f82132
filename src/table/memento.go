package table

import (
	"github.com/ugorji/go/codec"
)

// Memento is the serialized form of a whole table.
type Memento struct {
	ID   string
	Root *Component
}

// Marshal encodes the memento with msgpack.
func (m *Memento) Marshal() ([]byte, error) {
	return encode(m)
}

// Unmarshal decodes a memento produced by Marshal.
func (m *Memento) Unmarshal(data []byte) error {
	return decode(data, m)
}

// Canonical encoding sorts map keys, so equal tables encode to equal bytes.
var msgpackHandle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	h.Canonical = true
	return h
}()

func encode(v interface{}) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

func decode(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, msgpackHandle).Decode(v)
}
