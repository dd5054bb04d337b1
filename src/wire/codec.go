package wire

import (
	"errors"
	"reflect"

	perrors "github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

var (
	// ErrEmptyPayload is returned when decoding a payload without a tag.
	ErrEmptyPayload = errors.New("empty message payload")
	// ErrBodyMismatch is returned when the Go type of a body does not match
	// the message type.
	ErrBodyMismatch = errors.New("message body does not match message type")
	// ErrUnknownType is returned when encoding a message of unknown type.
	ErrUnknownType = errors.New("unknown message type")
)

var msgpackHandle = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	mh.RawToString = false
	return mh
}

// Marshal encodes msg into a payload: the tag byte followed by the msgpack
// encoded body. A nil body is encoded as the zero body of the message type.
func Marshal(msg *Message) ([]byte, error) {
	if !msg.Type.Known() {
		return nil, perrors.Wrapf(ErrUnknownType, "marshal %s", msg.Type)
	}

	body := msg.Body
	if body == nil {
		body = NewBody(msg.Type)
	} else if reflect.TypeOf(body) != reflect.TypeOf(NewBody(msg.Type)) {
		return nil, perrors.Wrapf(ErrBodyMismatch, "marshal %s with %T", msg.Type, body)
	}

	var encoded []byte
	enc := codec.NewEncoderBytes(&encoded, msgpackHandle)
	if err := enc.Encode(body); err != nil {
		return nil, perrors.Wrapf(err, "marshal %s", msg.Type)
	}

	payload := make([]byte, 1+len(encoded))
	payload[0] = byte(msg.Type)
	copy(payload[1:], encoded)

	return payload, nil
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(payload []byte) (*Message, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	t := MessageType(payload[0])

	body := NewBody(t)
	if body == nil {
		raw := make(RawBody, len(payload)-1)
		copy(raw, payload[1:])
		return &Message{Type: t, Body: raw}, nil
	}

	dec := codec.NewDecoderBytes(payload[1:], msgpackHandle)
	if err := dec.Decode(body); err != nil {
		return nil, perrors.Wrapf(err, "unmarshal %s", t)
	}

	return &Message{Type: t, Body: body}, nil
}
