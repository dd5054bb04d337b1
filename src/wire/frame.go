package wire

import (
	"encoding/binary"
	"errors"
	"io"

	perrors "github.com/pkg/errors"
)

const (
	// FrameHeaderLen is the size of the length prefix.
	FrameHeaderLen = 4

	// DefaultMaxFrameSize bounds the payload of a single frame.
	DefaultMaxFrameSize = 16 * 1024 * 1024
)

var (
	// ErrFrameTooLarge is returned when a frame announces a payload larger
	// than the configured maximum.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrShortFrame is returned when a frame is shorter than its length
	// prefix says.
	ErrShortFrame = errors.New("short frame")
)

// EncodeFrame prefixes payload with its length.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, FrameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(frame[:FrameHeaderLen], uint32(len(payload)))
	copy(frame[FrameHeaderLen:], payload)
	return frame
}

// MarshalFrame serializes msg into a complete frame, ready to be written.
func MarshalFrame(msg *Message) ([]byte, error) {
	payload, err := Marshal(msg)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(payload), nil
}

// FramePayload checks the length prefix of a complete frame and returns its
// payload.
func FramePayload(frame []byte) ([]byte, error) {
	if len(frame) < FrameHeaderLen {
		return nil, ErrShortFrame
	}
	n := binary.BigEndian.Uint32(frame[:FrameHeaderLen])
	if uint64(n) != uint64(len(frame)-FrameHeaderLen) {
		return nil, perrors.Wrapf(ErrShortFrame, "length prefix %d, got %d bytes", n, len(frame)-FrameHeaderLen)
	}
	return frame[FrameHeaderLen:], nil
}

// UnmarshalFrame decodes a complete frame.
func UnmarshalFrame(frame []byte) (*Message, error) {
	payload, err := FramePayload(frame)
	if err != nil {
		return nil, err
	}
	return Unmarshal(payload)
}

// ReadFrame reads one frame from r and returns the complete frame, length
// prefix included. Payloads larger than maxSize are refused before being
// read.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var header [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, ErrEmptyPayload
	}
	if n > maxSize {
		return nil, perrors.Wrapf(ErrFrameTooLarge, "%d > %d", n, maxSize)
	}

	frame := make([]byte, FrameHeaderLen+int(n))
	copy(frame, header[:])
	if _, err := io.ReadFull(r, frame[FrameHeaderLen:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return frame, nil
}
