package overlay

import "github.com/mosaicnetworks/overlay/src/wire"

// Transport is the binding between a Peer and the channel that carries its
// bytes (a socket, an in-process loopback ...).
//
// The binding reports events to its Peer, always on the Peer's execution
// context:
//
//   - Peer.Connected when the connect or accept step completes,
//   - Peer.RecvFrame for every complete inbound frame,
//   - Peer.WriteComplete once for every Buffer passed to Write,
//   - Peer.Drop when the channel fails or is closed by the remote.
type Transport interface {
	// Write starts the asynchronous write of buf. The Peer passes at most one
	// Buffer at a time and does not touch it until WriteComplete.
	Write(buf *Buffer)

	// Close tears down the underlying channel. It is called once, from
	// Peer.Drop. A write in flight may still complete afterwards.
	Close()

	LocalAddr() string
	RemoteAddr() string
}

// Buffer is one serialized outbound message, length prefix included. A Buffer
// is owned by the Peer that created it from the moment it is queued until its
// write completes; it is never modified in between.
type Buffer struct {
	seq      uint64
	msgType  wire.MessageType
	data     []byte
	released bool
}

func newBuffer(seq uint64, t wire.MessageType, frame []byte) *Buffer {
	return &Buffer{
		seq:     seq,
		msgType: t,
		data:    frame,
	}
}

// Bytes returns the frame to write. The slice must not be modified.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Seq is the position of the Buffer in its Peer's outbound stream, starting
// at 1.
func (b *Buffer) Seq() uint64 {
	return b.seq
}

// Type is the type of the message in the Buffer.
func (b *Buffer) Type() wire.MessageType {
	return b.msgType
}

// Len is the size of the frame.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Released reports whether the Peer gave up ownership of the Buffer.
func (b *Buffer) Released() bool {
	return b.released
}

// release drops the Buffer's contents. It reports false if the Buffer was
// already released.
func (b *Buffer) release() bool {
	if b.released {
		return false
	}
	b.released = true
	b.data = nil
	return true
}
