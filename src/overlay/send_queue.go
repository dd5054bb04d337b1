package overlay

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/wire"
)

// SendMessage queues msg for sending. Application traffic is refused until the
// handshake completed.
func (p *Peer) SendMessage(msg *wire.Message) error {
	switch p.State() {
	case Closing:
		return ErrClosing
	case GotHello:
	default:
		if msg.Type != wire.Hello && msg.Type != wire.ErrorMsg {
			return ErrHandshakeIncomplete
		}
	}
	return p.enqueue(msg)
}

// SendGetTxSet asks the remote for the transaction set with hash id.
func (p *Peer) SendGetTxSet(id wire.Hash) error {
	return p.SendMessage(&wire.Message{
		Type: wire.GetTxSet,
		Body: &wire.GetTxSetBody{SetHash: id},
	})
}

// SendGetQuorumSet asks the remote for the quorum set with hash id.
func (p *Peer) SendGetQuorumSet(id wire.Hash) error {
	return p.SendMessage(&wire.Message{
		Type: wire.GetFBAQuorumSet,
		Body: &wire.GetQuorumSetBody{SetHash: id},
	})
}

// SendGetPeers asks the remote for the addresses it knows.
func (p *Peer) SendGetPeers() error {
	return p.SendMessage(&wire.Message{
		Type: wire.GetPeers,
		Body: &wire.GetPeersBody{},
	})
}

// WriteComplete is called by the transport when the write of the Buffer at the
// head of the queue finished. A failed write drops the connection.
func (p *Peer) WriteComplete(err error) {
	if !p.writing || len(p.queue) == 0 {
		p.log().Warn("WriteComplete without a write in flight")
		return
	}

	head := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.writing = false
	p.releaseBuffer(head)

	if p.State() == Closing {
		return
	}

	if err != nil {
		p.Drop(errors.Wrapf(ErrTransportFailure, "writing buffer %d: %v", head.seq, err))
		return
	}

	p.countWritten()

	p.startWrite()
}

// enqueue serializes msg into a new Buffer at the tail of the queue.
func (p *Peer) enqueue(msg *wire.Message) error {
	if p.State() == Closing {
		return ErrClosing
	}

	frame, err := wire.MarshalFrame(msg)
	if err != nil {
		return err
	}

	p.nextSeq++
	buf := newBuffer(p.nextSeq, msg.Type, frame)
	p.queue = append(p.queue, buf)
	p.countQueued(msg.Type)

	p.log().WithFields(logrus.Fields{
		"type": msg.Type,
		"seq":  buf.seq,
	}).Debug("Queued message")

	p.startWrite()

	return nil
}

// startWrite hands the head of the queue to the transport unless a write is
// already in flight.
func (p *Peer) startWrite() {
	if p.writing || len(p.queue) == 0 {
		return
	}
	p.writing = true
	p.transport.Write(p.queue[0])
}

// releasePending releases every queued Buffer that was not handed to the
// transport.
func (p *Peer) releasePending() {
	keep := 0
	if p.writing {
		keep = 1
	}
	for i := keep; i < len(p.queue); i++ {
		p.releaseBuffer(p.queue[i])
		p.queue[i] = nil
	}
	p.queue = p.queue[:keep]
	p.countReleased(0)
}

func (p *Peer) releaseBuffer(b *Buffer) {
	if b.release() {
		p.countReleased(1)
	} else {
		p.log().WithField("seq", b.seq).Error("Buffer released twice")
	}
}

// sendError queues an Error message. Failures are only logged: an Error is
// usually followed by a drop.
func (p *Peer) sendError(code wire.ErrorCode, msg string) {
	err := p.enqueue(&wire.Message{
		Type: wire.ErrorMsg,
		Body: &wire.ErrorBody{Code: code, Msg: msg},
	})
	if err != nil {
		p.log().WithError(err).Debug("Could not send Error")
	}
}

func (p *Peer) sendDontHave(t wire.MessageType, hash wire.Hash, ledger uint64) {
	p.send(&wire.Message{
		Type: wire.DontHave,
		Body: &wire.DontHaveBody{
			Type:      t,
			ReqHash:   hash,
			ReqLedger: ledger,
		},
	})
}

// send queues a reply. A reply that cannot be serialized is a local bug, not
// the remote's; it is logged and the connection stays open.
func (p *Peer) send(msg *wire.Message) {
	if err := p.enqueue(msg); err != nil {
		p.log().WithError(err).WithField("type", msg.Type).Error("Could not send message")
	}
}
