package overlay

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/wire"
)

// RecvFrame is called by the transport for every complete inbound frame. A
// frame that cannot be decoded drops the connection.
func (p *Peer) RecvFrame(frame []byte) {
	if p.State() == Closing {
		return
	}

	msg, err := wire.UnmarshalFrame(frame)
	if err != nil {
		p.sendError(wire.ErrData, "malformed message")
		p.Drop(errors.Wrapf(ErrProtocolViolation, "decoding frame: %v", err))
		return
	}

	p.RecvMessage(msg)
}

// RecvMessage routes a decoded message to its handler.
func (p *Peer) RecvMessage(msg *wire.Message) {
	s := p.State()
	if s == Closing {
		return
	}

	p.countReceived(msg.Type)

	if !msg.Type.Known() {
		p.log().WithField("type", msg.Type).Debug("Ignoring message of unknown type")
		return
	}

	if s != GotHello && msg.Type != wire.Hello && msg.Type != wire.ErrorMsg {
		p.Drop(errors.Wrapf(ErrProtocolViolation, "%s before handshake", msg.Type))
		return
	}

	p.log().WithField("type", msg.Type).Debug("Received message")

	switch msg.Type {
	case wire.ErrorMsg:
		p.recvError(msg)
	case wire.Hello:
		p.recvHello(msg)
	case wire.DontHave:
		p.recvDontHave(msg)
	case wire.GetPeers:
		p.recvGetPeers(msg)
	case wire.Peers:
		p.recvPeers(msg)
	case wire.GetHistory:
		p.recvGetHistory(msg)
	case wire.History:
		p.recvHistory(msg)
	case wire.GetDelta:
		p.recvGetDelta(msg)
	case wire.Delta:
		p.recvDelta(msg)
	case wire.GetTxSet:
		p.recvGetTxSet(msg)
	case wire.TxSet:
		p.recvTxSet(msg)
	case wire.GetValidations:
		p.recvGetValidations(msg)
	case wire.Validations:
		p.recvValidations(msg)
	case wire.Transaction:
		p.recvTransaction(msg)
	case wire.GetFBAQuorumSet:
		p.recvGetQuorumSet(msg)
	case wire.FBAQuorumSet:
		p.recvQuorumSet(msg)
	case wire.FBAMessage:
		p.recvFBAMessage(msg)
	}
}

func (p *Peer) recvDontHave(msg *wire.Message) {
	body, ok := msg.Body.(*wire.DontHaveBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.RecvDontHave(p.ID(), body)
}

func (p *Peer) recvGetPeers(msg *wire.Message) {
	if _, ok := msg.Body.(*wire.GetPeersBody); !ok {
		p.dropMalformed(msg)
		return
	}

	// The requester already knows where it listens.
	self := ""
	if info, ok := p.Remote(); ok {
		if host, _, err := net.SplitHostPort(p.transport.RemoteAddr()); err == nil {
			self = net.JoinHostPort(host, strconv.Itoa(info.ListeningPort))
		}
	}

	known := p.app.KnownPeerAddresses()
	addrs := make([]wire.PeerAddress, 0, len(known))
	for _, a := range known {
		if net.JoinHostPort(a.IP, strconv.Itoa(a.Port)) == self {
			continue
		}
		if p.conf.MaxPeersPerMessage > 0 && len(addrs) == p.conf.MaxPeersPerMessage {
			break
		}
		addrs = append(addrs, a)
	}

	p.send(&wire.Message{
		Type: wire.Peers,
		Body: &wire.PeersBody{Peers: addrs},
	})
}

func (p *Peer) recvPeers(msg *wire.Message) {
	body, ok := msg.Body.(*wire.PeersBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	records := make([]*peers.Record, 0, len(body.Peers))
	for _, a := range body.Peers {
		records = append(records, peers.NewRecord(a.IP, a.Port))
	}

	added, err := p.app.PeerDirectory().Merge(records)
	if err != nil {
		p.log().WithError(err).Error("Merging peer addresses")
		return
	}

	p.log().WithFields(logrus.Fields{
		"received": len(body.Peers),
		"added":    added,
	}).Debug("Merged peer addresses")
}

func (p *Peer) recvGetHistory(msg *wire.Message) {
	body, ok := msg.Body.(*wire.GetHistoryBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	history, err := p.app.FetchHistorySince(body.FromLedger)
	if err != nil {
		p.logMiss(msg.Type, err)
		p.sendDontHave(msg.Type, wire.Hash{}, body.FromLedger)
		return
	}

	p.send(&wire.Message{Type: wire.History, Body: history})
}

func (p *Peer) recvHistory(msg *wire.Message) {
	body, ok := msg.Body.(*wire.HistoryBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.RecvHistory(p.ID(), body)
}

func (p *Peer) recvGetDelta(msg *wire.Message) {
	body, ok := msg.Body.(*wire.GetDeltaBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	delta, err := p.app.FetchDelta(body.FromLedger)
	if err != nil {
		p.logMiss(msg.Type, err)
		p.sendDontHave(msg.Type, wire.Hash{}, body.FromLedger)
		return
	}

	p.send(&wire.Message{Type: wire.Delta, Body: delta})
}

func (p *Peer) recvDelta(msg *wire.Message) {
	body, ok := msg.Body.(*wire.DeltaBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.RecvDelta(p.ID(), body)
}

func (p *Peer) recvGetTxSet(msg *wire.Message) {
	body, ok := msg.Body.(*wire.GetTxSetBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	set, err := p.app.FetchTransactionSet(body.SetHash)
	if err != nil {
		p.logMiss(msg.Type, err)
		p.sendDontHave(msg.Type, body.SetHash, 0)
		return
	}

	p.send(&wire.Message{Type: wire.TxSet, Body: set})
}

func (p *Peer) recvTxSet(msg *wire.Message) {
	body, ok := msg.Body.(*wire.TransactionSet)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.RecvTransactionSet(p.ID(), body)
}

func (p *Peer) recvGetValidations(msg *wire.Message) {
	body, ok := msg.Body.(*wire.GetValidationsBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	validations, err := p.app.FetchValidations(body.LedgerHash)
	if err != nil {
		p.logMiss(msg.Type, err)
		p.sendDontHave(msg.Type, body.LedgerHash, 0)
		return
	}

	p.send(&wire.Message{Type: wire.Validations, Body: validations})
}

func (p *Peer) recvValidations(msg *wire.Message) {
	body, ok := msg.Body.(*wire.ValidationsBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.RecvValidations(p.ID(), body)
}

func (p *Peer) recvTransaction(msg *wire.Message) {
	body, ok := msg.Body.(*wire.TransactionBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.IngestTransaction(p.ID(), body)
}

func (p *Peer) recvGetQuorumSet(msg *wire.Message) {
	body, ok := msg.Body.(*wire.GetQuorumSetBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	qs, err := p.app.FetchQuorumSet(body.SetHash)
	if err != nil {
		p.logMiss(msg.Type, err)
		p.sendDontHave(msg.Type, body.SetHash, 0)
		return
	}

	p.send(&wire.Message{Type: wire.FBAQuorumSet, Body: qs})
}

func (p *Peer) recvQuorumSet(msg *wire.Message) {
	body, ok := msg.Body.(*wire.QuorumSet)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.RecvQuorumSet(p.ID(), body)
}

func (p *Peer) recvFBAMessage(msg *wire.Message) {
	body, ok := msg.Body.(*wire.FBAEnvelope)
	if !ok {
		p.dropMalformed(msg)
		return
	}
	p.app.ForwardConsensusMessage(p.ID(), body)
}

// logMiss logs a request the Application could not serve. Misses are normal;
// other failures are not, but are answered the same way.
func (p *Peer) logMiss(t wire.MessageType, err error) {
	if isNotFound(err) {
		p.log().WithField("type", t).Debug("Answering DontHave")
		return
	}
	p.log().WithError(err).WithField("type", t).Error("Application failed to serve request")
}
