package overlay

import (
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/wire"
)

func (p *Peer) sendHello() {
	p.send(&wire.Message{
		Type: wire.Hello,
		Body: p.conf.hello(),
	})
}

// recvHello validates the remote Hello and completes the handshake.
func (p *Peer) recvHello(msg *wire.Message) {
	if s := p.State(); s != Connected {
		p.Drop(errors.Wrapf(ErrProtocolViolation, "Hello in state %s", s))
		return
	}

	hello, ok := msg.Body.(*wire.HelloBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	if !p.conf.acceptsVersion(hello.ProtocolVersion) {
		p.sendError(wire.ErrConf, "wrong protocol version")
		p.Drop(errors.Wrapf(ErrProtocolViolation,
			"protocol version %d not in [%d, %d]",
			hello.ProtocolVersion, p.conf.MinProtocolVersion, p.conf.ProtocolVersion))
		return
	}

	if hello.NodeID != "" && hello.NodeID == p.conf.NodeID {
		p.sendError(wire.ErrConf, "connecting to self")
		p.Drop(errors.Wrap(ErrProtocolViolation, "connection to self"))
		return
	}

	if hello.ListeningPort <= 0 || hello.ListeningPort > 65535 {
		p.sendError(wire.ErrData, "bad listening port")
		p.Drop(errors.Wrapf(ErrProtocolViolation, "listening port %d", hello.ListeningPort))
		return
	}

	p.remote.Store(RemoteInfo{
		ProtocolVersion: hello.ProtocolVersion,
		VersionStr:      hello.VersionStr,
		ListeningPort:   hello.ListeningPort,
		NodeID:          hello.NodeID,
	})

	p.setState(GotHello)

	p.log().WithFields(logrus.Fields{
		"version": hello.VersionStr,
		"port":    hello.ListeningPort,
		"node_id": hello.NodeID,
	}).Debug("Handshake complete")

	if p.role == Acceptor {
		p.sendHello()
	}

	p.learnRemoteAddress(hello.ListeningPort)

	if !hello.QuorumSetHash.IsZero() {
		if _, err := p.app.FetchQuorumSet(hello.QuorumSetHash); err != nil {
			p.send(&wire.Message{
				Type: wire.GetFBAQuorumSet,
				Body: &wire.GetQuorumSetBody{SetHash: hello.QuorumSetHash},
			})
		}
	}
}

// learnRemoteAddress adds the address the remote listens on to the
// directory. The remote does not tell us its IP, so we use the one it
// connected from.
func (p *Peer) learnRemoteAddress(port int) {
	host, _, err := net.SplitHostPort(p.transport.RemoteAddr())
	if err != nil {
		p.log().WithError(err).Debug("Remote address not learned")
		return
	}

	rec := peers.NewRecord(host, port)
	if err := rec.Validate(); err != nil {
		p.log().WithError(err).Debug("Remote address not learned")
		return
	}

	added, err := p.app.PeerDirectory().Add(rec)
	if err != nil {
		p.log().WithError(err).Error("Adding remote address to directory")
		return
	}
	if added {
		p.log().WithField("address", rec.Address()).Debug("Learned remote address")
	}
}

func (p *Peer) recvError(msg *wire.Message) {
	body, ok := msg.Body.(*wire.ErrorBody)
	if !ok {
		p.dropMalformed(msg)
		return
	}

	p.recordRemoteError(body)

	p.log().WithFields(logrus.Fields{
		"code": body.Code,
		"msg":  body.Msg,
	}).Warn("Received Error")

	switch body.Code {
	case wire.ErrConf, wire.ErrAuth:
		p.Drop(errors.Wrapf(ErrRemoteError, "%s: %s", body.Code, body.Msg))
	}
}

func (p *Peer) dropMalformed(msg *wire.Message) {
	p.Drop(errors.Wrapf(ErrProtocolViolation, "%s with body %T", msg.Type, msg.Body))
}

// isNotFound tells a miss from a failure of the Application.
func isNotFound(err error) bool {
	return common.IsStore(errors.Cause(err), common.KeyNotFound)
}
