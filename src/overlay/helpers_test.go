package overlay

import (
	"testing"

	"github.com/mosaicnetworks/overlay/src/app"
	cm "github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/quorum"
	"github.com/mosaicnetworks/overlay/src/wire"
)

const (
	testLocalNodeID  = "local-node"
	testRemoteNodeID = "remote-node"
	testRemoteHost   = "10.0.0.9"
	testRemotePort   = 1338
)

// recordingTransport records writes and leaves their completion to the test.
type recordingTransport struct {
	writes []*Buffer
	done   int
	closed int
}

func (tr *recordingTransport) Write(b *Buffer) {
	tr.writes = append(tr.writes, b)
}

func (tr *recordingTransport) Close() {
	tr.closed++
}

func (tr *recordingTransport) LocalAddr() string {
	return "10.0.0.1:1337"
}

func (tr *recordingTransport) RemoteAddr() string {
	return testRemoteHost + ":50000"
}

// inFlight returns the Buffer being written, or nil.
func (tr *recordingTransport) inFlight() *Buffer {
	if tr.done < len(tr.writes) {
		return tr.writes[tr.done]
	}
	return nil
}

// complete decodes the Buffer in flight and completes its write with err.
func (tr *recordingTransport) complete(t *testing.T, p *Peer, err error) *wire.Message {
	b := tr.inFlight()
	if b == nil {
		t.Fatalf("no write in flight")
	}
	msg, derr := wire.UnmarshalFrame(b.Bytes())
	if derr != nil {
		t.Fatalf("decoding buffer %d: %v", b.Seq(), derr)
	}
	tr.done++
	p.WriteComplete(err)
	return msg
}

// flush completes writes until the queue is empty and returns what was
// written.
func (tr *recordingTransport) flush(t *testing.T, p *Peer) []*wire.Message {
	var res []*wire.Message
	for tr.inFlight() != nil {
		res = append(res, tr.complete(t, p, nil))
	}
	return res
}

func newTestPeer(t *testing.T, role Role) (*Peer, *recordingTransport, *app.InmemApp) {
	conf := NewConfig("test", 1337, testLocalNodeID)
	a := app.NewInmemApp(quorum.NewCache(0), peers.NewInmemDirectory(), cm.NewTestEntry(t, cm.TestLogLevel))
	tr := &recordingTransport{}
	p := NewPeer(conf, a, role, tr, cm.NewTestEntry(t, cm.TestLogLevel))
	return p, tr, a
}

func remoteHello() *wire.HelloBody {
	return &wire.HelloBody{
		ProtocolVersion: DefaultProtocolVersion,
		VersionStr:      "remote",
		ListeningPort:   testRemotePort,
		NodeID:          testRemoteNodeID,
	}
}

// handshake takes a new Peer to GotHello and flushes the Hello it sent.
func handshake(t *testing.T, p *Peer, tr *recordingTransport) {
	p.Connected()
	p.RecvMessage(&wire.Message{Type: wire.Hello, Body: remoteHello()})
	tr.flush(t, p)
	if s := p.State(); s != GotHello {
		t.Fatalf("state should be GotHello, not %s", s)
	}
}

func types(msgs []*wire.Message) []wire.MessageType {
	res := make([]wire.MessageType, len(msgs))
	for i, m := range msgs {
		res[i] = m.Type
	}
	return res
}
