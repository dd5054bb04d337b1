package net

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/mosaicnetworks/overlay/src/app"
	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/quorum"
	"github.com/mosaicnetworks/overlay/src/wire"
)

type loopbackNode struct {
	conf *overlay.Config
	app  *app.InmemApp
}

func newLoopbackNode(t *testing.T, name string, port int) *loopbackNode {
	return &loopbackNode{
		conf: overlay.NewConfig("test-"+name, port, name),
		app: app.NewInmemApp(quorum.NewCache(0),
			peers.NewInmemDirectory(),
			common.NewPrefixedTestEntry(t, common.TestLogLevel, name)),
	}
}

func newTestLoopback(t *testing.T) (*LoopbackConnection, *loopbackNode, *loopbackNode) {
	initNode := newLoopbackNode(t, "initiator", 1001)
	acc := newLoopbackNode(t, "acceptor", 1002)
	c := NewLoopbackConnection(initNode.conf, initNode.app, acc.conf, acc.app, common.NewTestEntry(t, common.TestLogLevel))
	return c, initNode, acc
}

func handshakeLoopback(t *testing.T, c *LoopbackConnection) {
	c.CrankUntilIdle()
	if s := c.Initiator().Peer().State(); s != overlay.GotHello {
		t.Fatalf("initiator state should be GotHello, not %s", s)
	}
	if s := c.Acceptor().Peer().State(); s != overlay.GotHello {
		t.Fatalf("acceptor state should be GotHello, not %s", s)
	}
}

func TestLoopbackHandshake(t *testing.T) {
	c, initNode, acc := newTestLoopback(t)

	if s := c.Initiator().Peer().State(); s != overlay.Connecting {
		t.Fatalf("nothing should happen before the first crank, state %s", s)
	}

	handshakeLoopback(t, c)

	info, _ := c.Initiator().Peer().Remote()
	if info.NodeID != "acceptor" || info.ListeningPort != 1002 || info.VersionStr != "test-acceptor" {
		t.Fatalf("initiator should know the acceptor, got %#v", info)
	}
	info, _ = c.Acceptor().Peer().Remote()
	if info.NodeID != "initiator" || info.ListeningPort != 1001 {
		t.Fatalf("acceptor should know the initiator, got %#v", info)
	}

	if _, err := initNode.app.PeerDirectory().Get("127.0.0.1", 1002); err != nil {
		t.Fatalf("initiator should learn the acceptor address: %v", err)
	}
	if _, err := acc.app.PeerDirectory().Get("127.0.0.1", 1001); err != nil {
		t.Fatalf("acceptor should learn the initiator address: %v", err)
	}

	if w := c.Initiator().Writes(); w != 1 {
		t.Fatalf("initiator should write one Hello, not %d", w)
	}
	if w := c.Acceptor().Writes(); w != 1 {
		t.Fatalf("acceptor should write one Hello, not %d", w)
	}
}

func TestLoopbackGetPeers(t *testing.T) {
	c, initNode, acc := newTestLoopback(t)

	addrs := []*peers.Record{
		peers.NewRecord("10.1.0.1", 2001),
		peers.NewRecord("10.1.0.2", 2002),
		peers.NewRecord("10.1.0.3", 2003),
	}
	for _, r := range addrs {
		acc.app.PeerDirectory().Add(r)
	}

	handshakeLoopback(t, c)

	before := initNode.app.PeerDirectory().Records()

	if err := c.Initiator().Peer().SendGetPeers(); err != nil {
		t.Fatal(err)
	}
	c.CrankUntilIdle()

	after := initNode.app.PeerDirectory().Records()
	if len(after) != len(before)+3 {
		t.Fatalf("initiator should gain 3 records, had %d, has %d", len(before), len(after))
	}
	for _, r := range addrs {
		got, err := initNode.app.PeerDirectory().Get(r.IP, r.Port)
		if err != nil {
			t.Fatalf("%s should be learned: %v", r.Address(), err)
		}
		if got.NumFailures != 0 {
			t.Fatalf("%s should have no failures", r.Address())
		}
	}

	// Asking again adds nothing
	c.Initiator().Peer().SendGetPeers()
	c.CrankUntilIdle()
	if l := initNode.app.PeerDirectory().Len(); l != len(after) {
		t.Fatalf("repeated Peers should not add records, %d != %d", l, len(after))
	}
}

func TestLoopbackGetPeersPreservesFailures(t *testing.T) {
	c, initNode, acc := newTestLoopback(t)

	acc.app.PeerDirectory().Add(peers.NewRecord("10.1.0.1", 2001))
	acc.app.PeerDirectory().Add(peers.NewRecord("10.1.0.2", 2002))

	initNode.app.PeerDirectory().Add(peers.NewRecord("10.1.0.1", 2001))
	initNode.app.PeerDirectory().RecordFailure("10.1.0.1", 2001)
	initNode.app.PeerDirectory().RecordFailure("10.1.0.1", 2001)

	handshakeLoopback(t, c)
	c.Initiator().Peer().SendGetPeers()
	c.CrankUntilIdle()

	r, err := initNode.app.PeerDirectory().Get("10.1.0.1", 2001)
	if err != nil {
		t.Fatal(err)
	}
	if r.NumFailures != 2 {
		t.Fatalf("failures should be preserved, got %d", r.NumFailures)
	}
	if _, err := initNode.app.PeerDirectory().Get("10.1.0.2", 2002); err != nil {
		t.Fatalf("new address should be learned: %v", err)
	}
}

func TestLoopbackUnknownQuorumSet(t *testing.T) {
	c, initNode, acc := newTestLoopback(t)
	handshakeLoopback(t, c)

	qs := &wire.QuorumSet{Threshold: 1, Validators: []string{"x"}}
	h, _ := qs.Hash()

	c.Initiator().Peer().SendGetQuorumSet(h)
	c.CrankUntilIdle()

	dontHaves := initNode.app.Events(wire.DontHave)
	if len(dontHaves) != 1 {
		t.Fatalf("initiator should receive exactly one DontHave, not %d", len(dontHaves))
	}
	expected := &wire.DontHaveBody{Type: wire.GetFBAQuorumSet, ReqHash: h}
	if !reflect.DeepEqual(dontHaves[0].Body, expected) {
		t.Fatalf("DontHave should be %#v, not %#v", expected, dontHaves[0].Body)
	}

	acc.app.QuorumSets().Add(qs)
	c.Initiator().Peer().SendGetQuorumSet(h)
	c.CrankUntilIdle()

	res, err := initNode.app.FetchQuorumSet(h)
	if err != nil {
		t.Fatalf("quorum set should be received and cached: %v", err)
	}
	if !reflect.DeepEqual(res, qs) {
		t.Fatalf("quorum set should be %#v, not %#v", qs, res)
	}
}

func TestLoopbackQuorumSetFetchedOnHandshake(t *testing.T) {
	initNode := newLoopbackNode(t, "initiator", 1001)
	acc := newLoopbackNode(t, "acceptor", 1002)

	qs := &wire.QuorumSet{Threshold: 2, Validators: []string{"a", "b"}}
	h, err := acc.app.QuorumSets().Pin(qs)
	if err != nil {
		t.Fatal(err)
	}
	acc.conf.QuorumSetHash = h

	c := NewLoopbackConnection(initNode.conf, initNode.app, acc.conf, acc.app, common.NewTestEntry(t, common.TestLogLevel))
	handshakeLoopback(t, c)

	if _, err := initNode.app.FetchQuorumSet(h); err != nil {
		t.Fatalf("initiator should fetch the acceptor quorum set: %v", err)
	}
}

func TestLoopbackTransactionFlood(t *testing.T) {
	c, _, acc := newTestLoopback(t)
	handshakeLoopback(t, c)

	for i := 0; i < 3; i++ {
		err := c.Initiator().Peer().SendMessage(&wire.Message{
			Type: wire.Transaction,
			Body: &wire.TransactionBody{Envelope: []byte(fmt.Sprintf("tx%d", i))},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	c.CrankUntilIdle()

	pool := acc.app.TransactionPool()
	if len(pool) != 3 {
		t.Fatalf("acceptor should ingest 3 transactions, not %d", len(pool))
	}
	for i, tx := range pool {
		if string(tx.Envelope) != fmt.Sprintf("tx%d", i) {
			t.Fatalf("transactions should arrive in order")
		}
	}
	if from := acc.app.Events(wire.Transaction)[0].From; from != "initiator" {
		t.Fatalf("transactions should come from initiator, not %s", from)
	}
}

func TestLoopbackWriteFailure(t *testing.T) {
	c, _, acc := newTestLoopback(t)
	handshakeLoopback(t, c)

	// writes: Hello, tx0, tx1 (fails), tx2
	c.Initiator().FailWrite(3, fmt.Errorf("broken pipe"))

	p := c.Initiator().Peer()
	for i := 0; i < 3; i++ {
		p.SendMessage(&wire.Message{
			Type: wire.Transaction,
			Body: &wire.TransactionBody{Envelope: []byte(fmt.Sprintf("tx%d", i))},
		})
	}
	c.CrankUntilIdle()

	if s := p.State(); s != overlay.Closing {
		t.Fatalf("initiator should be Closing, not %s", s)
	}
	if errors.Cause(p.DropReason()) != overlay.ErrTransportFailure {
		t.Fatalf("initiator drop reason should be a transport failure, not %v", p.DropReason())
	}
	if w := c.Initiator().Writes(); w != 3 {
		t.Fatalf("initiator should stop writing after the failure, wrote %d", w)
	}
	if s := c.Acceptor().Peer().State(); s != overlay.Closing {
		t.Fatalf("acceptor should be dropped by the close, state %s", s)
	}
	if l := len(acc.app.TransactionPool()); l != 1 {
		t.Fatalf("acceptor should receive only tx0, got %d transactions", l)
	}

	stats := p.Stats()
	if stats.BuffersReleased != stats.BuffersQueued {
		t.Fatalf("all buffers should be released: %+v", stats)
	}
}

func TestLoopbackVersionMismatch(t *testing.T) {
	initNode := newLoopbackNode(t, "initiator", 1001)
	acc := newLoopbackNode(t, "acceptor", 1002)
	acc.conf.ProtocolVersion = overlay.DefaultProtocolVersion + 1
	acc.conf.MinProtocolVersion = overlay.DefaultProtocolVersion + 1

	c := NewLoopbackConnection(initNode.conf, initNode.app, acc.conf, acc.app, common.NewTestEntry(t, common.TestLogLevel))
	c.CrankUntilIdle()

	if s := c.Acceptor().Peer().State(); s != overlay.Closing {
		t.Fatalf("acceptor should be Closing, not %s", s)
	}
	if s := c.Initiator().Peer().State(); s != overlay.Closing {
		t.Fatalf("initiator should be Closing, not %s", s)
	}
	re := c.Initiator().Peer().LastRemoteError()
	if re == nil || re.Code != wire.ErrConf {
		t.Fatalf("initiator should receive a Conf Error, got %#v", re)
	}
	if _, ok := c.Acceptor().Peer().Remote(); ok {
		t.Fatalf("acceptor should not complete the handshake")
	}
}

func TestLoopbackSelfConnection(t *testing.T) {
	n := newLoopbackNode(t, "self", 1001)

	c := NewLoopbackConnection(n.conf, n.app, n.conf, n.app, common.NewTestEntry(t, common.TestLogLevel))
	c.CrankUntilIdle()

	if s := c.Initiator().Peer().State(); s != overlay.Closing {
		t.Fatalf("self connection should be dropped, initiator state %s", s)
	}
	if s := c.Acceptor().Peer().State(); s != overlay.Closing {
		t.Fatalf("self connection should be dropped, acceptor state %s", s)
	}
	if l := n.app.PeerDirectory().Len(); l != 0 {
		t.Fatalf("own address should not be learned")
	}
}

func TestLoopbackRemoteClose(t *testing.T) {
	c, _, _ := newTestLoopback(t)
	handshakeLoopback(t, c)

	c.Acceptor().Peer().Drop(nil)
	c.CrankUntilIdle()

	p := c.Initiator().Peer()
	if s := p.State(); s != overlay.Closing {
		t.Fatalf("initiator should be dropped, state %s", s)
	}
	if p.DropReason() != ErrRemoteClosed {
		t.Fatalf("drop reason should be ErrRemoteClosed, not %v", p.DropReason())
	}
	if c.Pending() != 0 {
		t.Fatalf("no event should be pending")
	}
}
