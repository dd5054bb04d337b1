package node

import (
	gonet "net"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/overlay/src/app"
	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/config"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	onet "github.com/mosaicnetworks/overlay/src/net"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/quorum"
	"github.com/mosaicnetworks/overlay/src/wire"
)

func newTestNode(t *testing.T, name string, targetPeers int) (*Node, *app.InmemApp) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.Moniker = name
	conf.BindAddr = "127.0.0.1:0"
	conf.ConnectInterval = 50 * time.Millisecond
	conf.HandshakeTimeout = 500 * time.Millisecond
	conf.TargetPeers = targetPeers

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	conf.Key = key

	stream, err := onet.NewTCPStreamLayer(conf.BindAddr, "")
	if err != nil {
		t.Fatal(err)
	}
	conf.AdvertiseAddr = stream.AdvertiseAddr()

	oconf, err := conf.OverlayConfig()
	if err != nil {
		t.Fatal(err)
	}

	a := app.NewInmemApp(quorum.NewCache(0), peers.NewInmemDirectory(), common.NewPrefixedTestEntry(t, common.TestLogLevel, name))
	trans := onet.NewStreamTransport(stream, oconf, a, conf.TCPTimeout, conf.MaxFrameSize, conf.Logger())

	n := NewNode(conf, a, trans)
	if err := n.Init(); err != nil {
		t.Fatal(err)
	}

	return n, a
}

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func established(n *Node) string {
	return n.GetStats()["established"]
}

func TestNodesConnect(t *testing.T) {
	a, _ := newTestNode(t, "a", 0)
	defer a.Shutdown()
	b, appB := newTestNode(t, "b", 1)
	defer b.Shutdown()

	addrA, err := peers.NewRecordFromAddr(a.Transport().AdvertiseAddr())
	if err != nil {
		t.Fatal(err)
	}
	b.Directory().Add(addrA)

	a.RunAsync()
	b.RunAsync()

	waitFor(t, "connection", func() bool {
		return established(a) == "1" && established(b) == "1"
	})

	if s := b.GetStats()["outbound"]; s != "1" {
		t.Fatalf("b should have 1 outbound connection, not %s", s)
	}
	if s := a.GetStats()["inbound"]; s != "1" {
		t.Fatalf("a should have 1 inbound connection, not %s", s)
	}

	// a learned where b listens
	addrB, _ := peers.NewRecordFromAddr(b.Transport().AdvertiseAddr())
	if _, err := a.Directory().Get(addrB.IP, addrB.Port); err != nil {
		t.Fatalf("a should learn the address of b: %v", err)
	}

	sent := a.Broadcast(&wire.Message{
		Type: wire.Transaction,
		Body: &wire.TransactionBody{Envelope: []byte("tx")},
	})
	if sent != 1 {
		t.Fatalf("broadcast should reach 1 connection, not %d", sent)
	}
	waitFor(t, "transaction", func() bool { return len(appB.TransactionPool()) == 1 })

	conns := b.Connections()
	if len(conns) != 1 || conns[0].Remote.NodeID != a.conf.NodeID() {
		t.Fatalf("b should be connected to a, got %+v", conns)
	}

	// b does not open a second connection to a
	time.Sleep(3 * b.conf.ConnectInterval)
	if s := b.GetStats()["outbound"]; s != "1" {
		t.Fatalf("b should keep 1 outbound connection, not %s", s)
	}
}

func TestConnectionFailureRecorded(t *testing.T) {
	// an address nobody listens on
	l, err := gonet.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	dead := l.Addr().String()
	l.Close()

	n, _ := newTestNode(t, "n", 1)
	defer n.Shutdown()

	r, _ := peers.NewRecordFromAddr(dead)
	n.Directory().Add(r)

	n.RunAsync()

	waitFor(t, "failure", func() bool {
		rec, err := n.Directory().Get(r.IP, r.Port)
		return err == nil && rec.NumFailures >= 2
	})
}

func TestHandshakeTimeout(t *testing.T) {
	// a server that accepts connections and says nothing
	l, err := gonet.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			defer c.Close()
		}
	}()

	n, _ := newTestNode(t, "n", 1)
	defer n.Shutdown()
	n.conf.HandshakeTimeout = 100 * time.Millisecond

	r, _ := peers.NewRecordFromAddr(l.Addr().String())
	n.Directory().Add(r)

	n.RunAsync()

	waitFor(t, "handshake timeout", func() bool {
		rec, err := n.Directory().Get(r.IP, r.Port)
		return err == nil && rec.NumFailures >= 1
	})

	conns := n.Connections()
	for _, c := range conns {
		if c.State == "GotHello" {
			t.Fatalf("no connection should complete the handshake")
		}
	}
}

func TestMaxConnections(t *testing.T) {
	a, _ := newTestNode(t, "a", 0)
	defer a.Shutdown()
	a.conf.MaxConnections = 1
	a.RunAsync()

	b, _ := newTestNode(t, "b", 0)
	defer b.Shutdown()
	c, _ := newTestNode(t, "c", 0)
	defer c.Shutdown()

	if _, err := b.Transport().Connect(a.Transport().AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first connection", func() bool { return established(a) == "1" })

	conn, err := c.Transport().Connect(a.Transport().AdvertiseAddr())
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("connection over the limit should be refused")
	}

	if s := a.GetStats()["inbound"]; s != "1" {
		t.Fatalf("a should keep 1 inbound connection, not %s", s)
	}
}

func TestStatsWhileStarting(t *testing.T) {
	n, _ := newTestNode(t, "n", 0)
	defer n.Shutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if s := n.GetStats(); s["uptime_seconds"] == "" {
				t.Errorf("uptime should be set")
				return
			}
		}
	}()

	n.RunAsync()
	<-done

	waitFor(t, "running", func() bool { return n.GetState() == Running })
}

func TestConcurrentShutdown(t *testing.T) {
	n, _ := newTestNode(t, "n", 0)
	n.RunAsync()
	waitFor(t, "running", func() bool { return n.GetState() == Running })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Shutdown()
		}()
	}
	wg.Wait()

	if s := n.GetState(); s != Shutdown {
		t.Fatalf("state should be Shutdown, not %s", s)
	}
	if !n.Transport().IsShutdown() {
		t.Fatalf("transport should be closed")
	}
}

func TestReliablePeerSelector(t *testing.T) {
	dir := peers.NewInmemDirectory()
	dir.Add(peers.NewRecord("10.0.0.1", 1))
	dir.Add(peers.NewRecord("10.0.0.2", 2))
	dir.Add(peers.NewRecord("10.0.0.3", 3))
	dir.RecordFailure("10.0.0.1", 1)
	dir.RecordFailure("10.0.0.2", 2)

	ps := NewReliablePeerSelector(dir)

	for i := 0; i < 10; i++ {
		if r := ps.Next(nil); r.IP != "10.0.0.3" {
			t.Fatalf("the record without failures should be picked, not %s", r.IP)
		}
	}

	skip3 := func(r *peers.Record) bool { return r.IP == "10.0.0.3" }
	for i := 0; i < 10; i++ {
		r := ps.Next(skip3)
		if r.IP != "10.0.0.1" && r.IP != "10.0.0.2" {
			t.Fatalf("one of the least failing records should be picked, not %s", r.IP)
		}
	}

	if r := ps.Next(func(*peers.Record) bool { return true }); r != nil {
		t.Fatalf("nothing should be picked when everything is skipped")
	}
}
