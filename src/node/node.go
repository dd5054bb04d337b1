package node

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/config"
	onet "github.com/mosaicnetworks/overlay/src/net"
	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/wire"
)

// ErrHandshakeTimeout is the reason connections that take too long to
// complete the handshake are dropped with.
var ErrHandshakeTimeout = errors.New("handshake timeout")

// ConnectionInfo describes an open connection.
type ConnectionInfo struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	State      string             `json:"state"`
	RemoteAddr string             `json:"remote_addr"`
	Remote     overlay.RemoteInfo `json:"remote"`
	Created    time.Time          `json:"created"`
	Stats      overlay.Stats      `json:"stats"`
}

// Node manages the connections of an overlay node.
type Node struct {
	state

	conf      *config.Config
	app       overlay.Application
	directory peers.Directory
	trans     *onet.TCPTransport
	selector  PeerSelector

	dialingLock sync.Mutex
	dialing     map[string]bool

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	startLock sync.Mutex
	start     time.Time

	logger *logrus.Entry
}

// NewNode creates a Node around a transport whose connections call into app.
func NewNode(conf *config.Config,
	app overlay.Application,
	trans *onet.TCPTransport,
) *Node {
	node := Node{
		conf:       conf,
		app:        app,
		directory:  app.PeerDirectory(),
		trans:      trans,
		selector:   NewReliablePeerSelector(app.PeerDirectory()),
		dialing:    make(map[string]bool),
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
		logger:     conf.Logger().WithField("node", trans.AdvertiseAddr()),
	}

	return &node
}

// Init registers the Node with its transport.
func (n *Node) Init() error {
	n.trans.SetConnectionHandler(n.onConnection)
	return nil
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	go n.Run()
}

// Run accepts connections and opens outbound connections every
// ConnectInterval, until Shutdown.
func (n *Node) Run() {
	n.startLock.Lock()
	n.start = time.Now()
	n.startLock.Unlock()

	n.setState(Running)

	go n.trans.Listen()

	ticker := time.NewTicker(n.conf.ConnectInterval)
	defer ticker.Stop()

	n.connectToPeers()

	for {
		select {
		case <-ticker.C:
			n.connectToPeers()
		case <-n.shutdownCh:
			return
		}
	}
}

// Shutdown closes every connection and the transport. It returns once every
// connection is torn down. Only the first call has an effect.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)

		close(n.shutdownCh)

		n.waitRoutines()

		n.trans.Close()
	})
}

func (n *Node) uptime() time.Duration {
	n.startLock.Lock()
	defer n.startLock.Unlock()
	return time.Since(n.start)
}

// GetState returns the state of the Node.
func (n *Node) GetState() State {
	return n.getState()
}

// Directory returns the peer directory.
func (n *Node) Directory() peers.Directory {
	return n.directory
}

// Transport returns the transport.
func (n *Node) Transport() *onet.TCPTransport {
	return n.trans
}

// Broadcast queues msg on every connection that completed the handshake and
// returns the number of connections.
func (n *Node) Broadcast(msg *wire.Message) int {
	count := 0
	for _, c := range n.trans.Conns() {
		if c.Peer().State() != overlay.GotHello {
			continue
		}
		c.Post(func(p *overlay.Peer) {
			if err := p.SendMessage(msg); err != nil {
				n.logger.WithError(err).WithField("remote", p.RemoteAddr()).Debug("Broadcast failed")
			}
		})
		count++
	}
	return count
}

// Connections describes the open connections.
func (n *Node) Connections() []ConnectionInfo {
	conns := n.trans.Conns()
	res := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		p := c.Peer()
		remote, _ := p.Remote()
		res = append(res, ConnectionInfo{
			ID:         c.ID(),
			Role:       p.Role().String(),
			State:      p.State().String(),
			RemoteAddr: p.RemoteAddr(),
			Remote:     remote,
			Created:    c.Created(),
			Stats:      p.Stats(),
		})
	}
	return res
}

// GetStats returns counters about the Node.
func (n *Node) GetStats() map[string]string {
	inbound, outbound, established := 0, 0, 0
	for _, c := range n.trans.Conns() {
		p := c.Peer()
		if p.Role() == overlay.Initiator {
			outbound++
		} else {
			inbound++
		}
		if p.State() == overlay.GotHello {
			established++
		}
	}

	s := map[string]string{
		"state":           n.getState().String(),
		"moniker":         n.conf.Moniker,
		"id":              n.conf.NodeID(),
		"advertise_addr":  n.trans.AdvertiseAddr(),
		"inbound":         strconv.Itoa(inbound),
		"outbound":        strconv.Itoa(outbound),
		"established":     strconv.Itoa(established),
		"directory_size":  strconv.Itoa(n.directory.Len()),
		"uptime_seconds":  strconv.FormatFloat(n.uptime().Seconds(), 'f', 0, 64),
		"target_peers":    strconv.Itoa(n.conf.TargetPeers),
		"max_connections": strconv.Itoa(n.conf.MaxConnections),
	}
	return s
}

/*******************************************************************************
Connections
*******************************************************************************/

// onConnection is called by the transport for every new connection, before
// the Peer is reported connected.
func (n *Node) onConnection(c *onet.TCPConn) error {
	p := c.Peer()

	if p.Role() == overlay.Acceptor &&
		n.conf.MaxConnections > 0 &&
		len(n.trans.Conns()) >= n.conf.MaxConnections {
		n.logger.WithField("from", p.RemoteAddr()).Debug("Too many connections")
		return onet.ErrConnectionRejected
	}

	var timer *time.Timer
	if n.conf.HandshakeTimeout > 0 {
		timer = time.AfterFunc(n.conf.HandshakeTimeout, func() {
			c.Post(func(p *overlay.Peer) {
				if p.State() != overlay.GotHello {
					p.Drop(ErrHandshakeTimeout)
				}
			})
		})
	}

	p.OnStateChange(func(from, to overlay.State) {
		switch to {
		case overlay.GotHello:
			if timer != nil {
				timer.Stop()
			}
			if p.Role() == overlay.Initiator {
				n.resetFailures(p.RemoteAddr())
			}
		case overlay.Closing:
			if timer != nil {
				timer.Stop()
			}
			if p.Role() == overlay.Initiator && from != overlay.GotHello {
				n.recordFailure(p.RemoteAddr())
			}
			n.logger.WithFields(logrus.Fields{
				"remote": p.RemoteAddr(),
				"role":   p.Role(),
				"reason": p.DropReason(),
			}).Debug("Connection closed")
		}
	})

	return nil
}

func (n *Node) connectToPeers() {
	if n.getState() != Running || n.conf.TargetPeers <= 0 {
		return
	}

	connected := make(map[string]bool)
	outbound := 0
	for _, c := range n.trans.Conns() {
		p := c.Peer()
		if p.State() == overlay.Closing {
			continue
		}
		if p.Role() == overlay.Initiator {
			outbound++
			connected[p.RemoteAddr()] = true
		} else if info, ok := p.Remote(); ok {
			if host, _, err := net.SplitHostPort(p.RemoteAddr()); err == nil {
				connected[net.JoinHostPort(host, strconv.Itoa(info.ListeningPort))] = true
			}
		}
	}

	n.dialingLock.Lock()
	for addr := range n.dialing {
		connected[addr] = true
	}
	need := n.conf.TargetPeers - outbound - len(n.dialing)
	n.dialingLock.Unlock()

	self := n.trans.AdvertiseAddr()

	for ; need > 0; need-- {
		rec := n.selector.Next(func(r *peers.Record) bool {
			return connected[r.Address()] || r.Address() == self
		})
		if rec == nil {
			return
		}
		addr := rec.Address()
		connected[addr] = true

		n.dialingLock.Lock()
		n.dialing[addr] = true
		n.dialingLock.Unlock()

		started := n.goFunc(func() {
			n.dial(addr)
		})
		if !started {
			n.dialingLock.Lock()
			delete(n.dialing, addr)
			n.dialingLock.Unlock()
			return
		}
	}
}

func (n *Node) dial(addr string) {
	defer func() {
		n.dialingLock.Lock()
		delete(n.dialing, addr)
		n.dialingLock.Unlock()
	}()

	n.logger.WithField("addr", addr).Debug("Connecting")

	if _, err := n.trans.Connect(addr); err != nil {
		n.logger.WithError(err).WithField("addr", addr).Debug("Connection failed")
		n.recordFailure(addr)
	}
}

func (n *Node) recordFailure(addr string) {
	r, err := peers.NewRecordFromAddr(addr)
	if err != nil {
		return
	}
	if err := n.directory.RecordFailure(r.IP, r.Port); err != nil {
		n.logger.WithError(err).WithField("addr", addr).Debug("Failure not recorded")
	}
}

func (n *Node) resetFailures(addr string) {
	r, err := peers.NewRecordFromAddr(addr)
	if err != nil {
		return
	}
	if err := n.directory.ResetFailures(r.IP, r.Port); err != nil {
		n.logger.WithError(err).WithField("addr", addr).Debug("Failures not reset")
	}
}
