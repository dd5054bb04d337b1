package net

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/overlay"
)

var (
	// ErrRemoteClosed is the reason a loopback Peer is dropped with when the
	// other end closes.
	ErrRemoteClosed = errors.New("remote closed the connection")

	// ErrLoopbackClosed is the completion error of writes started after the
	// transport closed.
	ErrLoopbackClosed = errors.New("loopback transport closed")
)

// maxCranks bounds CrankUntilIdle against two peers that never stop talking.
const maxCranks = 100000

var (
	loopbackPortLock sync.Mutex
	loopbackPort     = 40000
)

// nextLoopbackAddr returns a fresh 127.0.0.1 address.
func nextLoopbackAddr() string {
	loopbackPortLock.Lock()
	defer loopbackPortLock.Unlock()
	loopbackPort++
	if loopbackPort > 65535 {
		loopbackPort = 40001
	}
	return fmt.Sprintf("127.0.0.1:%d", loopbackPort)
}

// LoopbackConnection is an in-process connection between two Peers, an
// Initiator and an Acceptor. Nothing happens until the caller cranks it: every
// event (connection established, frame delivered, write completed, close
// propagated) is queued and run, in order, by Crank.
//
// A LoopbackConnection and its Peers must be driven from a single goroutine.
type LoopbackConnection struct {
	id        string
	initiator *LoopbackTransport
	acceptor  *LoopbackTransport
	events    []func()
	logger    *logrus.Entry
}

// NewLoopbackConnection connects two Peers. The Peers are reported connected
// by the first two cranks.
func NewLoopbackConnection(
	initiatorConf *overlay.Config,
	initiatorApp overlay.Application,
	acceptorConf *overlay.Config,
	acceptorApp overlay.Application,
	logger *logrus.Entry,
) *LoopbackConnection {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	id := uuid.New().String()

	c := &LoopbackConnection{
		id:     id,
		logger: logger.WithField("loopback", id),
	}

	initAddr := nextLoopbackAddr()
	accAddr := nextLoopbackAddr()

	c.initiator = newLoopbackTransport(c, initAddr, accAddr)
	c.acceptor = newLoopbackTransport(c, accAddr, initAddr)
	c.initiator.other = c.acceptor
	c.acceptor.other = c.initiator

	c.initiator.peer = overlay.NewPeer(initiatorConf, initiatorApp, overlay.Initiator, c.initiator, c.logger.WithField("side", "initiator"))
	c.acceptor.peer = overlay.NewPeer(acceptorConf, acceptorApp, overlay.Acceptor, c.acceptor, c.logger.WithField("side", "acceptor"))

	c.post(c.acceptor.peer.Connected)
	c.post(c.initiator.peer.Connected)

	return c
}

// ID identifies the connection in logs.
func (c *LoopbackConnection) ID() string {
	return c.id
}

// Initiator returns the end that opened the connection.
func (c *LoopbackConnection) Initiator() *LoopbackTransport {
	return c.initiator
}

// Acceptor returns the end that accepted the connection.
func (c *LoopbackConnection) Acceptor() *LoopbackTransport {
	return c.acceptor
}

// Crank runs the oldest pending event and reports whether there was one.
func (c *LoopbackConnection) Crank() bool {
	if len(c.events) == 0 {
		return false
	}
	ev := c.events[0]
	c.events[0] = nil
	c.events = c.events[1:]
	ev()
	return true
}

// CrankUntilIdle runs events until none is pending and returns how many ran.
func (c *LoopbackConnection) CrankUntilIdle() int {
	n := 0
	for n < maxCranks && c.Crank() {
		n++
	}
	if n == maxCranks {
		c.logger.Warn("CrankUntilIdle gave up")
	}
	return n
}

// Pending returns the number of events waiting to be cranked.
func (c *LoopbackConnection) Pending() int {
	return len(c.events)
}

func (c *LoopbackConnection) post(ev func()) {
	c.events = append(c.events, ev)
}

// LoopbackTransport is one end of a LoopbackConnection. It implements
// overlay.Transport.
type LoopbackTransport struct {
	conn   *LoopbackConnection
	peer   *overlay.Peer
	other  *LoopbackTransport
	local  string
	remote string

	closed     bool
	writes     int
	failWrites map[int]error
	delivered  int
}

func newLoopbackTransport(conn *LoopbackConnection, local, remote string) *LoopbackTransport {
	return &LoopbackTransport{
		conn:       conn,
		local:      local,
		remote:     remote,
		failWrites: make(map[int]error),
	}
}

// Peer returns the Peer bound to this end.
func (l *LoopbackTransport) Peer() *overlay.Peer {
	return l.peer
}

// FailWrite makes the n-th write of this end (counting from 1) complete with
// err instead of reaching the other end.
func (l *LoopbackTransport) FailWrite(n int, err error) {
	l.failWrites[n] = err
}

// Writes returns the number of writes started on this end.
func (l *LoopbackTransport) Writes() int {
	return l.writes
}

// Delivered returns the number of frames delivered to the other end.
func (l *LoopbackTransport) Delivered() int {
	return l.delivered
}

// Closed reports whether this end was closed.
func (l *LoopbackTransport) Closed() bool {
	return l.closed
}

// Write implements the overlay.Transport interface. The frame is delivered to
// the other end by one crank and the write is completed by the next.
func (l *LoopbackTransport) Write(buf *overlay.Buffer) {
	l.writes++

	if l.closed {
		l.conn.post(func() { l.peer.WriteComplete(ErrLoopbackClosed) })
		return
	}

	if err, ok := l.failWrites[l.writes]; ok {
		l.conn.post(func() { l.peer.WriteComplete(err) })
		return
	}

	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())

	l.conn.post(func() {
		if l.other.closed {
			return
		}
		l.delivered++
		l.other.peer.RecvFrame(frame)
	})
	l.conn.post(func() { l.peer.WriteComplete(nil) })
}

// Close implements the overlay.Transport interface. The other end is dropped
// by a later crank.
func (l *LoopbackTransport) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.conn.post(func() { l.other.peer.Drop(ErrRemoteClosed) })
}

// LocalAddr implements the overlay.Transport interface.
func (l *LoopbackTransport) LocalAddr() string {
	return l.local
}

// RemoteAddr implements the overlay.Transport interface.
func (l *LoopbackTransport) RemoteAddr() string {
	return l.remote
}
