package net

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	perrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/wire"
)

const (
	// bufSize is the size of the read buffer of a connection
	bufSize = 64 * 1024

	// eventQueueSize is the capacity of the event queue of a connection
	eventQueueSize = 64
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrConnectionLost is the reason a Peer is dropped with when its socket
	// fails or is closed by the remote.
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionRejected is returned by a ConnectionHandler to refuse a
	// connection.
	ErrConnectionRejected = errors.New("connection rejected")
)

// ConnectionHandler is called for every new connection, before the Peer is
// reported connected. It can register state observers on the Peer. Returning
// an error closes the connection.
type ConnectionHandler func(c *TCPConn) error

/*
TCPTransport carries overlay connections over TCP. It accepts connections on
its StreamLayer and dials connections on demand; each connection is bound to
its own overlay.Peer, Acceptor or Initiator respectively.

Every connection has three goroutines. The reader decodes frames from the
socket, the writer writes the Buffers handed by the Peer, and the event loop
runs everything that touches the Peer: frames, write completions, the
connected event and the calls posted with TCPConn.Post.
*/
type TCPTransport struct {
	stream StreamLayer
	conf   *overlay.Config
	app    overlay.Application

	timeout      time.Duration
	maxFrameSize uint32

	handlerLock sync.Mutex
	handler     ConnectionHandler

	connsLock sync.Mutex
	conns     map[string]*TCPConn

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	logger *logrus.Entry
}

// NewTCPTransport returns a TCPTransport bound to bindAddr, with log output
// going to the supplied Logger. Connections are bound to Peers built from
// conf and app. timeout applies to dials and to each write.
func NewTCPTransport(
	bindAddr string,
	advertise string,
	conf *overlay.Config,
	app overlay.Application,
	timeout time.Duration,
	maxFrameSize uint32,
	logger *logrus.Entry,
) (*TCPTransport, error) {
	stream, err := NewTCPStreamLayer(bindAddr, advertise)
	if err != nil {
		return nil, err
	}
	return NewStreamTransport(stream, conf, app, timeout, maxFrameSize, logger), nil
}

// NewStreamTransport creates a TCPTransport over an existing StreamLayer.
func NewStreamTransport(
	stream StreamLayer,
	conf *overlay.Config,
	app overlay.Application,
	timeout time.Duration,
	maxFrameSize uint32,
	logger *logrus.Entry,
) *TCPTransport {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if maxFrameSize == 0 {
		maxFrameSize = wire.DefaultMaxFrameSize
	}

	return &TCPTransport{
		stream:       stream,
		conf:         conf,
		app:          app,
		timeout:      timeout,
		maxFrameSize: maxFrameSize,
		conns:        make(map[string]*TCPConn),
		shutdownCh:   make(chan struct{}),
		logger:       logger,
	}
}

// SetConnectionHandler sets the function called for every new connection.
func (t *TCPTransport) SetConnectionHandler(h ConnectionHandler) {
	t.handlerLock.Lock()
	defer t.handlerLock.Unlock()
	t.handler = h
}

// LocalAddr returns the address the transport listens on.
func (t *TCPTransport) LocalAddr() string {
	addr := t.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr returns the address other nodes can reach us at.
func (t *TCPTransport) AdvertiseAddr() string {
	return t.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (t *TCPTransport) IsShutdown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}

// Listen accepts incoming connections until the transport is closed.
func (t *TCPTransport) Listen() {
	for {
		// Accept incoming connections
		conn, err := t.stream.Accept()
		if err != nil {
			if t.IsShutdown() {
				return
			}
			t.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		t.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("Accepted connection")

		if _, err := t.startConn(conn, overlay.Acceptor); err != nil {
			t.logger.WithError(err).Debug("Inbound connection refused")
		}
	}
}

// Connect dials target and starts an Initiator connection to it.
func (t *TCPTransport) Connect(target string) (*TCPConn, error) {
	if t.IsShutdown() {
		return nil, ErrTransportShutdown
	}

	conn, err := t.stream.Dial(target, t.timeout)
	if err != nil {
		return nil, perrors.Wrapf(err, "dialing %s", target)
	}

	return t.startConn(conn, overlay.Initiator)
}

// Conns returns the open connections.
func (t *TCPTransport) Conns() []*TCPConn {
	t.connsLock.Lock()
	defer t.connsLock.Unlock()

	res := make([]*TCPConn, 0, len(t.conns))
	for _, c := range t.conns {
		res = append(res, c)
	}
	return res
}

// Close stops listening and drops every connection. It returns once every
// connection is torn down and the state observers of its Peer have run.
func (t *TCPTransport) Close() error {
	t.shutdownLock.Lock()

	if t.shutdown {
		t.shutdownLock.Unlock()
		return nil
	}

	close(t.shutdownCh)
	err := t.stream.Close()
	t.shutdown = true

	t.shutdownLock.Unlock()

	// no connection is registered after shutdownCh is closed
	conns := t.Conns()
	for _, c := range conns {
		c.Post(func(p *overlay.Peer) { p.Drop(ErrTransportShutdown) })
	}
	for _, c := range conns {
		<-c.Done()
	}

	return err
}

func (t *TCPTransport) startConn(conn net.Conn, role overlay.Role) (*TCPConn, error) {
	c := newTCPConn(t, conn)
	c.peer = overlay.NewPeer(t.conf, t.app, role, c, c.logger)

	t.handlerLock.Lock()
	h := t.handler
	t.handlerLock.Unlock()

	if h != nil {
		if err := h(c); err != nil {
			conn.Close()
			return nil, err
		}
	}

	t.connsLock.Lock()
	if t.IsShutdown() {
		t.connsLock.Unlock()
		conn.Close()
		return nil, ErrTransportShutdown
	}
	t.conns[c.id] = c
	t.connsLock.Unlock()

	c.start()

	return c, nil
}

func (t *TCPTransport) removeConn(c *TCPConn) {
	t.connsLock.Lock()
	delete(t.conns, c.id)
	t.connsLock.Unlock()
}

// TCPConn is one TCP connection and the Peer bound to it. It implements
// overlay.Transport.
type TCPConn struct {
	id        string
	conn      net.Conn
	transport *TCPTransport
	peer      *overlay.Peer

	events   chan func()
	writeCh  chan []byte
	closing  chan struct{}
	ioDone   chan struct{}
	loopDone chan struct{}

	closeOnce sync.Once
	ioGroup   sync.WaitGroup

	created time.Time
	logger  *logrus.Entry
}

func newTCPConn(t *TCPTransport, conn net.Conn) *TCPConn {
	id := uuid.New().String()
	return &TCPConn{
		id:        id,
		conn:      conn,
		transport: t,
		events:    make(chan func(), eventQueueSize),
		writeCh:   make(chan []byte, 1),
		closing:   make(chan struct{}),
		ioDone:    make(chan struct{}),
		loopDone:  make(chan struct{}),
		created:   time.Now(),
		logger:    t.logger.WithField("conn", id),
	}
}

// ID identifies the connection.
func (c *TCPConn) ID() string {
	return c.id
}

// Peer returns the Peer bound to the connection. Outside of the connection's
// event loop only its thread safe methods (State, Remote, Stats ...) may be
// called; use Post for the others.
func (c *TCPConn) Peer() *overlay.Peer {
	return c.peer
}

// Created returns the time the connection was established.
func (c *TCPConn) Created() time.Time {
	return c.created
}

// Done is closed when the connection is fully torn down.
func (c *TCPConn) Done() <-chan struct{} {
	return c.loopDone
}

// Post runs f on the connection's event loop. It is dropped if the connection
// is already torn down.
func (c *TCPConn) Post(f func(p *overlay.Peer)) {
	c.post(func() { f(c.peer) })
}

func (c *TCPConn) post(ev func()) {
	select {
	case c.events <- ev:
	case <-c.loopDone:
	}
}

func (c *TCPConn) start() {
	// queued before the reader exists, so no frame can overtake it
	c.post(c.peer.Connected)

	c.ioGroup.Add(2)
	go c.readLoop()
	go c.writeLoop()
	go func() {
		c.ioGroup.Wait()
		close(c.ioDone)
	}()
	go c.eventLoop()
}

// eventLoop is the execution context of the Peer. It runs until the reader
// and writer are gone, then runs what they left behind.
func (c *TCPConn) eventLoop() {
	defer close(c.loopDone)
	defer c.transport.removeConn(c)

	for {
		select {
		case ev := <-c.events:
			ev()
		case <-c.ioDone:
			for {
				select {
				case ev := <-c.events:
					ev()
				default:
					c.logger.Debug("Connection closed")
					return
				}
			}
		}
	}
}

func (c *TCPConn) readLoop() {
	defer c.ioGroup.Done()

	r := bufio.NewReaderSize(c.conn, bufSize)

	for {
		frame, err := wire.ReadFrame(r, c.transport.maxFrameSize)
		if err != nil {
			select {
			case <-c.closing:
			default:
				c.logger.WithError(err).Debug("Read failed")
			}
			c.post(func() { c.peer.Drop(perrors.Wrap(ErrConnectionLost, err.Error())) })
			return
		}
		c.post(func() { c.peer.RecvFrame(frame) })
	}
}

func (c *TCPConn) writeLoop() {
	defer c.ioGroup.Done()

	for {
		select {
		case data := <-c.writeCh:
			if c.transport.timeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(c.transport.timeout))
			}
			_, err := c.conn.Write(data)
			c.post(func() { c.peer.WriteComplete(err) })
		case <-c.closing:
			// a write handed over before the close still gets its
			// completion
			select {
			case <-c.writeCh:
				c.post(func() { c.peer.WriteComplete(ErrConnectionLost) })
			default:
			}
			return
		}
	}
}

// Write implements the overlay.Transport interface.
func (c *TCPConn) Write(buf *overlay.Buffer) {
	c.writeCh <- buf.Bytes()
}

// Close implements the overlay.Transport interface.
func (c *TCPConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.conn.Close()
	})
}

// LocalAddr implements the overlay.Transport interface.
func (c *TCPConn) LocalAddr() string {
	return c.conn.LocalAddr().String()
}

// RemoteAddr implements the overlay.Transport interface.
func (c *TCPConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
