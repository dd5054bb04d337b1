package overlay

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// RemoteInfo is what a remote peer disclosed in its Hello.
type RemoteInfo struct {
	ProtocolVersion int
	VersionStr      string
	ListeningPort   int
	NodeID          string
}

// Peer is the local endpoint of one connection to a remote node.
type Peer struct {
	state

	conf      *Config
	app       Application
	role      Role
	transport Transport

	// remote is set once, on the transition to GotHello.
	remote atomic.Value

	observers []StateObserver

	queue   []*Buffer
	writing bool
	nextSeq uint64

	statsLock       sync.Mutex
	stats           Stats
	lastRemoteError *RemoteError
	dropReason      error

	logger *logrus.Entry
}

// NewPeer creates a Peer in state Connecting. The transport reports the
// connection established by calling Connected.
func NewPeer(conf *Config,
	app Application,
	role Role,
	transport Transport,
	logger *logrus.Entry,
) *Peer {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Peer{
		conf:      conf,
		app:       app,
		role:      role,
		transport: transport,
		stats:     newStats(),
		logger:    logger,
	}
}

// State returns the current state. It is safe to call from any goroutine.
func (p *Peer) State() State {
	return p.getState()
}

// Role returns the side of the connection the Peer is on.
func (p *Peer) Role() Role {
	return p.role
}

// RemoteAddr returns the transport address of the remote end.
func (p *Peer) RemoteAddr() string {
	return p.transport.RemoteAddr()
}

// Remote returns what the remote disclosed in its Hello. ok is false until the
// handshake completed.
func (p *Peer) Remote() (info RemoteInfo, ok bool) {
	v := p.remote.Load()
	if v == nil {
		return RemoteInfo{}, false
	}
	return v.(RemoteInfo), true
}

// ID identifies the connection in calls to the Application: the remote node ID
// once known, the remote transport address otherwise.
func (p *Peer) ID() string {
	if info, ok := p.Remote(); ok && info.NodeID != "" {
		return info.NodeID
	}
	return p.transport.RemoteAddr()
}

// String ...
func (p *Peer) String() string {
	return fmt.Sprintf("%s(%s, %s)", p.role, p.transport.RemoteAddr(), p.State())
}

// OnStateChange registers an observer of state transitions. Observers must be
// registered before the transport starts reporting events.
func (p *Peer) OnStateChange(obs StateObserver) {
	p.observers = append(p.observers, obs)
}

// Connected is called by the transport when the connection is established. An
// Initiator opens the handshake right away.
func (p *Peer) Connected() {
	if s := p.State(); s != Connecting {
		p.log().Debugf("Connected in state %s ignored", s)
		return
	}

	p.setState(Connected)

	if p.role == Initiator {
		p.sendHello()
	}
}

// Drop moves the Peer to Closing and closes the transport. Buffers waiting in
// the send queue are released immediately; the one being written is released
// when its write completes. Calling Drop on a closing Peer has no effect.
func (p *Peer) Drop(reason error) {
	if p.State() == Closing {
		return
	}

	if reason == nil {
		reason = fmt.Errorf("dropped")
	}

	p.statsLock.Lock()
	p.dropReason = reason
	p.stats.DropReason = reason.Error()
	p.statsLock.Unlock()

	p.log().WithError(reason).Debug("Dropping connection")

	p.setState(Closing)

	p.releasePending()

	p.transport.Close()
}

// DropReason returns the error the Peer was dropped with, or nil.
func (p *Peer) DropReason() error {
	p.statsLock.Lock()
	defer p.statsLock.Unlock()
	return p.dropReason
}

func (p *Peer) setState(to State) {
	from := p.State()
	p.storeState(to)

	p.logger.WithFields(logrus.Fields{
		"role":   p.role,
		"remote": p.transport.RemoteAddr(),
		"from":   from,
		"to":     to,
	}).Debug("State transition")

	for _, obs := range p.observers {
		obs(from, to)
	}
}

func (p *Peer) log() *logrus.Entry {
	return p.logger.WithFields(logrus.Fields{
		"role":   p.role,
		"remote": p.transport.RemoteAddr(),
		"state":  p.State(),
	})
}
