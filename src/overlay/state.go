package overlay

import "sync/atomic"

// State is the protocol state of a Peer.
type State uint32

const (
	// Connecting is the initial state, before the transport is established.
	Connecting State = iota
	// Connected means the transport is established and the handshake is
	// under way.
	Connected
	// GotHello means the handshake completed. It is the only state in which
	// non-handshake messages are processed.
	GotHello
	// Closing is terminal. The connection is being torn down.
	Closing
)

// String ...
func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case GotHello:
		return "GotHello"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Role tells which side opened the connection.
type Role uint8

const (
	// Initiator opened the connection.
	Initiator Role = iota
	// Acceptor accepted the connection.
	Acceptor
)

// String ...
func (r Role) String() string {
	switch r {
	case Initiator:
		return "Initiator"
	case Acceptor:
		return "Acceptor"
	default:
		return "Unknown"
	}
}

// StateObserver is called after every state transition of a Peer, on the
// Peer's execution context.
type StateObserver func(from, to State)

type state struct {
	state State
}

func (s *state) getState() State {
	stateAddr := (*uint32)(&s.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (s *state) storeState(st State) {
	stateAddr := (*uint32)(&s.state)
	atomic.StoreUint32(stateAddr, uint32(st))
}
