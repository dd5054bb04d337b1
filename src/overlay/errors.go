package overlay

import "errors"

var (
	// ErrProtocolViolation is the reason of drops caused by a message that is
	// malformed or not allowed in the current state.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTransportFailure is the reason of drops caused by a failed write.
	ErrTransportFailure = errors.New("transport failure")

	// ErrRemoteError is the reason of drops caused by a fatal Error message
	// from the remote.
	ErrRemoteError = errors.New("remote error")

	// ErrClosing is returned when sending on a connection that is closing.
	ErrClosing = errors.New("connection closing")

	// ErrHandshakeIncomplete is returned when sending application traffic
	// before the handshake completed.
	ErrHandshakeIncomplete = errors.New("handshake incomplete")
)
