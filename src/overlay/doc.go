// Package overlay implements the protocol spoken on every connection between
// two nodes of the network.
//
// A Peer is one connection. It goes through four states:
//
//	Connecting --Connected()--> Connected --valid Hello--> GotHello
//	     \                          |                          |
//	      +--------------------- Drop() ------------------> Closing
//
// Closing is terminal and reachable from every state. Before GotHello only
// Hello and Error messages are accepted; anything else is a protocol violation
// and drops the connection, so unversioned peers never reach the handlers that
// touch application state.
//
// The handshake is a symmetric exchange of Hello messages. The initiator (the
// side that opened the connection) sends its Hello as soon as the transport
// reports the connection established. The acceptor waits for that Hello,
// validates it and replies with its own. Each side reaches GotHello when it has
// validated the Hello of the other.
//
// Once in GotHello, every message is routed by type to exactly one handler.
// Requests are answered from the Application (tx sets, history, quorum sets
// ...), and a request for something the Application does not hold is answered
// with a DontHave message. Messages of unknown type are ignored.
//
// Outbound messages are serialized once into a Buffer and queued. The Peer
// hands the head of the queue to its Transport and waits for WriteComplete
// before handing the next one, so at most one write is in flight and buffers
// leave in order.
//
// A Peer is not safe for concurrent use: the Transport must call Connected,
// RecvFrame, WriteComplete and Drop from one goroutine at a time (the
// connection's execution context). State and the remote metadata may be read
// from anywhere.
package overlay
