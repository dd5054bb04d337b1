// Package node implements the connection manager of an overlay node.
//
// The Node owns the TCP transport. It keeps TargetPeers outbound connections
// open, picking the most reliable addresses of the peer directory, and it
// accepts inbound connections up to MaxConnections. Connections that do not
// complete the handshake within HandshakeTimeout are dropped. Outbound
// connections that fail before the handshake count as failures of the dialed
// address in the directory; a completed handshake clears them.
package node
