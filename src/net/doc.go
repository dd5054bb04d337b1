// Package net implements the transports that carry overlay connections.
//
// Each transport binds one overlay.Peer to a channel of bytes and reports the
// channel's events to the Peer on a single execution context. There are two
// implementations:
//
// - Loopback: an in-process pair of connected transports, driven step by step
// by the caller. It is deterministic and supports fault injection, which makes
// it the transport of choice for testing the protocol.
//
// - TCP: plain TCP sockets. Every connection gets an event loop goroutine that
// serializes the events of its reader and writer goroutines and the calls of
// the connection manager.
//
// TCP
//
// To use a TCP transport, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket that the node binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes. If
// BindAddr is a local address not reachable by other peers, it is usefull to
// set AdvertiseAddr to the reachable public address.
package net
