// Package peers implements the peer directory: the set of remote addresses a
// node knows about, with the number of times connecting to each has failed.
//
// Records are learned in two ways: from the listening port a remote discloses
// in its Hello message, and from Peers messages exchanged after the
// handshake. A Record is a directory entry, not a connection handle; the
// connection manager uses the failure counters to prefer reliable peers when
// it opens outbound connections.
//
// Two Directory implementations are provided. InmemDirectory keeps records in
// memory. BadgerDirectory persists them in a Badger database so a restarted
// node remembers its neighbourhood. JSONPeers reads the operator-maintained
// peers.json seed file.
package peers
