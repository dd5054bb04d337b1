package overlay

import (
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/wire"
)

// Application is the node-wide context that message handlers call into. It
// outlives every Peer and is shared by all of them, so implementations must be
// safe for concurrent use.
//
// Fetch methods answer requests from remote peers. They return an error
// (usually a common.StoreErr with KeyNotFound) when the item is not held
// locally; the Peer then answers with a DontHave message. Fetch methods must
// not block waiting for data.
//
// The from argument of the other methods identifies the connection the data
// came from (see Peer.ID).
type Application interface {
	FetchTransactionSet(id wire.Hash) (*wire.TransactionSet, error)
	FetchHistorySince(ledger uint64) (*wire.HistoryBody, error)
	FetchDelta(ledger uint64) (*wire.DeltaBody, error)
	FetchValidations(ledgerHash wire.Hash) (*wire.ValidationsBody, error)
	FetchQuorumSet(id wire.Hash) (*wire.QuorumSet, error)

	// KnownPeerAddresses returns the addresses to advertise in a Peers
	// message.
	KnownPeerAddresses() []wire.PeerAddress

	// PeerDirectory is the directory that learned addresses are merged into.
	PeerDirectory() peers.Directory

	RecvTransactionSet(from string, set *wire.TransactionSet)
	RecvHistory(from string, history *wire.HistoryBody)
	RecvDelta(from string, delta *wire.DeltaBody)
	RecvValidations(from string, validations *wire.ValidationsBody)
	RecvQuorumSet(from string, qs *wire.QuorumSet)
	RecvDontHave(from string, dontHave *wire.DontHaveBody)

	// IngestTransaction hands a flooded transaction to the transaction pool.
	IngestTransaction(from string, tx *wire.TransactionBody)

	// ForwardConsensusMessage hands an envelope to the consensus component.
	ForwardConsensusMessage(from string, env *wire.FBAEnvelope)
}
