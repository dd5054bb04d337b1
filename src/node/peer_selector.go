package node

import (
	"math/rand"

	"github.com/mosaicnetworks/overlay/src/peers"
)

// PeerSelector picks the next address to connect to.
type PeerSelector interface {
	// Next returns a record for which skip is false, or nil.
	Next(skip func(*peers.Record) bool) *peers.Record
}

//+++++++++++++++++++++++++++++++++++++++
//RELIABLE

// ReliablePeerSelector picks among the records with the fewest failures, at
// random, so that nodes sharing a directory do not all dial the same peer.
type ReliablePeerSelector struct {
	directory peers.Directory
}

// NewReliablePeerSelector creates a ReliablePeerSelector over a directory.
func NewReliablePeerSelector(directory peers.Directory) *ReliablePeerSelector {
	return &ReliablePeerSelector{
		directory: directory,
	}
}

// Next implements the PeerSelector interface.
func (ps *ReliablePeerSelector) Next(skip func(*peers.Record) bool) *peers.Record {
	var best []*peers.Record

	// Records are sorted by reliability
	for _, r := range ps.directory.Records() {
		if skip != nil && skip(r) {
			continue
		}
		if len(best) > 0 && r.NumFailures > best[0].NumFailures {
			break
		}
		best = append(best, r)
	}

	if len(best) == 0 {
		return nil
	}

	return best[rand.Intn(len(best))]
}
