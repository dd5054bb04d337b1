// Package quorum holds the quorum sets known to a node.
//
// Quorum sets are looked up by content hash. A *wire.QuorumSet stored in the
// Cache is shared as-is by every connection and by the consensus component, so
// callers must treat it as immutable.
package quorum

import (
	"sync"

	cm "github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/wire"
)

// Cache is a content-addressed store of quorum sets, safe for concurrent use.
// When size is positive, the oldest entries are evicted first, except pinned
// ones (the local quorum set).
type Cache struct {
	sync.RWMutex
	size   int
	sets   map[wire.Hash]*wire.QuorumSet
	pinned map[wire.Hash]bool
	order  []wire.Hash
}

// NewCache creates a Cache holding at most size unpinned quorum sets. A size
// of zero or less means unbounded.
func NewCache(size int) *Cache {
	return &Cache{
		size:   size,
		sets:   make(map[wire.Hash]*wire.QuorumSet),
		pinned: make(map[wire.Hash]bool),
	}
}

// Add stores qs and returns its hash. Adding a quorum set that is already
// present keeps the existing pointer.
func (c *Cache) Add(qs *wire.QuorumSet) (wire.Hash, error) {
	h, err := qs.Hash()
	if err != nil {
		return wire.Hash{}, err
	}

	c.Lock()
	defer c.Unlock()

	c.add(h, qs)

	return h, nil
}

// Pin stores qs and protects it from eviction.
func (c *Cache) Pin(qs *wire.QuorumSet) (wire.Hash, error) {
	h, err := qs.Hash()
	if err != nil {
		return wire.Hash{}, err
	}

	c.Lock()
	defer c.Unlock()

	c.add(h, qs)
	c.pinned[h] = true

	return h, nil
}

func (c *Cache) add(h wire.Hash, qs *wire.QuorumSet) {
	if _, ok := c.sets[h]; ok {
		return
	}

	c.sets[h] = qs
	c.order = append(c.order, h)

	if c.size <= 0 {
		return
	}

	for i := 0; len(c.sets)-len(c.pinned) > c.size && i < len(c.order); {
		old := c.order[i]
		if c.pinned[old] {
			i++
			continue
		}
		delete(c.sets, old)
		c.order = append(c.order[:i], c.order[i+1:]...)
	}
}

// Get returns the quorum set with hash h, or a KeyNotFound StoreErr.
func (c *Cache) Get(h wire.Hash) (*wire.QuorumSet, error) {
	c.RLock()
	defer c.RUnlock()

	qs, ok := c.sets[h]
	if !ok {
		return nil, cm.NewStoreErr("QuorumSet", cm.KeyNotFound, h.Hex())
	}

	return qs, nil
}

// Len returns the number of cached quorum sets.
func (c *Cache) Len() int {
	c.RLock()
	defer c.RUnlock()

	return len(c.sets)
}
