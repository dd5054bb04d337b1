package quorum

import (
	"fmt"
	"testing"

	cm "github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/wire"
)

func testQuorumSet(i int) *wire.QuorumSet {
	return &wire.QuorumSet{
		Threshold:  1,
		Validators: []string{fmt.Sprintf("0X%02X", i)},
	}
}

func TestCacheGet(t *testing.T) {
	cache := NewCache(0)

	qs := testQuorumSet(1)
	h, err := cache.Add(qs)
	if err != nil {
		t.Fatal(err)
	}

	got, err := cache.Get(h)
	if err != nil {
		t.Fatal(err)
	}
	if got != qs {
		t.Fatalf("Get should return the shared pointer")
	}

	// Adding an equal quorum set keeps the first pointer
	if _, err := cache.Add(testQuorumSet(1)); err != nil {
		t.Fatal(err)
	}
	if got, _ := cache.Get(h); got != qs {
		t.Fatalf("re-adding an equal quorum set should not replace it")
	}

	_, err = cache.Get(wire.HashFromBytes([]byte("missing")))
	if !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(2)

	local, err := cache.Pin(testQuorumSet(0))
	if err != nil {
		t.Fatal(err)
	}

	hashes := []wire.Hash{}
	for i := 1; i <= 3; i++ {
		h, err := cache.Add(testQuorumSet(i))
		if err != nil {
			t.Fatal(err)
		}
		hashes = append(hashes, h)
	}

	if cache.Len() != 3 {
		t.Fatalf("cache should hold 2 unpinned sets and the pinned one, got %d", cache.Len())
	}
	if _, err := cache.Get(local); err != nil {
		t.Fatalf("pinned quorum set should not be evicted")
	}
	if _, err := cache.Get(hashes[0]); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("oldest quorum set should have been evicted")
	}
	for _, h := range hashes[1:] {
		if _, err := cache.Get(h); err != nil {
			t.Fatalf("recent quorum set %s should be cached", h)
		}
	}
}
