package peers

import (
	"sort"
	"sync"

	cm "github.com/mosaicnetworks/overlay/src/common"
)

// Directory is the set of known peer records. Implementations are shared by
// all connections of a node and must be safe for concurrent use. Records
// returned by a Directory are copies.
type Directory interface {
	// Add inserts r if its address is unknown and reports whether it did.
	Add(r *Record) (bool, error)

	// Merge adds the unknown records among rs, deduplicating by address.
	// Failure counters of known records are preserved. It returns the number
	// of records added.
	Merge(rs []*Record) (int, error)

	// Get returns the record for ip:port or a KeyNotFound StoreErr.
	Get(ip string, port int) (*Record, error)

	// RecordFailure increments the failure counter of ip:port.
	RecordFailure(ip string, port int) error

	// ResetFailures clears the failure counter of ip:port.
	ResetFailures(ip string, port int) error

	// Records returns all records, most reliable first.
	Records() []*Record

	// Len returns the number of records.
	Len() int
}

// InmemDirectory is a Directory held in memory.
type InmemDirectory struct {
	sync.RWMutex
	byAddr map[string]*Record
	sorted []*Record
}

// NewInmemDirectory creates an empty InmemDirectory.
func NewInmemDirectory() *InmemDirectory {
	return &InmemDirectory{
		byAddr: make(map[string]*Record),
	}
}

// Add implements the Directory interface.
func (d *InmemDirectory) Add(r *Record) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}

	d.Lock()
	defer d.Unlock()

	added := d.addRaw(r)
	if added {
		d.internalSort()
	}

	return added, nil
}

// Merge implements the Directory interface. Invalid records are skipped.
func (d *InmemDirectory) Merge(rs []*Record) (int, error) {
	d.Lock()
	defer d.Unlock()

	added := 0
	for _, r := range rs {
		if r.Validate() != nil {
			continue
		}
		if d.addRaw(&Record{IP: r.IP, Port: r.Port}) {
			added++
		}
	}

	if added > 0 {
		d.internalSort()
	}

	return added, nil
}

// addRaw inserts a copy of r without sorting. It is not protected by the
// mutex.
func (d *InmemDirectory) addRaw(r *Record) bool {
	c := r.copy()
	c.computeID()

	key := c.Address()
	if _, ok := d.byAddr[key]; ok {
		return false
	}

	d.byAddr[key] = c

	return true
}

// set replaces the record for r's address. It is used when loading from
// persistent storage.
func (d *InmemDirectory) set(r *Record) {
	d.Lock()
	defer d.Unlock()

	c := r.copy()
	c.computeID()
	d.byAddr[c.Address()] = c

	d.internalSort()
}

func (d *InmemDirectory) internalSort() {
	res := make([]*Record, 0, len(d.byAddr))

	for _, r := range d.byAddr {
		res = append(res, r)
	}

	sort.Sort(ByReliability(res))

	d.sorted = res
}

// Get implements the Directory interface.
func (d *InmemDirectory) Get(ip string, port int) (*Record, error) {
	d.RLock()
	defer d.RUnlock()

	key := NewRecord(ip, port).Address()

	r, ok := d.byAddr[key]
	if !ok {
		return nil, cm.NewStoreErr("PeerRecord", cm.KeyNotFound, key)
	}

	return r.copy(), nil
}

// RecordFailure implements the Directory interface.
func (d *InmemDirectory) RecordFailure(ip string, port int) error {
	_, err := d.update(ip, port, func(r *Record) { r.NumFailures++ })
	return err
}

// ResetFailures implements the Directory interface.
func (d *InmemDirectory) ResetFailures(ip string, port int) error {
	_, err := d.update(ip, port, func(r *Record) { r.NumFailures = 0 })
	return err
}

// update applies fn to the record of ip:port and returns a copy of the result.
func (d *InmemDirectory) update(ip string, port int, fn func(*Record)) (*Record, error) {
	d.Lock()
	defer d.Unlock()

	key := NewRecord(ip, port).Address()

	r, ok := d.byAddr[key]
	if !ok {
		return nil, cm.NewStoreErr("PeerRecord", cm.KeyNotFound, key)
	}

	fn(r)
	d.internalSort()

	return r.copy(), nil
}

// Records implements the Directory interface.
func (d *InmemDirectory) Records() []*Record {
	d.RLock()
	defer d.RUnlock()

	res := make([]*Record, len(d.sorted))
	for i, r := range d.sorted {
		res[i] = r.copy()
	}

	return res
}

// Len implements the Directory interface.
func (d *InmemDirectory) Len() int {
	d.RLock()
	defer d.RUnlock()

	return len(d.byAddr)
}
