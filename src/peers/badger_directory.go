package peers

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	perrors "github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

const recordPrefix = "peer"

// BadgerDirectory is a Directory persisted in a Badger database. Reads are
// served from an in-memory index loaded when the database is opened; every
// mutation is written through.
type BadgerDirectory struct {
	inmem *InmemDirectory
	db    *badger.DB
	path  string
}

// NewBadgerDirectory opens, or creates, the database at path and loads the
// records it contains.
func NewBadgerDirectory(path string) (*BadgerDirectory, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, perrors.Wrapf(err, "opening peer directory %s", path)
	}

	dir := &BadgerDirectory{
		inmem: NewInmemDirectory(),
		db:    handle,
		path:  path,
	}

	if err := dir.load(); err != nil {
		handle.Close()
		return nil, err
	}

	return dir, nil
}

// Close closes the underlying database.
func (d *BadgerDirectory) Close() error {
	return d.db.Close()
}

// Path returns the database directory.
func (d *BadgerDirectory) Path() string {
	return d.path
}

// Add implements the Directory interface.
func (d *BadgerDirectory) Add(r *Record) (bool, error) {
	c := r.copy()
	c.computeID()

	added, err := d.inmem.Add(c)
	if err != nil || !added {
		return added, err
	}

	return true, d.dbSetRecord(c)
}

// Merge implements the Directory interface.
func (d *BadgerDirectory) Merge(rs []*Record) (int, error) {
	added := 0
	for _, r := range rs {
		if r.Validate() != nil {
			continue
		}
		ok, err := d.Add(&Record{IP: r.IP, Port: r.Port})
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Get implements the Directory interface.
func (d *BadgerDirectory) Get(ip string, port int) (*Record, error) {
	return d.inmem.Get(ip, port)
}

// RecordFailure implements the Directory interface.
func (d *BadgerDirectory) RecordFailure(ip string, port int) error {
	r, err := d.inmem.update(ip, port, func(r *Record) { r.NumFailures++ })
	if err != nil {
		return err
	}
	return d.dbSetRecord(r)
}

// ResetFailures implements the Directory interface.
func (d *BadgerDirectory) ResetFailures(ip string, port int) error {
	r, err := d.inmem.update(ip, port, func(r *Record) { r.NumFailures = 0 })
	if err != nil {
		return err
	}
	return d.dbSetRecord(r)
}

// Records implements the Directory interface.
func (d *BadgerDirectory) Records() []*Record {
	return d.inmem.Records()
}

// Len implements the Directory interface.
func (d *BadgerDirectory) Len() int {
	return d.inmem.Len()
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

func recordKey(r *Record) []byte {
	return []byte(fmt.Sprintf("%s_%s", recordPrefix, r.Address()))
}

func (d *BadgerDirectory) load() error {
	records := []*Record{}

	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(recordPrefix + "_")

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := unmarshalRecord(val)
			if err != nil {
				return perrors.Wrapf(err, "decoding %s", it.Item().Key())
			}
			records = append(records, r)
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range records {
		d.inmem.set(r)
	}

	return nil
}

func (d *BadgerDirectory) dbSetRecord(r *Record) error {
	val, err := marshalRecord(r)
	if err != nil {
		return err
	}

	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r), val)
	})
}

func marshalRecord(r *Record) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshalRecord(data []byte) (*Record, error) {
	r := new(Record)
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(bytes.NewBuffer(data), jh)

	if err := dec.Decode(r); err != nil {
		return nil, err
	}

	r.computeID()

	return r, nil
}
