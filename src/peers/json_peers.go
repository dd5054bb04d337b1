package peers

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeerPath = "peers.json"

// JSONPeers reads and writes the peers.json seed file: a JSON list of
// {"IP": ..., "Port": ...} objects that human operators can edit.
type JSONPeers struct {
	l    sync.Mutex
	path string
}

// NewJSONPeers creates a JSONPeers for the peers.json file in base.
func NewJSONPeers(base string) *JSONPeers {
	return &JSONPeers{
		path: filepath.Join(base, jsonPeerPath),
	}
}

// Records reads the seed records. A missing or empty file yields no records
// and no error.
func (j *JSONPeers) Records() ([]*Record, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	var records []*Record
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}

	for _, r := range records {
		r.computeID()
	}

	return records, nil
}

// SetRecords writes records to the seed file.
func (j *JSONPeers) SetRecords(records []*Record) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "\t")
	if err := enc.Encode(records); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0644)
}
