package app

import (
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	cm "github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/crypto"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/quorum"
	"github.com/mosaicnetworks/overlay/src/wire"
)

// Event is a message delivered to the InmemApp by a connection.
type Event struct {
	From string
	Type wire.MessageType
	Body interface{}
}

// InmemApp is an Application held in memory. It is safe for concurrent use.
type InmemApp struct {
	sync.RWMutex

	txSets      map[wire.Hash]*wire.TransactionSet
	history     map[uint64][]byte
	deltas      map[uint64]*wire.DeltaBody
	validations map[wire.Hash]*wire.ValidationsBody

	quorumSets *quorum.Cache
	directory  peers.Directory

	txPool   []*wire.TransactionBody
	txHashes map[string]bool

	consensusInbox []*wire.FBAEnvelope
	events         []Event

	logger *logrus.Entry
}

// NewInmemApp creates an empty InmemApp around a quorum-set cache and a peer
// directory.
func NewInmemApp(quorumSets *quorum.Cache, directory peers.Directory, logger *logrus.Entry) *InmemApp {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &InmemApp{
		txSets:      make(map[wire.Hash]*wire.TransactionSet),
		history:     make(map[uint64][]byte),
		deltas:      make(map[uint64]*wire.DeltaBody),
		validations: make(map[wire.Hash]*wire.ValidationsBody),
		quorumSets:  quorumSets,
		directory:   directory,
		txHashes:    make(map[string]bool),
		logger:      logger,
	}
}

/*******************************************************************************
Stores
*******************************************************************************/

// AddTransactionSet stores set and returns its hash.
func (a *InmemApp) AddTransactionSet(set *wire.TransactionSet) (wire.Hash, error) {
	h, err := set.Hash()
	if err != nil {
		return wire.Hash{}, err
	}

	a.Lock()
	defer a.Unlock()

	a.txSets[h] = set

	return h, nil
}

// AddHistory stores the history entry of a ledger.
func (a *InmemApp) AddHistory(ledger uint64, entry []byte) {
	a.Lock()
	defer a.Unlock()
	a.history[ledger] = entry
}

// AddDelta stores a delta, indexed by its first ledger.
func (a *InmemApp) AddDelta(delta *wire.DeltaBody) {
	a.Lock()
	defer a.Unlock()
	a.deltas[delta.FromLedger] = delta
}

// AddValidations stores the validations of a ledger.
func (a *InmemApp) AddValidations(v *wire.ValidationsBody) {
	a.Lock()
	defer a.Unlock()
	a.validations[v.LedgerHash] = v
}

// QuorumSets returns the quorum-set cache.
func (a *InmemApp) QuorumSets() *quorum.Cache {
	return a.quorumSets
}

/*******************************************************************************
Fetch
*******************************************************************************/

// FetchTransactionSet implements the Application interface.
func (a *InmemApp) FetchTransactionSet(id wire.Hash) (*wire.TransactionSet, error) {
	a.RLock()
	defer a.RUnlock()

	set, ok := a.txSets[id]
	if !ok {
		return nil, cm.NewStoreErr("TxSet", cm.KeyNotFound, id.Hex())
	}
	return set, nil
}

// FetchHistorySince implements the Application interface. It returns the
// entries of all stored ledgers from ledger onwards, in ledger order.
func (a *InmemApp) FetchHistorySince(ledger uint64) (*wire.HistoryBody, error) {
	a.RLock()
	defer a.RUnlock()

	ledgers := make([]uint64, 0, len(a.history))
	for l := range a.history {
		if l >= ledger {
			ledgers = append(ledgers, l)
		}
	}
	if len(ledgers) == 0 {
		return nil, cm.NewStoreErr("History", cm.KeyNotFound, strconv.FormatUint(ledger, 10))
	}
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i] < ledgers[j] })

	res := &wire.HistoryBody{FromLedger: ledger}
	for _, l := range ledgers {
		res.Entries = append(res.Entries, a.history[l])
	}
	return res, nil
}

// FetchDelta implements the Application interface.
func (a *InmemApp) FetchDelta(ledger uint64) (*wire.DeltaBody, error) {
	a.RLock()
	defer a.RUnlock()

	delta, ok := a.deltas[ledger]
	if !ok {
		return nil, cm.NewStoreErr("Delta", cm.KeyNotFound, strconv.FormatUint(ledger, 10))
	}
	return delta, nil
}

// FetchValidations implements the Application interface.
func (a *InmemApp) FetchValidations(ledgerHash wire.Hash) (*wire.ValidationsBody, error) {
	a.RLock()
	defer a.RUnlock()

	v, ok := a.validations[ledgerHash]
	if !ok {
		return nil, cm.NewStoreErr("Validations", cm.KeyNotFound, ledgerHash.Hex())
	}
	return v, nil
}

// FetchQuorumSet implements the Application interface.
func (a *InmemApp) FetchQuorumSet(id wire.Hash) (*wire.QuorumSet, error) {
	return a.quorumSets.Get(id)
}

// KnownPeerAddresses implements the Application interface.
func (a *InmemApp) KnownPeerAddresses() []wire.PeerAddress {
	records := a.directory.Records()
	res := make([]wire.PeerAddress, 0, len(records))
	for _, r := range records {
		res = append(res, wire.PeerAddress{
			IP:          r.IP,
			Port:        r.Port,
			NumFailures: r.NumFailures,
		})
	}
	return res
}

// PeerDirectory implements the Application interface.
func (a *InmemApp) PeerDirectory() peers.Directory {
	return a.directory
}

/*******************************************************************************
Sinks
*******************************************************************************/

// RecvTransactionSet implements the Application interface. The set is stored
// so that it can be served to other peers.
func (a *InmemApp) RecvTransactionSet(from string, set *wire.TransactionSet) {
	if _, err := a.AddTransactionSet(set); err != nil {
		a.logger.WithError(err).Error("Storing received TxSet")
	}
	a.record(from, wire.TxSet, set)
}

// RecvHistory implements the Application interface.
func (a *InmemApp) RecvHistory(from string, history *wire.HistoryBody) {
	a.record(from, wire.History, history)
}

// RecvDelta implements the Application interface.
func (a *InmemApp) RecvDelta(from string, delta *wire.DeltaBody) {
	a.record(from, wire.Delta, delta)
}

// RecvValidations implements the Application interface.
func (a *InmemApp) RecvValidations(from string, validations *wire.ValidationsBody) {
	a.record(from, wire.Validations, validations)
}

// RecvQuorumSet implements the Application interface. The quorum set is added
// to the cache.
func (a *InmemApp) RecvQuorumSet(from string, qs *wire.QuorumSet) {
	if _, err := a.quorumSets.Add(qs); err != nil {
		a.logger.WithError(err).Error("Caching received quorum set")
	}
	a.record(from, wire.FBAQuorumSet, qs)
}

// RecvDontHave implements the Application interface.
func (a *InmemApp) RecvDontHave(from string, dontHave *wire.DontHaveBody) {
	a.record(from, wire.DontHave, dontHave)
}

// IngestTransaction implements the Application interface. Transactions already
// in the pool are ignored.
func (a *InmemApp) IngestTransaction(from string, tx *wire.TransactionBody) {
	key := string(crypto.SHA256(tx.Envelope))

	a.Lock()
	if !a.txHashes[key] {
		a.txHashes[key] = true
		a.txPool = append(a.txPool, tx)
	}
	a.events = append(a.events, Event{From: from, Type: wire.Transaction, Body: tx})
	a.Unlock()
}

// ForwardConsensusMessage implements the Application interface.
func (a *InmemApp) ForwardConsensusMessage(from string, env *wire.FBAEnvelope) {
	a.Lock()
	a.consensusInbox = append(a.consensusInbox, env)
	a.events = append(a.events, Event{From: from, Type: wire.FBAMessage, Body: env})
	a.Unlock()
}

func (a *InmemApp) record(from string, t wire.MessageType, body interface{}) {
	a.logger.WithFields(logrus.Fields{
		"from": from,
		"type": t,
	}).Debug("Received")

	a.Lock()
	a.events = append(a.events, Event{From: from, Type: t, Body: body})
	a.Unlock()
}

/*******************************************************************************
Inspection
*******************************************************************************/

// TransactionPool returns the ingested transactions, in order of arrival.
func (a *InmemApp) TransactionPool() []*wire.TransactionBody {
	a.RLock()
	defer a.RUnlock()
	res := make([]*wire.TransactionBody, len(a.txPool))
	copy(res, a.txPool)
	return res
}

// ConsensusInbox returns the forwarded consensus envelopes, in order of
// arrival.
func (a *InmemApp) ConsensusInbox() []*wire.FBAEnvelope {
	a.RLock()
	defer a.RUnlock()
	res := make([]*wire.FBAEnvelope, len(a.consensusInbox))
	copy(res, a.consensusInbox)
	return res
}

// Events returns every delivery of type t, or every delivery if t is not
// Known.
func (a *InmemApp) Events(t wire.MessageType) []Event {
	a.RLock()
	defer a.RUnlock()
	res := []Event{}
	for _, e := range a.events {
		if !t.Known() || e.Type == t {
			res = append(res, e)
		}
	}
	return res
}
