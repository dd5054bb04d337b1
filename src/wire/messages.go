package wire

// Message is a decoded wire message. Body holds a pointer to the body type
// matching Type (see NewBody), or a RawBody when Type is not Known.
type Message struct {
	Type MessageType
	Body interface{}
}

// RawBody is the undecoded body of a message of unknown type.
type RawBody []byte

// ErrorBody is the body of ErrorMsg.
type ErrorBody struct {
	Code ErrorCode
	Msg  string
}

// HelloBody is the body of Hello. QuorumSetHash is optional; the zero Hash
// means the sender does not announce one.
type HelloBody struct {
	ProtocolVersion int
	VersionStr      string
	ListeningPort   int
	NodeID          string
	QuorumSetHash   Hash
}

// DontHaveBody is the body of DontHave. Type is the request that could not
// be served; ReqHash or ReqLedger identify the requested item.
type DontHaveBody struct {
	Type      MessageType
	ReqHash   Hash
	ReqLedger uint64
}

// GetPeersBody is the (empty) body of GetPeers.
type GetPeersBody struct{}

// PeerAddress is a reachable peer as exchanged in a Peers message.
type PeerAddress struct {
	IP          string
	Port        int
	NumFailures int
}

// PeersBody is the body of Peers.
type PeersBody struct {
	Peers []PeerAddress
}

// GetHistoryBody is the body of GetHistory.
type GetHistoryBody struct {
	FromLedger uint64
}

// HistoryBody is the body of History.
type HistoryBody struct {
	FromLedger uint64
	Entries    [][]byte
}

// GetDeltaBody is the body of GetDelta.
type GetDeltaBody struct {
	FromLedger uint64
}

// DeltaBody is the body of Delta.
type DeltaBody struct {
	FromLedger uint64
	ToLedger   uint64
	Entries    [][]byte
}

// GetTxSetBody is the body of GetTxSet.
type GetTxSetBody struct {
	SetHash Hash
}

// TransactionSet is the body of TxSet.
type TransactionSet struct {
	PreviousLedgerHash Hash
	Txs                [][]byte
}

// Hash is the content identifier of the transaction set.
func (s *TransactionSet) Hash() (Hash, error) {
	return contentHash(s)
}

// GetValidationsBody is the body of GetValidations.
type GetValidationsBody struct {
	LedgerHash Hash
}

// ValidationsBody is the body of Validations.
type ValidationsBody struct {
	LedgerHash  Hash
	Validations [][]byte
}

// TransactionBody is the body of Transaction.
type TransactionBody struct {
	Envelope []byte
}

// GetQuorumSetBody is the body of GetFBAQuorumSet.
type GetQuorumSetBody struct {
	SetHash Hash
}

// QuorumSet is the body of FBAQuorumSet: a threshold over validators and
// nested quorum sets. Quorum sets are immutable once built and are shared by
// pointer between connections and the consensus component.
type QuorumSet struct {
	Threshold  uint32
	Validators []string
	InnerSets  []QuorumSet
}

// Hash is the content identifier of the quorum set.
func (q *QuorumSet) Hash() (Hash, error) {
	return contentHash(q)
}

// FBAEnvelope is the body of FBAMessage. Statement and Signature are opaque
// to the overlay.
type FBAEnvelope struct {
	NodeID        string
	SlotIndex     uint64
	QuorumSetHash Hash
	Statement     []byte
	Signature     []byte
}

// NewBody returns a pointer to a zero body of the type carried by t, or nil
// if t is not Known.
func NewBody(t MessageType) interface{} {
	switch t {
	case ErrorMsg:
		return &ErrorBody{}
	case Hello:
		return &HelloBody{}
	case DontHave:
		return &DontHaveBody{}
	case GetPeers:
		return &GetPeersBody{}
	case Peers:
		return &PeersBody{}
	case GetHistory:
		return &GetHistoryBody{}
	case History:
		return &HistoryBody{}
	case GetDelta:
		return &GetDeltaBody{}
	case Delta:
		return &DeltaBody{}
	case GetTxSet:
		return &GetTxSetBody{}
	case TxSet:
		return &TransactionSet{}
	case GetValidations:
		return &GetValidationsBody{}
	case Validations:
		return &ValidationsBody{}
	case Transaction:
		return &TransactionBody{}
	case GetFBAQuorumSet:
		return &GetQuorumSetBody{}
	case FBAQuorumSet:
		return &QuorumSet{}
	case FBAMessage:
		return &FBAEnvelope{}
	default:
		return nil
	}
}
