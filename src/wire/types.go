package wire

import "fmt"

// MessageType is the discriminant of a Message.
type MessageType uint8

const (
	// ErrorMsg reports an error to the remote peer
	ErrorMsg MessageType = iota
	// Hello opens the handshake
	Hello
	// DontHave tells the remote that a requested item is not held locally
	DontHave
	// GetPeers asks for known peer addresses
	GetPeers
	// Peers carries known peer addresses
	Peers
	// GetHistory asks for ledger history from a given ledger
	GetHistory
	// History carries ledger history
	History
	// GetDelta asks for a ledger delta from a given ledger
	GetDelta
	// Delta carries a ledger delta
	Delta
	// GetTxSet asks for a transaction set by hash
	GetTxSet
	// TxSet carries a transaction set
	TxSet
	// GetValidations asks for the validations of a ledger
	GetValidations
	// Validations carries validations of a ledger
	Validations
	// Transaction floods a single transaction
	Transaction
	// GetFBAQuorumSet asks for a quorum set by hash
	GetFBAQuorumSet
	// FBAQuorumSet carries a quorum set
	FBAQuorumSet
	// FBAMessage carries a consensus protocol envelope
	FBAMessage

	// numMessageTypes must be last
	numMessageTypes
)

// Known reports whether this version of the protocol knows the message type.
func (t MessageType) Known() bool {
	return t < numMessageTypes
}

// String ...
func (t MessageType) String() string {
	switch t {
	case ErrorMsg:
		return "Error"
	case Hello:
		return "Hello"
	case DontHave:
		return "DontHave"
	case GetPeers:
		return "GetPeers"
	case Peers:
		return "Peers"
	case GetHistory:
		return "GetHistory"
	case History:
		return "History"
	case GetDelta:
		return "GetDelta"
	case Delta:
		return "Delta"
	case GetTxSet:
		return "GetTxSet"
	case TxSet:
		return "TxSet"
	case GetValidations:
		return "GetValidations"
	case Validations:
		return "Validations"
	case Transaction:
		return "Transaction"
	case GetFBAQuorumSet:
		return "GetFBAQuorumSet"
	case FBAQuorumSet:
		return "FBAQuorumSet"
	case FBAMessage:
		return "FBAMessage"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// ErrorCode qualifies an Error message.
type ErrorCode int32

const (
	// ErrMisc is an unspecific error
	ErrMisc ErrorCode = iota
	// ErrData means the sender received malformed data
	ErrData
	// ErrConf means the two peers are misconfigured for each other (protocol
	// version, self connection)
	ErrConf
	// ErrAuth means the sender does not trust the receiver
	ErrAuth
	// ErrLoad means the sender is overloaded
	ErrLoad
)

// String ...
func (c ErrorCode) String() string {
	switch c {
	case ErrMisc:
		return "Misc"
	case ErrData:
		return "Data"
	case ErrConf:
		return "Conf"
	case ErrAuth:
		return "Auth"
	case ErrLoad:
		return "Load"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(c))
	}
}
