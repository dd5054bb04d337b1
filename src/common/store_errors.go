package common

import "fmt"

// StoreErrType enumerates the failures of the lookup services shared between
// connections (peer directory, quorum-set cache, application stores).
type StoreErrType uint32

const (
	// KeyNotFound means the requested item is not held locally.
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists means an insert collided with an existing item.
	KeyAlreadyExists
	// Empty means the store holds nothing at all.
	Empty
	// Closed means the store was used after being closed.
	Closed
)

// StoreErr is the error returned by stores. It is never fatal to a
// connection; a KeyNotFound is answered with a DontHave message.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case Empty:
		m = "Empty"
	case Closed:
		m = "Closed"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
