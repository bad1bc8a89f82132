package common

import (
	"errors"
	"fmt"
)

// StoreErrType classifies the errors returned by table stores.
type StoreErrType uint32

const (
	// KeyNotFound means nothing is stored under the key.
	KeyNotFound StoreErrType = iota
	// Empty means the store holds nothing yet.
	Empty
	// Closed means the store was closed.
	Closed
)

var storeErrNames = map[StoreErrType]string{
	KeyNotFound: "not found",
	Empty:       "empty",
	Closed:      "closed",
}

// StoreErr is returned by stores when a lookup fails for a reason callers
// may want to act on.
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
	if e.key == "" {
		return fmt.Sprintf("%s store: %s", e.dataType, storeErrNames[e.errType])
	}
	return fmt.Sprintf("%s %s: %s", e.dataType, e.key, storeErrNames[e.errType])
}

// IsStore reports whether err wraps a StoreErr of type t.
func IsStore(err error, t StoreErrType) bool {
	var storeErr StoreErr
	return errors.As(err, &storeErr) && storeErr.errType == t
}
