package net

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the reason a table network operation or connection
// failed. Codes travel on the wire in Error and Goodbye messages.
type ErrorCode uint8

const (
	// NoError means the operation succeeded or the connection closed normally.
	NoError ErrorCode = iota
	// UnspecifiedError covers protocol violations and internal failures.
	UnspecifiedError
	// TransportError means the underlying connection failed.
	TransportError
	// UnexpectedMessage means a message arrived in a state that cannot accept it.
	UnexpectedMessage
	// IncompatibleVersion means the peers share no protocol version.
	IncompatibleVersion
	// AuthenticationFailed means the challenge response did not verify.
	AuthenticationFailed
	// DuplicatePlayerName means another player already uses the name.
	DuplicatePlayerName
	// ServerTableClosed means the server closed the table.
	ServerTableClosed
	// NotConnected means the node has no open table connection.
	NotConnected
	// AlreadyConnected means the node is already connected or connecting.
	AlreadyConnected
	// NotEditor means the local player does not hold control of the table.
	NotEditor
	// RequestTimedOut means a correlated request went unanswered.
	RequestTimedOut
)

// String ...
func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NoError"
	case UnspecifiedError:
		return "UnspecifiedError"
	case TransportError:
		return "TransportError"
	case UnexpectedMessage:
		return "UnexpectedMessage"
	case IncompatibleVersion:
		return "IncompatibleVersion"
	case AuthenticationFailed:
		return "AuthenticationFailed"
	case DuplicatePlayerName:
		return "DuplicatePlayerName"
	case ServerTableClosed:
		return "ServerTableClosed"
	case NotConnected:
		return "NotConnected"
	case AlreadyConnected:
		return "AlreadyConnected"
	case NotEditor:
		return "NotEditor"
	case RequestTimedOut:
		return "RequestTimedOut"
	default:
		return "Unknown"
	}
}

// TableNetworkError is the error type of the table network. It carries an
// ErrorCode and, optionally, the underlying cause.
type TableNetworkError struct {
	Code ErrorCode
	Err  error
}

// NewTableNetworkError ...
func NewTableNetworkError(code ErrorCode, err error) *TableNetworkError {
	return &TableNetworkError{
		Code: code,
		Err:  err,
	}
}

// Error implements the error interface.
func (e *TableNetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

// Unwrap returns the underlying cause.
func (e *TableNetworkError) Unwrap() error {
	return e.Err
}

// ErrorCodeOf extracts the ErrorCode of err. A nil error maps to NoError and
// any error that is not a TableNetworkError maps to UnspecifiedError.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return NoError
	}
	var tne *TableNetworkError
	if errors.As(err, &tne) {
		return tne.Code
	}
	return UnspecifiedError
}

// IsTableNetworkError checks that err is a TableNetworkError with the given
// code.
func IsTableNetworkError(err error, code ErrorCode) bool {
	var tne *TableNetworkError
	return errors.As(err, &tne) && tne.Code == code
}

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrConnClosed is returned when sending on a closed connection.
	ErrConnClosed = errors.New("connection closed")

	// ErrSendQueueFull is returned when a connection cannot keep up with the
	// messages queued on it.
	ErrSendQueueFull = errors.New("send queue full")
)
