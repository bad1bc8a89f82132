package net

// Conn is a persistent, bidirectional message connection between two table
// network nodes.
type Conn interface {
	// ID uniquely identifies the connection within its transport.
	ID() string

	// RemoteAddr is the address of the other end, for logging.
	RemoteAddr() string

	// Send queues msg for delivery and returns without waiting for the
	// network. Messages are delivered in the order they are sent.
	Send(msg Message) error

	// Close flushes the queued messages and closes the connection. Sending
	// after Close fails with ErrConnClosed.
	Close() error
}

// Transport provides an interface for network transports to allow a node to
// open connections to, and accept connections from, other nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Connect opens a connection to target. The connection is available from
	// the returned future once it completes without error.
	Connect(target string) ConnFuture

	// Consumer returns a channel that delivers the connection and message
	// events of the transport, in order.
	Consumer() <-chan Event

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
