package net

// EventType ...
type EventType uint8

const (
	// ConnAccepted is raised when a remote node opened a connection to us.
	ConnAccepted EventType = iota
	// MessageReceived is raised for every message read from a connection.
	MessageReceived
	// ConnClosed is raised once when a connection is gone.
	ConnClosed
)

// String ...
func (t EventType) String() string {
	switch t {
	case ConnAccepted:
		return "ConnAccepted"
	case MessageReceived:
		return "MessageReceived"
	case ConnClosed:
		return "ConnClosed"
	default:
		return "Unknown"
	}
}

// Event is what a Transport hands to its consumer. Message is only set for
// MessageReceived events. Err is set on ConnClosed when the connection failed
// rather than being closed in an orderly fashion.
type Event struct {
	Type    EventType
	Conn    Conn
	Message Message
	Err     error
}
