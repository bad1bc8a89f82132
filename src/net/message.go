package net

import "fmt"

// ProtocolVersion1 is the first version of the table network protocol.
const ProtocolVersion1 = 1

// SupportedProtocolVersion is the highest protocol version this
// implementation speaks.
const SupportedProtocolVersion = ProtocolVersion1

// MessageID identifies a message within the scope of one connection. Ids
// are assigned by the sender.
type MessageID uint32

// NullMessageID is the zero id. A message whose CorrelationID is
// NullMessageID is not a reply.
const NullMessageID MessageID = 0

// MessageKind enumerates the closed set of table network messages.
type MessageKind uint8

const (
	KindHelloRequest MessageKind = iota + 1
	KindHelloResponse
	KindBeginAuthenticationRequest
	KindBeginAuthenticationResponse
	KindEndAuthentication
	KindError
	KindGoodbye
	KindPlayers
	KindRequestControl
	KindCancelControlRequest
	KindGiveControl
	KindComponentIncrement
	KindTable
)

// String ...
func (k MessageKind) String() string {
	switch k {
	case KindHelloRequest:
		return "HelloRequest"
	case KindHelloResponse:
		return "HelloResponse"
	case KindBeginAuthenticationRequest:
		return "BeginAuthenticationRequest"
	case KindBeginAuthenticationResponse:
		return "BeginAuthenticationResponse"
	case KindEndAuthentication:
		return "EndAuthentication"
	case KindError:
		return "Error"
	case KindGoodbye:
		return "Goodbye"
	case KindPlayers:
		return "Players"
	case KindRequestControl:
		return "RequestControl"
	case KindCancelControlRequest:
		return "CancelControlRequest"
	case KindGiveControl:
		return "GiveControl"
	case KindComponentIncrement:
		return "ComponentIncrement"
	case KindTable:
		return "Table"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// MessageHeader carries the fields common to every message. It is embedded
// in each concrete message type.
type MessageHeader struct {
	ID            MessageID
	CorrelationID MessageID
}

// Header gives access to the header of the message that embeds it.
func (h *MessageHeader) Header() *MessageHeader {
	return h
}

// IsCorrelated reports whether the message is a reply to an earlier request.
func (h *MessageHeader) IsCorrelated() bool {
	return h.CorrelationID != NullMessageID
}

// Message is the unit of communication between table network nodes.
type Message interface {
	Kind() MessageKind
	Header() *MessageHeader
}

var messageFactories = map[MessageKind]func() Message{
	KindHelloRequest:                func() Message { return &HelloRequestMessage{} },
	KindHelloResponse:               func() Message { return &HelloResponseMessage{} },
	KindBeginAuthenticationRequest:  func() Message { return &BeginAuthenticationRequestMessage{} },
	KindBeginAuthenticationResponse: func() Message { return &BeginAuthenticationResponseMessage{} },
	KindEndAuthentication:           func() Message { return &EndAuthenticationMessage{} },
	KindError:                       func() Message { return &ErrorMessage{} },
	KindGoodbye:                     func() Message { return &GoodbyeMessage{} },
	KindPlayers:                     func() Message { return &PlayersMessage{} },
	KindRequestControl:              func() Message { return &RequestControlMessage{} },
	KindCancelControlRequest:        func() Message { return &CancelControlRequestMessage{} },
	KindGiveControl:                 func() Message { return &GiveControlMessage{} },
	KindComponentIncrement:          func() Message { return &ComponentIncrementMessage{} },
	KindTable:                       func() Message { return &TableMessage{} },
}

// NewMessage returns an empty message of the given kind, ready to be decoded
// into.
func NewMessage(kind MessageKind) (Message, error) {
	factory, ok := messageFactories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown message kind %d", uint8(kind))
	}
	return factory(), nil
}
