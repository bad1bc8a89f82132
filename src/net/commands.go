package net

// HelloRequestMessage opens the handshake. The client advertises the highest
// protocol version it supports.
type HelloRequestMessage struct {
	MessageHeader
	SupportedVersion int
}

// Kind implements the Message interface.
func (m *HelloRequestMessage) Kind() MessageKind { return KindHelloRequest }

// HelloResponseMessage answers a HelloRequestMessage with the protocol
// version the server chose for the connection.
type HelloResponseMessage struct {
	MessageHeader
	ChosenVersion int
}

// Kind implements the Message interface.
func (m *HelloResponseMessage) Kind() MessageKind { return KindHelloResponse }

// BeginAuthenticationRequestMessage carries the server's challenge and the
// salt the client must use to derive its response key.
type BeginAuthenticationRequestMessage struct {
	MessageHeader
	Challenge []byte
	Salt      []byte
}

// Kind implements the Message interface.
func (m *BeginAuthenticationRequestMessage) Kind() MessageKind {
	return KindBeginAuthenticationRequest
}

// BeginAuthenticationResponseMessage carries the client's player name and
// its response to the challenge.
type BeginAuthenticationResponseMessage struct {
	MessageHeader
	PlayerName string
	Response   []byte
}

// Kind implements the Message interface.
func (m *BeginAuthenticationResponseMessage) Kind() MessageKind {
	return KindBeginAuthenticationResponse
}

// EndAuthenticationMessage tells the client it has been authenticated.
type EndAuthenticationMessage struct {
	MessageHeader
}

// Kind implements the Message interface.
func (m *EndAuthenticationMessage) Kind() MessageKind { return KindEndAuthentication }

// ErrorMessage is a negative reply to a request.
type ErrorMessage struct {
	MessageHeader
	Code ErrorCode
}

// Kind implements the Message interface.
func (m *ErrorMessage) Kind() MessageKind { return KindError }

// GoodbyeMessage announces that the sender is closing the connection. Reason
// is NoError for a normal disconnect.
type GoodbyeMessage struct {
	MessageHeader
	Reason ErrorCode
}

// Kind implements the Message interface.
func (m *GoodbyeMessage) Kind() MessageKind { return KindGoodbye }

// PlayersMessage is a full snapshot of the player roster. The Local role is
// never sent.
type PlayersMessage struct {
	MessageHeader
	Players []Player
}

// Kind implements the Message interface.
func (m *PlayersMessage) Kind() MessageKind { return KindPlayers }

// RequestControlMessage asks the server for control of the table.
type RequestControlMessage struct {
	MessageHeader
}

// Kind implements the Message interface.
func (m *RequestControlMessage) Kind() MessageKind { return KindRequestControl }

// CancelControlRequestMessage withdraws a pending control request.
type CancelControlRequestMessage struct {
	MessageHeader
}

// Kind implements the Message interface.
func (m *CancelControlRequestMessage) Kind() MessageKind { return KindCancelControlRequest }

// GiveControlMessage hands control of the table to another player.
type GiveControlMessage struct {
	MessageHeader
	PlayerName string
}

// Kind implements the Message interface.
func (m *GiveControlMessage) Kind() MessageKind { return KindGiveControl }

// ComponentIncrementMessage carries an incremental change to the state of one
// table component. Path holds the child indices from the table root down to
// the component; Increment is opaque to the network layer.
type ComponentIncrementMessage struct {
	MessageHeader
	Path      []int
	Increment []byte
}

// Kind implements the Message interface.
func (m *ComponentIncrementMessage) Kind() MessageKind { return KindComponentIncrement }

// TableMessage carries a full table memento.
type TableMessage struct {
	MessageHeader
	Memento []byte
}

// Kind implements the Message interface.
func (m *TableMessage) Kind() MessageKind { return KindTable }
