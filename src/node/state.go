package node

import (
	"sync/atomic"
)

// State captures the lifecycle of a remote node: Opening, Open,
// Authenticating, Ready, Closing, or Closed
type State uint32

const (
	//Opening is the transport connecting
	Opening State = iota
	//Open is the transport established, handshake not started
	Open
	//Authenticating is the challenge-response exchange in progress
	Authenticating
	//Ready is authenticated; table traffic may flow
	Ready
	//Closing is tearing down
	Closing
	//Closed is gone
	Closed
)

// String ...
func (s State) String() string {
	switch s {
	case Opening:
		return "Opening"
	case Open:
		return "Open"
	case Authenticating:
		return "Authenticating"
	case Ready:
		return "Ready"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// NodeState captures the state of a local node: Disconnected, Connecting,
// Connected, or Shutdown
type NodeState uint32

const (
	//Disconnected is the initial state of a local node
	Disconnected NodeState = iota
	//Connecting is joining or opening a table
	Connecting
	//Connected is at the table
	Connected
	//Shutdown is shutdown
	Shutdown
)

// String ...
func (s NodeState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// state is written on the node layer only, but read from any goroutine.
type state struct {
	state NodeState
}

func (b *state) getState() NodeState {
	stateAddr := (*uint32)(&b.state)
	return NodeState(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s NodeState) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
