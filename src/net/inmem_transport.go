package net

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NewInmemAddr returns a new in-memory addr with
// a randomly generate UUID as the ID.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemTransport Implements the Transport interface, to allow table nodes to
// be tested in-memory without going over a network. Messages are still
// passed through the codec so that what a node receives is a copy of what
// its peer sent.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan Event
	localAddr  string
	peers      map[string]*InmemTransport
	shutdownCh chan struct{}
	shutdown   bool
}

// NewInmemTransport is used to initialize a new transport
// and generates a random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan Event, 64),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		shutdownCh: make(chan struct{}),
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan Event {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}

// Connect implements the Transport interface. The remote transport is told
// about the new connection before the future completes.
func (i *InmemTransport) Connect(target string) ConnFuture {
	i.RLock()
	peer, ok := i.peers[target]
	shutdown := i.shutdown
	i.RUnlock()

	if shutdown {
		return NewSynchronousConnFuture(nil, ErrTransportShutdown)
	}
	if !ok {
		return NewSynchronousConnFuture(nil,
			NewTableNetworkError(TransportError, fmt.Errorf("failed to connect to peer: %v", target)))
	}

	p := &inmemPipe{}
	local := &inmemConn{id: NewInmemAddr(), pipe: p, trans: i, remoteAddr: target}
	remote := &inmemConn{id: NewInmemAddr(), pipe: p, trans: peer, remoteAddr: i.localAddr}
	local.peer = remote
	remote.peer = local

	if !peer.deliver(Event{Type: ConnAccepted, Conn: remote}) {
		return NewSynchronousConnFuture(nil,
			NewTableNetworkError(TransportError, fmt.Errorf("peer %v is shut down", target)))
	}

	return NewSynchronousConnFuture(local, nil)
}

// AddRoute is used to make a transport reachable under the given address.
// This allows for local routing.
func (i *InmemTransport) AddRoute(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// RemoveRoute is used to remove the ability to route to a given peer.
func (i *InmemTransport) RemoveRoute(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// RemoveAllRoutes is used to remove all routes to peers.
func (i *InmemTransport) RemoveAllRoutes() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.Lock()
	defer i.Unlock()

	if !i.shutdown {
		i.shutdown = true
		close(i.shutdownCh)
		i.peers = make(map[string]*InmemTransport)
	}
	return nil
}

// deliver queues an event for the consumer of the transport. It blocks while
// the consumer channel is full.
func (i *InmemTransport) deliver(ev Event) bool {
	select {
	case i.consumerCh <- ev:
		return true
	case <-i.shutdownCh:
		return false
	}
}

// inmemPipe is the state shared by the two ends of an in-memory connection.
type inmemPipe struct {
	l      sync.Mutex
	closed bool
}

type inmemConn struct {
	id         string
	remoteAddr string
	pipe       *inmemPipe
	trans      *InmemTransport
	peer       *inmemConn

	// sendLock keeps the messages of this end in order.
	sendLock sync.Mutex
}

// ID implements the Conn interface.
func (c *inmemConn) ID() string {
	return c.id
}

// RemoteAddr implements the Conn interface.
func (c *inmemConn) RemoteAddr() string {
	return c.remoteAddr
}

// Send implements the Conn interface.
func (c *inmemConn) Send(msg Message) error {
	frame, err := Marshal(msg)
	if err != nil {
		return err
	}
	cp, err := Unmarshal(frame)
	if err != nil {
		return err
	}

	c.sendLock.Lock()
	defer c.sendLock.Unlock()

	c.pipe.l.Lock()
	closed := c.pipe.closed
	c.pipe.l.Unlock()
	if closed {
		return ErrConnClosed
	}

	c.peer.trans.deliver(Event{Type: MessageReceived, Conn: c.peer, Message: cp})
	return nil
}

// Close implements the Conn interface. Both ends observe a ConnClosed event.
func (c *inmemConn) Close() error {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()

	c.pipe.l.Lock()
	if c.pipe.closed {
		c.pipe.l.Unlock()
		return nil
	}
	c.pipe.closed = true
	c.pipe.l.Unlock()

	c.peer.trans.deliver(Event{Type: ConnClosed, Conn: c.peer})
	c.trans.deliver(Event{Type: ConnClosed, Conn: c})
	return nil
}
