package net

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	bufSize = 64 * 1024

	// drainTimeout bounds how long Close waits for send queues to flush when
	// the transport has no timeout of its own.
	drainTimeout = time.Second

	// DefaultSendQueueSize is the number of messages a connection buffers
	// before Send starts failing with ErrSendQueueFull.
	DefaultSendQueueSize = 1024
)

/*
NetworkTransport provides a network based transport that can be used to
communicate with table network nodes on remote machines. It requires an
underlying stream layer to provide a stream abstraction, which can be simple
TCP, WebSocket, etc.

Connections are persistent and full duplex. Each connection has a reader
goroutine, which decodes frames and hands them to the consumer channel, and a
writer goroutine, which drains the send queue of the connection. Frames are
encoded by the codec in this package.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	conns     map[string]*netConn
	connsLock sync.Mutex

	consumeCh chan Event

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer

	timeout       time.Duration
	sendQueueSize int
}

type netConn struct {
	id    string
	trans *NetworkTransport
	conn  net.Conn
	r     *bufio.Reader
	w     *bufio.Writer

	sendCh    chan Message
	writeDone chan struct{}

	l       sync.Mutex
	closing bool
}

// NewNetworkTransport creates a new network transport with the given stream
// layer. The timeout bounds dialing and every write to a connection; zero
// disables it. sendQueueSize is the capacity of the per-connection send queue;
// zero selects DefaultSendQueueSize.
func NewNetworkTransport(
	stream StreamLayer,
	timeout time.Duration,
	sendQueueSize int,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if sendQueueSize <= 0 {
		sendQueueSize = DefaultSendQueueSize
	}

	trans := &NetworkTransport{
		conns:         make(map[string]*netConn),
		consumeCh:     make(chan Event),
		logger:        logger,
		shutdownCh:    make(chan struct{}),
		stream:        stream,
		timeout:       timeout,
		sendQueueSize: sendQueueSize,
	}

	return trans
}

// Close is used to stop the network transport. Messages already queued on
// open connections are flushed, within the transport timeout, before the
// connections are torn down.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()

		n.connsLock.Lock()
		conns := n.conns
		n.conns = make(map[string]*netConn)
		n.connsLock.Unlock()

		timeout := n.timeout
		if timeout <= 0 {
			timeout = drainTimeout
		}
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()

		for _, c := range conns {
			c.Close()
		}
		for _, c := range conns {
			select {
			case <-c.writeDone:
			case <-deadline.C:
			}
			c.conn.Close()
		}

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan Event {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// Connect implements the Transport interface. Dialing happens in the
// background.
func (n *NetworkTransport) Connect(target string) ConnFuture {
	future := newConnFuture()

	if n.IsShutdown() {
		future.respond(nil, ErrTransportShutdown)
		return future
	}

	go func() {
		conn, err := n.stream.Dial(target, n.timeout)
		if err != nil {
			future.respond(nil, NewTableNetworkError(TransportError, err))
			return
		}

		nc, err := n.register(conn)
		if err != nil {
			conn.Close()
			future.respond(nil, err)
			return
		}

		n.logger.WithFields(logrus.Fields{
			"conn":   nc.id,
			"target": target,
		}).Debug("opened connection")

		future.respond(nc, nil)
	}()

	return future
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		// Accept incoming connections
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}

		nc, err := n.register(conn)
		if err != nil {
			conn.Close()
			return
		}

		n.logger.WithFields(logrus.Fields{
			"conn": nc.id,
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		n.dispatch(Event{Type: ConnAccepted, Conn: nc})
	}
}

// register wraps conn and starts its reader and writer.
func (n *NetworkTransport) register(conn net.Conn) (*netConn, error) {
	nc := &netConn{
		id:        uuid.New().String(),
		trans:     n,
		conn:      conn,
		r:         bufio.NewReaderSize(conn, bufSize),
		w:         bufio.NewWriterSize(conn, bufSize),
		sendCh:    make(chan Message, n.sendQueueSize),
		writeDone: make(chan struct{}),
	}

	n.connsLock.Lock()
	if n.IsShutdown() {
		n.connsLock.Unlock()
		return nil, ErrTransportShutdown
	}
	n.conns[nc.id] = nc
	n.connsLock.Unlock()

	go nc.readLoop()
	go nc.writeLoop()

	return nc, nil
}

func (n *NetworkTransport) unregister(nc *netConn) {
	n.connsLock.Lock()
	delete(n.conns, nc.id)
	n.connsLock.Unlock()
}

// dispatch hands an event to the consumer unless the transport is shut down.
func (n *NetworkTransport) dispatch(ev Event) bool {
	select {
	case n.consumeCh <- ev:
		return true
	case <-n.shutdownCh:
		return false
	}
}

// ID implements the Conn interface.
func (c *netConn) ID() string {
	return c.id
}

// RemoteAddr implements the Conn interface.
func (c *netConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Send implements the Conn interface.
func (c *netConn) Send(msg Message) error {
	c.l.Lock()
	defer c.l.Unlock()

	if c.closing {
		return ErrConnClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close implements the Conn interface. The writer flushes what is already
// queued before closing the socket.
func (c *netConn) Close() error {
	c.l.Lock()
	defer c.l.Unlock()

	if c.closing {
		return nil
	}
	c.closing = true
	close(c.sendCh)

	return nil
}

func (c *netConn) isClosing() bool {
	c.l.Lock()
	defer c.l.Unlock()
	return c.closing
}

// readLoop decodes frames until the connection fails, then raises a single
// ConnClosed event and closes the send queue.
func (c *netConn) readLoop() {
	defer c.trans.unregister(c)
	// Stops the writer of a connection its owner never closes.
	defer c.Close()

	for {
		msg, err := Decode(c.r)
		if err != nil {
			var closeErr error
			if err != io.EOF && !c.isClosing() && !c.trans.IsShutdown() {
				c.trans.logger.WithFields(logrus.Fields{
					"conn":  c.id,
					"error": err,
				}).Debug("connection failed")
				closeErr = NewTableNetworkError(TransportError, err)
			}
			c.conn.Close()
			c.trans.dispatch(Event{Type: ConnClosed, Conn: c, Err: closeErr})
			return
		}

		if !c.trans.dispatch(Event{Type: MessageReceived, Conn: c, Message: msg}) {
			c.conn.Close()
			return
		}
	}
}

// writeLoop drains the send queue. It flushes whenever the queue is empty so
// that bursts of messages share a single write.
func (c *netConn) writeLoop() {
	defer close(c.writeDone)

	for msg := range c.sendCh {
		if c.trans.timeout > 0 {
			c.conn.SetWriteDeadline(time.Now().Add(c.trans.timeout))
		}

		if err := Encode(c.w, msg); err != nil {
			c.writeFailed(err)
			return
		}

		if len(c.sendCh) == 0 {
			if err := c.w.Flush(); err != nil {
				c.writeFailed(err)
				return
			}
		}
	}

	// The queue was closed by Close
	c.w.Flush()
	c.conn.Close()
}

// writeFailed closes the socket, which in turn makes the reader raise the
// ConnClosed event.
func (c *netConn) writeFailed(err error) {
	c.trans.logger.WithFields(logrus.Fields{
		"conn":  c.id,
		"error": err,
	}).Debug("failed to write message")
	c.conn.Close()
}
