package net

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketPath is the HTTP path on which table connections are upgraded.
const WebSocketPath = "/table"

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  bufSize,
	WriteBufferSize: bufSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketStreamLayer implements the StreamLayer interface over WebSocket
// connections, for players who can only reach the host through HTTP
// proxies. Every frame written by the NetworkTransport travels as one binary
// WebSocket message.
type WebSocketStreamLayer struct {
	advertise string
	listener  net.Listener
	server    *http.Server
	connCh    chan net.Conn
	closeCh   chan struct{}
	closeOnce sync.Once
	logger    *logrus.Entry
}

// NewWebSocketTransport returns a NetworkTransport built on top of a
// WebSocketStreamLayer.
func NewWebSocketTransport(
	bindAddr string,
	advertise string,
	timeout time.Duration,
	sendQueueSize int,
	logger *logrus.Entry,
) (*NetworkTransport, error) {
	stream, err := NewWebSocketStreamLayer(bindAddr, advertise, logger)
	if err != nil {
		return nil, err
	}
	return NewNetworkTransport(stream, timeout, sendQueueSize, logger), nil
}

// NewWebSocketStreamLayer binds bindAddr and starts serving WebSocket
// upgrades on WebSocketPath.
func NewWebSocketStreamLayer(bindAddr string, advertise string, logger *logrus.Entry) (*WebSocketStreamLayer, error) {
	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start WebSocket listener: %w", err)
	}

	if err := checkAdvertisable(list.Addr(), advertise); err != nil {
		list.Close()
		return nil, err
	}

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	ws := &WebSocketStreamLayer{
		advertise: advertise,
		listener:  list,
		connCh:    make(chan net.Conn),
		closeCh:   make(chan struct{}),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, ws.handleUpgrade)
	ws.server = &http.Server{Handler: mux}

	go func() {
		if err := ws.server.Serve(list); err != nil && err != http.ErrServerClosed {
			ws.logger.WithField("error", err).Error("WebSocket server stopped")
		}
	}()

	return ws, nil
}

func (ws *WebSocketStreamLayer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.WithField("error", err).Debug("WebSocket upgrade failed")
		return
	}

	select {
	case ws.connCh <- newWSConn(conn):
	case <-ws.closeCh:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "table closed"))
		conn.Close()
	}
}

// Dial implements the StreamLayer interface.
func (ws *WebSocketStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		ReadBufferSize:   bufSize,
		WriteBufferSize:  bufSize,
	}
	conn, _, err := dialer.Dial(fmt.Sprintf("ws://%s%s", address, WebSocketPath), nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(conn), nil
}

// Accept implements the net.Listener interface.
func (ws *WebSocketStreamLayer) Accept() (net.Conn, error) {
	select {
	case conn := <-ws.connCh:
		return conn, nil
	case <-ws.closeCh:
		return nil, ErrTransportShutdown
	}
}

// Close implements the net.Listener interface.
func (ws *WebSocketStreamLayer) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
		err = ws.server.Close()
	})
	return err
}

// Addr implements the net.Listener interface.
func (ws *WebSocketStreamLayer) Addr() net.Addr {
	return ws.listener.Addr()
}

// AdvertiseAddr implements the StreamLayer interface.
func (ws *WebSocketStreamLayer) AdvertiseAddr() string {
	if ws.advertise != "" {
		return ws.advertise
	}
	return ws.listener.Addr().String()
}

// wsConn adapts a websocket.Conn to the net.Conn interface. Reads span
// message boundaries; each Write sends one binary message.
type wsConn struct {
	conn   *websocket.Conn
	reader io.Reader
	wl     sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(MaxFrameSize + frameHeaderSize)
	return &wsConn{conn: conn}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			msgType, r, err := c.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wl.Lock()
	defer c.wl.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.wl.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wl.Unlock()
	return c.conn.Close()
}

func (c *wsConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
