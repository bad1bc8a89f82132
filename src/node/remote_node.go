package node

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamegineer/tablenet/src/net"
)

var errPeerClosed = errors.New("connection closed by peer")

// messageHandlerFunc handles one inbound message. A non-nil error closes the
// connection with the error's code.
type messageHandlerFunc func(msg net.Message) error

type pendingRequest struct {
	kind    net.MessageKind
	handler messageHandlerFunc
	timer   *time.Timer
}

// remoteNode is the local end of a connection to another node. It owns the
// correlation of requests and replies on that connection. It is only ever
// touched on the node layer.
type remoteNode struct {
	conn   net.Conn
	layer  *NodeLayer
	logger *logrus.Entry
	stats  *nodeStats

	state  State
	nextID net.MessageID

	// pending maps the id of each outstanding request to its reply handler.
	pending  map[net.MessageID]*pendingRequest
	handlers map[net.MessageKind]messageHandlerFunc

	requestTimeout time.Duration

	playerName string

	onClosed func(err error)
}

func newRemoteNode(conn net.Conn,
	layer *NodeLayer,
	requestTimeout time.Duration,
	stats *nodeStats,
	logger *logrus.Entry,
) *remoteNode {
	return &remoteNode{
		conn:  conn,
		layer: layer,
		logger: logger.WithFields(logrus.Fields{
			"conn":   conn.ID(),
			"remote": conn.RemoteAddr(),
		}),
		stats:          stats,
		state:          Open,
		pending:        make(map[net.MessageID]*pendingRequest),
		handlers:       make(map[net.MessageKind]messageHandlerFunc),
		requestTimeout: requestTimeout,
	}
}

func (r *remoteNode) setHandler(kind net.MessageKind, handler messageHandlerFunc) {
	r.handlers[kind] = handler
}

func (r *remoteNode) isClosed() bool {
	return r.state == Closing || r.state == Closed
}

// sendMessage assigns the next message id to msg and queues it. When handler
// is not nil it is registered, before the message leaves, as the one-shot
// handler of the reply.
func (r *remoteNode) sendMessage(msg net.Message, handler messageHandlerFunc) error {
	if r.isClosed() {
		return net.NewTableNetworkError(net.NotConnected, nil)
	}

	r.nextID++
	id := r.nextID
	msg.Header().ID = id

	if handler != nil {
		p := &pendingRequest{
			kind:    msg.Kind(),
			handler: handler,
		}
		if r.requestTimeout > 0 {
			p.timer = time.AfterFunc(r.requestTimeout, func() {
				r.layer.Async(func() { r.requestTimedOut(id) })
			})
		}
		r.pending[id] = p
	}

	if err := r.conn.Send(msg); err != nil {
		if handler != nil {
			r.dropPending(id)
		}
		return net.NewTableNetworkError(net.TransportError, err)
	}

	r.stats.messagesSent++
	return nil
}

// sendReply sends msg as the reply to request.
func (r *remoteNode) sendReply(request net.Message, msg net.Message, handler messageHandlerFunc) error {
	msg.Header().CorrelationID = request.Header().ID
	return r.sendMessage(msg, handler)
}

// sendError replies to request with an Error message carrying code.
func (r *remoteNode) sendError(request net.Message, code net.ErrorCode) error {
	return r.sendReply(request, &net.ErrorMessage{Code: code}, nil)
}

// messageReceived dispatches msg. A reply goes to the handler registered for
// its request, which is removed first; any other message goes to the handler
// of its kind.
func (r *remoteNode) messageReceived(msg net.Message) {
	if r.isClosed() {
		return
	}

	r.stats.messagesReceived++

	header := msg.Header()

	var handler messageHandlerFunc
	if header.IsCorrelated() {
		p, ok := r.pending[header.CorrelationID]
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"kind":        msg.Kind(),
				"correlation": header.CorrelationID,
			}).Warn("reply to unknown request")
			r.close(net.NewTableNetworkError(net.UnspecifiedError,
				fmt.Errorf("unknown correlation id %d", header.CorrelationID)), true)
			return
		}
		r.dropPending(header.CorrelationID)
		handler = p.handler
	} else {
		h, ok := r.handlers[msg.Kind()]
		if !ok {
			r.logger.WithField("kind", msg.Kind()).Warn("no handler for message")
			r.close(net.NewTableNetworkError(net.UnspecifiedError,
				fmt.Errorf("unhandled %s message", msg.Kind())), true)
			return
		}
		handler = h
	}

	if err := handler(msg); err != nil {
		r.close(err, true)
	}
}

// connClosed is called when the transport reports the connection gone.
func (r *remoteNode) connClosed(err error) {
	if r.isClosed() {
		return
	}
	if err == nil {
		err = net.NewTableNetworkError(net.TransportError, errPeerClosed)
	}
	r.close(err, false)
}

// close tears the connection down, telling the peer why when notifyPeer is
// set. The onClosed hook runs exactly once. A nil err is an orderly close.
func (r *remoteNode) close(err error, notifyPeer bool) {
	if r.isClosed() {
		return
	}
	r.state = Closing

	fields := logrus.Fields{
		"player": r.playerName,
		"code":   net.ErrorCodeOf(err),
	}
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Info("closing connection")
	} else {
		r.logger.WithFields(fields).Debug("closing connection")
	}

	if notifyPeer {
		r.nextID++
		bye := &net.GoodbyeMessage{Reason: net.ErrorCodeOf(err)}
		bye.ID = r.nextID
		if serr := r.conn.Send(bye); serr != nil {
			r.logger.WithError(serr).Debug("failed to send goodbye")
		}
	}
	r.conn.Close()

	for id := range r.pending {
		r.dropPending(id)
	}

	r.state = Closed

	if r.onClosed != nil {
		onClosed := r.onClosed
		r.onClosed = nil
		onClosed(err)
	}
}

func (r *remoteNode) dropPending(id net.MessageID) {
	if p, ok := r.pending[id]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(r.pending, id)
	}
}

func (r *remoteNode) requestTimedOut(id net.MessageID) {
	p, ok := r.pending[id]
	if !ok {
		return
	}
	r.dropPending(id)

	r.logger.WithFields(logrus.Fields{
		"kind":    p.kind,
		"id":      id,
		"timeout": r.requestTimeout,
	}).Warn("request timed out")

	r.close(net.NewTableNetworkError(net.RequestTimedOut,
		fmt.Errorf("no reply to %s %d", p.kind, id)), true)
}

// goodbyeReceived is the Goodbye handler shared by both sides.
func (r *remoteNode) goodbyeReceived(msg net.Message) error {
	bye := msg.(*net.GoodbyeMessage)

	var err error
	if bye.Reason != net.NoError {
		err = net.NewTableNetworkError(bye.Reason, nil)
	}
	r.close(err, false)
	return nil
}

// requireState fails with UnexpectedMessage when msg arrives in another state.
func (r *remoteNode) requireState(msg net.Message, s State) error {
	if r.state != s {
		return net.NewTableNetworkError(net.UnexpectedMessage,
			fmt.Errorf("%s message in state %s", msg.Kind(), r.state))
	}
	return nil
}
