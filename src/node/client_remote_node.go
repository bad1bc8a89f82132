package node

import (
	"fmt"

	"github.com/gamegineer/tablenet/src/crypto"
	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/table"
)

// clientNodeController is what a client remote node needs from the local
// client node.
type clientNodeController interface {
	credentials() (string, *crypto.SecureString)
	tableManager() table.Manager
	remoteNodeReady(r *clientRemoteNode)
	playersReceived(players []net.Player)
	incrementApplied()
	tableApplied()
}

// clientRemoteNode is the client's view of its connection to the server.
type clientRemoteNode struct {
	*remoteNode
	controller clientNodeController
}

func newClientRemoteNode(base *remoteNode, controller clientNodeController) *clientRemoteNode {
	r := &clientRemoteNode{
		remoteNode: base,
		controller: controller,
	}

	r.setHandler(net.KindBeginAuthenticationRequest, r.beginAuthenticationRequestReceived)
	r.setHandler(net.KindPlayers, r.playersReceived)
	r.setHandler(net.KindTable, r.tableReceived)
	r.setHandler(net.KindComponentIncrement, r.componentIncrementReceived)
	r.setHandler(net.KindGoodbye, r.goodbyeReceived)
	r.setHandler(net.KindError, r.errorReceived)

	return r
}

// open starts the handshake.
func (r *clientRemoteNode) open() error {
	hello := &net.HelloRequestMessage{
		SupportedVersion: net.SupportedProtocolVersion,
	}
	return r.sendMessage(hello, r.helloReplied)
}

func (r *clientRemoteNode) helloReplied(msg net.Message) error {
	switch m := msg.(type) {
	case *net.HelloResponseMessage:
		if err := r.requireState(msg, Open); err != nil {
			return err
		}
		if m.ChosenVersion != net.ProtocolVersion1 {
			return net.NewTableNetworkError(net.IncompatibleVersion,
				fmt.Errorf("server chose protocol version %d", m.ChosenVersion))
		}
		r.state = Authenticating
		return nil
	case *net.ErrorMessage:
		return net.NewTableNetworkError(m.Code, nil)
	default:
		return unexpectedReply(msg)
	}
}

func (r *clientRemoteNode) beginAuthenticationRequestReceived(msg net.Message) error {
	if err := r.requireState(msg, Authenticating); err != nil {
		return err
	}
	req := msg.(*net.BeginAuthenticationRequestMessage)

	name, password := r.controller.credentials()
	pw := password.Copy()
	defer pw.Dispose()

	response, err := crypto.CreateResponse(req.Challenge, pw, req.Salt)
	if err != nil {
		r.logger.WithError(err).Error("failed to create authentication response")
		return net.NewTableNetworkError(net.UnspecifiedError, err)
	}

	reply := &net.BeginAuthenticationResponseMessage{
		PlayerName: name,
		Response:   response,
	}
	return r.sendReply(msg, reply, r.endAuthenticationReceived)
}

func (r *clientRemoteNode) endAuthenticationReceived(msg net.Message) error {
	switch m := msg.(type) {
	case *net.EndAuthenticationMessage:
		if err := r.requireState(msg, Authenticating); err != nil {
			return err
		}
		r.state = Ready
		r.logger.Debug("authenticated")
		r.controller.remoteNodeReady(r)
		return nil
	case *net.ErrorMessage:
		return net.NewTableNetworkError(m.Code, nil)
	default:
		return unexpectedReply(msg)
	}
}

func (r *clientRemoteNode) playersReceived(msg net.Message) error {
	if err := r.requireState(msg, Ready); err != nil {
		return err
	}
	r.controller.playersReceived(msg.(*net.PlayersMessage).Players)
	return nil
}

func (r *clientRemoteNode) tableReceived(msg net.Message) error {
	if err := r.requireState(msg, Ready); err != nil {
		return err
	}
	m := msg.(*net.TableMessage)
	if err := r.controller.tableManager().SetTableState(m.Memento); err != nil {
		r.logger.WithError(err).Error("failed to apply table state")
		return net.NewTableNetworkError(net.UnspecifiedError, err)
	}
	r.controller.tableApplied()
	return nil
}

func (r *clientRemoteNode) componentIncrementReceived(msg net.Message) error {
	if err := r.requireState(msg, Ready); err != nil {
		return err
	}
	m := msg.(*net.ComponentIncrementMessage)

	path, err := table.ComponentPathFromIndices(m.Path)
	if err != nil {
		return net.NewTableNetworkError(net.UnspecifiedError, err)
	}
	if err := r.controller.tableManager().IncrementComponentState(path, m.Increment); err != nil {
		r.logger.WithError(err).WithField("path", path).Error("failed to apply increment")
		return net.NewTableNetworkError(net.UnspecifiedError, err)
	}
	r.controller.incrementApplied()
	return nil
}

// errorReceived handles an Error that does not answer a request.
func (r *clientRemoteNode) errorReceived(msg net.Message) error {
	return net.NewTableNetworkError(msg.(*net.ErrorMessage).Code, nil)
}

func unexpectedReply(msg net.Message) error {
	return net.NewTableNetworkError(net.UnexpectedMessage,
		fmt.Errorf("unexpected %s reply", msg.Kind()))
}
