package node

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/gamegineer/tablenet/src/crypto"
	"github.com/gamegineer/tablenet/src/net"
)

// serverNodeController is what a server remote node needs from the local
// server node.
type serverNodeController interface {
	password() *crypto.SecureString
	bindPlayer(r *serverRemoteNode, playerName string) error
	playerReady(r *serverRemoteNode)
	requestControl(playerName string)
	cancelControlRequest(playerName string)
	giveControl(fromPlayerName string, toPlayerName string) error
	componentIncrementReceived(r *serverRemoteNode, msg *net.ComponentIncrementMessage)
}

// serverRemoteNode is the server's view of its connection to one client.
type serverRemoteNode struct {
	*remoteNode
	controller serverNodeController

	challenge []byte
	salt      []byte
}

func newServerRemoteNode(base *remoteNode, controller serverNodeController) *serverRemoteNode {
	r := &serverRemoteNode{
		remoteNode: base,
		controller: controller,
	}

	r.setHandler(net.KindHelloRequest, r.helloRequestReceived)
	r.setHandler(net.KindRequestControl, r.requestControlReceived)
	r.setHandler(net.KindCancelControlRequest, r.cancelControlRequestReceived)
	r.setHandler(net.KindGiveControl, r.giveControlReceived)
	r.setHandler(net.KindComponentIncrement, r.componentIncrementReceived)
	r.setHandler(net.KindGoodbye, r.goodbyeReceived)

	return r
}

func (r *serverRemoteNode) helloRequestReceived(msg net.Message) error {
	if err := r.requireState(msg, Open); err != nil {
		return err
	}
	req := msg.(*net.HelloRequestMessage)

	if req.SupportedVersion < net.ProtocolVersion1 {
		r.logger.WithField("version", req.SupportedVersion).Info("incompatible protocol version")
		r.refuse(msg, net.IncompatibleVersion)
		return nil
	}

	chosen := req.SupportedVersion
	if chosen > net.SupportedProtocolVersion {
		chosen = net.SupportedProtocolVersion
	}
	if err := r.sendReply(msg, &net.HelloResponseMessage{ChosenVersion: chosen}, nil); err != nil {
		return err
	}

	challenge, err := crypto.CreateChallenge()
	if err != nil {
		r.logger.WithError(err).Error("failed to create challenge")
		return net.NewTableNetworkError(net.UnspecifiedError, err)
	}
	salt, err := crypto.CreateSalt()
	if err != nil {
		r.logger.WithError(err).Error("failed to create salt")
		return net.NewTableNetworkError(net.UnspecifiedError, err)
	}
	r.challenge = challenge
	r.salt = salt
	r.state = Authenticating

	authReq := &net.BeginAuthenticationRequestMessage{
		Challenge: challenge,
		Salt:      salt,
	}
	return r.sendMessage(authReq, r.beginAuthenticationResponseReceived)
}

func (r *serverRemoteNode) beginAuthenticationResponseReceived(msg net.Message) error {
	resp, ok := msg.(*net.BeginAuthenticationResponseMessage)
	if !ok {
		return unexpectedReply(msg)
	}
	if err := r.requireState(msg, Authenticating); err != nil {
		return err
	}

	pw := r.controller.password().Copy()
	defer pw.Dispose()

	expected, err := crypto.CreateResponse(r.challenge, pw, r.salt)
	if err != nil {
		r.logger.WithError(err).Error("failed to create expected authentication response")
		return net.NewTableNetworkError(net.UnspecifiedError, err)
	}

	if resp.PlayerName == "" || !crypto.VerifyResponse(expected, resp.Response) {
		r.logger.WithField("player", resp.PlayerName).Info("authentication failed")
		r.refuse(msg, net.AuthenticationFailed)
		return nil
	}

	if err := r.controller.bindPlayer(r, resp.PlayerName); err != nil {
		r.logger.WithField("player", resp.PlayerName).WithError(err).Info("player rejected")
		r.refuse(msg, net.ErrorCodeOf(err))
		return nil
	}

	r.playerName = resp.PlayerName
	r.logger = r.logger.WithField("player", r.playerName)
	r.state = Ready
	r.challenge = nil
	r.salt = nil

	if err := r.sendReply(msg, &net.EndAuthenticationMessage{}, nil); err != nil {
		return err
	}

	r.logger.Debug("authenticated")
	r.controller.playerReady(r)
	return nil
}

// refuse answers request with an Error and closes the connection.
func (r *serverRemoteNode) refuse(request net.Message, code net.ErrorCode) {
	if err := r.sendError(request, code); err != nil {
		r.logger.WithError(err).WithField("code", code).Debug("failed to send error")
	}
	r.close(net.NewTableNetworkError(code, nil), false)
}

func (r *serverRemoteNode) requestControlReceived(msg net.Message) error {
	if err := r.requireState(msg, Ready); err != nil {
		return err
	}
	r.controller.requestControl(r.playerName)
	return nil
}

func (r *serverRemoteNode) cancelControlRequestReceived(msg net.Message) error {
	if err := r.requireState(msg, Ready); err != nil {
		return err
	}
	r.controller.cancelControlRequest(r.playerName)
	return nil
}

func (r *serverRemoteNode) giveControlReceived(msg net.Message) error {
	if err := r.requireState(msg, Ready); err != nil {
		return err
	}
	m := msg.(*net.GiveControlMessage)

	// A stale or bogus hand-off is ignored; the client learns the real
	// state from the next roster.
	if err := r.controller.giveControl(r.playerName, m.PlayerName); err != nil {
		r.logger.WithFields(logrus.Fields{
			"to":    m.PlayerName,
			"error": err,
		}).Warn("give control refused")
	}
	return nil
}

func (r *serverRemoteNode) componentIncrementReceived(msg net.Message) error {
	if err := r.requireState(msg, Ready); err != nil {
		return err
	}
	r.controller.componentIncrementReceived(r, msg.(*net.ComponentIncrementMessage))
	return nil
}

var errDuplicatePlayerName = errors.New("player name already in use")
