package node

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/gamegineer/tablenet/src/crypto"
	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/table"
)

// ServerNode hosts a table. It is the authority on the player roster and on
// who controls the table, and it relays the increments of the editor to the
// other players.
type ServerNode struct {
	node

	remotes   map[string]*serverRemoteNode
	roster    *roster
	listening bool
}

// NewServerNode returns a server node for hostName. The password is copied;
// an empty password makes the table open to anyone.
func NewServerNode(conf *Config,
	trans net.Transport,
	manager table.Manager,
	hostName string,
	password *crypto.SecureString,
) *ServerNode {
	n := &ServerNode{
		node:    newNode(conf, trans, manager, hostName, password, "server"),
		remotes: make(map[string]*serverRemoteNode),
		roster:  newRoster(),
	}

	go n.runPump(n.handleEvent)

	return n
}

// Connect opens the table and starts accepting players.
func (n *ServerNode) Connect(ctx context.Context) error {
	return n.layer.Sync(func() error {
		if n.getState() != Disconnected {
			return net.NewTableNetworkError(net.AlreadyConnected, nil)
		}

		n.roster = newRoster(net.Player{
			Name:  n.playerName,
			Roles: net.RoleHost | net.RoleEditor,
		})
		n.setState(Connected)

		if !n.listening {
			n.listening = true
			go n.trans.Listen()
		}

		n.logger.WithField("addr", n.trans.AdvertiseAddr()).Info("table open")
		n.firePlayersUpdated(n.roster.snapshot(n.playerName))
		return nil
	})
}

// Disconnect closes the table. Every player is told the table closed.
func (n *ServerNode) Disconnect() error {
	return n.layer.Sync(func() error {
		if n.getState() != Connected {
			return errNotConnected()
		}
		n.closeTable()
		return nil
	})
}

// Shutdown closes the table if it is open and releases the node's resources.
func (n *ServerNode) Shutdown() {
	n.layer.Sync(func() error {
		if n.getState() == Connected {
			n.closeTable()
		}
		return nil
	})
	n.shutdown()
}

func (n *ServerNode) closeTable() {
	for _, r := range n.remotes {
		r.onClosed = nil
		r.close(net.NewTableNetworkError(net.ServerTableClosed, nil), true)
	}
	n.remotes = make(map[string]*serverRemoteNode)
	n.roster = newRoster()
	n.setState(Disconnected)

	n.logger.Info("table closed")
	n.fireDisconnected(nil)
}

// Players returns the roster, the host marked with the Local role.
func (n *ServerNode) Players() []net.Player {
	var players []net.Player
	n.layer.Sync(func() error {
		players = n.roster.snapshot(n.playerName)
		return nil
	})
	return players
}

// RequestControl asks for control of the table on behalf of the host.
func (n *ServerNode) RequestControl() error {
	return n.layer.Sync(func() error {
		if n.getState() != Connected {
			return errNotConnected()
		}
		n.requestControl(n.playerName)
		return nil
	})
}

// CancelControlRequest withdraws the host's request for control.
func (n *ServerNode) CancelControlRequest() error {
	return n.layer.Sync(func() error {
		if n.getState() != Connected {
			return errNotConnected()
		}
		n.cancelControlRequest(n.playerName)
		return nil
	})
}

// GiveControl hands control from the host to playerName.
func (n *ServerNode) GiveControl(playerName string) error {
	return n.layer.Sync(func() error {
		if n.getState() != Connected {
			return errNotConnected()
		}
		return n.giveControl(n.playerName, playerName)
	})
}

// BroadcastComponentIncrement sends a change the host made to its own table
// to every player. Only the editor may change the table.
func (n *ServerNode) BroadcastComponentIncrement(path *table.ComponentPath, increment []byte) error {
	return n.layer.Sync(func() error {
		if n.getState() != Connected {
			return errNotConnected()
		}
		host := n.roster.get(n.playerName)
		if host == nil || !host.IsEditor() {
			return net.NewTableNetworkError(net.NotEditor, nil)
		}
		n.relayIncrement(nil, path.Indices(), increment)
		n.stats.incrementsSent++
		return nil
	})
}

// GetStats returns stats
func (n *ServerNode) GetStats() map[string]string {
	var s map[string]string
	n.layer.Sync(func() error {
		s = n.baseStats()
		s["num_players"] = strconv.Itoa(n.roster.len())
		s["num_connections"] = strconv.Itoa(len(n.remotes))
		s["addr"] = n.trans.AdvertiseAddr()
		if editor := n.roster.editor(); editor != nil {
			s["editor"] = editor.Name
		}
		return nil
	})
	if s != nil {
		n.logStats(s)
	}
	return s
}

func (n *ServerNode) handleEvent(ev net.Event) {
	switch ev.Type {
	case net.ConnAccepted:
		n.connAccepted(ev.Conn)
	case net.MessageReceived:
		if r, ok := n.remotes[ev.Conn.ID()]; ok {
			r.messageReceived(ev.Message)
		} else {
			n.logger.WithField("conn", ev.Conn.ID()).Debug("message on unknown connection")
		}
	case net.ConnClosed:
		if r, ok := n.remotes[ev.Conn.ID()]; ok {
			r.connClosed(ev.Err)
		}
	}
}

func (n *ServerNode) connAccepted(conn net.Conn) {
	if n.getState() != Connected {
		n.logger.WithField("remote", conn.RemoteAddr()).Debug("table not open, refusing connection")
		conn.Close()
		return
	}

	base := newRemoteNode(conn, n.layer, n.conf.RequestTimeout, &n.stats, n.logger)
	r := newServerRemoteNode(base, n)
	r.onClosed = func(err error) {
		n.remoteNodeClosed(r, err)
	}
	n.remotes[conn.ID()] = r

	n.logger.WithField("remote", conn.RemoteAddr()).Debug("player connecting")
}

func (n *ServerNode) remoteNodeClosed(r *serverRemoteNode, err error) {
	delete(n.remotes, r.conn.ID())

	if r.playerName == "" {
		return
	}
	if _, ok := n.roster.remove(r.playerName); !ok {
		return
	}

	n.logger.WithFields(logrus.Fields{
		"player": r.playerName,
		"code":   net.ErrorCodeOf(err),
	}).Info("player left")

	n.broadcastPlayers()
}

// readyRemotes are the connections of authenticated players.
func (n *ServerNode) readyRemotes() []*serverRemoteNode {
	remotes := make([]*serverRemoteNode, 0, len(n.remotes))
	for _, r := range n.remotes {
		if r.state == Ready {
			remotes = append(remotes, r)
		}
	}
	return remotes
}

func (n *ServerNode) broadcastPlayers() {
	players := n.roster.wire()
	for _, r := range n.readyRemotes() {
		if err := r.sendMessage(&net.PlayersMessage{Players: players}, nil); err != nil {
			r.logger.WithError(err).Warn("failed to send players")
		}
	}
	n.firePlayersUpdated(n.roster.snapshot(n.playerName))
}

// relayIncrement sends an increment to every player but the one it came from.
func (n *ServerNode) relayIncrement(from *serverRemoteNode, path []int, increment []byte) {
	for _, r := range n.readyRemotes() {
		if r == from {
			continue
		}
		msg := &net.ComponentIncrementMessage{
			Path:      path,
			Increment: increment,
		}
		if err := r.sendMessage(msg, nil); err != nil {
			r.logger.WithError(err).Warn("failed to relay increment")
		}
	}
}

func (n *ServerNode) sendTable(r *serverRemoteNode) {
	memento, err := n.manager.TableState()
	if err != nil {
		n.logger.WithError(err).Error("failed to take table state")
		r.close(net.NewTableNetworkError(net.UnspecifiedError, err), true)
		return
	}
	if err := r.sendMessage(&net.TableMessage{Memento: memento}, nil); err != nil {
		r.logger.WithError(err).Warn("failed to send table")
	}
}

/*******************************************************************************
serverNodeController
*******************************************************************************/

func (n *ServerNode) password() *crypto.SecureString {
	return n.node.password
}

func (n *ServerNode) bindPlayer(r *serverRemoteNode, playerName string) error {
	if n.roster.contains(playerName) {
		return net.NewTableNetworkError(net.DuplicatePlayerName, errDuplicatePlayerName)
	}
	n.roster.add(net.Player{Name: playerName})
	return nil
}

func (n *ServerNode) playerReady(r *serverRemoteNode) {
	n.logger.WithField("player", r.playerName).Info("player joined")
	n.sendTable(r)
	n.broadcastPlayers()
}

// requestControl grants control at once when nobody holds it. Otherwise the
// request is recorded; asking again while a request is pending changes
// nothing.
func (n *ServerNode) requestControl(playerName string) {
	p := n.roster.get(playerName)
	if p == nil || p.IsEditor() {
		return
	}

	if n.roster.editor() == nil {
		p.Roles = (p.Roles | net.RoleEditor) &^ net.RoleEditorRequested
	} else if p.HasRole(net.RoleEditorRequested) {
		return
	} else {
		p.Roles |= net.RoleEditorRequested
	}

	n.logger.WithFields(logrus.Fields{
		"player": playerName,
		"roles":  p.Roles,
	}).Debug("control requested")

	n.broadcastPlayers()
}

func (n *ServerNode) cancelControlRequest(playerName string) {
	p := n.roster.get(playerName)
	if p == nil || !p.HasRole(net.RoleEditorRequested) {
		return
	}
	p.Roles &^= net.RoleEditorRequested
	n.broadcastPlayers()
}

func (n *ServerNode) giveControl(fromPlayerName string, toPlayerName string) error {
	from := n.roster.get(fromPlayerName)
	if from == nil || !from.IsEditor() {
		return net.NewTableNetworkError(net.NotEditor, nil)
	}
	to := n.roster.get(toPlayerName)
	if to == nil {
		return fmt.Errorf("no player named %q", toPlayerName)
	}
	if to == from {
		return fmt.Errorf("%q already has control", toPlayerName)
	}

	from.Roles &^= net.RoleEditor
	to.Roles = (to.Roles | net.RoleEditor) &^ net.RoleEditorRequested

	n.logger.WithFields(logrus.Fields{
		"from": fromPlayerName,
		"to":   toPlayerName,
	}).Info("control given")

	n.broadcastPlayers()
	return nil
}

// componentIncrementReceived applies and relays the editor's increments. An
// increment from anyone else means that player's table has diverged, so it
// gets the whole table again.
func (n *ServerNode) componentIncrementReceived(r *serverRemoteNode, msg *net.ComponentIncrementMessage) {
	p := n.roster.get(r.playerName)
	if p == nil || !p.IsEditor() {
		r.logger.Warn("increment from a player without control, resynchronizing")
		n.sendTable(r)
		return
	}

	path, err := table.ComponentPathFromIndices(msg.Path)
	if err == nil {
		err = n.manager.IncrementComponentState(path, msg.Increment)
	}
	if err != nil {
		r.logger.WithError(err).Warn("failed to apply increment, resynchronizing")
		n.sendTable(r)
		return
	}
	n.stats.incrementsApplied++

	n.relayIncrement(r, msg.Path, msg.Increment)
}
