package node

import (
	"context"
	"strconv"

	"github.com/gamegineer/tablenet/src/crypto"
	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/table"
)

// ClientNode joins a table hosted by a ServerNode. Control requests and
// increments are sent to the server; the roster is whatever the server last
// said it is.
type ClientNode struct {
	node

	remote  *clientRemoteNode
	roster  *roster
	readyCh chan error
}

// NewClientNode returns a client node for playerName. The password is
// copied.
func NewClientNode(conf *Config,
	trans net.Transport,
	manager table.Manager,
	playerName string,
	password *crypto.SecureString,
) *ClientNode {
	n := &ClientNode{
		node:   newNode(conf, trans, manager, playerName, password, "client"),
		roster: newRoster(),
	}

	go n.runPump(n.handleEvent)

	return n
}

// Connect joins the table at target. It returns once the player has been
// authenticated, or with the reason the server turned the player away.
func (n *ClientNode) Connect(ctx context.Context, target string) error {
	err := n.layer.Sync(func() error {
		if n.getState() != Disconnected {
			return net.NewTableNetworkError(net.AlreadyConnected, nil)
		}
		n.setState(Connecting)
		return nil
	})
	if err != nil {
		return err
	}

	// Dial outside the node layer
	future := n.trans.Connect(target)
	select {
	case <-future.Done():
	case <-ctx.Done():
		go func() {
			if future.Error() == nil {
				future.Conn().Close()
			}
		}()
		n.layer.Sync(func() error {
			n.setState(Disconnected)
			return nil
		})
		return ctx.Err()
	}

	if err := future.Error(); err != nil {
		n.layer.Sync(func() error {
			n.setState(Disconnected)
			return nil
		})
		return err
	}
	conn := future.Conn()

	readyCh := make(chan error, 1)
	err = n.layer.Sync(func() error {
		n.logger.WithField("target", target).Debug("connected, starting handshake")

		base := newRemoteNode(conn, n.layer, n.conf.RequestTimeout, &n.stats, n.logger)
		r := newClientRemoteNode(base, n)
		r.onClosed = func(err error) {
			n.remoteNodeClosed(r, err)
		}
		n.remote = r
		n.readyCh = readyCh

		if err := r.open(); err != nil {
			r.close(err, false)
		}
		return nil
	})
	if err != nil {
		conn.Close()
		return err
	}

	select {
	case err := <-readyCh:
		return err
	case <-ctx.Done():
		n.layer.Sync(func() error {
			if n.remote != nil && n.remote.conn == conn {
				n.remote.close(nil, true)
			}
			return nil
		})
		return ctx.Err()
	}
}

// Disconnect leaves the table.
func (n *ClientNode) Disconnect() error {
	return n.layer.Sync(func() error {
		if n.remote == nil {
			return errNotConnected()
		}
		n.remote.close(nil, true)
		return nil
	})
}

// Shutdown leaves the table if needed and releases the node's resources.
func (n *ClientNode) Shutdown() {
	n.layer.Sync(func() error {
		if n.remote != nil {
			n.remote.close(nil, true)
		}
		return nil
	})
	n.shutdown()
}

// Players returns the last roster received from the server, the local player
// marked with the Local role.
func (n *ClientNode) Players() []net.Player {
	var players []net.Player
	n.layer.Sync(func() error {
		players = n.roster.snapshot(n.playerName)
		return nil
	})
	return players
}

// RequestControl asks the server for control of the table. The outcome shows
// in a later roster.
func (n *ClientNode) RequestControl() error {
	return n.send(func() net.Message { return &net.RequestControlMessage{} })
}

// CancelControlRequest withdraws a pending request for control.
func (n *ClientNode) CancelControlRequest() error {
	return n.send(func() net.Message { return &net.CancelControlRequestMessage{} })
}

// GiveControl hands control of the table to playerName.
func (n *ClientNode) GiveControl(playerName string) error {
	return n.send(func() net.Message { return &net.GiveControlMessage{PlayerName: playerName} })
}

// BroadcastComponentIncrement sends a change made to the local table to the
// server. Only the editor may change the table.
func (n *ClientNode) BroadcastComponentIncrement(path *table.ComponentPath, increment []byte) error {
	return n.layer.Sync(func() error {
		if !n.isReady() {
			return errNotConnected()
		}
		p := n.roster.get(n.playerName)
		if p == nil || !p.IsEditor() {
			return net.NewTableNetworkError(net.NotEditor, nil)
		}

		msg := &net.ComponentIncrementMessage{
			Path:      path.Indices(),
			Increment: increment,
		}
		if err := n.remote.sendMessage(msg, nil); err != nil {
			return err
		}
		n.stats.incrementsSent++
		return nil
	})
}

// GetStats returns stats
func (n *ClientNode) GetStats() map[string]string {
	var s map[string]string
	n.layer.Sync(func() error {
		s = n.baseStats()
		s["num_players"] = strconv.Itoa(n.roster.len())
		if n.remote != nil {
			s["remote_state"] = n.remote.state.String()
			s["remote_addr"] = n.remote.conn.RemoteAddr()
			s["pending_requests"] = strconv.Itoa(len(n.remote.pending))
		}
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

func (n *ClientNode) isReady() bool {
	return n.remote != nil && n.remote.state == Ready
}

// send queues a fire-and-forget message to the server.
func (n *ClientNode) send(newMessage func() net.Message) error {
	return n.layer.Sync(func() error {
		if !n.isReady() {
			return errNotConnected()
		}
		return n.remote.sendMessage(newMessage(), nil)
	})
}

func (n *ClientNode) handleEvent(ev net.Event) {
	if n.remote == nil || ev.Conn.ID() != n.remote.conn.ID() {
		if ev.Type == net.ConnAccepted {
			ev.Conn.Close()
		}
		return
	}

	switch ev.Type {
	case net.MessageReceived:
		n.remote.messageReceived(ev.Message)
	case net.ConnClosed:
		n.remote.connClosed(ev.Err)
	}
}

func (n *ClientNode) remoteNodeClosed(r *clientRemoteNode, err error) {
	if n.remote != r {
		return
	}
	n.remote = nil
	n.roster = newRoster()

	wasConnected := n.getState() == Connected
	n.setState(Disconnected)

	if n.readyCh != nil {
		if err == nil {
			err = errNotConnected()
		}
		n.readyCh <- err
		n.readyCh = nil
		return
	}

	if wasConnected {
		n.logger.WithField("code", net.ErrorCodeOf(err)).Info("left the table")
		n.fireDisconnected(err)
	}
}

/*******************************************************************************
clientNodeController
*******************************************************************************/

func (n *ClientNode) credentials() (string, *crypto.SecureString) {
	return n.playerName, n.password
}

func (n *ClientNode) tableManager() table.Manager {
	return n.manager
}

func (n *ClientNode) remoteNodeReady(r *clientRemoteNode) {
	n.setState(Connected)
	n.logger.Info("joined the table")

	if n.readyCh != nil {
		n.readyCh <- nil
		n.readyCh = nil
	}
}

func (n *ClientNode) playersReceived(players []net.Player) {
	n.roster.set(players)
	n.firePlayersUpdated(n.roster.snapshot(n.playerName))
}

func (n *ClientNode) incrementApplied() {
	n.stats.incrementsApplied++
}

func (n *ClientNode) tableApplied() {
	n.stats.tablesApplied++
}
