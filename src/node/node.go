package node

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamegineer/tablenet/src/common"
	"github.com/gamegineer/tablenet/src/crypto"
	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/table"
)

// Listener is notified of changes to a local node. Its methods run on the
// node layer and must not call back into the node synchronously.
type Listener interface {
	// PlayersUpdated receives every new roster, the local player marked
	// with the Local role.
	PlayersUpdated(players []net.Player)

	// Disconnected reports the end of the table session. err is nil when the
	// local player disconnected.
	Disconnected(err error)
}

// LocalNode is what the client and the server nodes have in common.
type LocalNode interface {
	PlayerName() string
	Players() []net.Player
	IsConnected() bool
	Disconnect() error
	Shutdown()
	RequestControl() error
	CancelControlRequest() error
	GiveControl(playerName string) error
	BroadcastComponentIncrement(path *table.ComponentPath, increment []byte) error
	SetListener(listener Listener)
	GetStats() map[string]string
}

type nodeStats struct {
	messagesSent      int
	messagesReceived  int
	incrementsSent    int
	incrementsApplied int
	tablesApplied     int
}

// node holds the plumbing shared by ClientNode and ServerNode: the node
// layer, the transport and the pump between them.
type node struct {
	state

	conf   *Config
	logger *logrus.Entry

	layer *NodeLayer
	trans net.Transport

	manager    table.Manager
	playerName string
	password   *crypto.SecureString

	listener Listener
	stats    nodeStats

	shutdownCh chan struct{}

	start time.Time
}

func newNode(conf *Config,
	trans net.Transport,
	manager table.Manager,
	playerName string,
	password *crypto.SecureString,
	role string,
) node {
	if password == nil {
		password = crypto.NewSecureString(nil)
	} else {
		password = password.Copy()
	}

	return node{
		conf: conf,
		logger: conf.Logger.WithFields(logrus.Fields{
			"node":   role,
			"player": playerName,
		}),
		layer:      NewNodeLayer(),
		trans:      trans,
		manager:    manager,
		playerName: playerName,
		password:   password,
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}
}

// runPump moves transport events onto the node layer, in order.
func (n *node) runPump(handle func(ev net.Event)) {
	consumer := n.trans.Consumer()
	for {
		select {
		case ev := <-consumer:
			n.layer.Async(func() { handle(ev) })
		case <-n.shutdownCh:
			return
		}
	}
}

// PlayerName returns the name of the local player.
func (n *node) PlayerName() string {
	return n.playerName
}

// IsConnected reports whether the node is at a table.
func (n *node) IsConnected() bool {
	return n.getState() == Connected
}

// SetListener replaces the listener of the node.
func (n *node) SetListener(listener Listener) {
	n.layer.Sync(func() error {
		n.listener = listener
		return nil
	})
}

func (n *node) firePlayersUpdated(players []net.Player) {
	if n.listener != nil {
		n.listener.PlayersUpdated(players)
	}
}

func (n *node) fireDisconnected(err error) {
	if n.listener != nil {
		n.listener.Disconnected(err)
	}
}

// shutdown stops the pump and the node layer, then the transport. The
// password is wiped.
func (n *node) shutdown() {
	if n.getState() == Shutdown {
		return
	}
	n.logger.Debug("Shutdown")

	close(n.shutdownCh)
	n.layer.Shutdown()
	n.setState(Shutdown)

	n.trans.Close()
	n.password.Dispose()
}

// baseStats must run on the node layer.
func (n *node) baseStats() map[string]string {
	s := map[string]string{
		"state":              n.getState().String(),
		"player_name":        n.playerName,
		"messages_sent":      strconv.Itoa(n.stats.messagesSent),
		"messages_received":  strconv.Itoa(n.stats.messagesReceived),
		"increments_sent":    strconv.Itoa(n.stats.incrementsSent),
		"increments_applied": strconv.Itoa(n.stats.incrementsApplied),
		"tables_applied":     strconv.Itoa(n.stats.tablesApplied),
		"uptime":             time.Since(n.start).Round(time.Second).String(),
	}

	if memento, err := n.manager.TableState(); err == nil {
		s["table_hash"] = common.EncodeToString(crypto.SHA256(memento))
	}

	return s
}

func (n *node) logStats(stats map[string]string) {
	fields := logrus.Fields{}
	for k, v := range stats {
		fields[k] = v
	}
	n.logger.WithFields(fields).Debug("Stats")
}

func errNotConnected() error {
	return net.NewTableNetworkError(net.NotConnected, nil)
}
