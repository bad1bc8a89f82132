package gametable

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gamegineer/tablenet/src/common"
	"github.com/gamegineer/tablenet/src/config"
	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/node"
	"github.com/gamegineer/tablenet/src/service"
	"github.com/gamegineer/tablenet/src/table"
)

// Mode tells whether a GameTable hosts its table or joins someone else's.
type Mode int

const (
	// Host opens a table and accepts players.
	Host Mode = iota
	// Join connects to a table hosted elsewhere.
	Join
)

// String ...
func (m Mode) String() string {
	switch m {
	case Host:
		return "host"
	case Join:
		return "join"
	default:
		return "unknown"
	}
}

// joinBindAddr is bound by players, who dial out but never accept.
const joinBindAddr = "127.0.0.1:0"

// GameTable is the top-level object of a table session. It wires the
// configuration, the table and its store, the transport, the local node and
// the HTTP service together.
type GameTable struct {
	Config    *config.Config
	Mode      Mode
	Table     *table.Table
	Store     table.Store
	Transport net.Transport
	Node      node.LocalNode
	Service   *service.Service

	server *node.ServerNode
	client *node.ClientNode

	listener node.Listener
	logger   *logrus.Entry

	// Saves triggered by the node run in the background; saveLock orders
	// them and saves waits for them before the store closes.
	saveLock sync.Mutex
	saves    sync.WaitGroup
}

// NewGameTable returns an uninitialized GameTable. Call Init before Run.
func NewGameTable(conf *config.Config, mode Mode) *GameTable {
	return &GameTable{
		Config: conf,
		Mode:   mode,
		logger: conf.Logger().WithField("mode", mode),
	}
}

// Init creates every component of the session. Nothing is connected yet.
func (g *GameTable) Init() error {
	if g.Config.PlayerName == "" {
		return fmt.Errorf("player name is required")
	}
	if g.Mode == Join && g.Config.TableAddr == "" {
		return fmt.Errorf("table address is required to join")
	}

	if err := g.initStore(); err != nil {
		return err
	}

	if err := g.initTable(); err != nil {
		return err
	}

	if err := g.initTransport(); err != nil {
		return err
	}

	if err := g.initNode(); err != nil {
		return err
	}

	if err := g.initService(); err != nil {
		return err
	}

	return nil
}

func (g *GameTable) initStore() error {
	if g.Mode != Host {
		return nil
	}

	if !g.Config.Store {
		g.Store = table.NewInmemStore()

		g.logger.Debug("created new in-mem store")

		return nil
	}

	g.logger.WithField("path", g.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := table.LoadOrCreateBadgerStore(g.Config.DatabaseDir, g.logger)
	if err != nil {
		return err
	}
	g.Store = store

	return nil
}

// initTable loads the last table saved by the host, if any. Players start
// with an empty table and receive the host's on joining.
func (g *GameTable) initTable() error {
	g.Table = table.NewTable(g.logger.WithField("component", "table"))

	if g.Store == nil {
		return nil
	}

	id, err := g.Store.LastTableID()
	if err != nil {
		if common.IsStore(err, common.Empty) {
			g.logger.Debug("no saved table, starting a new one")
			return nil
		}
		return err
	}

	memento, err := g.Store.LoadTable(id)
	if err != nil {
		return err
	}
	if err := g.Table.SetTableState(memento); err != nil {
		return fmt.Errorf("loading table %s: %w", id, err)
	}

	g.logger.WithFields(logrus.Fields{
		"table":      id,
		"components": g.Table.ComponentCount(),
	}).Info("loaded saved table")

	return nil
}

func (g *GameTable) initTransport() error {
	bindAddr := g.Config.BindAddr
	advertise := g.Config.AdvertiseAddr
	if g.Mode == Join {
		bindAddr = joinBindAddr
		advertise = ""
	}

	logger := g.logger.WithField("component", "transport")

	var (
		trans net.Transport
		err   error
	)
	if g.Config.WebSocket {
		trans, err = net.NewWebSocketTransport(bindAddr, advertise, g.Config.TCPTimeout, g.Config.SendQueueSize, logger)
	} else {
		trans, err = net.NewTCPTransport(bindAddr, advertise, g.Config.TCPTimeout, g.Config.SendQueueSize, logger)
	}
	if err != nil {
		return err
	}

	g.Transport = trans

	return nil
}

func (g *GameTable) initNode() error {
	nodeConf := node.NewConfig(g.Config.RequestTimeout, g.Config.BaseLogger())

	password := g.Config.SecurePassword()
	defer password.Dispose()

	switch g.Mode {
	case Host:
		g.server = node.NewServerNode(nodeConf, g.Transport, g.Table, g.Config.PlayerName, password)
		g.Node = g.server
	case Join:
		g.client = node.NewClientNode(nodeConf, g.Transport, g.Table, g.Config.PlayerName, password)
		g.Node = g.client
	default:
		return fmt.Errorf("unknown mode %d", g.Mode)
	}

	g.Node.SetListener(g)

	// Local edits go to the other players
	g.Table.SetListener(func(path *table.ComponentPath, increment []byte) {
		if err := g.Node.BroadcastComponentIncrement(path, increment); err != nil {
			g.logger.WithError(err).WithField("path", path).Warn("failed to broadcast increment")
		}
	})

	return nil
}

func (g *GameTable) initService() error {
	if !g.Config.NoService && g.Config.ServiceAddr != "" {
		g.Service = service.NewService(g.Config.ServiceAddr, g.Node, g.Table, g.logger.WithField("component", "service"))
	}
	return nil
}

// SetListener registers a listener for roster changes and the end of the
// session.
func (g *GameTable) SetListener(listener node.Listener) {
	g.listener = listener
}

// Run starts the service and opens or joins the table.
func (g *GameTable) Run(ctx context.Context) error {
	if g.Service != nil {
		go g.Service.Serve()
	}

	switch g.Mode {
	case Host:
		if err := g.server.Connect(ctx); err != nil {
			return err
		}
		g.logger.WithField("addr", g.Transport.AdvertiseAddr()).Info("hosting table")
	case Join:
		if err := g.client.Connect(ctx, g.Config.TableAddr); err != nil {
			return err
		}
		g.logger.WithField("table", g.Config.TableAddr).Info("joined table")
	}

	return nil
}

// SaveTable saves the hosted table to the store. Players have nothing to
// save.
func (g *GameTable) SaveTable() error {
	if g.Store == nil {
		return nil
	}

	g.saveLock.Lock()
	defer g.saveLock.Unlock()

	memento, err := g.Table.TableState()
	if err != nil {
		return err
	}
	if err := g.Store.SaveTable(g.Table.ID(), memento); err != nil {
		return err
	}

	g.logger.WithFields(logrus.Fields{
		"table": g.Table.ID(),
		"path":  g.Store.StorePath(),
	}).Debug("table saved")

	return nil
}

// Shutdown leaves or closes the table and releases every resource. The
// hosted table is saved once more before the store closes.
func (g *GameTable) Shutdown() {
	g.logger.Debug("Shutdown")

	if g.Node != nil {
		g.Node.Shutdown()
	}
	g.saves.Wait()

	if g.Store != nil {
		if err := g.SaveTable(); err != nil {
			g.logger.WithError(err).Error("failed to save table")
		}
		if err := g.Store.Close(); err != nil {
			g.logger.WithError(err).Error("failed to close store")
		}
	}
}

// PlayersUpdated implements node.Listener.
func (g *GameTable) PlayersUpdated(players []net.Player) {
	if g.listener != nil {
		g.listener.PlayersUpdated(players)
	}
}

// Disconnected implements node.Listener. The host saves the table when it
// closes, off the node layer.
func (g *GameTable) Disconnected(err error) {
	if g.Mode == Host {
		g.saves.Add(1)
		go func() {
			defer g.saves.Done()
			if serr := g.SaveTable(); serr != nil {
				g.logger.WithError(serr).Error("failed to save table")
			}
		}()
	}
	if g.listener != nil {
		g.listener.Disconnected(err)
	}
}
