package gametable

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/gamegineer/tablenet/src/common"
	"github.com/gamegineer/tablenet/src/config"
	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/table"
)

const testTimeout = 5 * time.Second

type recordingListener struct {
	sync.Mutex
	players      []net.Player
	disconnected []error
}

func (l *recordingListener) PlayersUpdated(players []net.Player) {
	l.Lock()
	defer l.Unlock()
	l.players = players
}

func (l *recordingListener) Disconnected(err error) {
	l.Lock()
	defer l.Unlock()
	l.disconnected = append(l.disconnected, err)
}

func (l *recordingListener) numPlayers() int {
	l.Lock()
	defer l.Unlock()
	return len(l.players)
}

func (l *recordingListener) disconnects() []error {
	l.Lock()
	defer l.Unlock()
	return append([]error(nil), l.disconnected...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func sameTable(t1, t2 *table.Table) func() bool {
	return func() bool {
		h1, err1 := t1.Hash()
		h2, err2 := t2.Hash()
		return err1 == nil && err2 == nil && bytes.Equal(h1, h2)
	}
}

func newTestConfig(t *testing.T, playerName string, websocket bool) *config.Config {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.PlayerName = playerName
	conf.Password = "secret"
	conf.BindAddr = "127.0.0.1:0"
	conf.WebSocket = websocket
	conf.NoService = true
	return conf
}

func startTestTable(t *testing.T, conf *config.Config, mode Mode) (*GameTable, *recordingListener) {
	g := NewGameTable(conf, mode)
	if err := g.Init(); err != nil {
		t.Fatalf("init %s: %v", mode, err)
	}

	listener := &recordingListener{}
	g.SetListener(listener)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := g.Run(ctx); err != nil {
		g.Shutdown()
		t.Fatalf("run %s: %v", mode, err)
	}
	return g, listener
}

func dealCards(t *testing.T, tbl *table.Table, cards ...string) {
	components := make([]*table.Component, len(cards))
	for i, card := range cards {
		components[i] = table.NewComponent(map[string]string{"card": card})
	}
	inc := &table.ComponentIncrement{
		AddComponents: &table.ComponentsInsertion{
			Index:      0,
			Components: components,
		},
	}
	if err := tbl.IncrementComponent(nil, inc); err != nil {
		t.Fatal(err)
	}
}

func TestGameTable(t *testing.T) {
	for _, websocket := range []bool{false, true} {
		name := "tcp"
		if websocket {
			name = "websocket"
		}
		t.Run(name, func(t *testing.T) {
			dir, err := os.MkdirTemp("", "gametable")
			if err != nil {
				t.Fatal(err)
			}
			defer os.RemoveAll(dir)

			hostConf := newTestConfig(t, "host", websocket)
			hostConf.Store = true
			hostConf.DatabaseDir = dir

			host, hostListener := startTestTable(t, hostConf, Host)
			dealCards(t, host.Table, "ace-of-clubs", "king-of-clubs")

			joinConf := newTestConfig(t, "alice", websocket)
			joinConf.TableAddr = host.Transport.AdvertiseAddr()

			player, playerListener := startTestTable(t, joinConf, Join)
			defer player.Shutdown()

			waitFor(t, "roster on host", func() bool { return hostListener.numPlayers() == 2 })
			waitFor(t, "roster on player", func() bool { return playerListener.numPlayers() == 2 })
			waitFor(t, "table on player", sameTable(host.Table, player.Table))

			// The host has control
			dealCards(t, host.Table, "queen-of-clubs")
			waitFor(t, "increment on player", sameTable(host.Table, player.Table))
			assert.Equal(t, player.Table.ComponentCount(), 3)

			// Then gives it to the player
			if err := host.Node.GiveControl("alice"); err != nil {
				t.Fatal(err)
			}
			waitFor(t, "player in control", func() bool {
				for _, p := range player.Node.Players() {
					if p.Name == "alice" {
						return p.IsEditor()
					}
				}
				return false
			})
			dealCards(t, player.Table, "jack-of-clubs")
			waitFor(t, "increment on host", sameTable(player.Table, host.Table))

			tableID := host.Table.ID()
			host.Shutdown()

			waitFor(t, "player disconnected", func() bool { return len(playerListener.disconnects()) == 1 })
			assert.Equal(t, net.ErrorCodeOf(playerListener.disconnects()[0]), net.ServerTableClosed)
			assert.Equal(t, hostListener.disconnects(), []error{nil})

			// The table is back when the host opens again
			reopened, _ := startTestTable(t, hostConf, Host)
			defer reopened.Shutdown()

			assert.Equal(t, reopened.Table.ID(), tableID)
			assert.Equal(t, reopened.Table.ComponentCount(), 4)
		})
	}
}

func TestInitErrors(t *testing.T) {
	conf := newTestConfig(t, "", false)
	err := NewGameTable(conf, Host).Init()
	assert.NotEqual(t, err, nil)

	conf = newTestConfig(t, "alice", false)
	err = NewGameTable(conf, Join).Init()
	assert.NotEqual(t, err, nil)
}

func TestInmemStore(t *testing.T) {
	conf := newTestConfig(t, "host", false)

	g, _ := startTestTable(t, conf, Host)
	defer g.Shutdown()

	dealCards(t, g.Table, "two-of-diamonds")
	if err := g.SaveTable(); err != nil {
		t.Fatal(err)
	}

	id, err := g.Store.LastTableID()
	assert.Equal(t, err, nil)
	assert.Equal(t, id, g.Table.ID())
}

// slowStore holds every save until released.
type slowStore struct {
	table.Store
	release chan struct{}
	saved   chan string
}

func (s *slowStore) SaveTable(id string, memento []byte) error {
	<-s.release
	err := s.Store.SaveTable(id, memento)
	s.saved <- id
	return err
}

func TestSaveOffNodeLayer(t *testing.T) {
	conf := newTestConfig(t, "host", false)
	g, _ := startTestTable(t, conf, Host)

	store := &slowStore{
		Store:   g.Store,
		release: make(chan struct{}),
		saved:   make(chan string, 2),
	}
	g.Store = store

	done := make(chan error, 1)
	go func() { done <- g.Node.Disconnect() }()

	select {
	case err := <-done:
		assert.Equal(t, err, nil)
	case <-time.After(testTimeout):
		t.Fatal("Disconnect waited for the store")
	}

	// The node layer is free while the save is pending
	assert.Equal(t, g.Node.IsConnected(), false)
	assert.Equal(t, len(g.Node.Players()), 0)

	close(store.release)
	select {
	case id := <-store.saved:
		assert.Equal(t, id, g.Table.ID())
	case <-time.After(testTimeout):
		t.Fatal("table not saved")
	}

	g.Shutdown()
}
