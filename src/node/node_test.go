package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/gamegineer/tablenet/src/common"
	"github.com/gamegineer/tablenet/src/crypto"
	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/table"
)

const (
	testTimeout  = 3 * time.Second
	testPassword = "secret"
)

type testListener struct {
	sync.Mutex
	players      [][]net.Player
	disconnected []error
}

func (l *testListener) PlayersUpdated(players []net.Player) {
	l.Lock()
	defer l.Unlock()
	l.players = append(l.players, players)
}

func (l *testListener) Disconnected(err error) {
	l.Lock()
	defer l.Unlock()
	l.disconnected = append(l.disconnected, err)
}

func (l *testListener) updates() int {
	l.Lock()
	defer l.Unlock()
	return len(l.players)
}

func (l *testListener) lastPlayers() []net.Player {
	l.Lock()
	defer l.Unlock()
	if len(l.players) == 0 {
		return nil
	}
	return l.players[len(l.players)-1]
}

func (l *testListener) disconnects() []error {
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

func newTestTable(t *testing.T) *table.Table {
	tbl := table.NewTable(common.NewTestEntry(t, common.TestLogLevel))
	inc := &table.ComponentIncrement{
		AddComponents: &table.ComponentsInsertion{
			Index: 0,
			Components: []*table.Component{
				table.NewComponent(map[string]string{"card": "ace-of-spades"}),
				table.NewContainer(map[string]string{"pile": "deck"},
					table.NewComponent(map[string]string{"card": "two-of-hearts"}),
				),
			},
		},
	}
	if err := tbl.IncrementComponentState(nil, mustMarshal(t, inc)); err != nil {
		t.Fatal(err)
	}
	return tbl
}

func mustMarshal(t *testing.T, inc *table.ComponentIncrement) []byte {
	data, err := inc.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestServer(t *testing.T, hostName string, password string) (*ServerNode, *net.InmemTransport, *table.Table) {
	_, trans := net.NewInmemTransport("")
	tbl := newTestTable(t)

	server := NewServerNode(TestConfig(t), trans, tbl, hostName, crypto.NewSecureStringFromString(password))
	if err := server.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	return server, trans, tbl
}

func newTestClient(t *testing.T, conf *Config, server *net.InmemTransport, playerName string, password string) (*ClientNode, *table.Table) {
	_, trans := net.NewInmemTransport("")
	trans.AddRoute(server.LocalAddr(), server)

	tbl := table.NewTable(common.NewTestEntry(t, common.TestLogLevel))
	client := NewClientNode(conf, trans, tbl, playerName, crypto.NewSecureStringFromString(password))
	return client, tbl
}

func connectTestClient(client *ClientNode, server *net.InmemTransport) error {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	return client.Connect(ctx, server.LocalAddr())
}

func findPlayer(players []net.Player, name string) *net.Player {
	for i := range players {
		if players[i].Name == name {
			return &players[i]
		}
	}
	return nil
}

func hasRole(n LocalNode, name string, role net.PlayerRole) func() bool {
	return func() bool {
		p := findPlayer(n.Players(), name)
		return p != nil && p.HasRole(role)
	}
}

func numPlayers(n LocalNode, count int) func() bool {
	return func() bool {
		return len(n.Players()) == count
	}
}

func sameTable(t1, t2 *table.Table) func() bool {
	return func() bool {
		h1, err1 := t1.Hash()
		h2, err2 := t2.Hash()
		return err1 == nil && err2 == nil && string(h1) == string(h2)
	}
}

func TestJoinTable(t *testing.T) {
	server, strans, stable := newTestServer(t, "host", testPassword)
	defer server.Shutdown()

	client, ctable := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer client.Shutdown()

	if err := connectTestClient(client, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	assert.Equal(t, client.IsConnected(), true)

	waitFor(t, "roster on client", numPlayers(client, 2))
	waitFor(t, "roster on server", numPlayers(server, 2))
	waitFor(t, "table on client", sameTable(stable, ctable))

	players := client.Players()
	assert.Equal(t, players[0].Name, "host")
	assert.Equal(t, players[0].Roles, net.RoleHost|net.RoleEditor)
	assert.Equal(t, players[1].Name, "alice")
	assert.Equal(t, players[1].Roles, net.RoleLocal)

	players = server.Players()
	assert.Equal(t, players[0].Roles, net.RoleHost|net.RoleEditor|net.RoleLocal)
	assert.Equal(t, players[1].Roles, net.PlayerRole(0))

	assert.Equal(t, ctable.ID(), stable.ID())
	assert.Equal(t, ctable.ComponentCount(), 3)
}

func TestJoinTableNoPassword(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", "")
	defer server.Shutdown()

	client, _ := newTestClient(t, TestConfig(t), strans, "alice", "")
	defer client.Shutdown()

	if err := connectTestClient(client, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestJoinTableRejected(t *testing.T) {
	testCases := []struct {
		name       string
		playerName string
		password   string
		code       net.ErrorCode
	}{
		{"wrong password", "alice", "guess", net.AuthenticationFailed},
		{"empty name", "", testPassword, net.AuthenticationFailed},
		{"host name", "host", testPassword, net.DuplicatePlayerName},
		{"player name", "bob", testPassword, net.DuplicatePlayerName},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server, strans, _ := newTestServer(t, "host", testPassword)
			defer server.Shutdown()

			bob, _ := newTestClient(t, TestConfig(t), strans, "bob", testPassword)
			defer bob.Shutdown()
			if err := connectTestClient(bob, strans); err != nil {
				t.Fatalf("err: %v", err)
			}
			waitFor(t, "bob on server", numPlayers(server, 2))

			client, _ := newTestClient(t, TestConfig(t), strans, tc.playerName, tc.password)
			defer client.Shutdown()

			err := connectTestClient(client, strans)
			assert.Equal(t, net.ErrorCodeOf(err), tc.code)
			assert.Equal(t, client.IsConnected(), false)
			assert.Equal(t, len(client.Players()), 0)

			// The rejected connection leaves no trace on the server
			waitFor(t, "connection dropped", func() bool {
				return server.GetStats()["num_connections"] == "1"
			})
			assert.Equal(t, len(server.Players()), 2)
			assert.Equal(t, bob.IsConnected(), true)
		})
	}
}

func TestConnectTwice(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", testPassword)
	defer server.Shutdown()

	err := server.Connect(context.Background())
	assert.Equal(t, net.ErrorCodeOf(err), net.AlreadyConnected)

	client, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer client.Shutdown()
	if err := connectTestClient(client, strans); err != nil {
		t.Fatalf("err: %v", err)
	}

	err = connectTestClient(client, strans)
	assert.Equal(t, net.ErrorCodeOf(err), net.AlreadyConnected)
}

func TestConnectUnknownTable(t *testing.T) {
	_, strans := net.NewInmemTransport("")

	client, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer client.Shutdown()

	err := client.Connect(context.Background(), "nowhere")
	assert.Equal(t, net.ErrorCodeOf(err), net.TransportError)
	assert.Equal(t, client.IsConnected(), false)

	assert.Equal(t, net.ErrorCodeOf(client.RequestControl()), net.NotConnected)
	assert.Equal(t, net.ErrorCodeOf(client.Disconnect()), net.NotConnected)
}

func TestControlHandoff(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", testPassword)
	defer server.Shutdown()

	alice, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer alice.Shutdown()
	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitFor(t, "alice on server", numPlayers(server, 2))

	serverListener := &testListener{}
	server.SetListener(serverListener)
	aliceListener := &testListener{}
	alice.SetListener(aliceListener)

	// The host has control, so the request is recorded
	if err := alice.RequestControl(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "request on client", hasRole(alice, "alice", net.RoleEditorRequested))
	assert.Equal(t, findPlayer(server.Players(), "host").IsEditor(), true)

	serverUpdates := serverListener.updates()
	aliceUpdates := aliceListener.updates()
	requested := server.Players()

	// Asking again changes nothing. The cancel that follows it on the same
	// connection is the only change anyone sees.
	if err := alice.RequestControl(); err != nil {
		t.Fatal(err)
	}
	if err := alice.CancelControlRequest(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "request cancelled", func() bool {
		p := findPlayer(aliceListener.lastPlayers(), "alice")
		return p != nil && p.Roles == net.RoleLocal
	})

	assert.Equal(t, serverListener.updates(), serverUpdates+1)
	assert.Equal(t, aliceListener.updates(), aliceUpdates+1)
	assert.Equal(t, findPlayer(requested, "alice").Roles, net.RoleEditorRequested)
	assert.Equal(t, findPlayer(server.Players(), "alice").Roles, net.PlayerRole(0))
	assert.Equal(t, findPlayer(server.Players(), "host").Roles, findPlayer(requested, "host").Roles)

	if err := alice.RequestControl(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "request on server", hasRole(server, "alice", net.RoleEditorRequested))

	// Only the editor may give control away
	if err := alice.GiveControl("alice"); err != nil {
		t.Fatal(err)
	}
	err := server.GiveControl("nobody")
	assert.NotEqual(t, err, nil)

	if err := server.GiveControl("alice"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "alice in control", hasRole(alice, "alice", net.RoleEditor))

	players := alice.Players()
	assert.Equal(t, players[0].Roles, net.RoleHost)
	assert.Equal(t, players[1].Roles, net.RoleEditor|net.RoleLocal)

	err = server.GiveControl("alice")
	assert.Equal(t, net.ErrorCodeOf(err), net.NotEditor)

	// Control comes back to the host
	if err := alice.GiveControl("host"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "host in control", hasRole(server, "host", net.RoleEditor))
	assert.Equal(t, findPlayer(server.Players(), "alice").IsEditor(), false)
}

func TestHostRequestsControl(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", testPassword)
	defer server.Shutdown()

	alice, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer alice.Shutdown()
	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitFor(t, "alice on server", numPlayers(server, 2))

	if err := server.GiveControl("alice"); err != nil {
		t.Fatal(err)
	}
	if err := server.RequestControl(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "host request on client", hasRole(alice, "host", net.RoleEditorRequested))

	if err := server.CancelControlRequest(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "host request cancelled on client", func() bool {
		p := findPlayer(alice.Players(), "host")
		return p != nil && p.Roles == net.RoleHost
	})
}

func TestEditorLeaves(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", testPassword)
	defer server.Shutdown()

	alice, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer alice.Shutdown()
	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitFor(t, "alice on server", numPlayers(server, 2))

	if err := server.GiveControl("alice"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "alice in control", hasRole(alice, "alice", net.RoleEditor))

	if err := alice.Disconnect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "alice gone", numPlayers(server, 1))

	host := findPlayer(server.Players(), "host")
	assert.Equal(t, host.IsEditor(), false)

	// Nobody has control, so a request is granted at once
	if err := server.RequestControl(); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, findPlayer(server.Players(), "host").IsEditor(), true)
}

func TestReplication(t *testing.T) {
	server, strans, stable := newTestServer(t, "host", testPassword)
	defer server.Shutdown()
	stable.SetListener(func(path *table.ComponentPath, increment []byte) {
		if err := server.BroadcastComponentIncrement(path, increment); err != nil {
			t.Errorf("broadcast: %v", err)
		}
	})

	clients := make([]*ClientNode, 2)
	tables := make([]*table.Table, 2)
	for i, name := range []string{"alice", "bob"} {
		clients[i], tables[i] = newTestClient(t, TestConfig(t), strans, name, testPassword)
		defer clients[i].Shutdown()
		if err := connectTestClient(clients[i], strans); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
	waitFor(t, "players on server", numPlayers(server, 3))
	for i := range tables {
		waitFor(t, "initial table", sameTable(stable, tables[i]))
	}

	// Host edits
	path, _ := table.ComponentPathFromIndices([]int{1, 0})
	inc := &table.ComponentIncrement{SetAttributes: map[string]string{"face": "up"}}
	if err := stable.IncrementComponent(path, inc); err != nil {
		t.Fatal(err)
	}
	for i := range tables {
		waitFor(t, "host increment", sameTable(stable, tables[i]))
	}
	c, err := tables[1].Component(path)
	assert.Equal(t, err, nil)
	assert.Equal(t, c.Attributes["face"], "up")

	// A player without control is refused locally
	err = clients[0].BroadcastComponentIncrement(path, mustMarshal(t, inc))
	assert.Equal(t, net.ErrorCodeOf(err), net.NotEditor)

	// Alice edits once she has control
	if err := server.GiveControl("alice"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "alice in control", hasRole(clients[0], "alice", net.RoleEditor))
	tables[0].SetListener(func(path *table.ComponentPath, increment []byte) {
		if err := clients[0].BroadcastComponentIncrement(path, increment); err != nil {
			t.Errorf("broadcast: %v", err)
		}
	})

	inc = &table.ComponentIncrement{
		RemoveComponents: &table.ComponentsRemoval{Index: 0, Count: 1},
	}
	if err := tables[0].IncrementComponent(nil, inc); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "alice increment on server", sameTable(tables[0], stable))
	waitFor(t, "alice increment on bob", sameTable(tables[0], tables[1]))
	assert.Equal(t, stable.ComponentCount(), 2)

	err = server.BroadcastComponentIncrement(nil, mustMarshal(t, inc))
	assert.Equal(t, net.ErrorCodeOf(err), net.NotEditor)

	waitFor(t, "stats", func() bool {
		return clients[1].GetStats()["increments_applied"] == "2"
	})
	assert.Equal(t, server.GetStats()["increments_applied"], "1")
}

func TestServerClosesTable(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", testPassword)
	defer server.Shutdown()

	slistener := &testListener{}
	server.SetListener(slistener)

	alice, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer alice.Shutdown()
	listener := &testListener{}
	alice.SetListener(listener)

	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitFor(t, "roster on client", numPlayers(alice, 2))

	if err := server.Disconnect(); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, server.IsConnected(), false)
	assert.Equal(t, len(server.Players()), 0)
	assert.Equal(t, slistener.disconnects(), []error{nil})

	waitFor(t, "client disconnected", func() bool {
		return len(listener.disconnects()) == 1
	})
	assert.Equal(t, net.ErrorCodeOf(listener.disconnects()[0]), net.ServerTableClosed)
	assert.Equal(t, alice.IsConnected(), false)
	assert.Equal(t, len(alice.Players()), 0)

	// A closed table turns players away
	bob, _ := newTestClient(t, TestConfig(t), strans, "bob", testPassword)
	defer bob.Shutdown()
	err := connectTestClient(bob, strans)
	assert.NotEqual(t, err, nil)

	// And can be opened again
	if err := server.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitFor(t, "alice back", numPlayers(server, 2))
}

func TestClientDisconnect(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", testPassword)
	defer server.Shutdown()

	alice, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer alice.Shutdown()
	listener := &testListener{}
	alice.SetListener(listener)

	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitFor(t, "alice on server", numPlayers(server, 2))

	if err := alice.Disconnect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "alice gone", numPlayers(server, 1))
	assert.Equal(t, listener.disconnects(), []error{nil})

	// The name is free again
	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitFor(t, "alice back", numPlayers(server, 2))
}

func TestRequestTimeout(t *testing.T) {
	// A peer that accepts connections and never answers
	_, strans := net.NewInmemTransport("")
	defer strans.Close()

	conf := TestConfig(t)
	conf.RequestTimeout = 100 * time.Millisecond

	client, _ := newTestClient(t, conf, strans, "alice", testPassword)
	defer client.Shutdown()

	start := time.Now()
	err := connectTestClient(client, strans)
	assert.Equal(t, net.ErrorCodeOf(err), net.RequestTimedOut)
	assert.Equal(t, time.Since(start) < testTimeout, true)
	assert.Equal(t, client.IsConnected(), false)
}

func TestConnectCancelled(t *testing.T) {
	_, strans := net.NewInmemTransport("")
	defer strans.Close()

	client, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)
	defer client.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Connect(ctx, strans.LocalAddr())
	assert.Equal(t, err, context.DeadlineExceeded)

	waitFor(t, "client disconnected", func() bool {
		return client.GetStats()["state"] == Disconnected.String()
	})
}

func TestShutdown(t *testing.T) {
	server, strans, _ := newTestServer(t, "host", testPassword)
	alice, _ := newTestClient(t, TestConfig(t), strans, "alice", testPassword)

	if err := connectTestClient(alice, strans); err != nil {
		t.Fatalf("err: %v", err)
	}

	alice.Shutdown()
	server.Shutdown()

	assert.Equal(t, alice.getState(), Shutdown)
	assert.Equal(t, server.getState(), Shutdown)

	// Shutting down twice is harmless
	alice.Shutdown()
	server.Shutdown()

	assert.Equal(t, net.ErrorCodeOf(alice.RequestControl()), net.UnspecifiedError)
}
