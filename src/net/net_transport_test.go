package net

import (
	"net"
	"testing"
	"time"

	"github.com/gamegineer/tablenet/src/common"
)

func TestNetworkTransport_StartStop(t *testing.T) {
	trans, err := NewTCPTransport("127.0.0.1:0", "", time.Second, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	go trans.Listen()
	trans.Close()

	if !trans.IsShutdown() {
		t.Fatal("transport should be shut down")
	}
	if err := trans.Connect("127.0.0.1:1").Error(); err != ErrTransportShutdown {
		t.Fatalf("expected ErrTransportShutdown, got %v", err)
	}
}

func TestNetworkTransport_BadFrame(t *testing.T) {
	trans, err := NewTCPTransport("127.0.0.1:0", "", time.Second, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()
	go trans.Listen()

	raw, err := net.Dial("tcp", trans.AdvertiseAddr())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer raw.Close()

	ev := nextEvent(t, trans)
	if ev.Type != ConnAccepted {
		t.Fatalf("expected ConnAccepted, got %v", ev.Type)
	}

	// A frame announcing an unknown message kind
	raw.Write([]byte{0, 0, 0, 1, 0xff})

	ev = nextEvent(t, trans)
	if ev.Type != ConnClosed {
		t.Fatalf("expected ConnClosed, got %v", ev.Type)
	}
	if !IsTableNetworkError(ev.Err, TransportError) {
		t.Fatalf("expected TransportError, got %v", ev.Err)
	}
}

func TestNetworkTransport_ConnectFailure(t *testing.T) {
	trans, err := NewTCPTransport("127.0.0.1:0", "", time.Second, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	addr := trans.AdvertiseAddr()
	trans.Close()

	other, err := NewTCPTransport("127.0.0.1:0", "", time.Second, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer other.Close()

	err = other.Connect(addr).Error()
	if !IsTableNetworkError(err, TransportError) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestNetworkTransport_PeerCloseStopsWriter(t *testing.T) {
	trans, err := NewTCPTransport("127.0.0.1:0", "", time.Second, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()
	go trans.Listen()

	raw, err := net.Dial("tcp", trans.AdvertiseAddr())
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	ev := nextEvent(t, trans)
	if ev.Type != ConnAccepted {
		t.Fatalf("expected ConnAccepted, got %v", ev.Type)
	}
	conn := ev.Conn.(*netConn)

	// The peer leaves; nobody calls Close on our end
	raw.Close()

	ev = nextEvent(t, trans)
	if ev.Type != ConnClosed {
		t.Fatalf("expected ConnClosed, got %v", ev.Type)
	}

	select {
	case <-conn.writeDone:
	case <-time.After(5 * time.Second):
		t.Fatal("writer still running")
	}
	if err := conn.Send(&GoodbyeMessage{}); err != ErrConnClosed {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
}
