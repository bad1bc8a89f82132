package net

import (
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
)

// TCPStreamLayer implements StreamLayer interface for plain TCP. Nagle is
// disabled on every connection since table messages are small and
// interactive.
type TCPStreamLayer struct {
	advertise string
	listener  *net.TCPListener
}

// NewTCPStreamLayer binds bindAddr. The advertise address, or the bound
// address when advertise is empty, must be one that players can dial.
func NewTCPStreamLayer(bindAddr string, advertise string) (*TCPStreamLayer, error) {
	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start TCP listener: %w", err)
	}

	if err := checkAdvertisable(list.Addr(), advertise); err != nil {
		list.Close()
		return nil, err
	}

	return &TCPStreamLayer{
		advertise: advertise,
		listener:  list.(*net.TCPListener),
	}, nil
}

func checkAdvertisable(bound net.Addr, advertise string) error {
	addr := bound
	if advertise != "" {
		resolved, err := net.ResolveTCPAddr("tcp", advertise)
		if err != nil {
			return err
		}
		addr = resolved
	}

	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return errNotTCP
	}
	if tcp.IP.IsUnspecified() {
		return errNotAdvertisable
	}
	return nil
}

// Dial implements the StreamLayer interface.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return conn, nil
}

// Accept implements the net.Listener interface.
func (t *TCPStreamLayer) Accept() (net.Conn, error) {
	conn, err := t.listener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetNoDelay(true)
	return conn, nil
}

// Close implements the net.Listener interface.
func (t *TCPStreamLayer) Close() error {
	return t.listener.Close()
}

// Addr implements the net.Listener interface.
func (t *TCPStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// AdvertiseAddr implements the StreamLayer interface.
func (t *TCPStreamLayer) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.listener.Addr().String()
}
