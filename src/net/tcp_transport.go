package net

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NewTCPTransport returns a NetworkTransport built on top of a
// TCPStreamLayer bound to bindAddr.
func NewTCPTransport(
	bindAddr string,
	advertise string,
	timeout time.Duration,
	sendQueueSize int,
	logger *logrus.Entry,
) (*NetworkTransport, error) {
	stream, err := NewTCPStreamLayer(bindAddr, advertise)
	if err != nil {
		return nil, err
	}
	return NewNetworkTransport(stream, timeout, sendQueueSize, logger), nil
}
