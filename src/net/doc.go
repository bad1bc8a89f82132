// Package net implements the wire protocol and the transports used by table
// network nodes.
//
// Nodes exchange Messages over persistent Conns. Every message carries a
// MessageHeader whose ID is unique within the connection for the sender and
// whose CorrelationID, when set, names the request it answers. Messages are
// framed by the codec in this package: a big-endian uint32 length, a kind
// byte, and a msgpack encoded body.
//
// This package contains various implementations of the Transport interface.
// A Transport opens and accepts connections and reports everything that
// happens on them as Events on its Consumer channel. There are three
// implementations:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// - WebSocket: communicating over WebSocket connections upgraded on the
// /table HTTP path
//
// TCP
//
// The TCP transport is suitable when players are in the same local network,
// or when they are able to configure their connections appropriately to avoid
// NAT issues.
//
// - BindAddr: the IP:PORT of the TCP socket that the host binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other
// players. If BindAddr is a local address not reachable by other players, it
// is useful to set AdvertiseAddr to the reachable public address.
//
// WebSocket
//
// The WebSocket transport carries the same frames inside binary WebSocket
// messages. It helps when players sit behind HTTP proxies that would not let
// a raw TCP connection through.
package net
