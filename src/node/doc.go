// Package node implements the table network protocol on top of a transport.
//
// A table is hosted by a ServerNode and joined by ClientNodes. Every node
// runs its protocol state on a NodeLayer, a single goroutine fed by an
// unbounded task queue. Transport events are pumped onto that goroutine in
// order, and the public methods of the nodes submit their work to it, so no
// protocol state is ever shared between goroutines.
//
// Connections
//
// Each connection is represented by a remote node. The remote node assigns a
// fresh id to every message it sends and keeps, for each request awaiting a
// reply, a one-shot handler keyed by that id. A reply carries the id of its
// request as correlation id and goes to that handler, which is removed before
// it runs. Uncorrelated messages go to the handler registered for their kind.
// A reply nobody waits for, or a message nobody handles, closes the
// connection.
//
// Handshake
//
// The client opens with Hello and the server answers with the protocol
// version it chose. The server then sends a random challenge and salt. The
// client answers with its player name and an HMAC of the challenge under a
// key derived from the password and salt; the server computes the same value
// and compares. A wrong password, an empty name or a name already at the
// table gets an Error reply and the connection is closed. Otherwise the
// server sends EndAuthentication, then the whole table, then the roster.
//
// Control
//
// At most one player, the editor, may change the table. A player asks for
// control with RequestControl; it is granted at once when nobody holds it,
// and recorded as a pending request otherwise. The editor hands control over
// with GiveControl. Changes made by the editor are sent to the server as
// component increments and relayed to every other player. An increment from
// anyone else is answered with a fresh copy of the table.
//
// Either side may leave with a Goodbye carrying the reason. When the server
// closes the table every player gets ServerTableClosed.
package node
