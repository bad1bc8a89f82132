package net

import "sync"

// Future is used to represent an action that may occur in the future.
type Future interface {
	// Error blocks until the future arrives and then returns the error status
	// of the future.
	Error() error

	// Done is closed when the future arrives.
	Done() <-chan struct{}
}

// ConnFuture is the Future of a Connect call.
type ConnFuture interface {
	Future

	// Conn returns the connection once the future completed without error.
	Conn() Conn
}

// DeferError can be embedded to allow a future to provide an error in the
// future.
type DeferError struct {
	err    error
	doneCh chan struct{}
	once   sync.Once
}

// NewDeferError ...
func NewDeferError() *DeferError {
	d := &DeferError{}
	d.Init()
	return d
}

// Init prepares a zero DeferError for use.
func (d *DeferError) Init() {
	d.doneCh = make(chan struct{})
}

// Error implements the Future interface.
func (d *DeferError) Error() error {
	<-d.doneCh
	return d.err
}

// Done implements the Future interface.
func (d *DeferError) Done() <-chan struct{} {
	return d.doneCh
}

// Respond completes the future. Only the first call has an effect.
func (d *DeferError) Respond(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.doneCh)
	})
}

type connFuture struct {
	DeferError
	conn Conn
}

func newConnFuture() *connFuture {
	f := &connFuture{}
	f.Init()
	return f
}

func (f *connFuture) respond(conn Conn, err error) {
	f.once.Do(func() {
		f.conn = conn
		f.err = err
		close(f.doneCh)
	})
}

// Conn implements the ConnFuture interface.
func (f *connFuture) Conn() Conn {
	<-f.doneCh
	return f.conn
}

// NewSynchronousFuture returns a Future that is already complete.
func NewSynchronousFuture(err error) Future {
	d := NewDeferError()
	d.Respond(err)
	return d
}

// NewSynchronousConnFuture returns a ConnFuture that is already complete.
func NewSynchronousConnFuture(conn Conn, err error) ConnFuture {
	f := newConnFuture()
	f.respond(conn, err)
	return f
}
