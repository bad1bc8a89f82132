package node

import (
	"errors"
	"sync"

	"github.com/gamegineer/tablenet/src/net"
)

// ErrNodeLayerShutdown is returned by tasks submitted after Shutdown.
var ErrNodeLayerShutdown = errors.New("node layer shut down")

// NodeLayer is the single goroutine on which all the protocol state of a
// node is read and written. Tasks run one at a time, in submission order.
//
// The task queue is unbounded so that submitting never blocks; a node layer
// may therefore hand work to another node's layer without risking a deadlock.
// Tasks must not call Sync or Shutdown on their own layer.
type NodeLayer struct {
	l        sync.Mutex
	tasks    []func()
	shutdown bool

	notifyCh chan struct{}
	doneCh   chan struct{}
}

// NewNodeLayer starts a node layer.
func NewNodeLayer() *NodeLayer {
	nl := &NodeLayer{
		notifyCh: make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}
	go nl.run()
	return nl
}

// Async queues task and returns immediately. The returned future completes
// once the task has run.
func (nl *NodeLayer) Async(task func()) net.Future {
	nl.l.Lock()
	if nl.shutdown {
		nl.l.Unlock()
		return net.NewSynchronousFuture(ErrNodeLayerShutdown)
	}

	future := net.NewDeferError()
	nl.tasks = append(nl.tasks, func() {
		task()
		future.Respond(nil)
	})
	nl.l.Unlock()

	nl.notify()
	return future
}

// Sync runs task on the node layer and waits for its result.
func (nl *NodeLayer) Sync(task func() error) error {
	var err error
	future := nl.Async(func() {
		err = task()
	})
	if ferr := future.Error(); ferr != nil {
		return ferr
	}
	return err
}

// Shutdown stops accepting tasks, runs the ones already queued, and waits for
// the layer goroutine to exit.
func (nl *NodeLayer) Shutdown() {
	nl.l.Lock()
	nl.shutdown = true
	nl.l.Unlock()

	nl.notify()
	<-nl.doneCh
}

func (nl *NodeLayer) notify() {
	select {
	case nl.notifyCh <- struct{}{}:
	default:
	}
}

func (nl *NodeLayer) run() {
	defer close(nl.doneCh)

	for {
		nl.l.Lock()
		tasks := nl.tasks
		nl.tasks = nil
		shutdown := nl.shutdown
		nl.l.Unlock()

		for _, task := range tasks {
			task()
		}

		if len(tasks) == 0 {
			if shutdown {
				return
			}
			<-nl.notifyCh
		}
	}
}
