package node

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestNodeLayerOrder(t *testing.T) {
	nl := NewNodeLayer()
	defer nl.Shutdown()

	const numTasks = 1000

	var l sync.Mutex
	order := make([]int, 0, numTasks)
	for i := 0; i < numTasks; i++ {
		i := i
		nl.Async(func() {
			l.Lock()
			order = append(order, i)
			l.Unlock()
		})
	}

	nl.Sync(func() error { return nil })

	l.Lock()
	defer l.Unlock()
	assert.Equal(t, len(order), numTasks)
	for i, v := range order {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestNodeLayerSyncError(t *testing.T) {
	nl := NewNodeLayer()
	defer nl.Shutdown()

	expected := errors.New("boom")
	err := nl.Sync(func() error { return expected })
	assert.Equal(t, err, expected)

	err = nl.Sync(func() error { return nil })
	assert.Equal(t, err, nil)
}

// A task may queue more work on its own layer; it runs after the task.
func TestNodeLayerAsyncFromTask(t *testing.T) {
	nl := NewNodeLayer()
	defer nl.Shutdown()

	var steps []string
	doneCh := make(chan struct{})
	nl.Async(func() {
		nl.Async(func() {
			steps = append(steps, "inner")
			close(doneCh)
		})
		steps = append(steps, "outer")
	})
	<-doneCh

	nl.Sync(func() error { return nil })
	assert.Equal(t, steps, []string{"outer", "inner"})
}

func TestNodeLayerShutdown(t *testing.T) {
	nl := NewNodeLayer()

	ran := 0
	for i := 0; i < 10; i++ {
		nl.Async(func() { ran++ })
	}
	nl.Shutdown()

	// Queued tasks run before the layer stops
	assert.Equal(t, ran, 10)

	future := nl.Async(func() { ran++ })
	assert.Equal(t, future.Error(), ErrNodeLayerShutdown)
	assert.Equal(t, nl.Sync(func() error { return nil }), ErrNodeLayerShutdown)
	assert.Equal(t, ran, 10)
}
