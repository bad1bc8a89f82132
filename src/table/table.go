package table

import (
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/gamegineer/tablenet/src/crypto"
)

// ListenerFunc is notified of every increment applied through
// Table.IncrementComponent, with the increment already encoded.
type ListenerFunc func(path *ComponentPath, increment []byte)

// Table is an in-memory component tree shared by the players at a table. It
// implements Manager.
//
// Changes made by the local player go through IncrementComponent and are
// reported to the listener so that they can be broadcast. Changes coming from
// the network go through the Manager methods and are not reported.
type Table struct {
	l        sync.RWMutex
	id       string
	root     *Component
	listener ListenerFunc
	logger   *logrus.Entry
}

// NewTable returns an empty table with a fresh ULID.
func NewTable(logger *logrus.Entry) *Table {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Table{
		id:     ulid.Make().String(),
		root:   NewContainer(nil),
		logger: logger,
	}
}

// ID identifies the table in a Store.
func (t *Table) ID() string {
	t.l.RLock()
	defer t.l.RUnlock()
	return t.id
}

// SetListener replaces the listener of local changes.
func (t *Table) SetListener(listener ListenerFunc) {
	t.l.Lock()
	defer t.l.Unlock()
	t.listener = listener
}

// Root returns a copy of the table's root container.
func (t *Table) Root() *Component {
	t.l.RLock()
	defer t.l.RUnlock()
	return t.root.Copy()
}

// Component returns a copy of the component at path.
func (t *Table) Component(path *ComponentPath) (*Component, error) {
	t.l.RLock()
	defer t.l.RUnlock()

	c, err := t.lookup(path)
	if err != nil {
		return nil, err
	}
	return c.Copy(), nil
}

// ComponentCount returns the number of components on the table, not counting
// the root container.
func (t *Table) ComponentCount() int {
	t.l.RLock()
	defer t.l.RUnlock()
	return t.root.Count() - 1
}

// Hash returns the SHA256 hash of the table memento.
func (t *Table) Hash() ([]byte, error) {
	memento, err := t.TableState()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(memento), nil
}

// IncrementComponent applies a local change to the component at path and
// reports it to the listener.
func (t *Table) IncrementComponent(path *ComponentPath, inc *ComponentIncrement) error {
	data, err := inc.Marshal()
	if err != nil {
		return err
	}

	t.l.Lock()
	err = t.apply(path, inc)
	listener := t.listener
	t.l.Unlock()

	if err != nil {
		return err
	}

	if listener != nil {
		listener(path, data)
	}
	return nil
}

// IncrementComponentState implements the Manager interface.
func (t *Table) IncrementComponentState(path *ComponentPath, increment []byte) error {
	inc := &ComponentIncrement{}
	if err := inc.Unmarshal(increment); err != nil {
		return fmt.Errorf("decoding increment: %w", err)
	}

	t.l.Lock()
	defer t.l.Unlock()

	return t.apply(path, inc)
}

// SetTableState implements the Manager interface.
func (t *Table) SetTableState(memento []byte) error {
	m := &Memento{}
	if err := m.Unmarshal(memento); err != nil {
		return fmt.Errorf("decoding memento: %w", err)
	}
	if m.Root == nil {
		m.Root = NewContainer(nil)
	}
	if !m.Root.Container {
		return errors.New("memento root is not a container")
	}
	if err := m.Root.validate(); err != nil {
		return fmt.Errorf("memento: %w", err)
	}

	t.l.Lock()
	defer t.l.Unlock()

	if m.ID != "" {
		t.id = m.ID
	}
	t.root = m.Root

	t.logger.WithFields(logrus.Fields{
		"table":      t.id,
		"components": t.root.Count() - 1,
	}).Debug("table state replaced")

	return nil
}

// TableState implements the Manager interface.
func (t *Table) TableState() ([]byte, error) {
	t.l.RLock()
	defer t.l.RUnlock()

	m := &Memento{
		ID:   t.id,
		Root: t.root,
	}
	return m.Marshal()
}

func (t *Table) apply(path *ComponentPath, inc *ComponentIncrement) error {
	c, err := t.lookup(path)
	if err != nil {
		return err
	}
	if err := inc.apply(c); err != nil {
		return fmt.Errorf("component %s: %w", path, err)
	}
	return nil
}

func (t *Table) lookup(path *ComponentPath) (*Component, error) {
	c := t.root
	for _, index := range path.Indices() {
		if index >= len(c.Children) {
			return nil, fmt.Errorf("no component at %s", path)
		}
		c = c.Children[index]
		if c == nil {
			return nil, fmt.Errorf("no component at %s: %w", path, ErrNilComponent)
		}
	}
	return c, nil
}
