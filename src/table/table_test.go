package table

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/gamegineer/tablenet/src/common"
)

func newTestTable(t *testing.T) *Table {
	return NewTable(common.NewTestEntry(t, common.TestLogLevel))
}

func mustPath(t *testing.T, indices ...int) *ComponentPath {
	path, err := ComponentPathFromIndices(indices)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

// populate lays out a deck holding two cards, and a loose card.
func populate(t *testing.T, tbl *Table) {
	err := tbl.IncrementComponent(nil, &ComponentIncrement{
		AddComponents: &ComponentsInsertion{
			Index: 0,
			Components: []*Component{
				NewContainer(map[string]string{"name": "deck"},
					NewComponent(map[string]string{"card": "AS"}),
					NewComponent(map[string]string{"card": "KD"}),
				),
				NewComponent(map[string]string{"card": "7C"}),
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableLocalIncrementNotifiesListener(t *testing.T) {
	tbl := newTestTable(t)

	var paths []*ComponentPath
	var increments [][]byte
	tbl.SetListener(func(path *ComponentPath, increment []byte) {
		paths = append(paths, path)
		increments = append(increments, increment)
	})

	populate(t, tbl)
	assert.Equal(t, 3, tbl.ComponentCount())

	err := tbl.IncrementComponent(mustPath(t, 0, 1), &ComponentIncrement{
		SetAttributes: map[string]string{"faceUp": "true"},
	})
	assert.Equal(t, err, nil)

	assert.Equal(t, 2, len(increments))
	assert.Equal(t, true, paths[1].Equal(mustPath(t, 0, 1)))

	// The listener receives what IncrementComponentState accepts.
	replica := newTestTable(t)
	assert.Equal(t, replica.IncrementComponentState(paths[0], increments[0]), nil)
	assert.Equal(t, replica.IncrementComponentState(paths[1], increments[1]), nil)

	card, err := replica.Component(mustPath(t, 0, 1))
	assert.Equal(t, err, nil)
	assert.Equal(t, "KD", card.Attributes["card"])
	assert.Equal(t, "true", card.Attributes["faceUp"])
}

func TestTableRemoteIncrementIsSilent(t *testing.T) {
	tbl := newTestTable(t)
	populate(t, tbl)

	notified := false
	tbl.SetListener(func(*ComponentPath, []byte) { notified = true })

	inc := &ComponentIncrement{RemoveAttributes: []string{"card"}}
	data, err := inc.Marshal()
	assert.Equal(t, err, nil)

	assert.Equal(t, tbl.IncrementComponentState(mustPath(t, 1), data), nil)
	assert.Equal(t, false, notified)

	card, _ := tbl.Component(mustPath(t, 1))
	_, ok := card.Attributes["card"]
	assert.Equal(t, false, ok)
}

func TestTableRemoveAndInsertComponents(t *testing.T) {
	tbl := newTestTable(t)
	populate(t, tbl)

	// Move the top card of the deck to the bottom
	err := tbl.IncrementComponent(mustPath(t, 0), &ComponentIncrement{
		RemoveComponents: &ComponentsRemoval{Index: 0, Count: 1},
		AddComponents: &ComponentsInsertion{
			Index:      1,
			Components: []*Component{NewComponent(map[string]string{"card": "AS"})},
		},
	})
	assert.Equal(t, err, nil)

	deck, _ := tbl.Component(mustPath(t, 0))
	assert.Equal(t, 2, len(deck.Children))
	assert.Equal(t, "KD", deck.Children[0].Attributes["card"])
	assert.Equal(t, "AS", deck.Children[1].Attributes["card"])
}

func TestTableRejectsBadIncrements(t *testing.T) {
	tbl := newTestTable(t)
	populate(t, tbl)

	before, _ := tbl.TableState()

	// Children on a leaf
	err := tbl.IncrementComponent(mustPath(t, 1), &ComponentIncrement{
		AddComponents: &ComponentsInsertion{Components: []*Component{NewComponent(nil)}},
	})
	assert.NotEqual(t, err, nil)

	// Removal past the end, with an attribute change that must not stick
	err = tbl.IncrementComponent(mustPath(t, 0), &ComponentIncrement{
		SetAttributes:    map[string]string{"name": "pile"},
		RemoveComponents: &ComponentsRemoval{Index: 1, Count: 5},
	})
	assert.NotEqual(t, err, nil)

	// Unknown component
	err = tbl.IncrementComponent(mustPath(t, 4), &ComponentIncrement{})
	assert.NotEqual(t, err, nil)

	err = tbl.IncrementComponentState(mustPath(t, 0), []byte{0xc1})
	assert.NotEqual(t, err, nil)

	after, _ := tbl.TableState()
	assert.Equal(t, before, after)
}

func TestTableState(t *testing.T) {
	tbl := newTestTable(t)
	populate(t, tbl)

	memento, err := tbl.TableState()
	assert.Equal(t, err, nil)

	replica := newTestTable(t)
	assert.NotEqual(t, tbl.ID(), replica.ID())
	assert.Equal(t, replica.SetTableState(memento), nil)

	assert.Equal(t, tbl.ID(), replica.ID())
	assert.Equal(t, tbl.Root(), replica.Root())

	h1, err := tbl.Hash()
	assert.Equal(t, err, nil)
	h2, err := replica.Hash()
	assert.Equal(t, err, nil)
	assert.Equal(t, h1, h2)

	// Mutating the replica leaves the original alone.
	err = replica.IncrementComponent(mustPath(t, 1), &ComponentIncrement{
		SetAttributes: map[string]string{"card": "8C"},
	})
	assert.Equal(t, err, nil)
	h3, _ := replica.Hash()
	assert.NotEqual(t, h1, h3)

	card, _ := tbl.Component(mustPath(t, 1))
	assert.Equal(t, "7C", card.Attributes["card"])
}

func TestTableRejectsNilComponents(t *testing.T) {
	tbl := newTestTable(t)
	populate(t, tbl)

	before, _ := tbl.TableState()

	increments := []*ComponentIncrement{
		{AddComponents: &ComponentsInsertion{Components: []*Component{nil}}},
		{AddComponents: &ComponentsInsertion{Components: []*Component{
			NewContainer(nil, NewComponent(nil), nil),
		}}},
		{AddComponents: &ComponentsInsertion{Components: []*Component{
			{Children: []*Component{NewComponent(nil)}},
		}}},
	}
	for _, inc := range increments {
		data, err := inc.Marshal()
		assert.Equal(t, err, nil)

		err = tbl.IncrementComponentState(nil, data)
		assert.NotEqual(t, err, nil)
	}

	// A nil child in a memento
	bad := &Memento{
		ID:   "bad",
		Root: NewContainer(nil, NewContainer(nil, nil)),
	}
	memento, err := bad.Marshal()
	assert.Equal(t, err, nil)
	err = tbl.SetTableState(memento)
	assert.Equal(t, errors.Is(err, ErrNilComponent), true)

	after, _ := tbl.TableState()
	assert.Equal(t, before, after)

	// The table is still usable
	err = tbl.IncrementComponentState(mustPath(t, 0, 0), mustMarshal(t, &ComponentIncrement{
		SetAttributes: map[string]string{"faceUp": "true"},
	}))
	assert.Equal(t, err, nil)
}

func TestTableLookupNilChild(t *testing.T) {
	tbl := newTestTable(t)
	tbl.root = NewContainer(nil, nil)

	_, err := tbl.Component(mustPath(t, 0))
	assert.Equal(t, errors.Is(err, ErrNilComponent), true)

	err = tbl.IncrementComponent(mustPath(t, 0, 1), &ComponentIncrement{})
	assert.Equal(t, errors.Is(err, ErrNilComponent), true)
}

func mustMarshal(t *testing.T, inc *ComponentIncrement) []byte {
	data, err := inc.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	return data
}
