package table

import (
	"errors"
	"fmt"
)

// ErrNotContainer is returned when children are added to or removed from a
// component that is not a container.
var ErrNotContainer = errors.New("component is not a container")

// ComponentsInsertion inserts Components before position Index of a container.
type ComponentsInsertion struct {
	Index      int
	Components []*Component
}

// ComponentsRemoval removes Count children starting at position Index of a
// container.
type ComponentsRemoval struct {
	Index int
	Count int
}

// ComponentIncrement is an incremental change to the state of one component.
// Removals are applied before additions.
type ComponentIncrement struct {
	SetAttributes    map[string]string
	RemoveAttributes []string
	RemoveComponents *ComponentsRemoval
	AddComponents    *ComponentsInsertion
}

// IsEmpty reports whether the increment changes nothing.
func (inc *ComponentIncrement) IsEmpty() bool {
	return len(inc.SetAttributes) == 0 &&
		len(inc.RemoveAttributes) == 0 &&
		inc.RemoveComponents == nil &&
		inc.AddComponents == nil
}

// Marshal encodes the increment with msgpack.
func (inc *ComponentIncrement) Marshal() ([]byte, error) {
	return encode(inc)
}

// Unmarshal decodes an increment produced by Marshal.
func (inc *ComponentIncrement) Unmarshal(data []byte) error {
	return decode(data, inc)
}

// apply checks the whole increment against c before changing anything, so a
// rejected increment leaves c untouched.
func (inc *ComponentIncrement) apply(c *Component) error {
	if inc.RemoveComponents != nil || inc.AddComponents != nil {
		if !c.Container {
			return ErrNotContainer
		}
	}

	size := len(c.Children)
	if r := inc.RemoveComponents; r != nil {
		if r.Index < 0 || r.Count < 0 || r.Index+r.Count > size {
			return fmt.Errorf("cannot remove %d components at %d from %d", r.Count, r.Index, size)
		}
		size -= r.Count
	}
	if a := inc.AddComponents; a != nil {
		if a.Index < 0 || a.Index > size {
			return fmt.Errorf("cannot insert components at %d into %d", a.Index, size)
		}
		for i, comp := range a.Components {
			if err := comp.validate(); err != nil {
				return fmt.Errorf("inserted component %d: %w", i, err)
			}
		}
	}

	for _, name := range inc.RemoveAttributes {
		delete(c.Attributes, name)
	}
	if len(inc.SetAttributes) > 0 && c.Attributes == nil {
		c.Attributes = make(map[string]string, len(inc.SetAttributes))
	}
	for name, value := range inc.SetAttributes {
		c.Attributes[name] = value
	}

	if r := inc.RemoveComponents; r != nil {
		c.Children = append(c.Children[:r.Index], c.Children[r.Index+r.Count:]...)
	}
	if a := inc.AddComponents; a != nil {
		added := make([]*Component, len(a.Components))
		for i, comp := range a.Components {
			added[i] = comp.Copy()
		}
		children := make([]*Component, 0, len(c.Children)+len(added))
		children = append(children, c.Children[:a.Index]...)
		children = append(children, added...)
		children = append(children, c.Children[a.Index:]...)
		c.Children = children
	}

	return nil
}
