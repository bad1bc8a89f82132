package table

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidIndex is returned when a component path is built from a negative
// child index.
var ErrInvalidIndex = errors.New("component path index must not be negative")

// ComponentPath is the structural address of a component in the table: the
// path of its container and its index within that container. A nil
// *ComponentPath addresses the table itself. Paths are immutable.
type ComponentPath struct {
	parent *ComponentPath
	index  int
}

// NewComponentPath returns the path of the child at index in the container
// addressed by parent.
func NewComponentPath(parent *ComponentPath, index int) (*ComponentPath, error) {
	if index < 0 {
		return nil, ErrInvalidIndex
	}
	return &ComponentPath{
		parent: parent,
		index:  index,
	}, nil
}

// ComponentPathFromIndices builds a path from the child indices leading from
// the table down to the component. An empty slice yields the nil path.
func ComponentPathFromIndices(indices []int) (*ComponentPath, error) {
	var path *ComponentPath
	for _, index := range indices {
		p, err := NewComponentPath(path, index)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return path, nil
}

// Parent returns the path of the containing component, nil for top-level
// components.
func (p *ComponentPath) Parent() *ComponentPath {
	if p == nil {
		return nil
	}
	return p.parent
}

// Index returns the position of the component within its container.
func (p *ComponentPath) Index() int {
	if p == nil {
		return -1
	}
	return p.index
}

// Depth is the number of indices in the path.
func (p *ComponentPath) Depth() int {
	depth := 0
	for c := p; c != nil; c = c.parent {
		depth++
	}
	return depth
}

// Indices returns the child indices from the table down to the component.
func (p *ComponentPath) Indices() []int {
	indices := make([]int, p.Depth())
	i := len(indices) - 1
	for c := p; c != nil; c = c.parent {
		indices[i] = c.index
		i--
	}
	return indices
}

// Equal reports whether both paths address the same position.
func (p *ComponentPath) Equal(other *ComponentPath) bool {
	for {
		if p == nil || other == nil {
			return p == nil && other == nil
		}
		if p.index != other.index {
			return false
		}
		p, other = p.parent, other.parent
	}
}

// String ...
func (p *ComponentPath) String() string {
	indices := p.Indices()
	parts := make([]string, len(indices))
	for i, index := range indices {
		parts[i] = strconv.Itoa(index)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
