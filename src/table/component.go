package table

import "errors"

var (
	// ErrNilComponent is returned for a component tree holding a nil
	// component.
	ErrNilComponent = errors.New("nil component")
	// ErrLeafChildren is returned for a leaf component that has children.
	ErrLeafChildren = errors.New("leaf component has children")
)

// Component is a node of the table's component tree. Only containers may
// have children.
type Component struct {
	Attributes map[string]string
	Container  bool
	Children   []*Component
}

// NewComponent returns a leaf component with the given attributes.
func NewComponent(attributes map[string]string) *Component {
	return &Component{
		Attributes: copyAttributes(attributes),
	}
}

// NewContainer returns a container holding children.
func NewContainer(attributes map[string]string, children ...*Component) *Component {
	return &Component{
		Attributes: copyAttributes(attributes),
		Container:  true,
		Children:   children,
	}
}

// Copy returns a deep copy of c.
func (c *Component) Copy() *Component {
	if c == nil {
		return nil
	}
	cp := &Component{
		Attributes: copyAttributes(c.Attributes),
		Container:  c.Container,
	}
	if len(c.Children) > 0 {
		cp.Children = make([]*Component, len(c.Children))
		for i, child := range c.Children {
			cp.Children[i] = child.Copy()
		}
	}
	return cp
}

// validate checks the subtree rooted at c. Trees decoded from the network
// go through it before they reach the table.
func (c *Component) validate() error {
	if c == nil {
		return ErrNilComponent
	}
	if !c.Container && len(c.Children) > 0 {
		return ErrLeafChildren
	}
	for _, child := range c.Children {
		if err := child.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of components in the subtree rooted at c,
// including c.
func (c *Component) Count() int {
	if c == nil {
		return 0
	}
	n := 1
	for _, child := range c.Children {
		n += child.Count()
	}
	return n
}

func copyAttributes(attributes map[string]string) map[string]string {
	if len(attributes) == 0 {
		return nil
	}
	cp := make(map[string]string, len(attributes))
	for k, v := range attributes {
		cp[k] = v
	}
	return cp
}
