package table

// Manager is the seam between the table network and the table model. The
// network calls it from its node layer to apply changes made by other
// players; implementations must not call back into the network.
type Manager interface {
	// IncrementComponentState applies an encoded increment to the component
	// at path.
	IncrementComponentState(path *ComponentPath, increment []byte) error

	// SetTableState replaces the whole table with an encoded memento.
	SetTableState(memento []byte) error

	// TableState returns an encoded memento of the whole table.
	TableState() ([]byte, error)
}
