package table

import (
	"sort"
	"sync"

	cm "github.com/gamegineer/tablenet/src/common"
)

// Store keeps table mementos keyed by table id. Table ids are ULIDs, so
// their lexical order is the order in which the tables were created.
type Store interface {
	SaveTable(id string, memento []byte) error
	LoadTable(id string) ([]byte, error)
	LastTableID() (string, error)
	TableIDs() ([]string, error)
	StorePath() string
	Close() error
}

// InmemStore is a Store that only lives as long as the process.
type InmemStore struct {
	l      sync.RWMutex
	tables map[string][]byte
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		tables: make(map[string][]byte),
	}
}

// SaveTable implements the Store interface.
func (s *InmemStore) SaveTable(id string, memento []byte) error {
	s.l.Lock()
	defer s.l.Unlock()

	cp := make([]byte, len(memento))
	copy(cp, memento)
	s.tables[id] = cp
	return nil
}

// LoadTable implements the Store interface.
func (s *InmemStore) LoadTable(id string) ([]byte, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	memento, ok := s.tables[id]
	if !ok {
		return nil, cm.NewStoreErr("Table", cm.KeyNotFound, id)
	}
	cp := make([]byte, len(memento))
	copy(cp, memento)
	return cp, nil
}

// LastTableID implements the Store interface.
func (s *InmemStore) LastTableID() (string, error) {
	ids, _ := s.TableIDs()
	if len(ids) == 0 {
		return "", cm.NewStoreErr("Table", cm.Empty, "")
	}
	return ids[len(ids)-1], nil
}

// TableIDs implements the Store interface.
func (s *InmemStore) TableIDs() ([]string, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	ids := make([]string, 0, len(s.tables))
	for id := range s.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
