package table

import (
	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"

	cm "github.com/gamegineer/tablenet/src/common"
)

const tablePrefix = "table_"

// BadgerStore is a Store backed by a badger database.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// LoadOrCreateBadgerStore opens the badger database at path, creating it if
// it does not exist.
func LoadOrCreateBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithLogger(badgerLogger{logger})

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

// SaveTable implements the Store interface.
func (s *BadgerStore) SaveTable(id string, memento []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tableKey(id), memento)
	})
}

// LoadTable implements the Store interface.
func (s *BadgerStore) LoadTable(id string) ([]byte, error) {
	var memento []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tableKey(id))
		if err != nil {
			return err
		}
		memento, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapError(err, "Table", id)
	}
	return memento, nil
}

// LastTableID implements the Store interface.
func (s *BadgerStore) LastTableID() (string, error) {
	var last string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode, seek to the largest key of the prefix.
		prefix := []byte(tablePrefix)
		it.Seek(append(prefix, 0xff))
		if it.ValidForPrefix(prefix) {
			last = string(it.Item().Key()[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if last == "" {
		return "", cm.NewStoreErr("Table", cm.Empty, "")
	}
	return last, nil
}

// TableIDs implements the Store interface.
func (s *BadgerStore) TableIDs() ([]string, error) {
	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(tablePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func tableKey(id string) []byte {
	return []byte(tablePrefix + id)
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}

// badgerLogger routes badger's own logging through logrus. Badger is chatty
// at Info level, so that is demoted to Debug.
type badgerLogger struct {
	entry *logrus.Entry
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	if l.entry != nil {
		l.entry.Errorf(format, args...)
	}
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	if l.entry != nil {
		l.entry.Warnf(format, args...)
	}
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	if l.entry != nil {
		l.entry.Debugf(format, args...)
	}
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	if l.entry != nil {
		l.entry.Debugf(format, args...)
	}
}
