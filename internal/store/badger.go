// SPDX-License-Identifier: MIT

package store

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/ManuGH/mtxpanel/internal/log"
)

// BadgerStore persists panel state in a BadgerDB directory.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// Load returns the value for key, or ok=false when the key is absent or
// the read fails. Read failures are logged, never propagated: the panel
// must start with empty state rather than refuse to start.
func (s *BadgerStore) Load(key string) (string, bool) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			logger := log.WithComponent("store")
			logger.Warn().
				Err(err).
				Str("event", "store.load_failed").
				Str("key", key).
				Msg("treating unreadable key as absent")
		}
		return "", false
	}
	return value, true
}

// Save writes value under key.
func (s *BadgerStore) Save(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

var _ Store = (*BadgerStore)(nil)
