package store

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Schema versions:
// 1 - flight records only
// 2 - per-flight entry counts under f:
const CurrentSchemaVersion = 2

const schemaKey = prefixMeta + "__schema__"

// Schema is the stamp kept beside the records.
type Schema struct {
	Version   int       `msgpack:"v"`
	UpdatedAt time.Time `msgpack:"at"`
}

// GetSchema returns the stored stamp, or nil for a database that predates
// stamping or cannot be read.
func (s *Store) GetSchema() *Schema {
	var schema *Schema
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var sc Schema
			if err := msgpack.Unmarshal(val, &sc); err != nil {
				return err
			}
			schema = &sc
			return nil
		})
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return schema
}

// SetSchema stamps the database.
func (s *Store) SetSchema(schema *Schema) error {
	data, err := msgpack.Marshal(schema)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

// NeedsMigration reports whether Migrate has work to do. An unstamped
// database only needs it when it already holds flights.
func (s *Store) NeedsMigration() bool {
	return s.schemaVersion() < CurrentSchemaVersion
}
