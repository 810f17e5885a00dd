package cache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a cache key does not exist.
var ErrNotFound = errors.New("cache entry not found")

// Store is the badger keyspace behind the cache. Keys are laid out by
// types.go; Store itself knows nothing about sessions or records.
type Store struct {
	db *badger.DB
}

// OpenStore opens the store at path, or an in-memory one when path is "".
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithInMemory(path == "").WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns a copy of the value at key.
func (s *Store) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

// Put writes a single key.
func (s *Store) Put(key, val []byte) error {
	return s.db.Update(func(txn *badger.Txn) error { return txn.Set(key, val) })
}

// PutBatch writes keys[i]=vals[i] through one write batch.
func (s *Store) PutBatch(keys, vals [][]byte) error {
	if len(keys) != len(vals) {
		return errors.New("cache: mismatched batch")
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, k := range keys {
		if err := wb.Set(k, vals[i]); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// each walks the keys under prefix in order. Values are only prefetched
// when withValues is set.
func (s *Store) each(prefix []byte, withValues bool, fn func(*badger.Item) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = withValues
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := fn(it.Item()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scan calls fn for every key under prefix in key order. val is only valid
// during the call.
func (s *Store) Scan(prefix []byte, fn func(key, val []byte) error) error {
	return s.each(prefix, true, func(item *badger.Item) error {
		return item.Value(func(val []byte) error { return fn(item.Key(), val) })
	})
}

// Count returns the number of keys under prefix.
func (s *Store) Count(prefix []byte) int {
	n := 0
	_ = s.each(prefix, false, func(*badger.Item) error { n++; return nil })
	return n
}

func (s *Store) DeletePrefix(prefix []byte) error { return s.db.DropPrefix(prefix) }

func (s *Store) DropAll() error { return s.db.DropAll() }
