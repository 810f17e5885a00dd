// Package store provides Badger DB-backed storage for the simulated flight
// controller: its log records and the object values written to it.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
)

// Key prefixes for different data types
const (
	prefixRecord = "r:" // r:<flight u16><entry u16> -> raw record
	prefixFlight = "f:" // f:<flight u16> -> entry count u16
	prefixObject = "o:" // o:<type u32><instance u16> -> object value
	prefixMeta   = "m:" // schema and bookkeeping
	prefixSeed   = "s:" // s:<path> -> imported file stamp
)

// ErrNotFound is returned for records and objects that do not exist.
var ErrNotFound = errors.New("not found")

// FlightInfo summarises one stored flight.
type FlightInfo struct {
	Flight  uint16 `json:"flight"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// Store is the device log store backed by Badger DB.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at the given path. An empty path opens an
// in-memory store.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(flight, entry uint16) []byte {
	k := make([]byte, len(prefixRecord)+4)
	copy(k, prefixRecord)
	binary.BigEndian.PutUint16(k[2:], flight)
	binary.BigEndian.PutUint16(k[4:], entry)
	return k
}

func flightPrefix(flight uint16) []byte {
	return recordKey(flight, 0)[:len(prefixRecord)+2]
}

func flightKey(flight uint16) []byte {
	k := make([]byte, len(prefixFlight)+2)
	copy(k, prefixFlight)
	binary.BigEndian.PutUint16(k[2:], flight)
	return k
}

func objectKey(typeID uint32, instance uint16) []byte {
	k := make([]byte, len(prefixObject)+6)
	copy(k, prefixObject)
	binary.BigEndian.PutUint32(k[2:], typeID)
	binary.BigEndian.PutUint16(k[6:], instance)
	return k
}

// AppendFlight stores records as a new flight after the last one, renumbering
// them 0..n-1. It returns the new flight index.
func (s *Store) AppendFlight(records [][]byte) (uint16, error) {
	flight := uint16(0)
	if last, ok := s.LastFlight(); ok {
		if last == ^uint16(0) {
			return 0, errors.New("flight index space exhausted")
		}
		flight = last + 1
	}

	if len(records) > int(^uint16(0)) {
		return 0, fmt.Errorf("flight has %d records, limit is %d", len(records), ^uint16(0))
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, raw := range records {
		rekeyed, err := codec.Rekey(raw, flight, uint16(i))
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		if err := wb.Set(recordKey(flight, uint16(i)), rekeyed); err != nil {
			return 0, err
		}
	}
	count := make([]byte, 2)
	binary.BigEndian.PutUint16(count, uint16(len(records)))
	if err := wb.Set(flightKey(flight), count); err != nil {
		return 0, err
	}

	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return flight, nil
}

// Record returns the raw record at (flight, entry).
func (s *Store) Record(flight, entry uint16) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(flight, entry))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("record %d/%d: %w", flight, entry, ErrNotFound)
	}
	return raw, err
}

// FlightLen returns the number of entries in flight, zero if it does not
// exist.
func (s *Store) FlightLen(flight uint16) int {
	n := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(flightKey(flight))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) >= 2 {
				n = int(binary.BigEndian.Uint16(val))
			}
			return nil
		})
	})
	return n
}

// Flights returns every stored flight in index order.
func (s *Store) Flights() ([]FlightInfo, error) {
	var out []FlightInfo

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecord)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			flight := binary.BigEndian.Uint16(item.Key()[2:])
			if len(out) == 0 || out[len(out)-1].Flight != flight {
				out = append(out, FlightInfo{Flight: flight})
			}
			out[len(out)-1].Entries++
			out[len(out)-1].Bytes += item.ValueSize()
		}
		return nil
	})

	return out, err
}

// LastFlight returns the highest stored flight index.
func (s *Store) LastFlight() (uint16, bool) {
	var (
		last  uint16
		found bool
	)
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the largest possible flight key.
		it.Seek(append([]byte(prefixFlight), 0xFF, 0xFF, 0xFF))
		if it.ValidForPrefix([]byte(prefixFlight)) {
			last = binary.BigEndian.Uint16(it.Item().Key()[2:])
			found = true
		}
		return nil
	})
	return last, found
}

// CountEntries returns the total number of stored records.
func (s *Store) CountEntries() int64 {
	var count int64
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecord)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Format erases every flight. Object values survive, as they do on the
// device.
func (s *Store) Format() error {
	if err := s.db.DropPrefix([]byte(prefixRecord)); err != nil {
		return err
	}
	return s.db.DropPrefix([]byte(prefixFlight))
}

// PutObject stores the value of an object instance.
func (s *Store) PutObject(typeID uint32, instance uint16, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(objectKey(typeID, instance), data)
	})
}

// Object returns the stored value of an object instance.
func (s *Store) Object(typeID uint32, instance uint16) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(typeID, instance))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("object 0x%08X/%d: %w", typeID, instance, ErrNotFound)
	}
	return data, err
}

// MarkSeeded records that the file at path, with the given modification time,
// has been imported.
func (s *Store) MarkSeeded(path string, modTime int64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(modTime))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixSeed+path), val)
	})
}

// Seeded reports whether path was imported with the given modification time.
func (s *Store) Seeded(path string, modTime int64) bool {
	var same bool
	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixSeed + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			same = len(val) == 8 && int64(binary.BigEndian.Uint64(val)) == modTime
			return nil
		})
	})
	return same
}
