package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// MigrationProgress reports how far a migration step has got.
type MigrationProgress struct {
	FromVersion  int
	ToVersion    int
	EntriesTotal int64
	EntriesDone  int64
	Flight       uint16
}

// MigrationProgressFunc receives progress updates; it may be nil.
type MigrationProgressFunc func(MigrationProgress)

// migration upgrades a store from version to-1 to version to.
type migration struct {
	to   int
	name string
	run  func(s *Store, ctx context.Context, report MigrationProgressFunc) error
}

// migrations is ordered by target version and ends at CurrentSchemaVersion.
var migrations = []migration{
	{to: 2, name: "index flight lengths", run: (*Store).indexFlightLengths},
}

// progressEvery is how many records pass between progress reports.
const progressEvery = 1000

// Migrate runs the pending migrations in order, stamping the schema after
// each one, and returns how many ran. A store without a schema but with
// records predates versioning and is treated as version 1; an empty one is
// stamped with the current version.
func (s *Store) Migrate(ctx context.Context, onProgress MigrationProgressFunc) (int, error) {
	from := s.schemaVersion()
	if from >= CurrentSchemaVersion {
		if s.GetSchema() == nil {
			return 0, s.stamp(CurrentSchemaVersion)
		}
		return 0, nil
	}

	ran := 0
	for _, m := range migrations {
		if m.to <= from {
			continue
		}
		if err := ctx.Err(); err != nil {
			return ran, err
		}
		report := onProgress
		if report != nil {
			report = func(p MigrationProgress) {
				p.FromVersion, p.ToVersion = m.to-1, m.to
				onProgress(p)
			}
		}
		if err := m.run(s, ctx, report); err != nil {
			return ran, fmt.Errorf("migrate to v%d (%s): %w", m.to, m.name, err)
		}
		if err := s.stamp(m.to); err != nil {
			return ran, err
		}
		ran++
	}
	return ran, nil
}

// schemaVersion returns the stored version, 1 for an unversioned store with
// records, or the current version for an empty one.
func (s *Store) schemaVersion() int {
	if schema := s.GetSchema(); schema != nil {
		return schema.Version
	}
	if s.CountEntries() > 0 {
		return 1
	}
	return CurrentSchemaVersion
}

func (s *Store) stamp(version int) error {
	return s.SetSchema(&Schema{Version: version, UpdatedAt: time.Now()})
}

// indexFlightLengths scans the record keys and writes each flight's length,
// which LastFlight and FlightLen read instead of iterating records.
func (s *Store) indexFlightLengths(ctx context.Context, report MigrationProgressFunc) error {
	var total, done int64
	if report != nil {
		total = s.CountEntries()
	}
	lengths := make(map[uint16]uint16)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecord)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()[len(prefixRecord):]
			flight, entry := binary.BigEndian.Uint16(key), binary.BigEndian.Uint16(key[2:])
			if entry >= lengths[flight] {
				lengths[flight] = entry + 1
			}

			done++
			if report != nil && done%progressEvery == 0 {
				report(MigrationProgress{EntriesTotal: total, EntriesDone: done, Flight: flight})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for flight, n := range lengths {
		if err := wb.Set(flightKey(flight), binary.BigEndian.AppendUint16(nil, n)); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}

	if report != nil {
		report(MigrationProgress{EntriesTotal: total, EntriesDone: done})
	}
	return nil
}
