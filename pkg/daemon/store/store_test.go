package store_test

import (
	"errors"
	"testing"

	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
)

func textRecords(msgs ...string) [][]byte {
	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		// Flight and index are deliberately wrong; AppendFlight renumbers.
		out[i] = codec.Encode(&logbook.Entry{Flight: 99, Index: 42, OffsetMs: uint32(i * 10), Kind: logbook.KindText, Payload: []byte(m)})
	}
	return out
}

func openMem(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAppendFlight(t *testing.T) {
	s := openMem(t)

	if _, ok := s.LastFlight(); ok {
		t.Fatal("empty store should have no last flight")
	}

	f0, err := s.AppendFlight(textRecords("boot", "armed", "landed"))
	if err != nil {
		t.Fatalf("AppendFlight failed: %v", err)
	}
	f1, err := s.AppendFlight(textRecords("boot"))
	if err != nil {
		t.Fatalf("AppendFlight failed: %v", err)
	}

	if f0 != 0 || f1 != 1 {
		t.Errorf("Expected flights 0 and 1, got %d and %d", f0, f1)
	}
	if last, _ := s.LastFlight(); last != 1 {
		t.Errorf("Expected last flight 1, got %d", last)
	}
	if n := s.FlightLen(0); n != 3 {
		t.Errorf("Expected 3 entries in flight 0, got %d", n)
	}
	if n := s.FlightLen(7); n != 0 {
		t.Errorf("Expected no entries in flight 7, got %d", n)
	}
	if n := s.CountEntries(); n != 4 {
		t.Errorf("Expected 4 records, got %d", n)
	}

	raw, err := s.Record(0, 2)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	e, err := codec.Decode(raw, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if e.Key() != (logbook.Key{Flight: 0, Index: 2}) || string(e.Payload) != "landed" {
		t.Errorf("Unexpected record %s %q", e.Key(), e.Payload)
	}
}

func TestStoreRecordNotFound(t *testing.T) {
	s := openMem(t)
	if _, err := s.Record(0, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreFlights(t *testing.T) {
	s := openMem(t)
	_, _ = s.AppendFlight(textRecords("a", "b"))
	_, _ = s.AppendFlight(textRecords("c"))

	flights, err := s.Flights()
	if err != nil {
		t.Fatalf("Flights failed: %v", err)
	}
	if len(flights) != 2 {
		t.Fatalf("Expected 2 flights, got %d", len(flights))
	}
	if flights[0].Entries != 2 || flights[1].Entries != 1 {
		t.Errorf("Unexpected entry counts %+v", flights)
	}
	if flights[0].Bytes != int64(2*(codec.HeaderSize+1)) {
		t.Errorf("Expected %d bytes in flight 0, got %d", 2*(codec.HeaderSize+1), flights[0].Bytes)
	}
}

func TestStoreFormatKeepsObjects(t *testing.T) {
	s := openMem(t)
	_, _ = s.AppendFlight(textRecords("a"))
	if err := s.PutObject(0x1234, 0, []byte{1, 2}); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	if err := s.Format(); err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	if n := s.CountEntries(); n != 0 {
		t.Errorf("Expected no records after format, got %d", n)
	}
	if _, ok := s.LastFlight(); ok {
		t.Error("Expected no flights after format")
	}
	got, err := s.Object(0x1234, 0)
	if err != nil || len(got) != 2 {
		t.Errorf("Object lost by format: %v %v", got, err)
	}

	f, _ := s.AppendFlight(textRecords("again"))
	if f != 0 {
		t.Errorf("Expected numbering to restart at 0, got %d", f)
	}
}

func TestStoreObjects(t *testing.T) {
	s := openMem(t)

	if _, err := s.Object(1, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	_ = s.PutObject(1, 0, []byte("zero"))
	_ = s.PutObject(1, 1, []byte("one"))

	got, _ := s.Object(1, 1)
	if string(got) != "one" {
		t.Errorf("Expected instance 1 value, got %q", got)
	}
}

func TestStoreSeeded(t *testing.T) {
	s := openMem(t)

	if s.Seeded("/logs/a.opl", 100) {
		t.Error("Unseen file reported as seeded")
	}
	if err := s.MarkSeeded("/logs/a.opl", 100); err != nil {
		t.Fatalf("MarkSeeded failed: %v", err)
	}
	if !s.Seeded("/logs/a.opl", 100) {
		t.Error("Expected file to be seeded")
	}
	if s.Seeded("/logs/a.opl", 200) {
		t.Error("Modified file should not count as seeded")
	}
}

func TestStorePersists(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, _ = s.AppendFlight(textRecords("a", "b"))
	_ = s.Close()

	s, err = store.Open(dir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()
	if n := s.FlightLen(0); n != 2 {
		t.Errorf("Expected 2 entries after reopen, got %d", n)
	}
}
