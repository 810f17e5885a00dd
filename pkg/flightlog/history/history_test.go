package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newHistory(t *testing.T) *History {
	t.Helper()
	h, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error for empty directory")
	}
}

func TestHistory_EnsureDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "history")

	h, _ := New(dir)
	if err := h.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("history directory not created: %v", err)
	}
}

func TestHistory_Record(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	e, err := h.Record(Entry{Operation: OpExport, Source: "sim", Path: "/tmp/a.csv", Format: "csv", Entries: 12, Bytes: 400})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !strings.HasPrefix(e.ID, "export-") {
		t.Errorf("ID = %q, want export- prefix", e.ID)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if _, err := os.Stat(filepath.Join(h.Dir(), e.ID+".json")); err != nil {
		t.Errorf("entry file missing: %v", err)
	}

	got, err := h.Get(e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Path != "/tmp/a.csv" || got.Entries != 12 {
		t.Errorf("Get() = %+v", got)
	}
}

func TestHistory_List(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, op := range []OperationType{OpRetrieve, OpExport, OpRetrieve, OpClear} {
		if _, err := h.Record(Entry{Operation: op, Timestamp: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := h.List("", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List() returned %d entries, want 4", len(all))
	}
	if all[0].Operation != OpClear {
		t.Errorf("newest entry = %s, want clear", all[0].Operation)
	}

	retrievals, _ := h.List(OpRetrieve, 0)
	if len(retrievals) != 2 {
		t.Errorf("List(retrieve) returned %d entries, want 2", len(retrievals))
	}

	limited, _ := h.List("", 3)
	if len(limited) != 3 {
		t.Errorf("List(limit 3) returned %d entries", len(limited))
	}
}

func TestHistory_ListMissingDir(t *testing.T) {
	t.Parallel()
	h, _ := New(filepath.Join(t.TempDir(), "missing"))

	entries, err := h.List("", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %v, want empty slice", entries)
	}
}

func TestHistory_GetByPrefix(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	e, _ := h.Record(Entry{Operation: OpRetrieve})
	got, err := h.Get(e.ID[:len(e.ID)-4])
	if err != nil || got.ID != e.ID {
		t.Errorf("Get(prefix) = %v, %v", got, err)
	}

	if _, err := h.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestHistory_SkipsCorruptFiles(t *testing.T) {
	t.Parallel()
	h := newHistory(t)
	_, _ = h.Record(Entry{Operation: OpExport})
	_ = os.WriteFile(filepath.Join(h.Dir(), "junk.json"), []byte("{"), 0o644)

	entries, err := h.List("", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() returned %d entries, want 1", len(entries))
	}
}

func TestHistory_Cleanup(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	old, _ := h.Record(Entry{Operation: OpExport})
	_, _ = h.Record(Entry{Operation: OpExport})

	past := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(filepath.Join(h.Dir(), old.ID+".json"), past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := h.Cleanup(7)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}

	if n, _ := h.Cleanup(0); n != 0 {
		t.Errorf("Cleanup(0) removed %d, want 0", n)
	}
}

func TestHistory_ConcurrentRecord(t *testing.T) {
	t.Parallel()
	h := newHistory(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Record(Entry{Operation: OpRetrieve}); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, _ := h.List("", 0)
	if len(entries) != 10 {
		t.Errorf("List() returned %d entries, want 10", len(entries))
	}
}
