// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// testStore opens a store in a fresh temp dir with the test capacity
// configuration (capacity 5, evict batch 2).
func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), 5, 2)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s
}

// ============================================================================
// Open Tests
// ============================================================================

func TestOpenCreatesQueueRoot(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, 5, 2)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if s.Root() != filepath.Join(root, "keen") {
		t.Errorf("Root() = %q, want %q", s.Root(), filepath.Join(root, "keen"))
	}
	info, err := os.Stat(s.Root())
	if err != nil || !info.IsDir() {
		t.Errorf("queue root %s is not a directory: %v", s.Root(), err)
	}
}

func TestOpenFailsOnUnusableRoot(t *testing.T) {
	// A regular file where the root should be makes MkdirAll fail.
	root := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(root, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root, 5, 2); err == nil {
		t.Fatal("Open() on a file path succeeded, want error")
	}
}

// ============================================================================
// Enqueue Tests
// ============================================================================

func TestEnqueueWritesRecord(t *testing.T) {
	s := testStore(t)
	s.Enqueue("purchases", []byte(`{"item":"widget"}`))

	records, err := s.Records("purchases")
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	data, err := os.ReadFile(records[0].Path)
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	if string(data) != `{"item":"widget"}` {
		t.Errorf("record content = %s", data)
	}
}

func TestEnqueueSameMillisecondGetsDistinctNames(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 4; i++ {
		s.Enqueue("fast", []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}
	records, err := s.Records("fast")
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	seen := map[string]bool{}
	for _, rec := range records {
		if seen[rec.Name()] {
			t.Fatalf("duplicate record name %s", rec.Name())
		}
		seen[rec.Name()] = true
	}
}

func TestEnqueueEvictsOldestAtCapacity(t *testing.T) {
	s := testStore(t) // capacity 5, evict batch 2
	for i := 0; i < 6; i++ {
		s.Enqueue("purchases", []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	records, err := s.Records("purchases")
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	// 5 existing - 2 evicted + 1 new
	if len(records) != 4 {
		t.Fatalf("got %d records after eviction, want 4", len(records))
	}
	// The two oldest are gone: the survivors are events 2..5.
	data, err := os.ReadFile(records[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"n":2}` {
		t.Errorf("oldest surviving record = %s, want {\"n\":2}", data)
	}
}

// ============================================================================
// Listing Tests
// ============================================================================

func TestRecordsOrderedAndFiltered(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 3; i++ {
		s.Enqueue("orders", []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}
	// Sub-directories and quarantined files are not records.
	dir := filepath.Join(s.Root(), "orders")
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "0000000000000.0099.corrupt"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}

	records, err := s.Records("orders")
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].Name() >= records[i].Name() {
			t.Errorf("records out of order: %s before %s", records[i-1].Name(), records[i].Name())
		}
	}
}

func TestRecordsMissingCollectionIsEmpty(t *testing.T) {
	s := testStore(t)
	records, err := s.Records("nonexistent")
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records for missing collection, want 0", len(records))
	}
}

func TestCollectionsListsOnlyDirectories(t *testing.T) {
	s := testStore(t)
	s.Enqueue("alpha", []byte(`{"a":1}`))
	s.Enqueue("beta", []byte(`{"b":2}`))
	if err := os.WriteFile(filepath.Join(s.Root(), "strayfile"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	collections, err := s.Collections()
	if err != nil {
		t.Fatalf("Collections() failed: %v", err)
	}
	if len(collections) != 2 || collections[0] != "alpha" || collections[1] != "beta" {
		t.Errorf("Collections() = %v, want [alpha beta]", collections)
	}
}

// ============================================================================
// ReadAll / Delete / Quarantine Tests
// ============================================================================

func TestReadAllReturnsAlignedPayloads(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 3; i++ {
		s.Enqueue("orders", []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	records, payloads, err := s.ReadAll("orders")
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(records) != 3 || len(payloads) != 3 {
		t.Fatalf("got %d records and %d payloads, want 3 and 3", len(records), len(payloads))
	}
	for i, payload := range payloads {
		want := fmt.Sprintf(`{"n":%d}`, i)
		if string(payload) != want {
			t.Errorf("payload[%d] = %s, want %s", i, payload, want)
		}
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := testStore(t)
	s.Enqueue("orders", []byte(`{"n":0}`))
	records, _ := s.Records("orders")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	s.Delete(records[0], "accepted")

	records, _ = s.Records("orders")
	if len(records) != 0 {
		t.Errorf("got %d records after delete, want 0", len(records))
	}
}

func TestDeleteMissingRecordIsHarmless(t *testing.T) {
	s := testStore(t)
	s.Delete(Record{Collection: "orders", Path: filepath.Join(s.Root(), "orders", "gone")}, "accepted")
}

func TestQuarantineExcludesRecordFromQueue(t *testing.T) {
	s := testStore(t)
	s.Enqueue("orders", []byte(`not json`))
	records, _ := s.Records("orders")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	s.Quarantine(records[0])

	records, _ = s.Records("orders")
	if len(records) != 0 {
		t.Errorf("got %d records after quarantine, want 0", len(records))
	}
	// The bytes stay on disk under the quarantine name.
	data, err := os.ReadFile(records0Quarantined(s))
	if err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}
	if string(data) != "not json" {
		t.Errorf("quarantined content = %s", data)
	}
}

// records0Quarantined finds the single .corrupt file in the orders collection.
func records0Quarantined(s *Store) string {
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "orders"))
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".corrupt" {
			return filepath.Join(s.Root(), "orders", entry.Name())
		}
	}
	return ""
}
