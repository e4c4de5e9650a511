// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

// Package store implements the durable local event queue: one directory per
// collection, one file per queued event, bounded by a per-collection capacity
// with oldest-first eviction.
//
// Durability here is best-effort. A failed write or delete is
// logged and the operation returns normally, so a transient filesystem
// problem on the host device degrades the queue instead of crashing the
// host application.
//
// Record files are named <millis>.<counter> with both components zero-padded
// to fixed width, so lexicographic order on names equals enqueue order. The
// counter disambiguates events enqueued within the same millisecond.
//
// Collection names are used verbatim as directory names. A name containing a
// path separator therefore nests directories under the queue root; only the
// innermost level is ever listed, so records written there are stranded.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventspool/internal/logging"
	"github.com/tomtom215/eventspool/internal/metrics"
)

const (
	// queueDirName is the sub-directory of the cache root that holds all
	// collection directories.
	queueDirName = "keen"

	// recordNameFormat zero-pads the millisecond timestamp to 13 digits and
	// the same-millisecond counter to 4, keeping lexicographic order equal
	// to chronological order.
	recordNameFormat = "%013d.%04d"

	// quarantineSuffix marks records that failed to deserialize. Quarantined
	// files are excluded from listings and never uploaded or evicted.
	quarantineSuffix = ".corrupt"

	dirPerm  = 0o700
	filePerm = 0o600
)

// Record identifies one queued event file on disk.
type Record struct {
	// Collection is the name of the collection the record belongs to.
	Collection string

	// Path is the absolute path of the record file.
	Path string
}

// Name returns the record's file name.
func (r Record) Name() string {
	return filepath.Base(r.Path)
}

// Store is the durable, bounded, per-collection event queue.
//
// Enqueue, ReadAll and the eviction scan inside Enqueue hold a per-collection
// mutex, so concurrent adds and uploads cannot interleave a directory scan
// with a write or delete in the same collection.
type Store struct {
	root       string // <cache-root>/keen
	capacity   int    // max records per collection before eviction
	evictBatch int    // records removed per eviction

	mu    sync.Mutex // guards locks
	locks map[string]*sync.Mutex

	log zerolog.Logger
}

// Open prepares the queue root under cacheRoot and returns the store.
// It fails if the root directory cannot be created or accessed; the caller
// is expected to treat that as an initialization error and degrade to inert.
func Open(cacheRoot string, capacity, evictBatch int) (*Store, error) {
	root := filepath.Join(cacheRoot, queueDirName)
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create queue root %s: %w", root, err)
	}
	return &Store{
		root:       root,
		capacity:   capacity,
		evictBatch: evictBatch,
		locks:      make(map[string]*sync.Mutex),
		log:        logging.With().Str("component", "store").Logger(),
	}, nil
}

// Root returns the queue root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) collectionLock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	return l
}

// Enqueue appends a serialized event to the collection's queue, creating the
// collection directory on first use and evicting the oldest records when the
// collection is at capacity. Failures are logged, never returned.
func (s *Store) Enqueue(collection string, payload []byte) {
	l := s.collectionLock(collection)
	l.Lock()
	defer l.Unlock()

	dir := filepath.Join(s.root, collection)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		s.log.Error().Err(err).Str("collection", collection).
			Msg("cannot create collection directory, event dropped")
		return
	}

	records, err := s.listLocked(collection)
	if err != nil {
		s.log.Error().Err(err).Str("collection", collection).
			Msg("cannot scan collection directory, event dropped")
		return
	}
	if len(records) >= s.capacity {
		s.log.Warn().Str("collection", collection).
			Int("count", len(records)).Int("capacity", s.capacity).
			Msg("collection at capacity, aging out oldest records")
		s.evictLocked(records)
	}

	path, f, err := s.claimRecordFile(dir)
	if err != nil {
		s.log.Error().Err(err).Str("collection", collection).
			Msg("cannot create record file, event dropped")
		return
	}
	_, werr := f.Write(payload)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		if werr == nil {
			werr = cerr
		}
		s.log.Error().Err(werr).Str("path", path).
			Msg("record write failed, removing partial file")
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Error().Err(rmErr).Str("path", path).Msg("cannot remove partial record")
		}
		return
	}

	metrics.EventsEnqueued.Inc()
	s.log.Debug().Str("collection", collection).Str("path", path).Msg("event queued")
}

// claimRecordFile creates the record file under an unused name, incrementing
// the counter until a free one is found. O_EXCL makes the claim atomic with
// respect to concurrent writers in other processes.
func (s *Store) claimRecordFile(dir string) (string, *os.File, error) {
	millis := time.Now().UnixMilli()
	for counter := 0; ; counter++ {
		path := filepath.Join(dir, fmt.Sprintf(recordNameFormat, millis, counter))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			return path, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, err
		}
	}
}

// evictLocked removes the oldest evictBatch records. Caller holds the
// collection lock and guarantees records is sorted oldest-first.
func (s *Store) evictLocked(records []Record) {
	n := s.evictBatch
	if n > len(records) {
		n = len(records)
	}
	for _, rec := range records[:n] {
		if err := os.Remove(rec.Path); err != nil {
			s.log.Error().Err(err).Str("path", rec.Path).
				Msg("cannot evict record, queue will exceed capacity")
			continue
		}
		metrics.EventsEvicted.Inc()
		s.log.Debug().Str("path", rec.Path).Msg("evicted oldest record")
	}
}

// Records lists the collection's queued records in enqueue order. Only
// regular files count; sub-directories and quarantined records are excluded.
func (s *Store) Records(collection string) ([]Record, error) {
	l := s.collectionLock(collection)
	l.Lock()
	defer l.Unlock()
	return s.listLocked(collection)
}

func (s *Store) listLocked(collection string) ([]Record, error) {
	dir := filepath.Join(s.root, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collection directory %s: %w", dir, err)
	}
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(entry.Name(), quarantineSuffix) {
			continue
		}
		records = append(records, Record{
			Collection: collection,
			Path:       filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// ReadAll returns the collection's records and their raw contents in enqueue
// order, holding the collection lock across the whole scan so a concurrent
// Enqueue cannot interleave. A record that cannot be read is skipped and
// logged; its entry is omitted from both slices.
func (s *Store) ReadAll(collection string) ([]Record, [][]byte, error) {
	l := s.collectionLock(collection)
	l.Lock()
	defer l.Unlock()

	records, err := s.listLocked(collection)
	if err != nil {
		return nil, nil, err
	}
	kept := make([]Record, 0, len(records))
	payloads := make([][]byte, 0, len(records))
	for _, rec := range records {
		data, err := os.ReadFile(rec.Path)
		if err != nil {
			s.log.Error().Err(err).Str("path", rec.Path).Msg("cannot read queued record, skipping")
			continue
		}
		kept = append(kept, rec)
		payloads = append(payloads, data)
	}
	return kept, payloads, nil
}

// Collections returns the names of all collection directories under the
// queue root. Non-directory entries are ignored.
func (s *Store) Collections() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read queue root %s: %w", s.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a record from the queue. Best-effort: a failure is logged
// and the record will be picked up again by the next upload cycle.
func (s *Store) Delete(rec Record, reason string) {
	l := s.collectionLock(rec.Collection)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(rec.Path); err != nil {
		s.log.Error().Err(err).Str("path", rec.Path).
			Msg("cannot remove queued record, it will be uploaded again")
		return
	}
	metrics.EventsDeleted.WithLabelValues(reason).Inc()
	s.log.Debug().Str("path", rec.Path).Str("reason", reason).Msg("deleted queued record")
}

// Quarantine renames an undeserializable record out of the queue so it is
// not retried unboundedly. The rename keeps the bytes on disk for diagnosis.
func (s *Store) Quarantine(rec Record) {
	l := s.collectionLock(rec.Collection)
	l.Lock()
	defer l.Unlock()

	if err := os.Rename(rec.Path, rec.Path+quarantineSuffix); err != nil {
		s.log.Error().Err(err).Str("path", rec.Path).Msg("cannot quarantine corrupt record")
		return
	}
	metrics.EventsQuarantined.Inc()
	s.log.Warn().Str("path", rec.Path).Msg("quarantined undeserializable record")
}
