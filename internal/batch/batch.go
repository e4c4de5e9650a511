// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

// Package batch assembles the transient upload request from the on-disk
// queue: every queued record across every collection, deserialized and
// grouped by collection name, with the parallel record handles the
// reconciler needs for deletion afterwards.
package batch

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventspool/internal/logging"
	"github.com/tomtom215/eventspool/internal/store"
)

// Request maps collection name to that collection's queued events in enqueue
// order. It is rebuilt from disk on every upload attempt and never persisted.
type Request map[string][]map[string]interface{}

// Handles maps collection name to the record files backing the Request, in
// the same order as the corresponding event slice. The positional alignment
// is what lets the reconciler translate per-event results back to files.
type Handles map[string][]store.Record

// Assembler builds upload requests from a Store.
type Assembler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewAssembler returns an Assembler reading from st.
func NewAssembler(st *store.Store) *Assembler {
	return &Assembler{
		store: st,
		log:   logging.With().Str("component", "batch").Logger(),
	}
}

// Build reads every queued record in every collection into a Request. A
// record that fails to deserialize is quarantined and skipped; the Request
// and Handles stay positionally aligned. An empty Request means there is
// nothing to upload and the caller should skip the network call.
func (a *Assembler) Build() (Request, Handles, error) {
	collections, err := a.store.Collections()
	if err != nil {
		return nil, nil, err
	}

	request := make(Request)
	handles := make(Handles)
	for _, collection := range collections {
		records, payloads, err := a.store.ReadAll(collection)
		if err != nil {
			a.log.Error().Err(err).Str("collection", collection).
				Msg("cannot read collection queue, skipping for this cycle")
			continue
		}

		events := make([]map[string]interface{}, 0, len(records))
		kept := make([]store.Record, 0, len(records))
		for i, rec := range records {
			var event map[string]interface{}
			if err := json.Unmarshal(payloads[i], &event); err != nil {
				a.log.Error().Err(err).Str("path", rec.Path).
					Msg("queued record is not valid JSON, quarantining")
				a.store.Quarantine(rec)
				continue
			}
			events = append(events, event)
			kept = append(kept, rec)
		}
		if len(events) == 0 {
			continue
		}
		request[collection] = events
		handles[collection] = kept
	}
	return request, handles, nil
}
