// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

// Package reconcile walks the per-event upload results and settles each
// queued record: delete it (accepted, or rejected for a reason that can
// never succeed) or retain it for the next upload cycle.
//
// No rollback is attempted on anomalies; deletions that already happened
// stand, and whatever is left on disk is picked up by the next cycle.
package reconcile

import (
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventspool/internal/batch"
	"github.com/tomtom215/eventspool/internal/logging"
	"github.com/tomtom215/eventspool/internal/metrics"
	"github.com/tomtom215/eventspool/internal/store"
	"github.com/tomtom215/eventspool/internal/transport"
)

// Deletion reasons reported to metrics.
const (
	reasonAccepted = "accepted"
	reasonRejected = "rejected"
)

// nonRetryable lists server error names for events that can never be
// accepted no matter how often they are resubmitted. Their records are
// dropped; every other error name is treated as transient and the record is
// kept for a future attempt.
var nonRetryable = map[string]bool{
	"InvalidCollectionNameError": true,
	"InvalidPropertyNameError":   true,
	"InvalidPropertyValueError":  true,
}

// Reconciler settles queued records against upload responses.
type Reconciler struct {
	store *store.Store
	log   zerolog.Logger
}

// New returns a Reconciler deleting from st.
func New(st *store.Store) *Reconciler {
	return &Reconciler{
		store: st,
		log:   logging.With().Str("component", "reconcile").Logger(),
	}
}

// Apply walks the response collection by collection. Results are positionally
// aligned with the handles recorded at batch assembly; if a collection's
// result count does not match its handle count the collection is abandoned
// mid-walk (completed deletions stand) and the anomaly is logged. Collections
// present in the request but absent from the response are left untouched.
func (r *Reconciler) Apply(response transport.Response, handles batch.Handles) {
	for collection, results := range response {
		records, ok := handles[collection]
		if !ok {
			r.log.Error().Str("collection", collection).
				Msg("response names a collection that was not uploaded, ignoring")
			continue
		}
		if len(results) != len(records) {
			r.log.Error().Str("collection", collection).
				Int("results", len(results)).Int("records", len(records)).
				Msg("response and request are misaligned, leaving collection for next cycle")
			continue
		}
		for i, result := range results {
			r.settle(records[i], result)
		}
	}
}

// settle decides one record's fate from its result.
func (r *Reconciler) settle(rec store.Record, result transport.Result) {
	if result.Success {
		r.store.Delete(rec, reasonAccepted)
		return
	}

	if result.Error == nil {
		// Failed result with no error object; treat as transient.
		r.log.Warn().Str("path", rec.Path).
			Msg("failed result carries no error, retaining record")
		metrics.EventsRetained.Inc()
		return
	}

	if nonRetryable[result.Error.Name] {
		r.log.Warn().Str("path", rec.Path).
			Str("error", result.Error.Name).
			Str("description", result.Error.Description).
			Msg("event permanently rejected, dropping record")
		r.store.Delete(rec, reasonRejected)
		return
	}

	r.log.Info().Str("path", rec.Path).
		Str("error", result.Error.Name).
		Str("description", result.Error.Description).
		Msg("event not accepted, retaining record for next cycle")
	metrics.EventsRetained.Inc()
}
