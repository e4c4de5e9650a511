// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

// Package metrics exposes Prometheus counters for the event queue and the
// upload cycle. The host application decides whether and where to serve them;
// this package only registers them on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsEnqueued counts events durably written to the local queue.
	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventspool_events_enqueued_total",
		Help: "Total number of events written to the local queue.",
	})

	// EventsEvicted counts queued events dropped to enforce the
	// per-collection capacity.
	EventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventspool_events_evicted_total",
		Help: "Total number of queued events evicted by the capacity limit.",
	})

	// EventsQuarantined counts queued records that failed to deserialize
	// during batch assembly and were renamed out of the queue.
	EventsQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventspool_events_quarantined_total",
		Help: "Total number of undeserializable queued records quarantined.",
	})

	// EventsDeleted counts queued records removed after reconciliation,
	// labelled by reason (accepted or rejected).
	EventsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventspool_events_deleted_total",
		Help: "Total number of queued records deleted after an upload response.",
	}, []string{"reason"})

	// EventsRetained counts queued records kept for a future upload cycle
	// after a retryable per-event failure.
	EventsRetained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventspool_events_retained_total",
		Help: "Total number of queued records retained for a later upload attempt.",
	})

	// UploadAttempts counts upload cycles that issued a network request.
	UploadAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventspool_upload_attempts_total",
		Help: "Total number of upload cycles that reached the network.",
	})

	// UploadFailures counts upload cycles that ended without a usable
	// response (connection failure, non-200 status, undecodable body).
	UploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventspool_upload_failures_total",
		Help: "Total number of upload cycles that failed before reconciliation.",
	})
)
