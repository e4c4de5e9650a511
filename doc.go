// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

// Package eventspool is a local event-buffering and batch-upload client.
//
// Host applications record structured events into named collections; the
// client durably queues them as one file per event on local storage, bounded
// per collection with oldest-first eviction, and ships everything in a single
// HTTP POST when the host calls Upload. The structured response is
// reconciled event by event: accepted events and permanently rejected events
// are deleted from the queue, transient failures stay for the next cycle.
//
// Basic usage:
//
//	client, err := eventspool.New(eventspool.Config{
//	    ProjectID: "my-project",
//	    WriteKey:  "my-write-key",
//	})
//	if err != nil {
//	    // an ErrStorageInit error still yields a usable, inert client
//	}
//	_ = client.AddEvent("purchases", map[string]interface{}{
//	    "item":  "golden widget",
//	    "price": 49.99,
//	})
//	client.Upload(nil)
//
// Hosts that want one globally reachable instance can use Initialize and
// Default instead of threading the client through their code.
//
// This is a library, not a process: there is no CLI, no retry scheduling,
// and no read API. The only network interaction is the single upload POST.
package eventspool
