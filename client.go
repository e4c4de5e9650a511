// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

package eventspool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventspool/internal/batch"
	"github.com/tomtom215/eventspool/internal/logging"
	"github.com/tomtom215/eventspool/internal/metrics"
	"github.com/tomtom215/eventspool/internal/reconcile"
	"github.com/tomtom215/eventspool/internal/store"
	"github.com/tomtom215/eventspool/internal/transport"
	"github.com/tomtom215/eventspool/internal/validation"
)

// metadataKey is the reserved sub-object merged into every event. It carries
// at least a timestamp; AddEventWithMetadata lets callers override it.
const metadataKey = "keen"

// timestampField is the metadata field defaulted to the enqueue time.
const timestampField = "timestamp"

// GlobalPropertiesEvaluator computes per-collection properties merged into
// every new event. It is invoked synchronously on the AddEvent caller's
// goroutine and must not call back into the client.
type GlobalPropertiesEvaluator func(collection string) map[string]interface{}

// Client buffers structured events on local storage and ships them to the
// ingestion endpoint in batches. See the package documentation for usage.
//
// AddEvent is safe to call from any goroutine, including while an upload
// cycle is in flight. Upload cycles serialize behind an internal mutex, so
// concurrent Upload calls cannot race on record deletion.
type Client struct {
	cfg        Config
	store      *store.Store
	assembler  *batch.Assembler
	sender     *transport.Sender
	reconciler *reconcile.Reconciler
	log        zerolog.Logger

	// active is false when storage initialization failed; every operation
	// on an inert client is a logged no-op. Set once at construction.
	active bool

	propMu           sync.RWMutex
	globalProperties map[string]interface{}
	evaluator        GlobalPropertiesEvaluator

	// uploadMu serializes upload cycles.
	uploadMu sync.Mutex
}

// New builds a Client from cfg, filling unset fields from DefaultConfig.
//
// A configuration problem returns (nil, error wrapping ErrInvalidConfig). A
// storage initialization failure returns the client together with an error
// wrapping ErrStorageInit: the client is inert but safe to use, so a host
// application that prefers degraded telemetry over crashing can keep it.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.With().Str("component", "client").Logger()
	c := &Client{cfg: cfg, log: log}

	st, err := store.Open(cfg.CacheRoot, cfg.MaxEventsPerCollection, cfg.EvictBatch)
	if err != nil {
		log.Error().Err(err).Str("cache_root", cfg.CacheRoot).
			Msg("storage initialization failed, client is inert")
		return c, fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	c.store = st
	c.assembler = batch.NewAssembler(st)
	c.sender = transport.NewSender(cfg.BaseURL, cfg.APIVersion, cfg.ProjectID, cfg.WriteKey,
		doerAdapter(cfg.HTTPClient), cfg.UploadTimeout)
	c.reconciler = reconcile.New(st)
	c.active = true
	log.Debug().Str("queue_root", st.Root()).Msg("client initialized")
	return c, nil
}

// doerAdapter narrows the public HTTPDoer to the transport's interface.
// Both have the same method set; a nil input must stay nil so the sender
// falls back to its own http.Client.
func doerAdapter(d HTTPDoer) transport.Doer {
	if d == nil {
		return nil
	}
	return d
}

// Active reports whether the client initialized successfully. An inactive
// client ignores AddEvent and Upload.
func (c *Client) Active() bool {
	return c.active
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// SetGlobalProperties replaces the static property map merged into every new
// event. Replacement only; the map is not edited incrementally.
func (c *Client) SetGlobalProperties(props map[string]interface{}) {
	c.propMu.Lock()
	defer c.propMu.Unlock()
	c.globalProperties = props
}

// GlobalProperties returns the current static global property map.
func (c *Client) GlobalProperties() map[string]interface{} {
	c.propMu.RLock()
	defer c.propMu.RUnlock()
	return c.globalProperties
}

// SetGlobalPropertiesEvaluator replaces the per-collection property
// evaluator. Evaluator-supplied values override the static map; the event's
// own values override both.
func (c *Client) SetGlobalPropertiesEvaluator(eval GlobalPropertiesEvaluator) {
	c.propMu.Lock()
	defer c.propMu.Unlock()
	c.evaluator = eval
}

// GlobalPropertiesEvaluator returns the current evaluator.
func (c *Client) GlobalPropertiesEvaluator() GlobalPropertiesEvaluator {
	c.propMu.RLock()
	defer c.propMu.RUnlock()
	return c.evaluator
}

// AddEvent validates the event and durably queues it in the named collection
// for a later Upload.
//
// Collection names must be non-empty, not start with '$', and be at most 256
// characters. Event property names must not contain '.', must not start with
// '$', and must be at most 256 characters; string values must be shorter
// than 10,000 characters; the root key "keen" is reserved. Nested maps are
// validated by the same key/value rules.
//
// Only validation, credential, and configuration problems are returned;
// storage failures are logged and the call still succeeds.
func (c *Client) AddEvent(collection string, event map[string]interface{}) error {
	return c.AddEventWithMetadata(collection, event, nil)
}

// AddEventWithMetadata is AddEvent with caller-supplied overrides for the
// reserved "keen" metadata sub-object. A "timestamp" field is defaulted to
// the enqueue time only if meta does not already carry one.
func (c *Client) AddEventWithMetadata(collection string, event, meta map[string]interface{}) error {
	if !c.active {
		c.log.Warn().Str("collection", collection).
			Msg("client is inert, event not queued")
		return nil
	}
	if c.cfg.WriteKey == "" {
		return ErrNoWriteKey
	}
	if err := validation.CollectionName(collection); err != nil {
		return err
	}
	if err := validation.Event(event); err != nil {
		return err
	}

	payload, err := json.Marshal(c.buildEvent(collection, event, meta))
	if err != nil {
		// Unserializable caller values (channels, funcs) end up here; the
		// event is dropped like any other storage failure.
		c.log.Error().Err(err).Str("collection", collection).
			Msg("cannot serialize event, dropped")
		return nil
	}
	c.store.Enqueue(collection, payload)
	return nil
}

// buildEvent assembles the persisted form: the "keen" metadata sub-object,
// then static global properties, then evaluator-supplied properties, then
// the caller's event, each layer overriding the previous.
func (c *Client) buildEvent(collection string, event, meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(event)+1)

	metadata := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		metadata[k] = v
	}
	if _, ok := metadata[timestampField]; !ok {
		metadata[timestampField] = time.Now().Format(time.RFC3339Nano)
	}
	out[metadataKey] = metadata

	c.propMu.RLock()
	globals := c.globalProperties
	eval := c.evaluator
	c.propMu.RUnlock()

	for k, v := range globals {
		out[k] = v
	}
	if eval != nil {
		for k, v := range eval(collection) {
			out[k] = v
		}
	}
	for k, v := range event {
		out[k] = v
	}
	return out
}

// Upload ships every queued event across all collections in one batch and
// reconciles the per-event results: accepted events and permanently rejected
// events are deleted from the queue, everything else stays for the next call.
//
// With Config.Sync false (the default) the cycle runs on its own goroutine
// and Upload returns immediately; with Sync true it runs inline. Upload
// never returns an error; done, when non-nil, is invoked exactly once after
// reconciliation finishes, whether or not a network request was made.
func (c *Client) Upload(done func()) {
	if !c.active {
		c.log.Warn().Msg("client is inert, upload skipped")
		if done != nil {
			done()
		}
		return
	}
	if c.cfg.Sync {
		c.uploadCycle(done)
		return
	}
	go c.uploadCycle(done)
}

func (c *Client) uploadCycle(done func()) {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()
	if done != nil {
		defer done()
	}

	request, handles, err := c.assembler.Build()
	if err != nil {
		c.log.Error().Err(err).Msg("cannot assemble upload batch")
		return
	}
	if len(request) == 0 {
		c.log.Debug().Msg("no queued events, skipping upload")
		return
	}

	metrics.UploadAttempts.Inc()
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.UploadTimeout)
	defer cancel()

	response, err := c.sender.Send(ctx, request)
	if err != nil {
		metrics.UploadFailures.Inc()
		c.log.Warn().Err(err).Msg("upload failed, queued events kept for next cycle")
		return
	}
	c.reconciler.Apply(response, handles)
}
