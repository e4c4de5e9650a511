// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

package eventspool

import (
	"errors"

	"github.com/tomtom215/eventspool/internal/validation"
)

// Error kinds surfaced to callers. Storage and transport failures are never
// surfaced; they are logged and the affected events stay queued.
var (
	// ErrInvalidConfig reports a configuration problem at construction:
	// missing project ID, malformed base URL, nonsensical capacity.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStorageInit reports that the local queue root could not be created
	// or accessed. The returned client is inert: every AddEvent and Upload
	// call is a logged no-op.
	ErrStorageInit = errors.New("cannot initialize local event storage")

	// ErrNoWriteKey reports an AddEvent call without a configured write key.
	ErrNoWriteKey = errors.New("no write key configured")

	// ErrNotInitialized reports a Default() call before Initialize().
	ErrNotInitialized = errors.New("default client not initialized")

	// ErrInvalidCollectionName reports a collection name violating the
	// naming rules (empty, leading '$', longer than 256 characters).
	ErrInvalidCollectionName = validation.ErrInvalidCollectionName

	// ErrInvalidEvent reports an event payload violating the key or value
	// rules; see AddEvent for the rules.
	ErrInvalidEvent = validation.ErrInvalidEvent
)
