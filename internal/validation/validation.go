// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

// Package validation checks collection names and event payloads against the
// ingestion service's naming and size rules before anything is persisted.
//
// The rules operate on dynamic map payloads, so they are implemented as a
// structural recursion rather than struct tags. Config structs elsewhere in
// the library use go-playground/validator; events cannot.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors distinguishing the two validation failure kinds. Callers
// branch with errors.Is; the wrapped message carries the specific rule.
var (
	// ErrInvalidCollectionName reports a collection name violating the
	// naming rules.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidEvent reports an event payload violating the key or value
	// rules.
	ErrInvalidEvent = errors.New("invalid event")
)

const (
	// maxNameLength bounds collection names and property names, counted in
	// characters, not bytes.
	maxNameLength = 256

	// maxStringValueLength is the exclusive upper bound on string property
	// values: a value of this length or longer is rejected.
	maxStringValueLength = 10000

	// reservedRootKey is the metadata sub-object key the client injects;
	// callers may not use it at the root of an event.
	reservedRootKey = "keen"
)

// CollectionName validates an event collection name: non-empty, not starting
// with '$', at most 256 characters.
func CollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: must be non-empty", ErrInvalidCollectionName)
	}
	if strings.HasPrefix(name, "$") {
		return fmt.Errorf("%w: %q must not start with the dollar sign ($) character", ErrInvalidCollectionName, name)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidCollectionName, name, maxNameLength)
	}
	return nil
}

// Event validates an event payload. At the root the event must be non-empty
// and must not carry the reserved "keen" key; at every depth property names
// must not contain '.', must not start with '$', and must be at most 256
// characters, and string values must be shorter than 10,000 characters.
// Nested maps are validated recursively.
func Event(event map[string]interface{}) error {
	return validateEvent(event, 0)
}

func validateEvent(event map[string]interface{}, depth int) error {
	if depth == 0 {
		if len(event) == 0 {
			return fmt.Errorf("%w: must be non-empty", ErrInvalidEvent)
		}
		if _, ok := event[reservedRootKey]; ok {
			return fmt.Errorf("%w: must not contain a root-level property named %q", ErrInvalidEvent, reservedRootKey)
		}
	}

	for key, value := range event {
		if strings.Contains(key, ".") {
			return fmt.Errorf("%w: property %q must not contain the period (.) character", ErrInvalidEvent, key)
		}
		if strings.HasPrefix(key, "$") {
			return fmt.Errorf("%w: property %q must not start with the dollar sign ($) character", ErrInvalidEvent, key)
		}
		if utf8.RuneCountInString(key) > maxNameLength {
			return fmt.Errorf("%w: property name exceeds %d characters", ErrInvalidEvent, maxNameLength)
		}
		switch v := value.(type) {
		case string:
			if utf8.RuneCountInString(v) >= maxStringValueLength {
				return fmt.Errorf("%w: string value for property %q must be shorter than %d characters", ErrInvalidEvent, key, maxStringValueLength)
			}
		case map[string]interface{}:
			if err := validateEvent(v, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
