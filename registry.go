// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

package eventspool

import "sync"

// Process-wide default client. Explicit New is the primary API; this
// registry is a convenience for hosts that want one globally reachable
// instance without threading it through their code.
var (
	defaultMu     sync.RWMutex
	defaultClient *Client
)

// Initialize builds a client from cfg and installs it as the process-wide
// default. It returns the client; on failure nothing is installed and the
// error from New is returned. Calling Initialize again replaces the default.
func Initialize(cfg Config) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return c, err
	}
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
	return c, nil
}

// Default returns the process-wide client, or ErrNotInitialized if
// Initialize has not succeeded yet.
func Default() (*Client, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultClient == nil {
		return nil, ErrNotInitialized
	}
	return defaultClient, nil
}

// resetDefault clears the registry. Test hook.
func resetDefault() {
	defaultMu.Lock()
	defaultClient = nil
	defaultMu.Unlock()
}
