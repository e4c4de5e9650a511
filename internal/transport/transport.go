// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

// Package transport serializes an assembled batch, issues the single upload
// POST, and decodes the per-event result response.
//
// The transport does not retry and does not interpret results; classifying
// per-event outcomes is the reconciler's job. Any status other than 200 is
// logged with its raw body and reported as an error, which the caller treats
// as "nothing changed": every queued record stays on disk for the next cycle.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventspool/internal/batch"
	"github.com/tomtom215/eventspool/internal/logging"
)

// Doer abstracts the HTTP client so tests can substitute a transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ensure http.Client implements Doer.
var _ Doer = (*http.Client)(nil)

// Result is the server's verdict on one uploaded event. Results are
// positionally aligned with the request's per-collection event order.
type Result struct {
	Success bool         `json:"success"`
	Error   *ResultError `json:"error,omitempty"`
}

// ResultError carries the server's error classification for a failed event.
type ResultError struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Response maps collection name to the ordered per-event results for that
// collection's slice of the request.
type Response map[string][]Result

// Sender issues upload requests against one project's ingestion endpoint.
type Sender struct {
	baseURL    string
	apiVersion string
	projectID  string
	writeKey   string
	httpClient Doer
	log        zerolog.Logger
}

// NewSender returns a Sender for the given project. A nil client gets a
// plain http.Client with the given timeout; the upload POST is the only
// network-bound step in the library, so the timeout bounds a whole cycle.
func NewSender(baseURL, apiVersion, projectID, writeKey string, client Doer, timeout time.Duration) *Sender {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Sender{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: apiVersion,
		projectID:  projectID,
		writeKey:   writeKey,
		httpClient: client,
		log:        logging.With().Str("component", "transport").Logger(),
	}
}

// EventsURL returns the ingestion endpoint for this sender's project.
func (s *Sender) EventsURL() string {
	return fmt.Sprintf("%s/%s/projects/%s/events", s.baseURL, s.apiVersion, s.projectID)
}

// Send serializes the batch and issues exactly one POST. A decoded Response
// is returned only for HTTP 200; every other outcome (connection failure,
// non-200 status, undecodable body) returns an error and leaves the queue
// untouched.
func (s *Sender) Send(ctx context.Context, request batch.Request) (Response, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.EventsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.writeKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("upload returned status %d (failed to read body)", resp.StatusCode)
		}
		s.log.Warn().Int("status", resp.StatusCode).Str("body", string(raw)).
			Msg("upload rejected, queued events kept for next cycle")
		return nil, fmt.Errorf("upload returned status %d: %s", resp.StatusCode, string(raw))
	}

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return response, nil
}
