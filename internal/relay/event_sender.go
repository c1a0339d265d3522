// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/relabs-tech/racquet_stream/internal/netstate"
	"github.com/relabs-tech/racquet_stream/internal/payload"
	"github.com/relabs-tech/racquet_stream/internal/sample"
	"github.com/relabs-tech/racquet_stream/internal/swing"
)

const slowPostWarn = 500 * time.Millisecond

// EventSenderConfig holds the reliable-channel tunables.
type EventSenderConfig struct {
	URL          string        // backend ingestion endpoint
	Timeout      time.Duration // per-POST timeout
	PollInterval time.Duration // snapshot poll period
	BufferSize   int           // fixed serialization buffer, bytes
	WindowSize   int           // max samples per snapshot
}

// EventSender delivers finalized swing snapshots over HTTP with
// at-least-once semantics: the snapshot's ready flag is cleared only after
// a 200 response, and a failed client is torn down and rebuilt rather than
// retried in place — a connection that failed once usually carries stale
// state the server has already given up on.
type EventSender struct {
	cfg     EventSenderConfig
	store   *swing.SnapshotStore
	gate    *netstate.Gate
	builder *payload.Builder
	scratch []sample.Sample
	client  *http.Client
}

// NewEventSender creates a sender draining store, gated on gate.
func NewEventSender(cfg EventSenderConfig, store *swing.SnapshotStore, gate *netstate.Gate) *EventSender {
	s := &EventSender{
		cfg:     cfg,
		store:   store,
		gate:    gate,
		builder: payload.NewBuilder(cfg.BufferSize),
		scratch: make([]sample.Sample, cfg.WindowSize),
	}
	s.resetClient()
	return s
}

// Run polls until ctx is done. Blocking on network I/O here is fine: this
// task never gates the acquisition path.
func (s *EventSender) Run(ctx context.Context) {
	if err := s.gate.Wait(ctx); err != nil {
		return
	}
	log.Printf("relay: event sender started, posting to %s", s.cfg.URL)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.gate.Up() {
			continue
		}
		s.tryDeliver(ctx)
	}
}

// tryDeliver sends the pending snapshot, if any. Field copy happens under
// the store mutex; serialization and the POST run outside it so the
// acquisition goroutine never waits on network I/O.
func (s *EventSender) tryDeliver(ctx context.Context) {
	n, triggerMS, ok := s.store.TakeCopy(s.scratch)
	if !ok {
		return
	}

	body, err := s.builder.BuildEvent(s.scratch[:n], triggerMS)
	if err != nil {
		// A snapshot that cannot fit the buffer will never fit on retry;
		// drop it so the slot frees up.
		log.Printf("relay: event payload build failed (%d samples): %v", n, err)
		s.store.Clear()
		return
	}

	if err := s.post(ctx, body); err != nil {
		log.Printf("relay: event send failed, will retry: %v", err)
		s.resetClient()
		return
	}
	s.store.Clear()
	log.Printf("relay: event sent (%d samples, trigger_t=%d)", n, triggerMS)
}

func (s *EventSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	t0 := time.Now()
	resp, err := s.client.Do(req)
	if d := time.Since(t0); d > slowPostWarn {
		log.Printf("relay: event POST took %v", d.Round(time.Millisecond))
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("non-200 status: %s", resp.Status)
	}
	return nil
}

// resetClient discards the HTTP client and its connection pool, forcing the
// next POST onto a fresh TCP connection.
func (s *EventSender) resetClient() {
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
	s.client = &http.Client{
		Timeout: s.cfg.Timeout,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}
