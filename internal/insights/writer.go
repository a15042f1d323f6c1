// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package insights

import (
	"context"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

// Writer decouples the rating write path from DuckDB. Append never
// blocks: events land in a bounded channel and a supervised flush loop
// batches them into the store. When the buffer is full the event is
// dropped and counted; ratings themselves are never lost, only their
// analytics rows.
type Writer struct {
	db  *DB
	ch  chan models.RatingEvent
	cfg config.InsightsConfig
}

// NewWriter builds a buffered writer over db.
func NewWriter(db *DB, cfg config.InsightsConfig) *Writer {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1024
	}
	return &Writer{
		db:  db,
		ch:  make(chan models.RatingEvent, size),
		cfg: cfg,
	}
}

// Append queues one event for the next flush. Safe for concurrent use;
// wired as the store's rating event hook.
func (w *Writer) Append(ev models.RatingEvent) {
	select {
	case w.ch <- ev:
		metrics.InsightsBufferDepth.Set(float64(len(w.ch)))
	default:
		metrics.InsightsEventsDropped.Inc()
		logging.Warn().Str("event_id", ev.EventID).
			Msg("Insights buffer full, dropping rating event")
	}
}

// Serve implements suture.Service: drain the buffer into DuckDB on an
// interval until canceled, then flush whatever remains.
func (w *Writer) Serve(ctx context.Context) error {
	interval := w.cfg.FlushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush writes every currently buffered event in one batch.
func (w *Writer) flush(ctx context.Context) {
	var batch []models.RatingEvent
	for {
		select {
		case ev := <-w.ch:
			batch = append(batch, ev)
		default:
			metrics.InsightsBufferDepth.Set(float64(len(w.ch)))
			if len(batch) == 0 {
				return
			}
			start := time.Now()
			if err := w.db.insertBatch(ctx, batch); err != nil {
				logging.Error().Err(err).Int("batch", len(batch)).
					Msg("Insights flush failed, events lost")
				metrics.InsightsEventsDropped.Add(float64(len(batch)))
				return
			}
			metrics.RecordInsightsFlush(time.Since(start), len(batch))
			return
		}
	}
}

// String implements suture's service naming.
func (w *Writer) String() string {
	return "insights-writer"
}
