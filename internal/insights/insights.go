// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package insights is the DuckDB-backed analytics store. Every rating
// write appends one immutable event row; queries aggregate over the
// event log rather than the live documents, so analytics never contend
// with the rating write path.
package insights

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS rating_events (
	event_id      VARCHAR NOT NULL,
	occurred_at   TIMESTAMP NOT NULL,
	op            VARCHAR NOT NULL,
	rating_id     VARCHAR NOT NULL,
	user_id       VARCHAR NOT NULL,
	place_id      VARCHAR NOT NULL,
	overall       DOUBLE NOT NULL,
	crowd_size    DOUBLE NOT NULL,
	noise_level   DOUBLE NOT NULL,
	social_energy DOUBLE NOT NULL,
	service       DOUBLE NOT NULL,
	atmosphere    DOUBLE NOT NULL,
	rater_af      DOUBLE NOT NULL,
	rater_bucket  VARCHAR NOT NULL
);
`

// DB wraps the DuckDB connection holding the rating event log.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the insights database and ensures the schema.
// An empty path runs DuckDB fully in memory, which is what tests and
// insights-disabled deployments use.
func Open(cfg config.InsightsConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}

	connStr := fmt.Sprintf("?access_mode=read_write&threads=%d&max_memory=%s", threads, maxMemory)
	if cfg.Path != "" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create insights directory %s: %w", dir, err)
			}
		}
		connStr = cfg.Path + connStr
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open insights database: %w", err)
	}

	// DuckDB is an embedded single-writer engine; one connection keeps
	// appends and queries serialized without lock errors.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize insights schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).
		Msg("Insights store opened")
	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// insertBatch appends a batch of events in one transaction.
func (db *DB) insertBatch(ctx context.Context, events []models.RatingEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insights batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rating_events (
			event_id, occurred_at, op, rating_id, user_id, place_id,
			overall, crowd_size, noise_level, social_energy, service, atmosphere,
			rater_af, rater_bucket
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insights insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.EventID, ev.OccurredAt, ev.Op, ev.RatingID, ev.UserID, ev.PlaceID,
			ev.Overall, ev.Categories.CrowdSize, ev.Categories.NoiseLevel,
			ev.Categories.SocialEnergy, ev.Categories.Service, ev.Categories.Atmosphere,
			ev.RaterAF, ev.RaterBucket,
		); err != nil {
			return fmt.Errorf("failed to insert rating event %s: %w", ev.EventID, err)
		}
	}
	return tx.Commit()
}

// DayActivity is one day of rating write activity.
type DayActivity struct {
	Day     string `json:"day"`
	Creates int64  `json:"creates"`
	Updates int64  `json:"updates"`
	Deletes int64  `json:"deletes"`
	Total   int64  `json:"total"`
}

// DailyActivity returns per-day write counts for the last days days,
// most recent first. Days with no activity are absent.
func (db *DB) DailyActivity(ctx context.Context, days int) ([]DayActivity, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			strftime(occurred_at, '%Y-%m-%d') AS day,
			count(*) FILTER (WHERE op = 'create') AS creates,
			count(*) FILTER (WHERE op = 'update') AS updates,
			count(*) FILTER (WHERE op = 'delete') AS deletes,
			count(*) AS total
		FROM rating_events
		WHERE occurred_at >= now() - to_days(?)
		GROUP BY day
		ORDER BY day DESC`, days)
	metrics.RecordInsightsQuery("daily_activity", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("daily activity query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DayActivity
	for rows.Next() {
		var d DayActivity
		if err := rows.Scan(&d.Day, &d.Creates, &d.Updates, &d.Deletes, &d.Total); err != nil {
			return nil, fmt.Errorf("failed to scan daily activity row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// BucketActivity aggregates rating events by the author's personality
// bucket at event time.
type BucketActivity struct {
	Bucket     string  `json:"bucket"`
	Events     int64   `json:"events"`
	AvgOverall float64 `json:"avgOverall"`
}

// BucketDistribution returns event counts and mean stored overall score
// per personality bucket, over create and update events.
func (db *DB) BucketDistribution(ctx context.Context) ([]BucketActivity, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT rater_bucket, count(*), round(avg(overall), 2)
		FROM rating_events
		WHERE op IN ('create', 'update')
		GROUP BY rater_bucket
		ORDER BY count(*) DESC, rater_bucket`)
	metrics.RecordInsightsQuery("bucket_distribution", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("bucket distribution query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BucketActivity
	for rows.Next() {
		var b BucketActivity
		if err := rows.Scan(&b.Bucket, &b.Events, &b.AvgOverall); err != nil {
			return nil, fmt.Errorf("failed to scan bucket row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PlaceActivity aggregates rating events for one place.
type PlaceActivity struct {
	PlaceID    string  `json:"placeId"`
	Events     int64   `json:"events"`
	Raters     int64   `json:"raters"`
	AvgOverall float64 `json:"avgOverall"`
}

// TopPlaces returns the most rated places by event volume.
func (db *DB) TopPlaces(ctx context.Context, limit int) ([]PlaceActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT place_id, count(*), count(DISTINCT user_id), round(avg(overall), 2)
		FROM rating_events
		WHERE op IN ('create', 'update')
		GROUP BY place_id
		ORDER BY count(*) DESC, place_id
		LIMIT ?`, limit)
	metrics.RecordInsightsQuery("top_places", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("top places query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PlaceActivity
	for rows.Next() {
		var p PlaceActivity
		if err := rows.Scan(&p.PlaceID, &p.Events, &p.Raters, &p.AvgOverall); err != nil {
			return nil, fmt.Errorf("failed to scan place activity row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DatasetStats summarizes the event log for the dataset endpoint and
// the retrain scheduler.
type DatasetStats struct {
	Events     int64      `json:"events"`
	Ratings    int64      `json:"ratings"`
	FirstEvent *time.Time `json:"firstEvent,omitempty"`
	LastEvent  *time.Time `json:"lastEvent,omitempty"`
}

// Stats returns totals over the whole event log. Ratings counts live
// rating rows: creates plus updates minus deletes is not meaningful on
// an event log, so it counts distinct rating IDs without a delete.
func (db *DB) Stats(ctx context.Context) (*DatasetStats, error) {
	start := time.Now()
	var s DatasetStats
	err := db.conn.QueryRowContext(ctx, `
		SELECT count(*), min(occurred_at), max(occurred_at)
		FROM rating_events`).Scan(&s.Events, &s.FirstEvent, &s.LastEvent)
	if err == nil {
		err = db.conn.QueryRowContext(ctx, `
			SELECT count(*)
			FROM (
				SELECT rating_id
				FROM rating_events
				GROUP BY rating_id
				HAVING count(*) FILTER (WHERE op = 'delete') = 0
			)`).Scan(&s.Ratings)
	}
	metrics.RecordInsightsQuery("stats", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}
	return &s, nil
}

// EventsSince counts create and update events after t. The retrain
// scheduler uses this to decide whether enough new signal accumulated.
func (db *DB) EventsSince(ctx context.Context, t time.Time) (int64, error) {
	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, `
		SELECT count(*)
		FROM rating_events
		WHERE op IN ('create', 'update') AND occurred_at > ?`, t).Scan(&n)
	metrics.RecordInsightsQuery("events_since", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("events since query failed: %w", err)
	}
	return n, nil
}
