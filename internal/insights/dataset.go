// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package insights

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/convene-app/convene/internal/metrics"
)

// datasetHeader is the column order of the training export. The model
// service depends on this exact order.
var datasetHeader = []string{
	"rating_id", "user_id", "place_id", "occurred_at",
	"crowd_size", "noise_level", "social_energy", "service", "atmosphere",
	"overall", "rater_af", "rater_bucket",
}

// TrainingDataset streams the model training export as CSV: the latest
// create or update event per live rating, oldest first. Deleted ratings
// are excluded entirely so the model never trains on retracted signal.
func (db *DB) TrainingDataset(ctx context.Context, w io.Writer) (int64, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		WITH latest AS (
			SELECT *, row_number() OVER (
				PARTITION BY rating_id ORDER BY occurred_at DESC
			) AS rn
			FROM rating_events
		)
		SELECT rating_id, user_id, place_id, occurred_at,
			crowd_size, noise_level, social_energy, service, atmosphere,
			overall, rater_af, rater_bucket
		FROM latest
		WHERE rn = 1 AND op != 'delete'
		ORDER BY occurred_at, rating_id`)
	metrics.RecordInsightsQuery("training_dataset", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("training dataset query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cw := csv.NewWriter(w)
	if err := cw.Write(datasetHeader); err != nil {
		return 0, fmt.Errorf("failed to write dataset header: %w", err)
	}

	var count int64
	for rows.Next() {
		var (
			ratingID, userID, placeID, bucket         string
			occurredAt                                time.Time
			crowd, noise, social, service, atmosphere float64
			overall, raterAF                          float64
		)
		if err := rows.Scan(&ratingID, &userID, &placeID, &occurredAt,
			&crowd, &noise, &social, &service, &atmosphere,
			&overall, &raterAF, &bucket); err != nil {
			return count, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		record := []string{
			ratingID, userID, placeID, occurredAt.UTC().Format(time.RFC3339),
			formatScore(crowd), formatScore(noise), formatScore(social),
			formatScore(service), formatScore(atmosphere),
			formatScore(overall), formatScore(raterAF), bucket,
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("failed to write dataset row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	cw.Flush()
	return count, cw.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
