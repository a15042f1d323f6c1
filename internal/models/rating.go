// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package models

import (
	"time"
)

// CategoryScores holds the five rated dimensions, each an integer-valued
// score in [1, 10]. Float fields let the same type carry one-decimal
// category averages in PlaceStats and adjusted views.
type CategoryScores struct {
	CrowdSize    float64 `json:"crowdSize" validate:"min=1,max=10"`
	NoiseLevel   float64 `json:"noiseLevel" validate:"min=1,max=10"`
	SocialEnergy float64 `json:"socialEnergy" validate:"min=1,max=10"`
	Service      float64 `json:"service" validate:"min=1,max=10"`
	Atmosphere   float64 `json:"atmosphere" validate:"min=1,max=10"`
}

// Rating is one user's rating of one place. At most one rating exists per
// (user, place) pair; a second create for the same pair fails with
// CONFLICT.
//
// RaterAdjustmentFactor snapshots the author's adjustment factor at
// creation and never changes afterward, even when the author retakes the
// quiz. Normalization and aggregate bucketing always read the snapshot so
// stored objective scores stay reproducible.
//
// OverallScore is derived from Categories via the weighted formula in
// internal/scoring and recomputed on every update.
type Rating struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	PlaceID    string         `json:"placeId"`
	Categories CategoryScores `json:"categories"`

	OverallScore          float64 `json:"overallScore"`
	RaterAdjustmentFactor float64 `json:"raterAdjustmentFactor"`

	Comment string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateRatingRequest submits a new rating. Location, when present,
// refreshes the author's last known location.
type CreateRatingRequest struct {
	UserID     string         `json:"userId" validate:"required,uuid4"`
	PlaceID    string         `json:"placeId" validate:"required,uuid4"`
	Categories CategoryScores `json:"categories" validate:"required"`
	Comment    string         `json:"comment,omitempty" validate:"max=2000"`
	Location   *LatLng        `json:"location,omitempty"`
}

// UpdateRatingRequest edits an existing rating's categories or comment.
// Nil fields are left unchanged.
type UpdateRatingRequest struct {
	Categories *CategoryScores `json:"categories,omitempty"`
	Comment    *string         `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// Rating event operations recorded in the insights store.
const (
	RatingOpCreate = "create"
	RatingOpUpdate = "update"
	RatingOpDelete = "delete"
)

// RatingEvent is the append-only analytics row emitted on every rating
// write. Rows are immutable; corrections appear as new rows with a later
// OccurredAt.
type RatingEvent struct {
	EventID    string         `json:"eventId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Op         string         `json:"op"`
	RatingID   string         `json:"ratingId"`
	UserID     string         `json:"userId"`
	PlaceID    string         `json:"placeId"`
	Overall    float64        `json:"overallScore"`
	Categories CategoryScores `json:"categories"`

	// RaterAF and RaterBucket snapshot the author at event time so
	// personality-distribution queries need no join against users.
	RaterAF     float64 `json:"raterAf"`
	RaterBucket string  `json:"raterBucket"`
}
