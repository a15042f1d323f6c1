// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package models

import (
	"time"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// Place represents a rateable venue.
//
// Stats is recomputed from the full set of ratings for the place on every
// rating write, inside the same transaction as the write itself. A place
// holds an aggregate only while at least one rating references it; when
// the last rating is deleted Stats goes back to nil.
//
// Version increments on every stored mutation and backs conditional
// updates in the store layer.
type Place struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Address  string      `json:"address,omitempty"`
	Location LatLng      `json:"location"`
	Stats    *PlaceStats `json:"stats,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   uint64    `json:"version"`
}

// PlaceStats is the aggregate view over all ratings of a place.
//
// AvgOverallScore and each AvgCategories dimension are rounded to one
// decimal. ByPersonality splits the same ratings by the rater's bucket at
// rating time (the stored snapshot, not the rater's current factor).
type PlaceStats struct {
	TotalRatings    int                    `json:"totalRatings"`
	AvgOverallScore float64                `json:"avgOverallScore"`
	ByPersonality   map[string]BucketStats `json:"byPersonality,omitempty"`
	AvgCategories   CategoryScores         `json:"avgCategories"`
	LastRatedAt     *time.Time             `json:"lastRatedAt,omitempty"`
}

// BucketStats is the per-personality-bucket slice of PlaceStats.
type BucketStats struct {
	AvgScore float64 `json:"avgScore"`
	Count    int     `json:"count"`
}

// PlaceView is a place rendered for a specific viewer: stats plus a
// personalized score predicted for the viewer's adjustment factor. Score
// and Confidence are zero when no viewer was supplied.
type PlaceView struct {
	Place      Place   `json:"place"`
	Score      float64 `json:"score,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// NearbyPlace pairs a place with its great-circle distance from the query
// point, in kilometers.
type NearbyPlace struct {
	Place      Place   `json:"place"`
	DistanceKm float64 `json:"distanceKm"`
}

// FeedEntry is one row of the personalized feed: a place ranked by
// predicted score weighted by prediction confidence.
type FeedEntry struct {
	Place      Place   `json:"place"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	DistanceKm float64 `json:"distanceKm,omitempty"`
}

// CreatePlaceRequest registers a new place.
type CreatePlaceRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Address  string `json:"address,omitempty" validate:"max=500"`
	Location LatLng `json:"location" validate:"required"`
}
