// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package scoring re-projects stored ratings into viewer-specific
// predicted scores. Every rating counts equally once adjusted for the
// viewer; confidence grows with rating volume and saturates at ten
// ratings. Places nobody has rated are never scored here; callers
// surface them as unrated with NeutralScore and zero confidence.
package scoring

import (
	"math"
	"sort"

	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/personality"
)

// NeutralScore is what callers show for places without any ratings.
const NeutralScore = 5.0

const fullConfidenceRatings = 10

// ViewerScore is a place's predicted experience for one viewer.
type ViewerScore struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Ratings    int     `json:"ratings"`
}

// Confidence returns min(n/10, 1) for a place with n ratings.
func Confidence(n int) float64 {
	c := float64(n) / fullConfidenceRatings
	if c > 1 {
		return 1
	}
	return c
}

// ForViewer scores a place for a viewer as the unweighted mean of every
// rating re-projected through the rater's stored factor snapshot. The
// second return is false when the place has no ratings.
func ForViewer(ratings []models.Rating, viewerAF float64) (ViewerScore, bool) {
	if len(ratings) == 0 {
		return ViewerScore{}, false
	}

	var sum float64
	for _, r := range ratings {
		sum += personality.AdjustedScoreForViewer(r.Categories, r.RaterAdjustmentFactor, viewerAF)
	}
	return ViewerScore{
		Score:      round2(sum / float64(len(ratings))),
		Confidence: Confidence(len(ratings)),
		Ratings:    len(ratings),
	}, true
}

// RatedPlace is one feed input: a place, its distance from the query
// point, and its current ratings.
type RatedPlace struct {
	Place      models.Place
	DistanceKm float64
	Ratings    []models.Rating
}

// Feed orders places for a viewer. Rated places come first, sorted by
// predicted score weighted by confidence; unrated places trail with the
// neutral score, nearest first. Ties order by place ID so the feed is
// stable across requests.
func Feed(items []RatedPlace, viewerAF float64) []models.FeedEntry {
	rated := make([]models.FeedEntry, 0, len(items))
	unrated := make([]models.FeedEntry, 0)

	for _, it := range items {
		entry := models.FeedEntry{
			Place:      it.Place,
			DistanceKm: it.DistanceKm,
		}
		vs, ok := ForViewer(it.Ratings, viewerAF)
		if !ok {
			entry.Score = NeutralScore
			unrated = append(unrated, entry)
			continue
		}
		entry.Score = vs.Score
		entry.Confidence = vs.Confidence
		rated = append(rated, entry)
	}

	sort.Slice(rated, func(i, j int) bool {
		ki := rated[i].Score * rated[i].Confidence
		kj := rated[j].Score * rated[j].Confidence
		if ki != kj {
			return ki > kj
		}
		return rated[i].Place.ID < rated[j].Place.ID
	})
	sort.Slice(unrated, func(i, j int) bool {
		if unrated[i].DistanceKm != unrated[j].DistanceKm {
			return unrated[i].DistanceKm < unrated[j].DistanceKm
		}
		return unrated[i].Place.ID < unrated[j].Place.ID
	})

	return append(rated, unrated...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
