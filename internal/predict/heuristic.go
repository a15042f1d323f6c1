// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package predict

import (
	"math"

	"github.com/convene-app/convene/internal/scoring"
)

const (
	// DefaultSimilarityWindow is the adjustment factor distance within
	// which raters count as personality neighbors of the viewer.
	DefaultSimilarityWindow = 0.3

	// farSimilarity is the flat similarity assigned to raters outside
	// the window when the window itself is empty.
	farSimilarity = 0.5

	// coldStartConfidence is reported with zero neighbor ratings.
	coldStartConfidence = 0.3

	// fullConfidenceNeighbors saturates the confidence ramp.
	fullConfidenceNeighbors = 10

	minPrediction = 1.0
	maxPrediction = 10.0
)

// Heuristic scores a place for a viewer from other raters' overall
// scores, weighted by how close each rater's adjustment factor is to
// the viewer's.
type Heuristic struct {
	// Window is the adjustment factor distance that counts as similar.
	Window float64
}

// NewHeuristic builds a heuristic with the configured window, falling
// back to the default when the value is unset or nonsensical.
func NewHeuristic(window float64) Heuristic {
	if window <= 0 {
		window = DefaultSimilarityWindow
	}
	return Heuristic{Window: window}
}

// Predict estimates how the viewer would score the place. With no
// neighbor ratings the place average answers as-is (neutral when the
// place is unrated). Otherwise raters inside the window are preferred,
// falling back to all raters when none are close; each contributes its
// squared similarity as weight and the weighted mean is clamped to the
// rating scale.
func (h Heuristic) Predict(viewer UserFeatures, place PlaceFeatures, neighbors []NeighborRating) float64 {
	if len(neighbors) == 0 {
		return fallbackScore(place)
	}

	window := make([]NeighborRating, 0, len(neighbors))
	for _, n := range neighbors {
		if math.Abs(n.AdjustmentFactor-viewer.AdjustmentFactor) <= h.Window {
			window = append(window, n)
		}
	}
	scored := window
	if len(scored) == 0 {
		scored = neighbors
	}

	var weightedSum, totalWeight float64
	for _, n := range scored {
		dist := math.Abs(n.AdjustmentFactor - viewer.AdjustmentFactor)
		similarity := farSimilarity
		if dist <= h.Window {
			similarity = 1 - dist/h.Window
		}
		weight := similarity * similarity
		weightedSum += n.OverallScore * weight
		totalWeight += weight
	}

	// Every scored neighbor can sit exactly on the window edge, where
	// similarity is zero.
	if totalWeight == 0 {
		return fallbackScore(place)
	}

	predicted := weightedSum / totalWeight
	return math.Max(minPrediction, math.Min(maxPrediction, predicted))
}

// Confidence grows linearly with the neighbor count and saturates at
// ten. Zero neighbors report the cold-start floor.
func (h Heuristic) Confidence(neighbors int) float64 {
	if neighbors == 0 {
		return coldStartConfidence
	}
	return math.Min(float64(neighbors)/fullConfidenceNeighbors, 1)
}

func fallbackScore(place PlaceFeatures) float64 {
	if place.AvgScore <= 0 {
		return scoring.NeutralScore
	}
	return place.AvgScore
}
