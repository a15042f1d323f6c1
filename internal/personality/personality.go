// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package personality implements the adjustment-factor model: bucket
// classification, the objective-score normalization applied to
// personality-sensitive categories, and the weighted overall score.
//
// Every function here is pure and stateless. Ratings store the raw
// categories exactly as submitted together with the author's adjustment
// factor at submission time; normalization is applied on read, never
// persisted. The core invariant is that normalizing a rating to
// objective form and re-adjusting it for a viewer with the author's own
// factor reproduces the submitted categories bit for bit.
package personality

import (
	"math"

	"github.com/convene-app/convene/internal/models"
)

// Bucket is the coarse personality class derived from an adjustment
// factor. Bucket values appear as JSON keys in place aggregates and as
// metric label values, so they stay lowercase and stable.
type Bucket string

const (
	BucketIntrovert Bucket = "introvert"
	BucketAmbivert  Bucket = "ambivert"
	BucketExtrovert Bucket = "extrovert"
)

// Bucket thresholds. Both boundaries are inclusive: -0.2 is introvert,
// 0.2 is extrovert.
const (
	introvertMax = -0.2
	extrovertMin = 0.2
)

// Category weights for the overall score. They sum to 1.
const (
	weightAtmosphere   = 0.25
	weightSocialEnergy = 0.25
	weightCrowdSize    = 0.15
	weightNoiseLevel   = 0.15
	weightService      = 0.20
)

// BucketFor classifies an adjustment factor in [-1, 1].
func BucketFor(af float64) Bucket {
	switch {
	case af <= introvertMax:
		return BucketIntrovert
	case af >= extrovertMin:
		return BucketExtrovert
	default:
		return BucketAmbivert
	}
}

// invert flips a score on the shared [1, 10] scale. Applying it twice
// returns the input exactly, including for non-integer values, because
// both subtractions are exact in float64 on this range.
func invert(v float64) float64 {
	return 11 - v
}

// invertSensitive flips the three personality-sensitive categories
// (crowd size, noise level, social energy) when the given factor falls
// in the introvert bucket. Service and atmosphere always pass through
// untouched. Ambiverts and extroverts are treated as already objective.
func invertSensitive(c models.CategoryScores, af float64) models.CategoryScores {
	if BucketFor(af) != BucketIntrovert {
		return c
	}
	c.CrowdSize = invert(c.CrowdSize)
	c.NoiseLevel = invert(c.NoiseLevel)
	c.SocialEnergy = invert(c.SocialEnergy)
	return c
}

// NormalizeToObjective converts categories as submitted by a rater with
// factor raterAF into objective form. An introvert scoring a venue 9
// for crowd size means "pleasantly uncrowded"; objectively the venue is
// a 2 on the crowded scale.
func NormalizeToObjective(c models.CategoryScores, raterAF float64) models.CategoryScores {
	return invertSensitive(c, raterAF)
}

// AdjustForViewer converts objective categories into the frame of a
// viewer with factor viewerAF. It is the exact inverse of
// NormalizeToObjective for the same factor:
//
//	AdjustForViewer(NormalizeToObjective(c, af), af) == c
//
// holds exactly for every af and every c on the rating scale.
func AdjustForViewer(obj models.CategoryScores, viewerAF float64) models.CategoryScores {
	return invertSensitive(obj, viewerAF)
}

// weightedSum collapses categories into a single score. The weights sum
// to 1, so a weighted sum of values in [1, 10] stays in [1, 10].
func weightedSum(c models.CategoryScores) float64 {
	return c.Atmosphere*weightAtmosphere +
		c.SocialEnergy*weightSocialEnergy +
		c.CrowdSize*weightCrowdSize +
		c.NoiseLevel*weightNoiseLevel +
		c.Service*weightService
}

// OverallScore computes the score stored on a rating: the personality
// adjustment for the rater's own factor is applied to the submitted
// categories, then the weighted sum is taken. The rater is treated as
// both source and viewer, so the adjustment is applied once, not
// round-tripped.
//
// All five weights are multiples of 0.05, so integer category scores
// always produce a sum on the 0.05 grid; rounding at the second decimal
// removes float drift without losing information.
func OverallScore(c models.CategoryScores, raterAF float64) float64 {
	return round2(weightedSum(invertSensitive(c, raterAF)))
}

// AdjustedScoreForViewer computes the score one viewer should see for
// another user's rating: normalize with the rater's factor, re-adjust
// with the viewer's, then take the plain weighted sum. No further
// personality correction is applied after the re-adjustment.
func AdjustedScoreForViewer(c models.CategoryScores, raterAF, viewerAF float64) float64 {
	obj := NormalizeToObjective(c, raterAF)
	return round2(weightedSum(AdjustForViewer(obj, viewerAF)))
}

// round2 rounds half away from zero at the second decimal.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Display labels for quiz results. The five anchors sit at -1, -0.5, 0,
// 0.5 and 1; Label maps a factor to the nearest anchor with boundaries
// at the midpoints.
const (
	LabelStrongIntrovert   = "Strong Introvert"
	LabelModerateIntrovert = "Moderate Introvert"
	LabelAmbivert          = "Ambivert"
	LabelModerateExtrovert = "Moderate Extrovert"
	LabelStrongExtrovert   = "Strong Extrovert"
	LabelUnknown           = "Unknown"
)

// Label maps an adjustment factor to its display label.
func Label(af float64) string {
	switch {
	case af <= -0.75:
		return LabelStrongIntrovert
	case af <= -0.25:
		return LabelModerateIntrovert
	case af < 0.25:
		return LabelAmbivert
	case af < 0.75:
		return LabelModerateExtrovert
	default:
		return LabelStrongExtrovert
	}
}

// FactorForLabel maps a display label back to its anchor factor.
// Unrecognized labels, including "Unknown", map to 0.
func FactorForLabel(label string) float64 {
	switch label {
	case LabelStrongIntrovert:
		return -1.0
	case LabelModerateIntrovert:
		return -0.5
	case LabelModerateExtrovert:
		return 0.5
	case LabelStrongExtrovert:
		return 1.0
	default:
		return 0
	}
}
