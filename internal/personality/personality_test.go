// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package personality

import (
	"testing"

	"github.com/convene-app/convene/internal/models"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name string
		af   float64
		want Bucket
	}{
		{"strong introvert", -1.0, BucketIntrovert},
		{"moderate introvert", -0.5, BucketIntrovert},
		{"introvert boundary inclusive", -0.2, BucketIntrovert},
		{"just inside ambivert low", -0.19, BucketAmbivert},
		{"neutral", 0, BucketAmbivert},
		{"just inside ambivert high", 0.19, BucketAmbivert},
		{"extrovert boundary inclusive", 0.2, BucketExtrovert},
		{"moderate extrovert", 0.5, BucketExtrovert},
		{"strong extrovert", 1.0, BucketExtrovert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketFor(tt.af); got != tt.want {
				t.Errorf("BucketFor(%v) = %q, want %q", tt.af, got, tt.want)
			}
		})
	}
}

func TestNormalizeToObjective(t *testing.T) {
	submitted := models.CategoryScores{
		CrowdSize:    9,
		NoiseLevel:   8,
		SocialEnergy: 7,
		Service:      6,
		Atmosphere:   5,
	}

	t.Run("introvert rater inverts sensitive categories", func(t *testing.T) {
		got := NormalizeToObjective(submitted, -0.5)
		want := models.CategoryScores{
			CrowdSize:    2,
			NoiseLevel:   3,
			SocialEnergy: 4,
			Service:      6,
			Atmosphere:   5,
		}
		if got != want {
			t.Errorf("NormalizeToObjective = %+v, want %+v", got, want)
		}
	})

	t.Run("ambivert rater passes through", func(t *testing.T) {
		if got := NormalizeToObjective(submitted, 0); got != submitted {
			t.Errorf("NormalizeToObjective = %+v, want unchanged %+v", got, submitted)
		}
	})

	t.Run("extrovert rater passes through", func(t *testing.T) {
		if got := NormalizeToObjective(submitted, 0.8); got != submitted {
			t.Errorf("NormalizeToObjective = %+v, want unchanged %+v", got, submitted)
		}
	})
}

// Normalizing then re-adjusting with the rater's own factor must return
// the submitted categories exactly, for every factor and for fractional
// category values as well as the usual integers.
func TestNormalizeAdjustRoundTripExact(t *testing.T) {
	factors := []float64{-1, -0.75, -0.5, -0.21, -0.2, -0.19, 0, 0.19, 0.2, 0.5, 1}
	values := []float64{1, 1.5, 2, 3.7, 5, 6.3, 8, 9.9, 10}

	for _, af := range factors {
		for _, v := range values {
			c := models.CategoryScores{
				CrowdSize:    v,
				NoiseLevel:   11 - v,
				SocialEnergy: v,
				Service:      v,
				Atmosphere:   11 - v,
			}
			got := AdjustForViewer(NormalizeToObjective(c, af), af)
			if got != c {
				t.Fatalf("round trip af=%v v=%v: got %+v, want %+v", af, v, got, c)
			}
		}
	}
}

func TestOverallScore(t *testing.T) {
	categories := models.CategoryScores{
		Atmosphere:   8,
		SocialEnergy: 7,
		CrowdSize:    6,
		NoiseLevel:   5,
		Service:      7,
	}

	tests := []struct {
		name    string
		raterAF float64
		want    float64
	}{
		// 8*.25 + 7*.25 + 6*.15 + 5*.15 + 7*.20
		{"ambivert rater uses raw categories", 0, 6.8},
		// introvert adjustment flips crowd to 5, noise to 6, social to 4
		{"introvert rater scores own adjustment", -0.5, 6.05},
		{"extrovert rater uses raw categories", 0.6, 6.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallScore(categories, tt.raterAF); got != tt.want {
				t.Errorf("OverallScore(af=%v) = %v, want %v", tt.raterAF, got, tt.want)
			}
		})
	}
}

func TestOverallScoreRange(t *testing.T) {
	extremes := []models.CategoryScores{
		{CrowdSize: 1, NoiseLevel: 1, SocialEnergy: 1, Service: 1, Atmosphere: 1},
		{CrowdSize: 10, NoiseLevel: 10, SocialEnergy: 10, Service: 10, Atmosphere: 10},
		{CrowdSize: 1, NoiseLevel: 10, SocialEnergy: 1, Service: 10, Atmosphere: 1},
		{CrowdSize: 10, NoiseLevel: 1, SocialEnergy: 10, Service: 1, Atmosphere: 10},
	}
	factors := []float64{-1, -0.2, 0, 0.2, 1}

	for _, c := range extremes {
		for _, af := range factors {
			got := OverallScore(c, af)
			if got < 1 || got > 10 {
				t.Errorf("OverallScore(%+v, af=%v) = %v, outside [1, 10]", c, af, got)
			}
		}
	}
}

func TestAdjustedScoreForViewer(t *testing.T) {
	categories := models.CategoryScores{
		CrowdSize:    9,
		NoiseLevel:   8,
		SocialEnergy: 7,
		Service:      6,
		Atmosphere:   5,
	}

	tests := []struct {
		name     string
		raterAF  float64
		viewerAF float64
		want     float64
	}{
		// objective crowd=2, noise=3, social=4; extrovert viewer sees them as is:
		// 5*.25 + 4*.25 + 2*.15 + 3*.15 + 6*.20
		{"introvert rating shown to extrovert", -0.5, 0.8, 4.2},
		// extrovert ratings are already objective; introvert viewer re-inverts
		{"extrovert rating shown to introvert", 0.5, -0.3, 4.2},
		// same factor on both sides cancels, leaving the raw weighted sum:
		// 5*.25 + 7*.25 + 9*.15 + 8*.15 + 6*.20
		{"introvert rating shown to same introvert", -0.5, -1.0, 6.75},
		{"ambivert to ambivert is the raw sum", 0, 0, 6.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustedScoreForViewer(categories, tt.raterAF, tt.viewerAF)
			if got != tt.want {
				t.Errorf("AdjustedScoreForViewer(rater=%v, viewer=%v) = %v, want %v",
					tt.raterAF, tt.viewerAF, got, tt.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		af   float64
		want string
	}{
		{-1.0, LabelStrongIntrovert},
		{-0.75, LabelStrongIntrovert},
		{-0.74, LabelModerateIntrovert},
		{-0.5, LabelModerateIntrovert},
		{-0.25, LabelModerateIntrovert},
		{-0.24, LabelAmbivert},
		{0, LabelAmbivert},
		{0.24, LabelAmbivert},
		{0.25, LabelModerateExtrovert},
		{0.5, LabelModerateExtrovert},
		{0.74, LabelModerateExtrovert},
		{0.75, LabelStrongExtrovert},
		{1.0, LabelStrongExtrovert},
	}

	for _, tt := range tests {
		if got := Label(tt.af); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.af, got, tt.want)
		}
	}
}

func TestFactorForLabel(t *testing.T) {
	anchors := map[string]float64{
		LabelStrongIntrovert:   -1.0,
		LabelModerateIntrovert: -0.5,
		LabelAmbivert:          0,
		LabelModerateExtrovert: 0.5,
		LabelStrongExtrovert:   1.0,
		LabelUnknown:           0,
		"nonsense":             0,
	}

	for label, want := range anchors {
		if got := FactorForLabel(label); got != want {
			t.Errorf("FactorForLabel(%q) = %v, want %v", label, got, want)
		}
	}

	// Anchor labels round-trip through Label.
	for _, label := range []string{
		LabelStrongIntrovert, LabelModerateIntrovert, LabelAmbivert,
		LabelModerateExtrovert, LabelStrongExtrovert,
	} {
		if got := Label(FactorForLabel(label)); got != label {
			t.Errorf("Label(FactorForLabel(%q)) = %q", label, got)
		}
	}
}
