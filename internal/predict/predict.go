// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package predict serves personalized score predictions for user-place
// pairs. Two components contribute: an in-process heuristic that weights
// other raters' scores by personality similarity, and an optional
// learned-model service reached over HTTP. When the service is
// configured and answers, the two are blended; otherwise the heuristic
// serves alone. A prediction never fails because the model service is
// down.
//
// The package also owns the model refresh policy: a Watcher compares
// the rating volume against the service's training snapshot and raises
// a notification when retraining is due. Training itself happens
// out-of-band from the exported dataset.
package predict

import (
	"math"

	"github.com/convene-app/convene/internal/models"
)

// Prediction method tags.
const (
	MethodHybrid        = "hybrid"
	MethodHeuristicOnly = "heuristic_only"
)

// UserFeatures describe the viewer side of a prediction.
type UserFeatures struct {
	AdjustmentFactor float64 `json:"adjustmentFactor"`
	PersonalityType  string  `json:"personalityType"`
	TotalRatings     int     `json:"totalRatings"`
	AvgRating        float64 `json:"avgRating,omitempty"`
}

// PlaceFeatures describe the place side of a prediction, taken from the
// stored aggregate snapshot. Zero values mean the place has no ratings.
type PlaceFeatures struct {
	AvgScore        float64 `json:"avgScore"`
	AvgCrowdSize    float64 `json:"avgCrowdSize"`
	AvgNoiseLevel   float64 `json:"avgNoiseLevel"`
	AvgSocialEnergy float64 `json:"avgSocialEnergy"`
	AvgService      float64 `json:"avgService"`
	AvgAtmosphere   float64 `json:"avgAtmosphere"`
	TotalRatings    int     `json:"totalRatings"`
}

// NeighborRating is one other rater's score for the place, tagged with
// the adjustment factor snapshot frozen into their rating.
type NeighborRating struct {
	UserID           string  `json:"userId"`
	AdjustmentFactor float64 `json:"userAdjustmentFactor"`
	OverallScore     float64 `json:"overallScore"`
}

// Input is a fully assembled prediction request for one user-place pair.
type Input struct {
	UserID    string
	PlaceID   string
	User      UserFeatures
	Place     PlaceFeatures
	Neighbors []NeighborRating
}

// Pair identifies one user-place prediction in a batch.
type Pair struct {
	UserID  string
	PlaceID string
}

// MLScore is the learned-model component extracted from a model
// service response.
type MLScore struct {
	Score      float64
	Confidence float64
}

// Prediction is a served score with its confidence and provenance.
type Prediction struct {
	PredictedScore float64   `json:"predictedScore"`
	Confidence     float64   `json:"confidence"`
	Method         string    `json:"method"`
	Breakdown      Breakdown `json:"breakdown"`
}

// Breakdown exposes the two blend components.
type Breakdown struct {
	Heuristic HeuristicPart `json:"heuristic"`
	ML        MLPart        `json:"ml"`
}

// HeuristicPart is the in-process component of a prediction.
type HeuristicPart struct {
	Score        float64 `json:"score"`
	Confidence   float64 `json:"confidence"`
	Weight       float64 `json:"weight"`
	SimilarUsers int     `json:"n_similar_users"`
}

// MLPart is the learned-model component of a prediction. Score and
// Confidence are nil when no trained model served the request.
type MLPart struct {
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
	Weight     float64  `json:"weight"`
	Available  bool     `json:"available"`
}

// InputFor assembles prediction features from stored documents. The
// viewer's own rating never counts as a neighbor.
func InputFor(user *models.User, place *models.Place, ratings []models.Rating) Input {
	neighbors := make([]NeighborRating, 0, len(ratings))
	for _, r := range ratings {
		if r.UserID == user.ID {
			continue
		}
		neighbors = append(neighbors, NeighborRating{
			UserID:           r.UserID,
			AdjustmentFactor: r.RaterAdjustmentFactor,
			OverallScore:     r.OverallScore,
		})
	}

	in := Input{
		UserID:  user.ID,
		PlaceID: place.ID,
		User: UserFeatures{
			AdjustmentFactor: user.AdjustmentFactor,
			PersonalityType:  user.PersonalityType,
			TotalRatings:     user.TotalRatingsCount,
		},
		Neighbors: neighbors,
	}
	if place.Stats != nil {
		in.Place = PlaceFeatures{
			AvgScore:        place.Stats.AvgOverallScore,
			AvgCrowdSize:    place.Stats.AvgCategories.CrowdSize,
			AvgNoiseLevel:   place.Stats.AvgCategories.NoiseLevel,
			AvgSocialEnergy: place.Stats.AvgCategories.SocialEnergy,
			AvgService:      place.Stats.AvgCategories.Service,
			AvgAtmosphere:   place.Stats.AvgCategories.Atmosphere,
			TotalRatings:    place.Stats.TotalRatings,
		}
	}
	return in
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
