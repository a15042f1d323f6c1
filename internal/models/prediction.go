// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package models

import (
	"time"
)

// Prediction methods reported in PredictionResult.Method.
const (
	PredictMethodHybrid        = "hybrid"
	PredictMethodHeuristicOnly = "heuristic_only"
)

// PredictRequest asks how userId would score placeId. MLWeight overrides
// the configured blend weight for this request only; nil uses the server
// default.
type PredictRequest struct {
	UserID   string   `json:"userId" validate:"required,uuid4"`
	PlaceID  string   `json:"placeId" validate:"required,uuid4"`
	MLWeight *float64 `json:"mlWeight,omitempty" validate:"omitempty,min=0,max=1"`
}

// BatchPredictRequest scores several places for one user in a single
// call, as the feed and group recommendation paths do.
type BatchPredictRequest struct {
	UserID   string   `json:"userId" validate:"required,uuid4"`
	PlaceIDs []string `json:"placeIds" validate:"required,min=1,max=100,unique,dive,uuid4"`
}

// PredictionResult is a personalized score prediction with its full
// provenance. Score and Confidence are rounded to two decimals. Method is
// "hybrid" when an ML component contributed, "heuristic_only" otherwise.
type PredictionResult struct {
	UserID     string              `json:"userId"`
	PlaceID    string              `json:"placeId"`
	Score      float64             `json:"predictedScore"`
	Confidence float64             `json:"confidence"`
	Method     string              `json:"method"`
	Breakdown  PredictionBreakdown `json:"breakdown"`
}

// PredictionBreakdown exposes both components of a blended prediction so
// clients can render provenance.
type PredictionBreakdown struct {
	Heuristic HeuristicComponent `json:"heuristic"`
	ML        MLComponent        `json:"ml"`
}

// HeuristicComponent is the similarity-weighted neighbor average.
// NSimilarUsers counts the neighbors inside the similarity window that
// contributed to the score.
type HeuristicComponent struct {
	Score         float64 `json:"score"`
	Confidence    float64 `json:"confidence"`
	Weight        float64 `json:"weight"`
	NSimilarUsers int     `json:"nSimilarUsers"`
}

// MLComponent is the learned model's contribution. Available is false
// when the model service was unreachable or has no trained model, in
// which case Weight is 0 and the heuristic carries the prediction alone.
type MLComponent struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
	Available  bool    `json:"available"`
}

// BatchPredictionResult maps each requested place ID to its prediction.
type BatchPredictionResult struct {
	UserID      string                      `json:"userId"`
	Predictions map[string]PredictionResult `json:"predictions"`
}

// PredictorInfo describes the state of the learned model behind the
// predictor, as reported by the model service.
type PredictorInfo struct {
	Trained          bool       `json:"trained"`
	TotalSamples     int        `json:"totalSamples"`
	LastTrained      *time.Time `json:"lastTrained,omitempty"`
	EpochsCompleted  int        `json:"epochsCompleted"`
	UsersInTraining  int        `json:"usersInTraining"`
	PlacesInTraining int        `json:"placesInTraining"`
}
