// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package predict

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

// Source supplies the stored documents a prediction is assembled from.
// *store.Store satisfies it.
type Source interface {
	GetUser(id string) (*models.User, error)
	GetPlace(id string) (*models.Place, error)
	RatingsForPlace(placeID string) ([]models.Rating, error)
}

// modelService is the slice of Client the predictor uses, split out so
// tests can fake the model side.
type modelService interface {
	Predict(ctx context.Context, in Input) (*MLScore, error)
	PredictBatch(ctx context.Context, ins []Input) (map[Pair]MLScore, error)
	ModelInfo(ctx context.Context) (*ModelInfo, error)
}

// Predictor blends the in-process heuristic with the optional learned
// model. All methods are safe for concurrent use.
type Predictor struct {
	source       Source
	client       modelService // nil when no model service is configured
	heuristic    Heuristic
	mlWeight     float64
	maxNeighbors int
}

// NewPredictor builds the predictor. client may be nil, in which case
// every prediction is heuristic-only.
func NewPredictor(source Source, client *Client, cfg config.PredictorConfig) *Predictor {
	p := &Predictor{
		source:       source,
		heuristic:    NewHeuristic(cfg.SimilarityWindow),
		mlWeight:     cfg.MLWeight,
		maxNeighbors: cfg.MaxNeighbors,
	}
	if p.mlWeight < 0 || p.mlWeight > 1 {
		p.mlWeight = 0.3
	}
	if client != nil {
		p.client = client
	}
	return p
}

// Predict scores one user-place pair.
func (p *Predictor) Predict(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error) {
	in, err := p.assemble(req.UserID, req.PlaceID)
	if err != nil {
		return nil, err
	}

	var ml *MLScore
	if p.client != nil {
		ml, err = p.client.Predict(ctx, *in)
		if err != nil {
			logging.Debug().Err(err).Str("user_id", req.UserID).Str("place_id", req.PlaceID).
				Msg("Model service unavailable, serving heuristic only")
			ml = nil
		}
	}

	result := p.blend(*in, ml, req.MLWeight)
	return result, nil
}

// PredictBatch scores several places for one user. The model service is
// consulted once for the whole batch; pairs it cannot score fall back
// to heuristic-only individually.
func (p *Predictor) PredictBatch(ctx context.Context, req models.BatchPredictRequest) (*models.BatchPredictionResult, error) {
	ins := make([]Input, 0, len(req.PlaceIDs))
	for _, placeID := range req.PlaceIDs {
		in, err := p.assemble(req.UserID, placeID)
		if err != nil {
			return nil, err
		}
		ins = append(ins, *in)
	}

	var mlScores map[Pair]MLScore
	if p.client != nil {
		var err error
		mlScores, err = p.client.PredictBatch(ctx, ins)
		if err != nil {
			logging.Debug().Err(err).Str("user_id", req.UserID).Int("pairs", len(ins)).
				Msg("Model service batch unavailable, serving heuristics only")
			mlScores = nil
		}
	}

	out := &models.BatchPredictionResult{
		UserID:      req.UserID,
		Predictions: make(map[string]models.PredictionResult, len(ins)),
	}
	for _, in := range ins {
		var ml *MLScore
		if score, ok := mlScores[Pair{UserID: in.UserID, PlaceID: in.PlaceID}]; ok {
			ml = &score
		}
		out.Predictions[in.PlaceID] = *p.blend(in, ml, nil)
	}
	return out, nil
}

// Info reports the learned model's training state. Without a configured
// model service the predictor reports an untrained model rather than an
// error, since the heuristic still serves.
func (p *Predictor) Info(ctx context.Context) (*models.PredictorInfo, error) {
	if p.client == nil {
		return &models.PredictorInfo{}, nil
	}
	info, err := p.client.ModelInfo(ctx)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return &models.PredictorInfo{}, nil
	}
	out := &models.PredictorInfo{
		Trained:          info.Trained,
		TotalSamples:     info.TotalSamples,
		EpochsCompleted:  info.EpochsCompleted,
		UsersInTraining:  info.UsersInTraining,
		PlacesInTraining: info.PlacesInTraining,
	}
	if t := info.LastTrainedTime(); !t.IsZero() {
		out.LastTrained = &t
	}
	return out, nil
}

// assemble loads the documents for one pair and builds the model input,
// keeping only the most personality-similar neighbors when the set
// exceeds the configured cap.
func (p *Predictor) assemble(userID, placeID string) (*Input, error) {
	user, err := p.source.GetUser(userID)
	if err != nil {
		return nil, err
	}
	place, err := p.source.GetPlace(placeID)
	if err != nil {
		return nil, err
	}
	ratings, err := p.source.RatingsForPlace(placeID)
	if err != nil {
		return nil, err
	}

	in := InputFor(user, place, ratings)
	if p.maxNeighbors > 0 && len(in.Neighbors) > p.maxNeighbors {
		viewerAF := in.User.AdjustmentFactor
		sort.SliceStable(in.Neighbors, func(i, j int) bool {
			return math.Abs(in.Neighbors[i].AdjustmentFactor-viewerAF) <
				math.Abs(in.Neighbors[j].AdjustmentFactor-viewerAF)
		})
		in.Neighbors = in.Neighbors[:p.maxNeighbors]
	}
	return &in, nil
}

// blend combines the heuristic with the learned component, if any.
func (p *Predictor) blend(in Input, ml *MLScore, weightOverride *float64) *models.PredictionResult {
	start := time.Now()

	hScore := p.heuristic.Predict(in.User, in.Place, in.Neighbors)
	hConf := p.heuristic.Confidence(len(in.Neighbors))
	similar := p.countSimilar(in)

	result := &models.PredictionResult{
		UserID:  in.UserID,
		PlaceID: in.PlaceID,
	}

	w := p.mlWeight
	if weightOverride != nil {
		w = *weightOverride
	}

	if ml == nil || w == 0 {
		result.Score = round2(hScore)
		result.Confidence = round2(hConf)
		result.Method = models.PredictMethodHeuristicOnly
		result.Breakdown = models.PredictionBreakdown{
			Heuristic: models.HeuristicComponent{
				Score:         round2(hScore),
				Confidence:    round2(hConf),
				Weight:        1,
				NSimilarUsers: similar,
			},
		}
		metrics.RecordPrediction(result.Method, time.Since(start), similar)
		return result
	}

	result.Score = round2((1-w)*hScore + w*ml.Score)
	result.Confidence = round2((1-w)*hConf + w*ml.Confidence)
	result.Method = models.PredictMethodHybrid
	result.Breakdown = models.PredictionBreakdown{
		Heuristic: models.HeuristicComponent{
			Score:         round2(hScore),
			Confidence:    round2(hConf),
			Weight:        round2(1 - w),
			NSimilarUsers: similar,
		},
		ML: models.MLComponent{
			Score:      round2(ml.Score),
			Confidence: round2(ml.Confidence),
			Weight:     round2(w),
			Available:  true,
		},
	}
	metrics.RecordPrediction(result.Method, time.Since(start), similar)
	return result
}

// countSimilar counts neighbors inside the similarity window.
func (p *Predictor) countSimilar(in Input) int {
	n := 0
	for _, nb := range in.Neighbors {
		if math.Abs(nb.AdjustmentFactor-in.User.AdjustmentFactor) <= p.heuristic.Window {
			n++
		}
	}
	return n
}
