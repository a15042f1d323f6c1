// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package scoring

import (
	"fmt"
	"sort"

	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/personality"
)

// Seed is one candidate place before scoring, in candidate-generation
// order. Seeds come from the nearby resolver and may name places the
// store has never seen a rating for.
type Seed struct {
	PlaceID  string
	Name     string
	Address  string
	Location models.LatLng
}

// RatingSource supplies the current ratings of a place. Unknown place
// IDs yield an empty set, not an error.
type RatingSource interface {
	RatingsForPlace(placeID string) ([]models.Rating, error)
}

// MemberScores builds the per-member breakdown for one candidate place,
// in member order. A member who rated the place gets their own rating
// re-projected for themselves at full confidence; everyone else gets the
// place scored for their profile snapshot, or the neutral score when the
// place has no ratings at all.
func MemberScores(group *models.Group, ratings []models.Rating) []models.MemberScore {
	scores := make([]models.MemberScore, 0, len(group.Members))
	for _, memberID := range group.Members {
		viewerAF := group.MemberProfiles[memberID].AdjustmentFactor

		var own *models.Rating
		for i := range ratings {
			if ratings[i].UserID == memberID {
				own = &ratings[i]
				break
			}
		}
		if own != nil {
			scores = append(scores, models.MemberScore{
				UserID:     memberID,
				Score:      personality.AdjustedScoreForViewer(own.Categories, own.RaterAdjustmentFactor, viewerAF),
				Confidence: 1,
				Rated:      true,
			})
			continue
		}

		ms := models.MemberScore{UserID: memberID, Score: NeutralScore}
		if vs, ok := ForViewer(ratings, viewerAF); ok {
			ms.Score = vs.Score
			ms.Confidence = vs.Confidence
		}
		scores = append(scores, ms)
	}
	return scores
}

// SortCandidates orders candidates by predicted score weighted by
// confidence, best first. Ties fall back to the original generation
// rank, then to the place ID.
func SortCandidates(candidates []models.CandidatePlace) {
	sort.Slice(candidates, func(i, j int) bool {
		ki := candidates[i].PredictedScore * candidates[i].Confidence
		kj := candidates[j].PredictedScore * candidates[j].Confidence
		if ki != kj {
			return ki > kj
		}
		if candidates[i].Rank != candidates[j].Rank {
			return candidates[i].Rank < candidates[j].Rank
		}
		return candidates[i].PlaceID < candidates[j].PlaceID
	})
}

// Recommender turns candidate seeds into scored group candidates.
type Recommender struct {
	ratings RatingSource
}

// NewRecommender returns a Recommender reading ratings from src.
func NewRecommender(src RatingSource) *Recommender {
	return &Recommender{ratings: src}
}

// Candidates scores every seed for the group and returns the best limit
// of them, ordered for presentation. Rank preserves each seed's original
// generation position (1-based) regardless of the final score order.
func (r *Recommender) Candidates(group *models.Group, seeds []Seed, limit int) ([]models.CandidatePlace, error) {
	candidates := make([]models.CandidatePlace, 0, len(seeds))
	for i, seed := range seeds {
		ratings, err := r.ratings.RatingsForPlace(seed.PlaceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ratings for candidate %s: %w", seed.PlaceID, err)
		}

		breakdown := MemberScores(group, ratings)
		var scoreSum, confSum float64
		for _, ms := range breakdown {
			scoreSum += ms.Score
			confSum += ms.Confidence
		}
		n := float64(len(breakdown))

		candidates = append(candidates, models.CandidatePlace{
			PlaceID:             seed.PlaceID,
			PlaceName:           seed.Name,
			Address:             seed.Address,
			Location:            seed.Location,
			PredictedScore:      round2(scoreSum / n),
			Confidence:          round2(confSum / n),
			PredictedCategories: meanCategories(ratings),
			MemberBreakdown:     breakdown,
			Rank:                i + 1,
		})
	}

	SortCandidates(candidates)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// meanCategories averages the raw as-submitted categories to one
// decimal, or reports a neutral profile when nothing was rated.
func meanCategories(ratings []models.Rating) models.CategoryScores {
	if len(ratings) == 0 {
		return models.CategoryScores{
			CrowdSize:    NeutralScore,
			NoiseLevel:   NeutralScore,
			SocialEnergy: NeutralScore,
			Service:      NeutralScore,
			Atmosphere:   NeutralScore,
		}
	}

	var sum models.CategoryScores
	for _, r := range ratings {
		sum.CrowdSize += r.Categories.CrowdSize
		sum.NoiseLevel += r.Categories.NoiseLevel
		sum.SocialEnergy += r.Categories.SocialEnergy
		sum.Service += r.Categories.Service
		sum.Atmosphere += r.Categories.Atmosphere
	}
	n := float64(len(ratings))
	return models.CategoryScores{
		CrowdSize:    round1(sum.CrowdSize / n),
		NoiseLevel:   round1(sum.NoiseLevel / n),
		SocialEnergy: round1(sum.SocialEnergy / n),
		Service:      round1(sum.Service / n),
		Atmosphere:   round1(sum.Atmosphere / n),
	}
}
