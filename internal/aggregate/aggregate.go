// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package aggregate derives per-place rating statistics.
//
// Stats are always recomputed from the full current rating set of a
// place, never adjusted incrementally, so no drift can accumulate. The
// store layer runs Compute inside the same transaction as the rating
// write that triggered it and serializes recomputation per place ID
// through PlaceLocks.
package aggregate

import (
	"math"
	"sync"
	"time"

	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/personality"
)

// Compute derives a place aggregate from its full rating set. Returns
// nil for an empty set: a place holds no aggregate until its first
// rating, and deleting the last rating removes the aggregate again.
//
// now is the time of the rating write that triggered recomputation and
// becomes LastRatedAt, including for deletes that leave ratings behind.
func Compute(ratings []models.Rating, now time.Time) *models.PlaceStats {
	if len(ratings) == 0 {
		return nil
	}

	var (
		sumOverall float64
		sumCat     models.CategoryScores
		bucketSum  = make(map[string]float64, 3)
		bucketN    = make(map[string]int, 3)
	)

	for _, r := range ratings {
		sumOverall += r.OverallScore

		// Category averages are over the RAW as-submitted scores, not
		// normalized ones; each rater's frame is kept intact.
		sumCat.CrowdSize += r.Categories.CrowdSize
		sumCat.NoiseLevel += r.Categories.NoiseLevel
		sumCat.SocialEnergy += r.Categories.SocialEnergy
		sumCat.Service += r.Categories.Service
		sumCat.Atmosphere += r.Categories.Atmosphere

		// Bucketing reads the stored snapshot, so a rater retaking the
		// quiz never reshuffles historical aggregates.
		bucket := string(personality.BucketFor(r.RaterAdjustmentFactor))
		bucketSum[bucket] += r.OverallScore
		bucketN[bucket]++
	}

	n := float64(len(ratings))
	stats := &models.PlaceStats{
		TotalRatings:    len(ratings),
		AvgOverallScore: round1(sumOverall / n),
		AvgCategories: models.CategoryScores{
			CrowdSize:    round1(sumCat.CrowdSize / n),
			NoiseLevel:   round1(sumCat.NoiseLevel / n),
			SocialEnergy: round1(sumCat.SocialEnergy / n),
			Service:      round1(sumCat.Service / n),
			Atmosphere:   round1(sumCat.Atmosphere / n),
		},
		ByPersonality: make(map[string]models.BucketStats, len(bucketN)),
	}

	for bucket, count := range bucketN {
		stats.ByPersonality[bucket] = models.BucketStats{
			AvgScore: round1(bucketSum[bucket] / float64(count)),
			Count:    count,
		}
	}

	ratedAt := now
	stats.LastRatedAt = &ratedAt

	return stats
}

// round1 rounds half away from zero at the first decimal.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// PlaceLocks hands out one mutex per place ID so concurrent rating
// writes to the same place recompute one at a time. Locks are never
// removed; the map grows with the set of places written this process
// lifetime, which is bounded and small.
type PlaceLocks struct {
	locks sync.Map
}

// Acquire locks the mutex for placeID and returns it for Release.
func (l *PlaceLocks) Acquire(placeID string) *sync.Mutex {
	muAny, _ := l.locks.LoadOrStore(placeID, &sync.Mutex{})
	mu, ok := muAny.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		l.locks.Store(placeID, mu)
	}
	mu.Lock()
	return mu
}

// Release unlocks a mutex returned by Acquire.
func (l *PlaceLocks) Release(mu *sync.Mutex) {
	mu.Unlock()
}
