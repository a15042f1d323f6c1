// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package voting

import (
	"sort"

	"github.com/convene-app/convene/internal/models"
)

// rankPoints maps a ballot position (0-based) to points: 3 for first
// choice, 2 for second, 1 for third.
var rankPoints = [3]int{3, 2, 1}

// Tally computes the ranked-choice totals for a group's current
// ballots, in winning order. Every recommended place appears in the
// tally, including places with zero points, so callers render a
// complete board.
//
// Order is points descending, then generation rank ascending, then
// place ID ascending. The deterministic tie-break means two concurrent
// finalizations of the same ballots always agree on the winner.
func Tally(g *models.Group) []models.TallyEntry {
	byPlace := make(map[string]*models.TallyEntry, len(g.RecommendedPlaces))
	order := make(map[string]int, len(g.RecommendedPlaces))
	entries := make([]models.TallyEntry, 0, len(g.RecommendedPlaces))

	for _, c := range g.RecommendedPlaces {
		entries = append(entries, models.TallyEntry{
			PlaceID:   c.PlaceID,
			PlaceName: c.PlaceName,
		})
		order[c.PlaceID] = c.Rank
	}
	for i := range entries {
		byPlace[entries[i].PlaceID] = &entries[i]
	}

	for _, ballot := range g.Votes {
		for pos, placeID := range ballot {
			if pos >= len(rankPoints) {
				break
			}
			entry, ok := byPlace[placeID]
			if !ok {
				// Ballot references a place no longer recommended,
				// possible after a candidate regeneration raced a vote.
				continue
			}
			entry.Points += rankPoints[pos]
			entry.Ballots++
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if order[entries[i].PlaceID] != order[entries[j].PlaceID] {
			return order[entries[i].PlaceID] < order[entries[j].PlaceID]
		}
		return entries[i].PlaceID < entries[j].PlaceID
	})
	return entries
}

// winner returns the tally leader, or false when the tally is empty.
func winner(tally []models.TallyEntry) (models.TallyEntry, bool) {
	if len(tally) == 0 {
		return models.TallyEntry{}, false
	}
	return tally[0], true
}

// candidateByID finds a recommended place on the group.
func candidateByID(g *models.Group, placeID string) (models.CandidatePlace, bool) {
	for _, c := range g.RecommendedPlaces {
		if c.PlaceID == placeID {
			return c, true
		}
	}
	return models.CandidatePlace{}, false
}
