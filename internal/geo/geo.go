// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package geo finds places near a coordinate.
//
// Three lookup sources exist, tried in order by Resolver: the external
// place directory service (rate limited and circuit broken), the
// in-process spatial grid over stored places, and a full haversine scan
// of the store. Callers never see a source failure as long as a later
// source can answer; only a failing store scan surfaces an error.
package geo

import (
	"math"
	"sort"

	"github.com/convene-app/convene/internal/models"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates
// in kilometers.
func Haversine(a, b models.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Point is a place's identity and position, the unit the grid and the
// store scan both speak.
type Point struct {
	ID       string
	Name     string
	Address  string
	Location models.LatLng
}

// Match is one nearby-place result. Matches from the external directory
// may name places the local store has never seen; callers treat those
// as unrated candidates.
type Match struct {
	PlaceID    string        `json:"placeId"`
	Name       string        `json:"name"`
	Address    string        `json:"address,omitempty"`
	Location   models.LatLng `json:"location"`
	DistanceKm float64       `json:"distanceKm"`
}

// sortMatches orders by distance, then by place ID for equal distances,
// so repeated queries over the same data return identical slices.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return matches[i].PlaceID < matches[j].PlaceID
	})
}

// capMatches truncates to limit when limit is positive.
func capMatches(matches []Match, limit int) []Match {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}
