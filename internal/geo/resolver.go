// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package geo

import (
	"context"
	"time"

	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

// Lookup sources, in degradation order.
const (
	SourceExternal = "external"
	SourceGrid     = "grid"
	SourceScan     = "scan"
)

// ScanFunc loads every stored place's identity and position. The
// resolver calls it only when both the directory and the grid cannot
// answer.
type ScanFunc func(ctx context.Context) ([]Point, error)

// Resolver answers nearby-place queries, degrading from the external
// directory to the spatial grid to a full store scan. A directory
// failure or open breaker is logged and counted but never surfaces to
// the caller; only a failing store scan returns an error.
type Resolver struct {
	client *Client // nil when no directory is configured
	grid   *SpatialGrid
	scan   ScanFunc
}

// NewResolver builds a resolver. client may be nil; grid and scan must
// be set.
func NewResolver(client *Client, grid *SpatialGrid, scan ScanFunc) *Resolver {
	return &Resolver{client: client, grid: grid, scan: scan}
}

// Grid exposes the underlying spatial index so place writes and the
// maintenance service can keep it current.
func (r *Resolver) Grid() *SpatialGrid {
	return r.grid
}

// Nearby returns up to limit places within radiusKm of origin, ordered
// by distance then place ID. limit <= 0 means no cap.
func (r *Resolver) Nearby(ctx context.Context, origin models.LatLng, radiusKm float64, limit int) ([]Match, error) {
	if r.client != nil {
		start := time.Now()
		matches, err := r.client.Nearby(ctx, origin, radiusKm, limit)
		if err == nil {
			metrics.RecordGeoLookup(SourceExternal, time.Since(start))
			return matches, nil
		}
		logging.Warn().Err(err).
			Float64("lat", origin.Lat).
			Float64("lng", origin.Lng).
			Msg("Place directory lookup failed, falling back to local index")
	}

	if r.grid.Size() > 0 {
		start := time.Now()
		matches := capMatches(r.grid.Nearby(origin, radiusKm), limit)
		metrics.RecordGeoLookup(SourceGrid, time.Since(start))
		return matches, nil
	}

	// Cold grid: scan the store directly. This is the startup window
	// before the first index rebuild completes.
	start := time.Now()
	points, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, p := range points {
		dist := Haversine(origin, p.Location)
		if dist <= radiusKm {
			matches = append(matches, Match{
				PlaceID:    p.ID,
				Name:       p.Name,
				Address:    p.Address,
				Location:   p.Location,
				DistanceKm: dist,
			})
		}
	}
	sortMatches(matches)
	metrics.RecordGeoLookup(SourceScan, time.Since(start))
	return capMatches(matches, limit), nil
}
