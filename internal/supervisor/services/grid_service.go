// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package services

import (
	"context"
	"time"

	"github.com/convene-app/convene/internal/geo"
	"github.com/convene-app/convene/internal/logging"
)

// GridReloader is the slice of geo.Resolver the maintenance loop uses.
type GridReloader interface {
	Grid() *geo.SpatialGrid
}

// GridService periodically rebuilds the in-memory spatial index from the
// store. Place writes update the grid inline; the rebuild only repairs
// drift after crashes or missed updates, so the interval can be long.
type GridService struct {
	resolver GridReloader
	scan     geo.ScanFunc
	interval time.Duration
}

// NewGridService builds the maintenance loop. Intervals <= 0 default to
// 15 minutes.
func NewGridService(resolver GridReloader, scan geo.ScanFunc, interval time.Duration) *GridService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &GridService{resolver: resolver, scan: scan, interval: interval}
}

// Serve implements suture.Service. The grid is reloaded once at startup
// so a fresh process serves nearby queries immediately, then on every
// tick. A failed scan keeps the previous index.
func (s *GridService) Serve(ctx context.Context) error {
	s.reload(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reload(ctx)
		}
	}
}

func (s *GridService) reload(ctx context.Context) {
	points, err := s.scan(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Spatial grid reload failed; keeping previous index")
		return
	}
	s.resolver.Grid().Reload(points)
	logging.Debug().Int("points", len(points)).Msg("Spatial grid reloaded")
}

func (s *GridService) String() string {
	return "grid-maintenance"
}
