// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package voting

import (
	"context"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/store"
)

// Janitor archives active groups that have sat idle past the configured
// TTL. Ballots, member changes, and candidate regeneration all bump the
// group's UpdatedAt, so only genuinely abandoned decisions expire.
//
// Runs as a supervised service.
type Janitor struct {
	store *store.Store
	cfg   config.GroupsConfig

	// now is swappable for tests.
	now func() time.Time
}

// NewJanitor builds the idle group janitor.
func NewJanitor(st *store.Store, cfg config.GroupsConfig) *Janitor {
	return &Janitor{store: st, cfg: cfg, now: time.Now}
}

// Serve implements suture.Service: sweep on every tick until canceled.
func (j *Janitor) Serve(ctx context.Context) error {
	interval := j.cfg.JanitorInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := j.Sweep(); err != nil {
				logging.Error().Err(err).Msg("Idle group sweep failed")
			} else if n > 0 {
				logging.Info().Int("archived", n).Msg("Idle groups archived")
			}
		}
	}
}

// Sweep archives every active group idle past the TTL and returns how
// many it archived. A group that mutates between the listing and the
// archive attempt loses its staleness and is skipped, not failed.
func (j *Janitor) Sweep() (int, error) {
	if j.cfg.IdleTTL <= 0 {
		return 0, nil
	}

	groups, err := j.store.ActiveGroups()
	if err != nil {
		return 0, err
	}

	cutoff := j.now().UTC().Add(-j.cfg.IdleTTL)
	archived := 0
	for i := range groups {
		if groups[i].UpdatedAt.After(cutoff) {
			continue
		}
		id := groups[i].ID
		_, err := j.store.UpdateGroup("group_expire", id, func(g *models.Group) error {
			if g.Status != models.GroupActive {
				return models.Conflict("group %s is no longer active", id)
			}
			if g.UpdatedAt.After(cutoff) {
				return models.Conflict("group %s saw activity since the sweep started", id)
			}
			g.Status = models.GroupArchived
			return nil
		})
		switch {
		case err == nil:
			archived++
			logging.Debug().Str("group_id", id).Msg("Archived idle group")
		case models.KindOf(err) == models.KindConflict:
			// Raced a vote or finalize; leave it alone.
		default:
			logging.Warn().Err(err).Str("group_id", id).Msg("Failed to archive idle group")
		}
	}
	return archived, nil
}

// String implements suture's service naming.
func (j *Janitor) String() string {
	return "group-janitor"
}
