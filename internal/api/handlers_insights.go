// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"

	"github.com/convene-app/convene/internal/insights"
	"github.com/convene-app/convene/internal/logging"
)

// requireInsights answers 503 when the insights store is disabled.
func (h *Handler) requireInsights(w http.ResponseWriter) (*insights.DB, bool) {
	if h.insights == nil {
		respondError(w, http.StatusServiceUnavailable, "EXTERNAL_UNAVAILABLE",
			"insights store is disabled", nil)
		return nil, false
	}
	return h.insights, true
}

// InsightsActivity handles GET /api/v1/insights/activity?days=: per-day
// rating write counts, most recent first.
func (h *Handler) InsightsActivity(w http.ResponseWriter, r *http.Request) {
	db, ok := h.requireInsights(w)
	if !ok {
		return
	}

	days := getIntParam(r, "days", 30)
	if days < 1 || days > 365 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "days must be between 1 and 365", nil)
		return
	}

	activity, err := db.DailyActivity(r.Context(), days)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, activity)
}

// InsightsPersonality handles GET /api/v1/insights/personality: rating
// volume and mean stored score per rater personality bucket.
func (h *Handler) InsightsPersonality(w http.ResponseWriter, r *http.Request) {
	db, ok := h.requireInsights(w)
	if !ok {
		return
	}

	dist, err := db.BucketDistribution(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, dist)
}

// InsightsPlaces handles GET /api/v1/insights/places?limit=: the most
// rated places by event volume.
func (h *Handler) InsightsPlaces(w http.ResponseWriter, r *http.Request) {
	db, ok := h.requireInsights(w)
	if !ok {
		return
	}

	limit := getIntParam(r, "limit", 10)
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}

	places, err := db.TopPlaces(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, places)
}

// InsightsDataset handles GET /api/v1/insights/dataset: the CSV training
// export streamed straight from the event log, one row per live rating.
func (h *Handler) InsightsDataset(w http.ResponseWriter, r *http.Request) {
	db, ok := h.requireInsights(w)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="convene-ratings.csv"`)

	rows, err := db.TrainingDataset(r.Context(), w)
	if err != nil {
		// Headers are gone by now; all we can do is log and cut the stream.
		logging.Error().Err(err).Int64("rows", rows).Msg("Training dataset export failed mid-stream")
		return
	}
	logging.Debug().Int64("rows", rows).Msg("Training dataset exported")
}
