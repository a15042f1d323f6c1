// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"

	"github.com/convene-app/convene/internal/models"
)

// Predict handles POST /api/v1/predict: the hybrid heuristic/ML score
// for one (user, place) pair. A failing model service degrades to
// heuristic_only, never an error.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	result, err := h.predictor.Predict(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// PredictBatch handles POST /api/v1/predict/batch: one call scores up to
// a hundred places for a user, the shape the feed and group candidate
// paths consume.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchPredictRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	result, err := h.predictor.PredictBatch(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// PredictorInfo handles GET /api/v1/predictor/info: training state of
// the remote model. With no model service configured every field is its
// zero value and Trained is false.
func (h *Handler) PredictorInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.predictor.Info(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, info)
}
