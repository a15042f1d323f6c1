// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/convene-app/convene/internal/models"
)

// CreateRating handles POST /api/v1/ratings. The caller must be the
// rating's author; a second rating for the same (user, place) pair fails
// with CONFLICT.
func (h *Handler) CreateRating(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req models.CreateRatingRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}
	if req.UserID != actor {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "ratings may only be created for the caller", nil)
		return
	}

	rating, err := h.store.CreateRating(req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, rating)
}

// GetRating handles GET /api/v1/ratings/{id}.
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	rating, err := h.store.GetRating(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, rating)
}

// UpdateRating handles PUT /api/v1/ratings/{id}. Only the author may
// edit; the overall score and the place aggregate recompute in the same
// transaction.
func (h *Handler) UpdateRating(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req models.UpdateRatingRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	rating, err := h.store.UpdateRating(actor, chi.URLParam(r, "id"), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, rating)
}

// DeleteRating handles DELETE /api/v1/ratings/{id}.
func (h *Handler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.DeleteRating(actor, id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"id": id})
}
