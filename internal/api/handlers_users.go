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

// CreateUser handles POST /api/v1/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	user, err := h.store.CreateUser(req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, user)
}

// GetUser handles GET /api/v1/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

// UpdateUser handles PUT /api/v1/users/{id}. Only the profile owner may
// edit it.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if actor != id {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "only the profile owner may update it", nil)
		return
	}

	var req models.UpdateUserRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	user, err := h.store.UpdateUser(id, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

// UpdatePersonality handles PUT /api/v1/users/{id}/personality: the quiz
// outcome sets the adjustment factor, the display label derives from it.
// Existing ratings keep their stored factor snapshots.
func (h *Handler) UpdatePersonality(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if actor != id {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "only the profile owner may retake the quiz", nil)
		return
	}

	var req models.QuizSubmission
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	user, err := h.store.SetPersonality(id, req.AdjustmentFactor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, user)
}
