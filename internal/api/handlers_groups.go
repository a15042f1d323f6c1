// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/convene-app/convene/internal/models"
)

// CreateGroup handles POST /api/v1/groups. The caller is always the
// creator, whatever the body says.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req models.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	req.CreatorID = actor
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	group, err := h.voting.CreateGroup(req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, group)
}

// GetGroup handles GET /api/v1/groups/{id}. Members only.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	group, err := h.store.GetGroup(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !group.IsMember(actor) {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "caller is not a group member", nil)
		return
	}
	respondData(w, http.StatusOK, group)
}

// ListGroups handles GET /api/v1/groups?member=me: every group the
// caller belongs to, via the membership index.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	groups, err := h.store.GroupsForMember(actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, groups)
}

// AddMember handles POST /api/v1/groups/{id}/members. Any current member
// may invite; the new member's profile is snapshotted at join time.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "id")

	var req models.AddMemberRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	group, err := h.store.GetGroup(groupID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !group.IsMember(actor) {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "only members may add members", nil)
		return
	}

	group, err = h.store.AddGroupMember(groupID, req.UserID, h.cfg.Groups.MaxMembers)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, group)
}

// RemoveMember handles DELETE /api/v1/groups/{id}/members/{userId}.
// Members may leave; the creator may remove others but cannot leave
// while other members remain.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	group, err := h.store.RemoveGroupMember(chi.URLParam(r, "id"), chi.URLParam(r, "userId"), actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, group)
}

// GenerateRecommendations handles POST /api/v1/groups/{id}/recommendations:
// nearby candidates scored per member, replacing any previous candidate
// set and clearing all ballots.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	group, err := h.voting.GenerateRecommendations(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, group)
}

// castVotesResponse pairs the updated group with the final tally when
// the ballot completed the vote.
type castVotesResponse struct {
	Group     *models.Group       `json:"group"`
	Finalized bool                `json:"finalized"`
	Tally     []models.TallyEntry `json:"tally,omitempty"`
}

// CastVotes handles POST /api/v1/groups/{id}/votes. The ballot belongs
// to the caller; re-voting replaces the whole ballot. When the last
// member votes the group finalizes in the same transaction and the
// response carries the tally.
func (h *Handler) CastVotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	if req.UserID == "" {
		req.UserID = actor
	}
	if req.UserID != actor {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "ballots may only be cast for the caller", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	group, tally, err := h.voting.CastVotes(chi.URLParam(r, "id"), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, castVotesResponse{
		Group:     group,
		Finalized: tally != nil,
		Tally:     tally,
	})
}

// VotingResults handles GET /api/v1/groups/{id}/votes: the live tally
// and per-place ballots, served while voting is open and after.
func (h *Handler) VotingResults(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	results, err := h.voting.Results(chi.URLParam(r, "id"), actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, results)
}

// FinalizeGroup handles POST /api/v1/groups/{id}/finalize. Creator only.
// An empty body finalizes on the current tally; a body naming a placeId
// selects that candidate directly.
func (h *Handler) FinalizeGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req models.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	req.UserID = actor
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	result, err := h.voting.Finalize(chi.URLParam(r, "id"), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// ArchiveGroup handles POST /api/v1/groups/{id}/archive. Creator only;
// history is retained.
func (h *Handler) ArchiveGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}

	group, err := h.voting.Archive(chi.URLParam(r, "id"), actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, group)
}
