// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/convene-app/convene/internal/models"
)

// seedCandidates injects a three-place candidate slate directly into the
// stored group, standing in for the recommendation pipeline.
func (a *testAPI) seedCandidates(t *testing.T, groupID string) []string {
	t.Helper()
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	_, err := a.store.UpdateGroup("seed_candidates", groupID, func(g *models.Group) error {
		g.RecommendedPlaces = []models.CandidatePlace{
			{PlaceID: ids[0], PlaceName: "Alcove", Rank: 1},
			{PlaceID: ids[1], PlaceName: "Backroom", Rank: 2},
			{PlaceID: ids[2], PlaceName: "Courtyard", Rank: 3},
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed candidates error = %v", err)
	}
	return ids
}

func (a *testAPI) createGroup(t *testing.T, creator string, memberIDs []string) *models.Group {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/v1/groups", creator, models.CreateGroupRequest{
		Name:           "Friday dinner",
		MemberIDs:      memberIDs,
		SearchLocation: models.LatLng{Lat: 40.7128, Lng: -74.0060},
		SearchRadiusKm: 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group status = %d, body %s", rec.Code, rec.Body.String())
	}
	var group models.Group
	if err := json.Unmarshal(env.Data, &group); err != nil {
		t.Fatalf("decode group: %v", err)
	}
	return &group
}

func TestCreateGroupCreatorFromHeader(t *testing.T) {
	api := newTestAPI(t)
	creator := api.createUser(t, "Noor", 0)
	other := api.createUser(t, "Riley", 0)

	group := api.createGroup(t, creator.ID, []string{other.ID})
	if group.CreatorID != creator.ID {
		t.Errorf("CreatorID = %s, want the X-User-ID caller", group.CreatorID)
	}
	if len(group.Members) != 2 {
		t.Errorf("len(Members) = %d, want 2", len(group.Members))
	}
	if group.Status != models.GroupActive {
		t.Errorf("Status = %s, want active", group.Status)
	}

	// Without a caller there is no creator.
	rec, _ := api.do(t, http.MethodPost, "/api/v1/groups", "", models.CreateGroupRequest{
		SearchLocation: models.LatLng{Lat: 40.7, Lng: -74.0},
		SearchRadiusKm: 5,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("unauthenticated create status = %d, want 403", rec.Code)
	}
}

func TestGetGroupMembersOnly(t *testing.T) {
	api := newTestAPI(t)
	creator := api.createUser(t, "Noor", 0)
	outsider := api.createUser(t, "Sam", 0)
	group := api.createGroup(t, creator.ID, nil)

	rec, _ := api.do(t, http.MethodGet, "/api/v1/groups/"+group.ID, creator.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("member get status = %d", rec.Code)
	}

	rec, env := api.do(t, http.MethodGet, "/api/v1/groups/"+group.ID, outsider.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider get status = %d, want 403", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error = %+v, want UNAUTHORIZED", env.Error)
	}
}

func TestListGroupsForCaller(t *testing.T) {
	api := newTestAPI(t)
	creator := api.createUser(t, "Noor", 0)
	member := api.createUser(t, "Riley", 0)
	api.createGroup(t, creator.ID, []string{member.ID})
	api.createGroup(t, creator.ID, nil)

	rec, env := api.do(t, http.MethodGet, "/api/v1/groups", member.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var groups []models.Group
	if err := json.Unmarshal(env.Data, &groups); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("len(groups) = %d, want only the group the caller joined", len(groups))
	}
}

func TestAddAndRemoveMember(t *testing.T) {
	api := newTestAPI(t)
	creator := api.createUser(t, "Noor", 0)
	joiner := api.createUser(t, "Riley", 0)
	outsider := api.createUser(t, "Sam", 0)
	group := api.createGroup(t, creator.ID, nil)

	// Outsiders cannot invite.
	rec, _ := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/members", outsider.ID,
		models.AddMemberRequest{UserID: joiner.ID})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider invite status = %d, want 403", rec.Code)
	}

	rec, env := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/members", creator.ID,
		models.AddMemberRequest{UserID: joiner.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("invite status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated models.Group
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode group: %v", err)
	}
	if !updated.IsMember(joiner.ID) {
		t.Error("joiner missing from members after invite")
	}

	// The joiner may leave on their own.
	rec, _ = api.do(t, http.MethodDelete,
		"/api/v1/groups/"+group.ID+"/members/"+joiner.ID, joiner.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestVotingFlowAutoFinalizes(t *testing.T) {
	api := newTestAPI(t)
	creator := api.createUser(t, "Noor", 0)
	m2 := api.createUser(t, "Riley", 0)
	m3 := api.createUser(t, "Sam", 0)
	group := api.createGroup(t, creator.ID, []string{m2.ID, m3.ID})
	places := api.seedCandidates(t, group.ID)

	vote := func(actor string, ballot []string) castVotesResponse {
		rec, env := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/votes", actor,
			models.CastVoteRequest{PlaceIDs: ballot})
		if rec.Code != http.StatusOK {
			t.Fatalf("vote by %s status = %d, body %s", actor, rec.Code, rec.Body.String())
		}
		var resp castVotesResponse
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			t.Fatalf("decode vote response: %v", err)
		}
		return resp
	}

	// A ballot cannot be cast on someone else's behalf.
	rec, _ := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/votes", creator.ID,
		models.CastVoteRequest{UserID: m2.ID, PlaceIDs: []string{places[0]}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("proxy ballot status = %d, want 403", rec.Code)
	}

	if resp := vote(creator.ID, []string{places[0], places[1]}); resp.Finalized {
		t.Fatal("group finalized after the first of three ballots")
	}
	vote(m2.ID, []string{places[0], places[2]})

	last := vote(m3.ID, []string{places[1], places[0]})
	if !last.Finalized {
		t.Fatal("group did not finalize after the last ballot")
	}
	if len(last.Tally) == 0 {
		t.Fatal("finalizing response carries no tally")
	}
	// place-0: 3+3+2 = 8 points, the clear winner.
	if last.Tally[0].PlaceID != places[0] {
		t.Errorf("winner = %s, want %s", last.Tally[0].PlaceID, places[0])
	}
	if last.Group.Status != models.GroupPlaceSelected {
		t.Errorf("Status = %s, want place_selected", last.Group.Status)
	}
	if last.Group.FinalPlace == nil || last.Group.FinalPlace.PlaceID != places[0] {
		t.Errorf("FinalPlace = %+v, want %s", last.Group.FinalPlace, places[0])
	}

	// Results remain readable after finalization.
	rec, env := api.do(t, http.MethodGet, "/api/v1/groups/"+group.ID+"/votes", m2.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d", rec.Code)
	}
	var results models.VotingResults
	if err := json.Unmarshal(env.Data, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.Ballots != 3 || results.Members != 3 {
		t.Errorf("Ballots/Members = %d/%d, want 3/3", results.Ballots, results.Members)
	}
	if results.FinalPlace == nil {
		t.Error("results missing final place after finalization")
	}
}

func TestFinalizeByCreator(t *testing.T) {
	api := newTestAPI(t)
	creator := api.createUser(t, "Noor", 0)
	m2 := api.createUser(t, "Riley", 0)
	group := api.createGroup(t, creator.ID, []string{m2.ID})
	places := api.seedCandidates(t, group.ID)

	rec, _ := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/votes", m2.ID,
		models.CastVoteRequest{PlaceIDs: []string{places[1]}})
	if rec.Code != http.StatusOK {
		t.Fatalf("vote status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Only the creator may cut voting short.
	rec, _ = api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/finalize", m2.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member finalize status = %d, want 403", rec.Code)
	}

	// Empty body: finalize on the current tally.
	rec, env := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/finalize", creator.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("creator finalize status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.FinalizeResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Group.Status != models.GroupPlaceSelected {
		t.Errorf("Status = %s, want place_selected", result.Group.Status)
	}
	if result.Group.FinalPlace == nil || result.Group.FinalPlace.PlaceID != places[1] {
		t.Errorf("FinalPlace = %+v, want the sole voted place", result.Group.FinalPlace)
	}

	// Finalization fires exactly once.
	rec, env = api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/finalize", creator.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second finalize status = %d, want 409", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "CONFLICT" {
		t.Errorf("error = %+v, want CONFLICT", env.Error)
	}
}

func TestArchiveGroup(t *testing.T) {
	api := newTestAPI(t)
	creator := api.createUser(t, "Noor", 0)
	m2 := api.createUser(t, "Riley", 0)
	group := api.createGroup(t, creator.ID, []string{m2.ID})

	rec, _ := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/archive", m2.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member archive status = %d, want 403", rec.Code)
	}

	rec, env := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/archive", creator.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d, body %s", rec.Code, rec.Body.String())
	}
	var archived models.Group
	if err := json.Unmarshal(env.Data, &archived); err != nil {
		t.Fatalf("decode group: %v", err)
	}
	if archived.Status != models.GroupArchived {
		t.Errorf("Status = %s, want archived", archived.Status)
	}
}
