// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package store

import (
	"testing"

	"github.com/convene-app/convene/internal/models"
)

func seedGroup(t *testing.T, s *Store, creatorID string, memberIDs ...string) *models.Group {
	t.Helper()
	group, err := s.CreateGroup(models.CreateGroupRequest{
		Name:           "Friday dinner",
		CreatorID:      creatorID,
		MemberIDs:      memberIDs,
		SearchLocation: models.LatLng{Lat: 40.7128, Lng: -74.0060},
		SearchRadiusKm: 5,
	})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	return group
}

func TestCreateGroupSnapshotsProfiles(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", -0.5)
	friend := seedUser(t, s, "Ben", 0.5)

	// The creator appearing again in MemberIDs must not duplicate.
	group := seedGroup(t, s, creator.ID, friend.ID, creator.ID, friend.ID)

	if len(group.Members) != 2 {
		t.Fatalf("Members = %v, want creator and friend once each", group.Members)
	}
	if group.Members[0] != creator.ID {
		t.Errorf("Members[0] = %s, want creator %s", group.Members[0], creator.ID)
	}
	if group.Status != models.GroupActive {
		t.Errorf("Status = %s, want active", group.Status)
	}

	profile, ok := group.MemberProfiles[friend.ID]
	if !ok {
		t.Fatal("friend has no profile snapshot")
	}
	if profile.DisplayName != "Ben" || profile.AdjustmentFactor != 0.5 {
		t.Errorf("friend profile = %+v", profile)
	}

	// Profile snapshots stay frozen after the member changes.
	if _, err := s.SetPersonality(friend.ID, -1.0); err != nil {
		t.Fatalf("SetPersonality() error = %v", err)
	}
	got, err := s.GetGroup(group.ID)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if got.MemberProfiles[friend.ID].AdjustmentFactor != 0.5 {
		t.Errorf("snapshot factor = %v, want 0.5", got.MemberProfiles[friend.ID].AdjustmentFactor)
	}

	for _, id := range []string{creator.ID, friend.ID} {
		groups, err := s.GroupsForMember(id)
		if err != nil {
			t.Fatalf("GroupsForMember(%s) error = %v", id, err)
		}
		if len(groups) != 1 || groups[0].ID != group.ID {
			t.Errorf("GroupsForMember(%s) = %v, want [%s]", id, groups, group.ID)
		}
	}
}

func TestCreateGroupUnknownMemberNotFound(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)

	_, err := s.CreateGroup(models.CreateGroupRequest{
		CreatorID:      creator.ID,
		MemberIDs:      []string{"missing"},
		SearchLocation: models.LatLng{Lat: 40.7, Lng: -74.0},
		SearchRadiusKm: 5,
	})
	if models.KindOf(err) != models.KindNotFound {
		t.Errorf("kind = %v, want KindNotFound", models.KindOf(err))
	}
}

func TestAddGroupMember(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	friend := seedUser(t, s, "Ben", 0.5)
	group := seedGroup(t, s, creator.ID)

	updated, err := s.AddGroupMember(group.ID, friend.ID, 10)
	if err != nil {
		t.Fatalf("AddGroupMember() error = %v", err)
	}
	if !updated.IsMember(friend.ID) {
		t.Errorf("Members = %v, want friend included", updated.Members)
	}
	if updated.MemberProfiles[friend.ID].DisplayName != "Ben" {
		t.Errorf("friend profile = %+v", updated.MemberProfiles[friend.ID])
	}
	if updated.Version != group.Version+1 {
		t.Errorf("Version = %d, want %d", updated.Version, group.Version+1)
	}

	_, err = s.AddGroupMember(group.ID, friend.ID, 10)
	if models.KindOf(err) != models.KindConflict {
		t.Errorf("duplicate add kind = %v, want KindConflict", models.KindOf(err))
	}
}

func TestAddGroupMemberRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	friend := seedUser(t, s, "Ben", 0)
	late := seedUser(t, s, "Cas", 0)
	group := seedGroup(t, s, creator.ID, friend.ID)

	_, err := s.AddGroupMember(group.ID, late.ID, 2)
	if models.KindOf(err) != models.KindValidation {
		t.Errorf("over-limit add kind = %v, want KindValidation", models.KindOf(err))
	}
}

func TestMembershipFrozenOutsideActive(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	friend := seedUser(t, s, "Ben", 0)
	late := seedUser(t, s, "Cas", 0)
	group := seedGroup(t, s, creator.ID, friend.ID)

	_, err := s.UpdateGroup("group_archive", group.ID, func(g *models.Group) error {
		g.Status = models.GroupArchived
		return nil
	})
	if err != nil {
		t.Fatalf("archive error = %v", err)
	}

	if _, err := s.AddGroupMember(group.ID, late.ID, 10); models.KindOf(err) != models.KindConflict {
		t.Errorf("add to archived kind = %v, want KindConflict", models.KindOf(err))
	}
	if _, err := s.RemoveGroupMember(group.ID, friend.ID, friend.ID); models.KindOf(err) != models.KindConflict {
		t.Errorf("remove from archived kind = %v, want KindConflict", models.KindOf(err))
	}
}

func TestRemoveGroupMemberDeletesBallot(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	friend := seedUser(t, s, "Ben", 0)
	group := seedGroup(t, s, creator.ID, friend.ID)

	_, err := s.UpdateGroup("group_vote", group.ID, func(g *models.Group) error {
		g.Votes = map[string][]string{friend.ID: {"p1"}}
		return nil
	})
	if err != nil {
		t.Fatalf("vote setup error = %v", err)
	}

	updated, err := s.RemoveGroupMember(group.ID, friend.ID, friend.ID)
	if err != nil {
		t.Fatalf("RemoveGroupMember() error = %v", err)
	}
	if updated.IsMember(friend.ID) {
		t.Errorf("Members = %v, friend still present", updated.Members)
	}
	if _, ok := updated.Votes[friend.ID]; ok {
		t.Error("ballot survived member removal")
	}
	if _, ok := updated.MemberProfiles[friend.ID]; ok {
		t.Error("profile snapshot survived member removal")
	}
	if updated.Status != models.GroupActive {
		t.Errorf("Status = %s, want active", updated.Status)
	}

	groups, err := s.GroupsForMember(friend.ID)
	if err != nil {
		t.Fatalf("GroupsForMember() error = %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("removed member still listed in %d groups", len(groups))
	}
}

func TestRemoveGroupMemberAuthorization(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	friend := seedUser(t, s, "Ben", 0)
	bystander := seedUser(t, s, "Cas", 0)
	group := seedGroup(t, s, creator.ID, friend.ID, bystander.ID)

	// A member cannot remove someone else.
	_, err := s.RemoveGroupMember(group.ID, friend.ID, bystander.ID)
	if models.KindOf(err) != models.KindUnauthorized {
		t.Errorf("peer removal kind = %v, want KindUnauthorized", models.KindOf(err))
	}

	// The creator can.
	updated, err := s.RemoveGroupMember(group.ID, friend.ID, creator.ID)
	if err != nil {
		t.Fatalf("creator removal error = %v", err)
	}
	if updated.IsMember(friend.ID) {
		t.Errorf("Members = %v, friend still present", updated.Members)
	}

	_, err = s.RemoveGroupMember(group.ID, friend.ID, creator.ID)
	if models.KindOf(err) != models.KindNotFound {
		t.Errorf("removing non-member kind = %v, want KindNotFound", models.KindOf(err))
	}
}

func TestCreatorCannotLeaveWhileOthersRemain(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	friend := seedUser(t, s, "Ben", 0)
	group := seedGroup(t, s, creator.ID, friend.ID)

	_, err := s.RemoveGroupMember(group.ID, creator.ID, creator.ID)
	if models.KindOf(err) != models.KindValidation {
		t.Errorf("creator leave kind = %v, want KindValidation", models.KindOf(err))
	}
}

func TestCreatorAloneDisbandsByLeaving(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	group := seedGroup(t, s, creator.ID)

	updated, err := s.RemoveGroupMember(group.ID, creator.ID, creator.ID)
	if err != nil {
		t.Fatalf("disband error = %v", err)
	}
	if updated.Status != models.GroupArchived {
		t.Errorf("Status = %s, want archived", updated.Status)
	}
	if !updated.IsMember(creator.ID) {
		t.Error("disband dropped the creator from Members")
	}

	// Archived history stays visible to the creator.
	groups, err := s.GroupsForMember(creator.ID)
	if err != nil {
		t.Fatalf("GroupsForMember() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Status != models.GroupArchived {
		t.Errorf("GroupsForMember() = %+v, want the archived group", groups)
	}
}

func TestUpdateGroupMutateErrorAborts(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	group := seedGroup(t, s, creator.ID)

	_, err := s.UpdateGroup("group_vote", group.ID, func(g *models.Group) error {
		g.Name = "mutated"
		return models.Conflict("voting is closed")
	})
	if models.KindOf(err) != models.KindConflict {
		t.Fatalf("kind = %v, want KindConflict", models.KindOf(err))
	}

	got, err := s.GetGroup(group.ID)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if got.Name != group.Name {
		t.Errorf("Name = %q, mutation leaked past abort", got.Name)
	}
	if got.Version != group.Version {
		t.Errorf("Version = %d, want unchanged %d", got.Version, group.Version)
	}
}

func TestUpdateGroupSyncsMemberIndex(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)
	friend := seedUser(t, s, "Ben", 0)
	joiner := seedUser(t, s, "Cas", 0)
	group := seedGroup(t, s, creator.ID, friend.ID)

	_, err := s.UpdateGroup("group_member_swap", group.ID, func(g *models.Group) error {
		g.Members = []string{creator.ID, joiner.ID}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateGroup() error = %v", err)
	}

	if groups, _ := s.GroupsForMember(friend.ID); len(groups) != 0 {
		t.Errorf("removed member still indexed in %d groups", len(groups))
	}
	joined, err := s.GroupsForMember(joiner.ID)
	if err != nil {
		t.Fatalf("GroupsForMember() error = %v", err)
	}
	if len(joined) != 1 || joined[0].ID != group.ID {
		t.Errorf("added member not indexed, got %v", joined)
	}
}

func TestActiveGroups(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)

	active := seedGroup(t, s, creator.ID)
	archived := seedGroup(t, s, creator.ID)
	if _, err := s.UpdateGroup("group_archive", archived.ID, func(g *models.Group) error {
		g.Status = models.GroupArchived
		return nil
	}); err != nil {
		t.Fatalf("archive error = %v", err)
	}

	groups, err := s.ActiveGroups()
	if err != nil {
		t.Fatalf("ActiveGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].ID != active.ID {
		t.Errorf("ActiveGroups() = %v, want only %s", groups, active.ID)
	}
}

func TestGroupsForMemberNewestFirst(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "Ada", 0)

	first := seedGroup(t, s, creator.ID)
	second := seedGroup(t, s, creator.ID)

	groups, err := s.GroupsForMember(creator.ID)
	if err != nil {
		t.Fatalf("GroupsForMember() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].CreatedAt.Before(groups[1].CreatedAt) {
		t.Errorf("groups not newest first: %s then %s", groups[0].ID, groups[1].ID)
	}
	if groups[0].ID != second.ID && !groups[0].CreatedAt.Equal(groups[1].CreatedAt) {
		t.Errorf("GroupsForMember()[0] = %s, want newest %s", groups[0].ID, second.ID)
	}
	if groups[1].ID != first.ID && !groups[0].CreatedAt.Equal(groups[1].CreatedAt) {
		t.Errorf("GroupsForMember()[1] = %s, want oldest %s", groups[1].ID, first.ID)
	}
}
